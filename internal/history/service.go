// Package history lists stored predictions.
package history

import (
	"context"
	"math"
	"strings"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one slice of history.
type Page struct {
	Items       []*domain.PredictionRecord `json:"content"`
	Number      int                        `json:"currentPage"`
	Size        int                        `json:"pageSize"`
	Total       int64                      `json:"totalElements"`
	TotalPages  int                        `json:"totalPages"`
	HasNext     bool                       `json:"hasNext"`
	HasPrevious bool                       `json:"hasPrevious"`
}

// Service reads prediction history.
type Service struct {
	repo storage.PredictionRepository
}

// NewService creates a history service.
func NewService(repo storage.PredictionRepository) *Service {
	return &Service{repo: repo}
}

// NormalizePage applies defaults and bounds. Unknown sort keys are rejected.
func NormalizePage(p storage.Page) (storage.Page, error) {
	if p.Number < 0 {
		return p, domain.NewValidationError("page", "page must not be negative")
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Number > math.MaxInt/p.Size {
		return p, domain.NewValidationError("page", "page %d is out of range", p.Number)
	}
	if p.Sort == "" {
		p.Sort = storage.SortCreatedAt
		p.Desc = true
	}
	if !p.Sort.Valid() {
		return p, domain.NewValidationError("sort", "unsupported sort field %q", p.Sort)
	}
	return p, nil
}

// List returns one page of matching predictions. Codes in the filter are upper-cased.
func (s *Service) List(ctx context.Context, f storage.Filter, p storage.Page) (*Page, error) {
	p, err := NormalizePage(p)
	if err != nil {
		return nil, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return nil, domain.NewValidationError("fechaInicio", "start date is after end date")
	}
	f.Airline = strings.ToUpper(strings.TrimSpace(f.Airline))
	f.Origin = strings.ToUpper(strings.TrimSpace(f.Origin))
	f.Destination = strings.ToUpper(strings.TrimSpace(f.Destination))

	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.PredictionRecord{}
	}
	pages := int(math.Ceil(float64(total) / float64(p.Size)))
	return &Page{
		Items:       items,
		Number:      p.Number,
		Size:        p.Size,
		Total:       total,
		TotalPages:  pages,
		HasNext:     p.Number+1 < pages,
		HasPrevious: p.Number > 0,
	}, nil
}

// Filters returns the distinct airlines, origins and destinations present in history.
func (s *Service) Filters(ctx context.Context) (storage.DistinctValues, error) {
	return s.repo.Distinct(ctx)
}
