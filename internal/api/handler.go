// Package api exposes predictions, batch uploads, history and stats over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/history"
	"github.com/vietddude/flightontime/internal/infra/scorer/resilience"
	"github.com/vietddude/flightontime/internal/infra/storage"
)

// Predictor runs a single prediction.
type Predictor interface {
	Predict(ctx context.Context, req domain.PredictionRequest, batchID string) (*domain.Outcome, error)
}

// BatchIngester scores a CSV upload.
type BatchIngester interface {
	Ingest(ctx context.Context, data []byte, batchID string) (*domain.BatchResult, error)
}

// HistoryLister pages through stored predictions.
type HistoryLister interface {
	List(ctx context.Context, f storage.Filter, p storage.Page) (*history.Page, error)
	Filters(ctx context.Context) (storage.DistinctValues, error)
}

// StatsProvider builds stats snapshots.
type StatsProvider interface {
	Today() time.Time
	ForDay(ctx context.Context, day time.Time) (*domain.StatsSnapshot, error)
	ForRange(ctx context.Context, start, end time.Time) (*domain.StatsSnapshot, error)
	ForBatch(ctx context.Context, batchID string) (*domain.StatsSnapshot, error)
}

// SummaryStore returns cached batch summaries.
type SummaryStore interface {
	GetSummary(ctx context.Context, batchID string) (domain.BatchSummary, bool, error)
}

// Services groups what the handler serves. Summaries may be nil.
type Services struct {
	Predictor Predictor
	Batches   BatchIngester
	History   HistoryLister
	Stats     StatsProvider
	Summaries SummaryStore
	Location  *time.Location
}

// Handler provides the /api endpoints.
type Handler struct {
	svc    Services
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc Services) *Handler {
	if svc.Location == nil {
		svc.Location = time.UTC
	}
	return &Handler{
		svc:    svc,
		logger: slog.Default().With("component", "api"),
	}
}

// RegisterRoutes sets up all API routes.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	for _, rt := range h.routes() {
		r.HandleFunc(rt.Path, rt.handler).Methods(rt.Method)
	}
	r.HandleFunc("/docs", h.handleDocs).Methods("GET")
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message, "status": status})
}

// respondDomainError maps err onto a status code and writes it.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		de *domain.DownstreamError
	)
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  ve.Reason,
			"campo":  ve.Field,
			"status": http.StatusBadRequest,
		})
	case errors.Is(err, resilience.ErrOpen):
		respondError(w, http.StatusServiceUnavailable, "prediction service temporarily unavailable")
	case errors.Is(err, domain.ErrDownstreamTimeout):
		respondError(w, http.StatusGatewayTimeout, "prediction service timed out")
	case errors.As(err, &de):
		body := map[string]any{"error": de.Error(), "status": http.StatusBadGateway}
		if de.StatusCode != 0 {
			body["scorer_status"] = de.StatusCode
		}
		respondJSON(w, http.StatusBadGateway, body)
	case errors.Is(err, domain.ErrMalformedInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBatchInProgress):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
