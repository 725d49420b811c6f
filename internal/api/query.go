package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/infra/storage"
	"github.com/vietddude/flightontime/internal/stats"
)

// sortAliases maps public sort names onto repository columns.
var sortAliases = map[string]storage.SortField{
	"fechaprediccion": storage.SortCreatedAt,
	"aerolinea":       storage.SortAirline,
	"origen":          storage.SortOrigin,
	"destino":         storage.SortDestination,
	"probabilidad":    storage.SortProbability,
}

func (h *Handler) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, err := h.parseFilter(q)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	page, err := parsePage(q)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	result, err := h.svc.History.List(r.Context(), filter, page)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	values, err := h.svc.History.Filters(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, values)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var (
		snap *domain.StatsSnapshot
		err  error
	)
	inicio, fin := q.Get("inicio"), q.Get("fin")
	switch {
	case q.Get("batchId") != "":
		snap, err = h.svc.Stats.ForBatch(ctx, q.Get("batchId"))
	case inicio != "" || fin != "":
		if inicio == "" || fin == "" {
			h.respondDomainError(w, domain.NewValidationError("inicio", "inicio and fin must be given together"))
			return
		}
		start, perr := stats.ParseDate("inicio", inicio)
		if perr != nil {
			h.respondDomainError(w, perr)
			return
		}
		end, perr := stats.ParseDate("fin", fin)
		if perr != nil {
			h.respondDomainError(w, perr)
			return
		}
		snap, err = h.svc.Stats.ForRange(ctx, start, end)
	default:
		snap, err = h.svc.Stats.ForDay(ctx, h.svc.Stats.Today())
	}
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handler) parseFilter(q url.Values) (storage.Filter, error) {
	f := storage.Filter{
		Airline:     q.Get("aerolinea"),
		Origin:      q.Get("origen"),
		Destination: q.Get("destino"),
		BatchID:     q.Get("batchId"),
	}

	if s := q.Get("fechaInicio"); s != "" {
		d, err := stats.ParseDate("fechaInicio", s)
		if err != nil {
			return f, err
		}
		f.From = h.midnight(d)
	}
	if s := q.Get("fechaFin"); s != "" {
		d, err := stats.ParseDate("fechaFin", s)
		if err != nil {
			return f, err
		}
		f.To = h.midnight(d).AddDate(0, 0, 1)
	}

	if s := q.Get("prediccion"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || (n != 0 && n != 1) {
			return f, domain.NewValidationError("prediccion", "prediccion must be 0 or 1")
		}
		c := domain.PredictionClass(n)
		f.Class = &c
	}
	return f, nil
}

func parsePage(q url.Values) (storage.Page, error) {
	var p storage.Page
	var err error

	if s := q.Get("page"); s != "" {
		if p.Number, err = strconv.Atoi(s); err != nil {
			return p, domain.NewValidationError("page", "page must be an integer")
		}
	}
	if s := q.Get("size"); s != "" {
		if p.Size, err = strconv.Atoi(s); err != nil {
			return p, domain.NewValidationError("size", "size must be an integer")
		}
	}

	p.Desc = true
	switch strings.ToLower(q.Get("sortDir")) {
	case "", "desc":
	case "asc":
		p.Desc = false
	default:
		return p, domain.NewValidationError("sortDir", "sortDir must be asc or desc")
	}

	if s := q.Get("sortBy"); s != "" {
		field, ok := sortAliases[strings.ToLower(s)]
		if !ok {
			field = storage.SortField(s)
		}
		p.Sort = field
	} else {
		p.Sort = storage.SortCreatedAt
	}
	return p, nil
}

// midnight pins a calendar date to 00:00 in the stats time zone.
func (h *Handler) midnight(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, h.svc.Location)
}
