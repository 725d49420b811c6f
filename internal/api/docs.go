package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

const (
	serviceName    = "FlightOnTime API"
	serviceVersion = "1.0.0"
)

// route is one documented endpoint. Path is relative to the API prefix.
type route struct {
	Method      string         `json:"metodo"`
	Path        string         `json:"url"`
	Description string         `json:"descripcion"`
	Example     map[string]any `json:"body_ejemplo,omitempty"`

	handler http.HandlerFunc
}

func (h *Handler) routes() []route {
	return []route{
		{
			Method:      "POST",
			Path:        "/predict",
			Description: "Predicts whether a flight departs on time or delayed",
			Example: map[string]any{
				"aerolinea":     "DL",
				"origen":        "ATL",
				"destino":       "JFK",
				"fecha_partida": "2025-12-25T14:30:00",
			},
			handler: h.handlePredict,
		},
		{Method: "POST", Path: "/batch-predict", Description: "Scores every row of a CSV upload (multipart field \"file\")", handler: h.handleBatchPredict},
		{Method: "GET", Path: "/batches/{id}/summary", Description: "Cached summary of a finished batch", handler: h.handleBatchSummary},
		{Method: "GET", Path: "/predictions", Description: "Paged, filtered prediction history", handler: h.handleListPredictions},
		{Method: "GET", Path: "/predictions/filters", Description: "Airlines and airports present in history", handler: h.handleFilterOptions},
		{Method: "GET", Path: "/stats", Description: "Statistics for today, a date range or a batch", handler: h.handleStats},
	}
}

// handleDocs lists the available endpoints.
func (h *Handler) handleDocs(w http.ResponseWriter, r *http.Request) {
	prefix := ""
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			prefix = strings.TrimSuffix(tpl, "/docs")
		}
	}

	endpoints := make([]route, 0, len(h.routes())+1)
	for _, rt := range h.routes() {
		rt.Path = prefix + rt.Path
		endpoints = append(endpoints, rt)
	}
	endpoints = append(endpoints, route{Method: "GET", Path: "/health", Description: "Service, circuit and database status"})

	respondJSON(w, http.StatusOK, map[string]any{
		"servicio":  serviceName,
		"version":   serviceVersion,
		"endpoints": endpoints,
	})
}
