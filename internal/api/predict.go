package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/vietddude/flightontime/internal/core/domain"
)

const (
	maxPredictBody = 1 << 20
	maxUploadSize  = 10 << 20
)

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req domain.PredictionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictBody))
	if err := dec.Decode(&req); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	out, err := h.svc.Predictor.Predict(r.Context(), req, "")
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleBatchPredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		respondError(w, http.StatusBadRequest, "file must be a .csv")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable upload")
		return
	}

	batchID := strings.TrimSpace(r.FormValue("batch_id"))
	result, err := h.svc.Batches.Ingest(r.Context(), data, batchID)
	if err != nil {
		if result != nil {
			h.logger.Warn("Batch interrupted", "batch_id", result.BatchID, "error", err)
			respondError(w, http.StatusServiceUnavailable, "batch interrupted")
			return
		}
		h.respondDomainError(w, err)
		return
	}

	w.Header().Set("X-Batch-ID", result.BatchID)
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleBatchSummary(w http.ResponseWriter, r *http.Request) {
	if h.svc.Summaries == nil {
		respondError(w, http.StatusNotFound, "batch summaries are not enabled")
		return
	}

	id := mux.Vars(r)["id"]
	summary, found, err := h.svc.Summaries.GetSummary(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "batch not found")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
