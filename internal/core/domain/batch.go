package domain

import (
	"encoding/json"
	"time"
)

// RowResult is one successfully scored CSV row.
type RowResult struct {
	Line             int             `json:"linea"`
	Airline          string          `json:"aerolinea"`
	Origin           string          `json:"origen"`
	Destination      string          `json:"destino"`
	DepartureTime    string          `json:"fecha_partida,omitempty"`
	DistanceKm       float64         `json:"distancia_km"`
	Class            PredictionClass `json:"prediccion"`
	Label            string          `json:"prevision"`
	DelayProbability float64         `json:"probabilidad_retraso"`
	Confidence       float64         `json:"confianza"`
	PredictedAt      time.Time       `json:"fecha_prediccion"`
	BatchID          string          `json:"batch_id,omitempty"`
}

// RowError records why a single row failed.
type RowError struct {
	Line    int    `json:"linea"`
	Message string `json:"error"`
}

// BatchSummary separates "how many landed" from "what failed".
type BatchSummary struct {
	ProcessedCount int        `json:"total_procesadas"`
	ErrorCount     int        `json:"total_errores"`
	Errors         []RowError `json:"errores"`
}

// BatchResult is the outcome of one CSV upload. Rows and Errors keep file order.
type BatchResult struct {
	BatchID string
	Rows    []RowResult
	Summary BatchSummary
}

// AddRow appends a success.
func (b *BatchResult) AddRow(r RowResult) {
	b.Rows = append(b.Rows, r)
	b.Summary.ProcessedCount++
}

// AddError appends a row failure.
func (b *BatchResult) AddError(line int, msg string) {
	b.Summary.Errors = append(b.Summary.Errors, RowError{Line: line, Message: msg})
	b.Summary.ErrorCount++
}

// HasErrors reports partial failure.
func (b *BatchResult) HasErrors() bool {
	return b.Summary.ErrorCount > 0
}

// MarshalJSON renders a flat array when every row succeeded, and a
// {resumen, resultados} object otherwise.
func (b *BatchResult) MarshalJSON() ([]byte, error) {
	rows := b.Rows
	if rows == nil {
		rows = []RowResult{}
	}
	if !b.HasErrors() {
		return json.Marshal(rows)
	}
	return json.Marshal(struct {
		Summary BatchSummary `json:"resumen"`
		Results []RowResult  `json:"resultados"`
	}{b.Summary, rows})
}
