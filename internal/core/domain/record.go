package domain

import "time"

// PredictionRecord is the persisted projection of a request and its outcome.
type PredictionRecord struct {
	ID            string          `json:"id"            db:"id"`
	Airline       string          `json:"aerolinea"     db:"airline"`
	Origin        string          `json:"origen"        db:"origin"`
	Destination   string          `json:"destino"       db:"destination"`
	DepartureTime string          `json:"fecha_partida" db:"departure_time"`
	DistanceKm    float64         `json:"distancia_km"  db:"distance_km"`
	Class         PredictionClass `json:"prediccion"    db:"prediction"`
	Label         string          `json:"prevision"     db:"label"`
	Probability   float64         `json:"probabilidad"  db:"probability"`
	Confidence    float64         `json:"confianza"     db:"confidence"`
	BatchID       string          `json:"batch_id"      db:"batch_id"`
	CreatedAt     time.Time       `json:"fecha_prediccion" db:"created_at"`
}

// NewPredictionRecord builds a record. CreatedAt and Label are fixed here and never change.
func NewPredictionRecord(
	id string,
	req PredictionRequest,
	out *Outcome,
	batchID string,
	now time.Time,
) *PredictionRecord {
	return &PredictionRecord{
		ID:            id,
		Airline:       req.Airline,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		DistanceKm:    out.DistanceKm,
		Class:         out.Class,
		Label:         out.Class.Label(),
		Probability:   out.DelayProbability,
		Confidence:    out.Confidence,
		BatchID:       batchID,
		CreatedAt:     now.UTC(),
	}
}

// IsDelayed reports whether the record predicts a delay.
func (r *PredictionRecord) IsDelayed() bool {
	return r.Class == ClassDelayed
}
