package domain

import "time"

// ScopeKind identifies what a StatsSnapshot covers.
type ScopeKind string

const (
	ScopeDay   ScopeKind = "day"
	ScopeRange ScopeKind = "range"
	ScopeBatch ScopeKind = "batch"
)

// StatsScope describes the slice of history a snapshot summarizes.
type StatsScope struct {
	Kind    ScopeKind `json:"tipo"`
	Start   string    `json:"fecha_inicio,omitempty"` // YYYY-MM-DD
	End     string    `json:"fecha_fin,omitempty"`
	BatchID string    `json:"batch_id,omitempty"`
}

// GroupStat aggregates predictions sharing one key (airline or origin airport).
type GroupStat struct {
	Key                string  `json:"clave"`
	DisplayName        string  `json:"nombre"`
	City               string  `json:"ciudad,omitempty"`
	Total              int64   `json:"total"`
	Delayed            int64   `json:"retrasados"`
	AverageProbability float64 `json:"probabilidad_promedio"`
	DelayedPercent     float64 `json:"porcentaje_retrasados"`
}

// StatsSnapshot is computed fresh on every call.
type StatsSnapshot struct {
	Scope          StatsScope  `json:"alcance"`
	TotalCount     int64       `json:"total_predicciones"`
	DelayedCount   int64       `json:"total_retrasados"`
	OnTimeCount    int64       `json:"total_puntuales"`
	DelayedPercent *float64    `json:"porcentaje_retrasados"`
	OnTimePercent  *float64    `json:"porcentaje_puntuales"`
	ByAirline      []GroupStat `json:"estadisticas_por_aerolinea"`
	ByOrigin       []GroupStat `json:"estadisticas_por_aeropuerto_origen"`
	GeneratedAt    time.Time   `json:"timestamp"`
}

// GroupCounts is a raw aggregate row as returned by a repository.
type GroupCounts struct {
	Key                string  `db:"group_key"`
	Total              int64   `db:"total"`
	Delayed            int64   `db:"delayed"`
	AverageProbability float64 `db:"avg_probability"`
}
