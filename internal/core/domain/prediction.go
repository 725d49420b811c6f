package domain

import "maps"

// PredictionClass is the scorer's binary verdict.
type PredictionClass int

const (
	ClassOnTime  PredictionClass = 0
	ClassDelayed PredictionClass = 1
)

// Label returns the display label stored alongside a persisted prediction.
func (c PredictionClass) Label() string {
	if c == ClassDelayed {
		return "Delayed"
	}
	return "On-time"
}

// Metadata keys added to an Outcome after the scorer returns.
const (
	MetaLatencyMS       = "tiempo_respuesta_ms"
	MetaAirlineName     = "aerolinea_nombre"
	MetaOriginName      = "origen_nombre"
	MetaOriginCity      = "origen_ciudad"
	MetaDestinationName = "destino_nombre"
	MetaDestinationCity = "destino_ciudad"
)

// PredictionRequest describes one flight to score.
type PredictionRequest struct {
	Airline       string `json:"aerolinea"`
	Origin        string `json:"origen"`
	Destination   string `json:"destino"`
	DepartureTime string `json:"fecha_partida,omitempty"`

	// DistanceKmHint is an optional caller-supplied distance (CSV distancia_km).
	DistanceKmHint *float64 `json:"-"`
}

// WeatherSnapshot is passed through from the scorer untouched.
type WeatherSnapshot struct {
	Temperature *float64 `json:"temperatura,omitempty"`
	Humidity    *int     `json:"humedad,omitempty"`
	Pressure    *int     `json:"presion,omitempty"`
	Visibility  *int     `json:"visibilidad,omitempty"`
	WindSpeed   *float64 `json:"viento_velocidad,omitempty"`
	Condition   string   `json:"condicion,omitempty"`
	Description string   `json:"descripcion,omitempty"`
}

// Outcome is the result of one successful scoring call.
type Outcome struct {
	Class              PredictionClass  `json:"prediccion"`
	DelayProbability   float64          `json:"probabilidad_retraso"`
	Confidence         float64          `json:"confianza"`
	DistanceKm         float64          `json:"distancia_km"`
	WeatherOrigin      *WeatherSnapshot `json:"clima_origen,omitempty"`
	WeatherDestination *WeatherSnapshot `json:"clima_destino,omitempty"`
	Metadata           map[string]any   `json:"metadata"`
}

// Clone returns a deep copy so the receiver can hand ownership to another component.
func (o *Outcome) Clone() *Outcome {
	if o == nil {
		return nil
	}
	c := *o
	c.Metadata = maps.Clone(o.Metadata)
	if o.WeatherOrigin != nil {
		w := *o.WeatherOrigin
		c.WeatherOrigin = &w
	}
	if o.WeatherDestination != nil {
		w := *o.WeatherDestination
		c.WeatherDestination = &w
	}
	return &c
}
