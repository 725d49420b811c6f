// Package scorer talks to the remote ML scoring service.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/flightontime/internal/core/domain"
)

const predictPath = "/predict_internal"

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 4 << 10

// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed scorer response")

// StatusError is a non-2xx reply. Body is the remote error body verbatim.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

type wireRequest struct {
	Airline       string `json:"aerolinea"`
	Origin        string `json:"origen"`
	Destination   string `json:"destino"`
	DepartureTime string `json:"fecha_partida,omitempty"`
}

// Response is the scorer's reply.
type Response struct {
	Prediction         *int                    `json:"prediccion"`
	DelayProbability   float64                 `json:"probabilidad_retraso"`
	Confidence         float64                 `json:"confianza"`
	DistanceKm         *float64                `json:"distancia_km"`
	WeatherOrigin      *domain.WeatherSnapshot `json:"clima_origen"`
	WeatherDestination *domain.WeatherSnapshot `json:"clima_destino"`
	Metadata           map[string]any          `json:"metadata"`
}

// HTTPClient is the raw transport. It applies no timeout of its own; callers bound
// each attempt through the context.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient creates a transport for baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		endpoint: strings.TrimRight(baseURL, "/") + predictPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Predict makes a single scoring call.
func (c *HTTPClient) Predict(ctx context.Context, req domain.PredictionRequest) (*Response, error) {
	jsonData, err := json.Marshal(wireRequest{
		Airline:       req.Airline,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("scorer call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Prediction == nil || (*out.Prediction != 0 && *out.Prediction != 1) {
		return nil, fmt.Errorf("%w: prediccion must be 0 or 1", ErrMalformedResponse)
	}
	return &out, nil
}
