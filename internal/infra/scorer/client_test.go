package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/flightontime/internal/core/domain"
)

func TestHTTPClient_Predict(t *testing.T) {
	var got wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict_internal", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"prediccion": 1,
			"probabilidad_retraso": 0.73,
			"confianza": 0.81,
			"distancia_km": 1222.08,
			"clima_origen": {"temperatura": 21.5, "condicion": "Clear"},
			"metadata": {"modelo": "v2"}
		}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL + "/")
	resp, err := c.Predict(context.Background(), domain.PredictionRequest{
		Airline: "DL", Origin: "ATL", Destination: "JFK", DepartureTime: "2025-01-15T10:30:00",
	})
	require.NoError(t, err)

	assert.Equal(t, wireRequest{"DL", "ATL", "JFK", "2025-01-15T10:30:00"}, got)
	require.NotNil(t, resp.Prediction)
	assert.Equal(t, 1, *resp.Prediction)
	assert.Equal(t, 0.73, resp.DelayProbability)
	require.NotNil(t, resp.DistanceKm)
	assert.Equal(t, 1222.08, *resp.DistanceKm)
	require.NotNil(t, resp.WeatherOrigin)
	assert.Equal(t, "Clear", resp.WeatherOrigin.Condition)
	assert.Nil(t, resp.WeatherDestination)
	assert.Equal(t, "v2", resp.Metadata["modelo"])
}

func TestHTTPClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"aerolinea desconocida"}` + "\n"))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL).Predict(context.Background(), domain.PredictionRequest{})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, `{"detail":"aerolinea desconocida"}`, se.Body)
}

func TestHTTPClient_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>"},
		{"missing class", `{"probabilidad_retraso": 0.5}`},
		{"bad class", `{"prediccion": 7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL).Predict(context.Background(), domain.PredictionRequest{})
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.False(t, IsTransient(err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, connErr := NewHTTPClient(addr).Predict(context.Background(), domain.PredictionRequest{})
	require.Error(t, connErr)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", connErr, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"503", &StatusError{StatusCode: 503}, true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"400", &StatusError{StatusCode: 400}, false},
		{"429", &StatusError{StatusCode: 429}, false},
		{"malformed", ErrMalformedResponse, false},
		{"plain", errors.New("x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
