package prediction

import (
	"errors"
	"strings"
	"testing"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/refdata"
)

func TestValidate(t *testing.T) {
	dir := refdata.MustDefault()

	tests := []struct {
		name      string
		req       domain.PredictionRequest
		wantField string
		wantMsg   string
	}{
		{"valid", domain.PredictionRequest{Airline: "DL", Origin: "ATL", Destination: "JFK"}, "", ""},
		{"valid with time", domain.PredictionRequest{Airline: "DL", Origin: "ATL", Destination: "JFK", DepartureTime: "2025-12-25T14:30:00"}, "", ""},
		{"valid with zone", domain.PredictionRequest{Airline: "DL", Origin: "ATL", Destination: "JFK", DepartureTime: "2025-12-25T14:30:00-05:00"}, "", ""},
		{"valid without seconds", domain.PredictionRequest{Airline: "DL", Origin: "ATL", Destination: "JFK", DepartureTime: "2025-12-25T14:30"}, "", ""},
		{"missing airline", domain.PredictionRequest{Origin: "ATL", Destination: "JFK"}, "aerolinea", "required"},
		{"missing origin", domain.PredictionRequest{Airline: "DL", Destination: "JFK"}, "origen", "required"},
		{"bad origin", domain.PredictionRequest{Airline: "DL", Origin: "AT1", Destination: "JFK"}, "origen", "3-letter"},
		{"bad destination", domain.PredictionRequest{Airline: "DL", Origin: "ATL", Destination: "JFKX"}, "destino", "3-letter"},
		{"same airports", domain.PredictionRequest{Airline: "DL", Origin: "ATL", Destination: "ATL"}, "destino", "cannot be the same"},
		{"same airports wins over unknown airline", domain.PredictionRequest{Airline: "ZZ", Origin: "ATL", Destination: "ATL"}, "destino", "cannot be the same"},
		{"unknown airline", domain.PredictionRequest{Airline: "ZZ", Origin: "ATL", Destination: "JFK"}, "aerolinea", "9E, AA, AS"},
		{"origin not served", domain.PredictionRequest{Airline: "HA", Origin: "ATL", Destination: "JFK"}, "origen", "Hawaiian Airlines Inc. (HA)"},
		{"destination not served", domain.PredictionRequest{Airline: "HA", Origin: "JFK", Destination: "ATL"}, "destino", "ATL is not served"},
		{"bad time", domain.PredictionRequest{Airline: "DL", Origin: "ATL", Destination: "JFK", DepartureTime: "25/12/2025"}, "fecha_partida", "ISO-8601"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(Normalize(tt.req), dir)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Error("error does not match ErrValidation")
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
			if !strings.Contains(ve.Reason, tt.wantMsg) {
				t.Errorf("Reason = %q, want containing %q", ve.Reason, tt.wantMsg)
			}
		})
	}
}

func TestValidate_UnknownAirlineListsSortedCodes(t *testing.T) {
	err := Validate(domain.PredictionRequest{Airline: "XX", Origin: "ATL", Destination: "JFK"}, refdata.MustDefault())
	want := "9E, AA, AS, B6, DL, F9, G4, HA, MQ, NK, OH, OO, UA, WN, YX"
	if err == nil || !strings.HasSuffix(err.Error(), want) {
		t.Errorf("error = %v, want suffix %q", err, want)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(domain.PredictionRequest{Airline: " dl ", Origin: "atl", Destination: "jfk\t"})
	want := domain.PredictionRequest{Airline: "DL", Origin: "ATL", Destination: "JFK"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}
