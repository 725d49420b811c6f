package prediction

import (
	"regexp"
	"strings"
	"time"

	"github.com/vietddude/flightontime/internal/core/domain"
	"github.com/vietddude/flightontime/internal/refdata"
)

var airportCode = regexp.MustCompile(`^[A-Z]{3}$`)

// departureLayouts are the accepted ISO-8601 forms of fecha_partida.
var departureLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Normalize trims and upper-cases the codes of a request.
func Normalize(req domain.PredictionRequest) domain.PredictionRequest {
	req.Airline = strings.ToUpper(strings.TrimSpace(req.Airline))
	req.Origin = strings.ToUpper(strings.TrimSpace(req.Origin))
	req.Destination = strings.ToUpper(strings.TrimSpace(req.Destination))
	req.DepartureTime = strings.TrimSpace(req.DepartureTime)
	return req
}

// Validate checks a normalized request against the directory. It returns nil
// or a *domain.ValidationError. No network call happens here.
func Validate(req domain.PredictionRequest, dir *refdata.Directory) error {
	if req.Airline == "" {
		return domain.NewValidationError("aerolinea", "airline is required")
	}
	if req.Origin == "" {
		return domain.NewValidationError("origen", "origin airport is required")
	}
	if !airportCode.MatchString(req.Origin) {
		return domain.NewValidationError("origen", "origin must be a 3-letter IATA code (e.g. ATL), got %q", req.Origin)
	}
	if req.Destination == "" {
		return domain.NewValidationError("destino", "destination airport is required")
	}
	if !airportCode.MatchString(req.Destination) {
		return domain.NewValidationError("destino", "destination must be a 3-letter IATA code (e.g. JFK), got %q", req.Destination)
	}
	if req.Origin == req.Destination {
		return domain.NewValidationError("destino", "origin and destination airports cannot be the same")
	}
	if !dir.IsValidAirline(req.Airline) {
		return domain.NewValidationError("aerolinea", "invalid airline %q. Valid codes: %s",
			req.Airline, strings.Join(dir.AirlineCodes(), ", "))
	}

	airlineName, _ := dir.AirlineName(req.Airline)
	if !dir.IsValidAirport(req.Airline, req.Origin) {
		return domain.NewValidationError("origen", "origin airport %s is not served by %s", req.Origin, airlineName)
	}
	if !dir.IsValidAirport(req.Airline, req.Destination) {
		return domain.NewValidationError("destino", "destination airport %s is not served by %s", req.Destination, airlineName)
	}

	if req.DepartureTime != "" {
		if _, ok := ParseDepartureTime(req.DepartureTime); !ok {
			return domain.NewValidationError("fecha_partida",
				"departure time %q is not ISO-8601 (e.g. 2025-12-25T14:30:00)", req.DepartureTime)
		}
	}
	return nil
}

// ParseDepartureTime parses an ISO-8601 date-time with optional seconds and zone.
func ParseDepartureTime(s string) (time.Time, bool) {
	for _, layout := range departureLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
