package batch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vietddude/flightontime/internal/core/domain"
)

const (
	colAirline       = "aerolinea"
	colOrigin        = "origen"
	colDestination   = "destino"
	colDepartureTime = "fecha_partida"
	colDistanceKm    = "distancia_km"
)

var requiredColumns = []string{colAirline, colOrigin, colDestination}

var utf8BOM = []byte("\xEF\xBB\xBF")

// isInvisible matches the BOM and zero-width characters some spreadsheet
// exports leave in header cells.
func isInvisible(r rune) bool {
	switch r {
	case '\uFEFF', '\u200B', '\u200C', '\u200D', '\u2060':
		return true
	}
	return false
}

func normalizeHeader(cell string) string {
	cell = strings.TrimFunc(cell, func(r rune) bool {
		return isInvisible(r) || r == ' ' || r == '\t'
	})
	return strings.ToLower(cell)
}

// record is one parsed data line. err is set when the line itself could not be read.
type record struct {
	line int
	req  domain.PredictionRequest
	err  error
}

// reader walks a CSV upload one physical line at a time, so a broken quote
// only costs its own row.
type reader struct {
	lines   []string
	pos     int
	columns map[string]int
}

func splitLines(data []byte) []string {
	data = bytes.TrimPrefix(data, utf8BOM)
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func parseLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.Read()
}

func newReader(data []byte) (*reader, error) {
	rd := &reader{lines: splitLines(data)}

	var header []string
	for header == nil {
		if rd.pos >= len(rd.lines) {
			return nil, fmt.Errorf("%w: empty file", domain.ErrMalformedInput)
		}
		line := rd.lines[rd.pos]
		rd.pos++
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable header: %v", domain.ErrMalformedInput, csvCause(err))
		}
		header = fields
	}

	columns := make(map[string]int, len(header))
	for i, cell := range header {
		name := normalizeHeader(cell)
		if name == "" {
			continue
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: empty header", domain.ErrMalformedInput)
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s",
			domain.ErrMalformedInput, strings.Join(missing, ", "))
	}

	rd.columns = columns
	return rd, nil
}

// csvCause strips the position prefix csv.ParseError adds, since each
// reader only ever sees line 1.
func csvCause(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

// next returns the next non-blank record, or io.EOF.
func (r *reader) next() (record, error) {
	for r.pos < len(r.lines) {
		line := r.lines[r.pos]
		r.pos++
		lineNo := r.pos
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields, err := parseLine(line)
		if err != nil {
			return record{line: lineNo, err: fmt.Errorf("invalid CSV: %v", csvCause(err))}, nil
		}
		if isBlank(fields) {
			continue
		}
		req, err := r.toRequest(fields)
		return record{line: lineNo, req: req, err: err}, nil
	}
	return record{}, io.EOF
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func (r *reader) value(fields []string, col string) string {
	i, ok := r.columns[col]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func (r *reader) toRequest(fields []string) (domain.PredictionRequest, error) {
	req := domain.PredictionRequest{
		Airline:       strings.ToUpper(r.value(fields, colAirline)),
		Origin:        strings.ToUpper(r.value(fields, colOrigin)),
		Destination:   strings.ToUpper(r.value(fields, colDestination)),
		DepartureTime: r.value(fields, colDepartureTime),
	}

	var empty []string
	if req.Airline == "" {
		empty = append(empty, colAirline)
	}
	if req.Origin == "" {
		empty = append(empty, colOrigin)
	}
	if req.Destination == "" {
		empty = append(empty, colDestination)
	}
	if len(empty) > 0 {
		return req, fmt.Errorf("missing required values: %s", strings.Join(empty, ", "))
	}

	if raw := r.value(fields, colDistanceKm); raw != "" {
		km, err := strconv.ParseFloat(raw, 64)
		if err != nil || km < 0 {
			return req, fmt.Errorf("invalid %s: %q", colDistanceKm, raw)
		}
		req.DistanceKmHint = &km
	}
	return req, nil
}
