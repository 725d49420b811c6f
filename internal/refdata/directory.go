// Package refdata holds the read-only airline and airport directory.
package refdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

//go:embed data/*.json
var embedded embed.FS

const earthRadiusKm = 6371.0

// Airport describes one airport.
type Airport struct {
	Code string  `json:"-"`
	Name string  `json:"name"`
	City string  `json:"city"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type airlineEntry struct {
	Name     string   `json:"name"`
	Airports []string `json:"airports"`
}

// Directory answers airline and airport lookups. It is immutable after
// construction and safe for concurrent use.
type Directory struct {
	airlines map[string]string
	served   map[string]map[string]struct{}
	airports map[string]Airport
	codes    []string
}

// Load reads the directory from dir, or from the embedded data set when dir is empty.
func Load(dir string) (*Directory, error) {
	var fsys fs.FS
	if dir == "" {
		sub, err := fs.Sub(embedded, "data")
		if err != nil {
			return nil, err
		}
		fsys = sub
	} else {
		fsys = os.DirFS(filepath.Clean(dir))
	}

	var airlines map[string]airlineEntry
	if err := readJSON(fsys, "airlines.json", &airlines); err != nil {
		return nil, err
	}
	var airports map[string]Airport
	if err := readJSON(fsys, "airports.json", &airports); err != nil {
		return nil, err
	}
	return build(airlines, airports)
}

// MustDefault returns the embedded directory. It panics on corrupt embedded data.
func MustDefault() *Directory {
	d, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("refdata: embedded data: %v", err))
	}
	return d
}

func readJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// build indexes decoded tables. Codes are normalized to upper case.
func build(airlines map[string]airlineEntry, airports map[string]Airport) (*Directory, error) {
	d := &Directory{
		airlines: make(map[string]string, len(airlines)),
		served:   make(map[string]map[string]struct{}, len(airlines)),
		airports: make(map[string]Airport, len(airports)),
	}
	for code, a := range airports {
		code = normalize(code)
		a.Code = code
		d.airports[code] = a
	}
	for code, entry := range airlines {
		code = normalize(code)
		if code == "" {
			return nil, fmt.Errorf("airline with empty code")
		}
		d.airlines[code] = entry.Name
		set := make(map[string]struct{}, len(entry.Airports))
		for _, ap := range entry.Airports {
			set[normalize(ap)] = struct{}{}
		}
		d.served[code] = set
		d.codes = append(d.codes, code)
	}
	slices.Sort(d.codes)
	return d, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidAirline reports whether code names a known airline.
func (d *Directory) IsValidAirline(code string) bool {
	_, ok := d.airlines[normalize(code)]
	return ok
}

// IsValidAirport reports whether airline serves airport.
func (d *Directory) IsValidAirport(airline, airport string) bool {
	set, ok := d.served[normalize(airline)]
	if !ok {
		return false
	}
	_, ok = set[normalize(airport)]
	return ok
}

// AirlineName returns the display name for an airline code.
func (d *Directory) AirlineName(code string) (string, bool) {
	name, ok := d.airlines[normalize(code)]
	return name, ok
}

// AirlineCodes returns every known airline code in sorted order.
func (d *Directory) AirlineCodes() []string {
	return slices.Clone(d.codes)
}

// AirportInfo returns airport details.
func (d *Directory) AirportInfo(code string) (Airport, bool) {
	a, ok := d.airports[normalize(code)]
	return a, ok
}

// DistanceKm returns the great-circle distance between two airports,
// rounded to two decimals. ok is false if either airport has no coordinates.
func (d *Directory) DistanceKm(from, to string) (float64, bool) {
	a, ok := d.airports[normalize(from)]
	if !ok {
		return 0, false
	}
	b, ok := d.airports[normalize(to)]
	if !ok {
		return 0, false
	}
	return Haversine(a.Lat, a.Lon, b.Lat, b.Lon), true
}

// Haversine returns the distance in kilometers between two coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return math.Round(earthRadiusKm*c*100) / 100
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
