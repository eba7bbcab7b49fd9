package metgov

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/geojsonio"
	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// LocationTable is the geocoded lookup of MET forecast locations, persisted
// as a CSV so coordinates survive between runs and hand corrections stick.
type LocationTable struct {
	byID   map[string]domain.Location
	logger *slog.Logger
	dirty  bool
}

// LoadLocations reads the location CSV at path. A missing file yields an
// empty table; a malformed file is an error.
func LoadLocations(path string, logger *slog.Logger) (*LocationTable, error) {
	t := &LocationTable{byID: make(map[string]domain.Location), logger: logger}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open locations file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse locations file %s: %w", path, err)
	}
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row[0], "location_id") {
			continue
		}
		if len(row) < 4 {
			return nil, fmt.Errorf("locations file %s row %d: want 4 columns, got %d", path, i+1, len(row))
		}
		lat, latErr := strconv.ParseFloat(row[2], 64)
		lon, lonErr := strconv.ParseFloat(row[3], 64)
		loc := domain.Location{ID: row[0], Name: row[1]}
		if latErr == nil && lonErr == nil {
			loc.Geo = domain.Geo{Lat: lat, Lon: lon}
		}
		t.byID[loc.ID] = loc
	}
	return t, nil
}

// Lookup returns the location for a MET location id.
func (t *LocationTable) Lookup(id string) (domain.Location, bool) {
	loc, ok := t.byID[id]
	return loc, ok
}

// LookupByName returns the first location whose normalized name matches, or
// whose normalized name contains the normalized query. Used for joining
// warning areas, which reference places by name only.
func (t *LocationTable) LookupByName(name string) (domain.Location, bool) {
	want := domain.NormalizeName(name)
	if want == "" {
		return domain.Location{}, false
	}
	for _, loc := range t.sorted() {
		if domain.NormalizeName(loc.Name) == want {
			return loc, true
		}
	}
	for _, loc := range t.sorted() {
		got := domain.NormalizeName(loc.Name)
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return loc, true
		}
	}
	return domain.Location{}, false
}

// Merge adds forecast locations the table has not seen yet. New entries start
// without coordinates until GeocodeMissing fills them in.
func (t *LocationTable) Merge(records []domain.ForecastRecord) int {
	added := 0
	for _, r := range records {
		if r.LocationID == "" {
			continue
		}
		if existing, ok := t.byID[r.LocationID]; ok {
			if existing.Name == "" && r.LocationName != "" {
				existing.Name = r.LocationName
				t.byID[r.LocationID] = existing
				t.dirty = true
			}
			continue
		}
		t.byID[r.LocationID] = domain.Location{ID: r.LocationID, Name: r.LocationName}
		t.dirty = true
		added++
	}
	return added
}

// GeocodeMissing fills coordinates for locations that lack them. Individual
// misses are logged and left blank; geocoder errors abort the pass so a
// flapping upstream does not wipe out progress.
func (t *LocationTable) GeocodeMissing(ctx context.Context, geocoder domain.Geocoder) (resolved int, err error) {
	for _, loc := range t.sorted() {
		if loc.Geo.Valid() || loc.Name == "" {
			continue
		}
		result, err := geocoder.Geocode(ctx, loc.Name+", Malaysia")
		if err != nil {
			return resolved, fmt.Errorf("geocode location %s: %w", loc.ID, err)
		}
		if !result.Found() {
			t.logger.Warn("forecast location not geocodable", "id", loc.ID, "name", loc.Name)
			continue
		}
		loc.Geo = result.Geo
		t.byID[loc.ID] = loc
		t.dirty = true
		resolved++
	}
	return resolved, nil
}

// Save writes the table back as CSV, sorted by id for stable diffs. A no-op
// when nothing changed.
func (t *LocationTable) Save(path string) error {
	if !t.dirty {
		return nil
	}
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write([]string{"location_id", "location_name", "lat", "lon"}); err != nil {
		return err
	}
	for _, loc := range t.sorted() {
		lat, lon := "", ""
		if loc.Geo.Valid() {
			lat = strconv.FormatFloat(loc.Geo.Lat, 'f', -1, 64)
			lon = strconv.FormatFloat(loc.Geo.Lon, 'f', -1, 64)
		}
		if err := w.Write([]string{loc.ID, loc.Name, lat, lon}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write locations csv: %w", err)
	}
	return geojsonio.WriteFileAtomic(path, []byte(sb.String()))
}

// Len reports the number of known locations.
func (t *LocationTable) Len() int { return len(t.byID) }

func (t *LocationTable) sorted() []domain.Location {
	out := make([]domain.Location, 0, len(t.byID))
	for _, loc := range t.byID {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
