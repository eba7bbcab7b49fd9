// Command validate performs integrity checks across the pipeline's output
// files in a data directory: incident features, hotspot cells, forecast
// features, and cross-file consistency between incidents and hotspots.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data [-hex-m 1000]
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ackgis/weather-traffic-etl/internal/hexbin"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "data", "pipeline data directory")
	hexEdge := flag.Float64("hex-m", hexbin.DefaultEdgeMeters, "hex cell edge length used by the run")
	flag.Parse()

	if code := run(*dataDir, *hexEdge); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir string, hexEdge float64) int {
	fmt.Println("=== Pipeline Output Validation ===")
	fmt.Println()

	incidents, err := load(filepath.Join(dataDir, "traffic_incidents.geojson"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	hotspots, err := load(filepath.Join(dataDir, "hotspots_hex.geojson"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	// Forecast output is optional; absent means the weather stages were not run.
	forecast, forecastErr := load(filepath.Join(dataDir, "weather_forecast.geojson"))

	phases := []*phase{
		validateIncidents(incidents),
		validateHotspots(hotspots, hexEdge),
		validateConsistency(incidents, hotspots, hexEdge),
	}
	if forecastErr == nil {
		phases = append(phases, validateForecast(forecast))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Features: %d incidents, %d hotspot cells", len(incidents.Features), len(hotspots.Features))
	if forecastErr == nil {
		fmt.Printf(", %d forecast points", len(forecast.Features))
	}
	fmt.Println()

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func load(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// ── Phase 1: Incidents ──
// Every incident is a point with plausible coordinates and a unique id.

func validateIncidents(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "Phase 1: Incident features"}

	seen := map[string]int{}
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			p.errorf("feature %d: geometry is %T, want point", i, f.Geometry)
			continue
		}
		if pt.Lat() < -90 || pt.Lat() > 90 || pt.Lon() < -180 || pt.Lon() > 180 {
			p.errorf("feature %d: coordinates out of range (%g, %g)", i, pt.Lat(), pt.Lon())
		}
		if pt.Lat() == 0 && pt.Lon() == 0 {
			p.errorf("feature %d: null island coordinates", i)
		}

		id, _ := f.Properties["id"].(string)
		if id == "" {
			p.errorf("feature %d: missing id", i)
			continue
		}
		if prev, dup := seen[id]; dup {
			p.errorf("feature %d: id %q duplicates feature %d", i, id, prev)
		}
		seen[id] = i

		if title, _ := f.Properties["title"].(string); title == "" {
			p.errorf("feature %d: missing title", i)
		}
		if _, ok := f.Properties["timestamp_ms"]; !ok {
			p.errorf("feature %d: missing timestamp_ms", i)
		}
	}
	return p
}

// ── Phase 2: Hotspots ──
// Cells are closed polygons with consistent count, area, and density.

func validateHotspots(fc *geojson.FeatureCollection, edge float64) *phase {
	p := &phase{name: "Phase 2: Hotspot cells"}

	wantArea := 3 * math.Sqrt(3) / 2 * edge * edge / 1e6
	seen := map[string]int{}

	for i, f := range fc.Features {
		poly, ok := f.Geometry.(orb.Polygon)
		if !ok {
			p.errorf("cell %d: geometry is %T, want polygon", i, f.Geometry)
			continue
		}
		if len(poly) != 1 {
			p.errorf("cell %d: want a single ring, got %d", i, len(poly))
			continue
		}
		ring := poly[0]
		if len(ring) != 7 {
			p.errorf("cell %d: hexagon ring has %d points, want 7", i, len(ring))
		}
		if len(ring) > 0 && !ring[0].Equal(ring[len(ring)-1]) {
			p.errorf("cell %d: ring is not closed", i)
		}

		id, _ := f.Properties["hex_id"].(string)
		if id == "" {
			p.errorf("cell %d: missing hex_id", i)
		} else if prev, dup := seen[id]; dup {
			p.errorf("cell %d: hex_id %q duplicates cell %d", i, id, prev)
		} else {
			seen[id] = i
		}

		count := numProp(f.Properties, "count")
		area := numProp(f.Properties, "area_km2")
		density := numProp(f.Properties, "density_per_km2")

		if count < 1 || count != math.Trunc(count) {
			p.errorf("cell %d: count %g is not a positive integer", i, count)
		}
		if math.Abs(area-wantArea) > 1e-9 {
			p.errorf("cell %d: area_km2 %g does not match edge %gm (want %g)", i, area, edge, wantArea)
		}
		if area > 0 && math.Abs(density-count/area) > 1e-6 {
			p.errorf("cell %d: density_per_km2 %g != count/area %g", i, density, count/area)
		}
	}
	return p
}

// ── Phase 3: Cross-file consistency ──
// Re-aggregating the incidents reproduces the published hotspot file.

func validateConsistency(incidents, hotspots *geojson.FeatureCollection, edge float64) *phase {
	p := &phase{name: "Phase 3: Incidents vs hotspots"}

	result, err := hexbin.Aggregate(edge, incidents)
	if err != nil {
		p.errorf("re-aggregation failed: %v", err)
		return p
	}

	want := map[string]float64{}
	for _, f := range result.Cells.Features {
		want[f.Properties["hex_id"].(string)] = numProp(f.Properties, "count")
	}

	got := map[string]float64{}
	var total float64
	for _, f := range hotspots.Features {
		id, _ := f.Properties["hex_id"].(string)
		got[id] = numProp(f.Properties, "count")
		total += numProp(f.Properties, "count")
	}

	if len(want) != len(got) {
		p.errorf("cell count mismatch: re-aggregation gives %d cells, file has %d", len(want), len(got))
	}
	for id, count := range want {
		if got[id] != count {
			p.errorf("cell %s: re-aggregation count %g, file has %g", id, count, got[id])
		}
	}
	if int(total) != result.ValidPoints {
		p.errorf("counts sum to %g, but %d incident points are valid", total, result.ValidPoints)
	}
	return p
}

// ── Phase 4: Forecast (when present) ──

func validateForecast(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "Phase 4: Forecast features"}

	for i, f := range fc.Features {
		if _, ok := f.Geometry.(orb.Point); !ok {
			p.errorf("feature %d: geometry is %T, want point", i, f.Geometry)
			continue
		}
		if id, _ := f.Properties["location_id"].(string); id == "" {
			p.errorf("feature %d: missing location_id", i)
		}
		if date, _ := f.Properties["date"].(string); date == "" {
			p.errorf("feature %d: missing date", i)
		}
	}
	return p
}

func numProp(props geojson.Properties, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return math.NaN()
}
