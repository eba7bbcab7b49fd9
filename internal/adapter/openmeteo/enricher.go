package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/geojsonio"
	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// Provider fetches daily weather numbers for a coordinate and date.
type Provider interface {
	Daily(ctx context.Context, geo domain.Geo, date string) (domain.WeatherNumbers, error)
}

// Enricher fills numeric weather properties on forecast features, backed by a
// persistent cache keyed on rounded coordinate and date.
type Enricher struct {
	provider  Provider
	cachePath string
	cache     map[string]domain.WeatherNumbers
	dirty     bool
	logger    *slog.Logger
}

// NewEnricher loads the cache at cachePath. Absent or corrupt cache files
// start empty.
func NewEnricher(provider Provider, cachePath string, logger *slog.Logger) *Enricher {
	cache := make(map[string]domain.WeatherNumbers)
	if data, err := os.ReadFile(cachePath); err == nil {
		if err := json.Unmarshal(data, &cache); err != nil {
			logger.Warn("ignoring corrupt weather cache", "path", cachePath, "error", err)
			cache = make(map[string]domain.WeatherNumbers)
		}
	}
	return &Enricher{
		provider:  provider,
		cachePath: cachePath,
		cache:     cache,
		logger:    logger,
	}
}

// EnrichResult reports the outcome of an enrichment pass.
type EnrichResult struct {
	Enriched int
	// Failed counts features whose provider call errored. They keep their
	// original properties; enrichment failures never fail the stage.
	Failed int
}

// Enrich fills min_temp, max_temp, rain_chance, wind_speed, wind_dir and
// humidity on each feature, without overwriting values already present.
// Features without a date property are left alone.
func (e *Enricher) Enrich(ctx context.Context, fc *geojson.FeatureCollection) EnrichResult {
	var result EnrichResult
	for _, f := range fc.Features {
		date, _ := f.Properties["date"].(string)
		if date == "" {
			continue
		}
		point := f.Point()
		geo := domain.Geo{Lat: point.Lat(), Lon: point.Lon()}
		if !geo.Valid() {
			continue
		}

		numbers, err := e.lookup(ctx, geo, date)
		if err != nil {
			e.logger.Warn("weather enrichment failed",
				"location", f.Properties["location_name"], "error", err)
			result.Failed++
			continue
		}

		fill(f.Properties, "min_temp", numbers.TempMin)
		fill(f.Properties, "max_temp", numbers.TempMax)
		fill(f.Properties, "rain_chance", numbers.RainChance)
		fill(f.Properties, "wind_speed", numbers.WindSpeed)
		fill(f.Properties, "wind_dir", numbers.WindDir)
		fill(f.Properties, "humidity", numbers.Humidity)
		result.Enriched++
	}
	return result
}

func (e *Enricher) lookup(ctx context.Context, geo domain.Geo, date string) (domain.WeatherNumbers, error) {
	key := cacheKey(geo, date)
	if numbers, ok := e.cache[key]; ok {
		return numbers, nil
	}
	numbers, err := e.provider.Daily(ctx, geo, date)
	if err != nil {
		return domain.WeatherNumbers{}, err
	}
	e.cache[key] = numbers
	e.dirty = true
	return numbers, nil
}

// SaveCache persists newly fetched weather numbers. A no-op when nothing
// changed.
func (e *Enricher) SaveCache() error {
	if !e.dirty {
		return nil
	}
	data, err := json.MarshalIndent(e.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal weather cache: %w", err)
	}
	return geojsonio.WriteFileAtomic(e.cachePath, data)
}

// cacheKey rounds to three decimals (roughly 100 m), enough to share an entry
// between forecast points at the same named place.
func cacheKey(geo domain.Geo, date string) string {
	return fmt.Sprintf("%.3f,%.3f,%s", geo.Lat, geo.Lon, date)
}

func fill(props geojson.Properties, key string, value *float64) {
	if value == nil {
		return
	}
	if _, exists := props[key]; exists {
		return
	}
	props[key] = *value
}
