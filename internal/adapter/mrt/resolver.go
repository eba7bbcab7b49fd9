package mrt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/geojsonio"
	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// Resolver turns announcement location strings into coordinates using a
// three-step chain: gazetteer, persistent cache, then the live geocoder with
// a short list of candidate queries from most to least specific.
type Resolver struct {
	geocoder  domain.Geocoder
	cachePath string
	cache     map[string][2]float64 // normalized location -> [lon, lat]
	dirty     bool
	logger    *slog.Logger
}

// NewResolver loads the persistent cache at cachePath (absent or corrupt
// files start an empty cache) and returns a Resolver. geocoder may be nil,
// in which case unresolved locations simply fail.
func NewResolver(geocoder domain.Geocoder, cachePath string, logger *slog.Logger) *Resolver {
	cache := make(map[string][2]float64)
	if data, err := os.ReadFile(cachePath); err == nil {
		if err := json.Unmarshal(data, &cache); err != nil {
			logger.Warn("ignoring corrupt geocode cache", "path", cachePath, "error", err)
			cache = make(map[string][2]float64)
		}
	}
	return &Resolver{
		geocoder:  geocoder,
		cachePath: cachePath,
		cache:     cache,
		logger:    logger,
	}
}

// Resolve returns the coordinate for a raw location string and the source of
// the resolution: "gazetteer", "cache", or "nominatim". A zero Geo with
// source "failed" and nil error means every step came up empty; errors are
// reserved for hard geocoder failures.
func (r *Resolver) Resolve(ctx context.Context, rawLocation string) (domain.Geo, string, error) {
	if rawLocation == "" {
		return domain.Geo{}, "failed", nil
	}
	key := domain.NormalizeLocation(rawLocation)

	if geo, ok := gazetteerLookup(key); ok {
		return geo, "gazetteer", nil
	}
	if lonLat, ok := r.cache[key]; ok {
		return domain.Geo{Lat: lonLat[1], Lon: lonLat[0]}, "cache", nil
	}
	if r.geocoder == nil {
		return domain.Geo{}, "failed", nil
	}

	cleaned := domain.CleanLocation(rawLocation)
	for _, query := range []string{
		cleaned + ", Johor Bahru, Malaysia",
		cleaned + ", Johor, Malaysia",
		cleaned + ", Malaysia",
	} {
		result, err := r.geocoder.Geocode(ctx, query)
		if err != nil {
			return domain.Geo{}, "failed", fmt.Errorf("geocode %q: %w", query, err)
		}
		if result.Found() {
			r.cache[key] = [2]float64{result.Geo.Lon, result.Geo.Lat}
			r.dirty = true
			return result.Geo, "nominatim", nil
		}
	}

	r.logger.Warn("location could not be resolved", "location", rawLocation)
	return domain.Geo{}, "failed", nil
}

// SaveCache persists newly resolved locations. A no-op when nothing changed.
func (r *Resolver) SaveCache() error {
	if !r.dirty {
		return nil
	}
	data, err := json.MarshalIndent(r.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal geocode cache: %w", err)
	}
	return geojsonio.WriteFileAtomic(r.cachePath, data)
}
