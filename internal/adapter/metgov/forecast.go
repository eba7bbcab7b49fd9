package metgov

import (
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// ForecastBuildResult reports how the forecast join went.
type ForecastBuildResult struct {
	Collection *geojson.FeatureCollection
	// Unlocated counts forecast records whose location id has no coordinate
	// yet. They are dropped from output, never fatal.
	Unlocated int
}

// BuildForecastFeatures joins forecast records to the location table and
// renders one point feature per located record.
func BuildForecastFeatures(records []domain.ForecastRecord, locations *LocationTable, logger *slog.Logger) ForecastBuildResult {
	result := ForecastBuildResult{Collection: geojson.NewFeatureCollection()}

	for _, r := range records {
		loc, ok := locations.Lookup(r.LocationID)
		if !ok || !loc.Geo.Valid() {
			result.Unlocated++
			continue
		}

		f := geojson.NewFeature(orb.Point{loc.Geo.Lon, loc.Geo.Lat})
		f.Properties["location_id"] = r.LocationID
		f.Properties["location_name"] = firstNonEmpty(r.LocationName, loc.Name)
		f.Properties["date"] = r.Date
		f.Properties["summary_forecast"] = r.SummaryForecast
		f.Properties["morning_forecast"] = r.MorningForecast
		f.Properties["afternoon_forecast"] = r.AfternoonForecast
		f.Properties["night_forecast"] = r.NightForecast
		if r.MinTemp != nil {
			f.Properties["min_temp"] = *r.MinTemp
		}
		if r.MaxTemp != nil {
			f.Properties["max_temp"] = *r.MaxTemp
		}
		if ts := domain.ParseForecastDate(r.Date); !ts.IsZero() {
			f.Properties["timestamp_ms"] = ts.UnixMilli()
		}
		result.Collection.Append(f)
	}

	if result.Unlocated > 0 {
		logger.Warn("forecast records without coordinates dropped", "count", result.Unlocated)
	}
	return result
}
