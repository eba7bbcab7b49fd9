package metgov

import (
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// stateCentroids anchors warnings that name a whole state rather than a
// forecast location. Coordinates are rough state centroids, good enough to
// place a state-wide advisory on the map.
var stateCentroids = map[string]domain.Geo{
	"johor":           {Lat: 1.9854, Lon: 103.3618},
	"kedah":           {Lat: 6.1184, Lon: 100.3685},
	"kelantan":        {Lat: 5.2500, Lon: 102.0000},
	"melaka":          {Lat: 2.1896, Lon: 102.2501},
	"negeri sembilan": {Lat: 2.7258, Lon: 101.9424},
	"pahang":          {Lat: 3.8126, Lon: 102.3256},
	"perak":           {Lat: 4.5921, Lon: 101.0901},
	"perlis":          {Lat: 6.4449, Lon: 100.2048},
	"pulau pinang":    {Lat: 5.4141, Lon: 100.3288},
	"penang":          {Lat: 5.4141, Lon: 100.3288},
	"sabah":           {Lat: 5.9788, Lon: 116.0753},
	"sarawak":         {Lat: 1.5533, Lon: 110.3592},
	"selangor":        {Lat: 3.0738, Lon: 101.5183},
	"terengganu":      {Lat: 5.3117, Lon: 103.1324},
	"kuala lumpur":    {Lat: 3.1390, Lon: 101.6869},
	"putrajaya":       {Lat: 2.9264, Lon: 101.6964},
	"labuan":          {Lat: 5.2831, Lon: 115.2308},
}

// WarningBuildResult reports how many warning areas could be placed.
type WarningBuildResult struct {
	Collection *geojson.FeatureCollection
	// UnplacedAreas counts warning areas that matched neither a forecast
	// location nor a state centroid.
	UnplacedAreas int
}

// BuildWarningFeatures renders one point feature per (warning, area) pair.
// Area names resolve against the forecast location table first, then the
// state centroid list; unplaced areas are dropped and counted.
func BuildWarningFeatures(records []domain.WarningRecord, locations *LocationTable, logger *slog.Logger) WarningBuildResult {
	result := WarningBuildResult{Collection: geojson.NewFeatureCollection()}

	for _, w := range records {
		areas := w.Areas
		if len(areas) == 0 {
			// Warnings without an area list apply nationwide. Anchor them at
			// the capital so the advisory still renders.
			areas = []string{"Kuala Lumpur"}
		}
		for _, area := range areas {
			geo, ok := placeArea(area, locations)
			if !ok {
				logger.Warn("warning area not placeable", "area", area, "heading", w.Heading)
				result.UnplacedAreas++
				continue
			}

			f := geojson.NewFeature(orb.Point{geo.Lon, geo.Lat})
			f.Properties["heading"] = w.Heading
			f.Properties["area"] = area
			setProp(f.Properties, "text", w.Text)
			setProp(f.Properties, "severity_level", w.Severity)
			setProp(f.Properties, "valid_from", w.ValidFrom)
			setProp(f.Properties, "valid_to", w.ValidTo)
			setProp(f.Properties, "issued", w.IssuedDate)
			result.Collection.Append(f)
		}
	}
	return result
}

// placeArea resolves a warning area name to a coordinate.
func placeArea(area string, locations *LocationTable) (domain.Geo, bool) {
	if loc, ok := locations.LookupByName(area); ok && loc.Geo.Valid() {
		return loc.Geo, true
	}

	key := strings.ToLower(strings.TrimSpace(area))
	if geo, ok := stateCentroids[key]; ok {
		return geo, true
	}
	for state, geo := range stateCentroids {
		if strings.Contains(key, state) {
			return geo, true
		}
	}
	return domain.Geo{}, false
}

func setProp(props geojson.Properties, key, value string) {
	if value != "" {
		props[key] = value
	}
}
