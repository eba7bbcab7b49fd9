package mrt

import (
	"context"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// BuildResult is the outcome of turning announcements into incidents.
type BuildResult struct {
	Incidents []domain.Incident
	// Unresolved counts announcements whose location could not be geocoded.
	// They are excluded from output but never fail the stage.
	Unresolved int
}

// BuildIncidents converts announcements into geolocated incidents via the
// resolver. Announcements without a resolvable location are dropped and
// counted.
func BuildIncidents(ctx context.Context, announcements []domain.Announcement, resolver *Resolver, logger *slog.Logger) (BuildResult, error) {
	var result BuildResult

	for _, a := range announcements {
		incident := domain.NewIncident(a)

		geo, source, err := resolver.Resolve(ctx, incident.Location)
		if err != nil {
			return BuildResult{}, err
		}
		if source == "failed" {
			logger.Warn("dropping incident without coordinates", "title", incident.Title)
			result.Unresolved++
			continue
		}

		incident.Geo = geo
		incident.GeoSource = source
		result.Incidents = append(result.Incidents, incident)
	}

	return result, nil
}

// ToFeatureCollection renders incidents as the traffic_incidents feature
// collection consumed by the hotspot and publish stages.
func ToFeatureCollection(incidents []domain.Incident) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, in := range incidents {
		f := geojson.NewFeature(orb.Point{in.Geo.Lon, in.Geo.Lat})
		f.Properties["id"] = in.ID
		f.Properties["title"] = in.Title
		f.Properties["location"] = in.Location
		setIfPresent(f.Properties, "description", in.Description)
		setIfPresent(f.Properties, "activity", in.Activity)
		setIfPresent(f.Properties, "activity_time", in.ActivityTime)
		setIfPresent(f.Properties, "media_release", in.MediaRelease)
		setIfPresent(f.Properties, "post_url", in.PostURL)
		f.Properties["geo_source"] = in.GeoSource
		if !in.StartDate.IsZero() {
			f.Properties["start_date"] = in.StartDate.Format("2006-01-02")
		}
		if !in.EndDate.IsZero() {
			f.Properties["end_date"] = in.EndDate.Format("2006-01-02")
		}
		// Epoch milliseconds for the hosted layer's time slider.
		f.Properties["timestamp_ms"] = in.ScrapedAt.UnixMilli()
		fc.Append(f)
	}
	return fc
}

func setIfPresent(props geojson.Properties, key, value string) {
	if value != "" {
		props[key] = value
	}
}

// IncidentsFromFeatureCollection reads incidents back from the
// traffic_incidents feature collection. Inverse of ToFeatureCollection, used
// by stages that consume the file rather than the in-memory batch.
func IncidentsFromFeatureCollection(fc *geojson.FeatureCollection) []domain.Incident {
	incidents := make([]domain.Incident, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		in := domain.Incident{
			ID:           stringProp(f.Properties, "id"),
			Title:        stringProp(f.Properties, "title"),
			Location:     stringProp(f.Properties, "location"),
			Description:  stringProp(f.Properties, "description"),
			Activity:     stringProp(f.Properties, "activity"),
			ActivityTime: stringProp(f.Properties, "activity_time"),
			MediaRelease: stringProp(f.Properties, "media_release"),
			PostURL:      stringProp(f.Properties, "post_url"),
			GeoSource:    stringProp(f.Properties, "geo_source"),
			Geo:          domain.Geo{Lat: pt.Lat(), Lon: pt.Lon()},
			StartDate:    domain.ParseAnnouncementDate(stringProp(f.Properties, "start_date")),
			EndDate:      domain.ParseAnnouncementDate(stringProp(f.Properties, "end_date")),
		}
		switch ms := f.Properties["timestamp_ms"].(type) {
		case float64:
			in.ScrapedAt = time.UnixMilli(int64(ms)).UTC()
		case int64:
			in.ScrapedAt = time.UnixMilli(ms).UTC()
		}
		incidents = append(incidents, in)
	}
	return incidents
}

func stringProp(props geojson.Properties, key string) string {
	s, _ := props[key].(string)
	return s
}
