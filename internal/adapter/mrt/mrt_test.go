package mrt_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/mrt"
	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

const announcementHTML = `<html><body>
<div class="announcement">
  <h5>TEMPORARY LANE CLOSURE AT JALAN TEBRAU, JOHOR BAHRU</h5>
  <span style="text-transform:uppercase">12 Jan</span>
  <span style="font-weight:500">2026</span>
  <span style="text-transform:uppercase">18 Jan</span>
  <span style="font-weight:500">2026</span>
  <span style="text-align:left">Activity Time <span style="font-weight:700">10.00 PM - 5.00 AM</span></span>
  <p>Description</p>
  <p>Lane closure for girder launching works.</p>
  <p>Activity</p>
  <p>Girder launching</p>
  <a class="button" href="https://example.com/wp-content/uploads/notice.pdf">Media Release</a>
  <div class="addtoany_shortcode" data-a2a-url="https://example.com/announcement/123"></div>
</div>
<div class="announcement">
  <h5>ROAD WORKS AT JB SENTRAL</h5>
</div>
<h5>ad</h5>
</body></html>`

func TestFetchAnnouncements(t *testing.T) {
	var pagesSeen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		pagesSeen = append(pagesSeen, r.URL.RawQuery)
		fmt.Fprint(w, announcementHTML)
	}))
	t.Cleanup(srv.Close)

	s := mrt.NewScraper(srv.URL+"/traffic-announcement/", 2, "test-agent/1.0", 5*time.Second, slog.Default())

	announcements, err := s.FetchAnnouncements(context.Background())
	require.NoError(t, err)

	// Two pages serve identical content; duplicates collapse. The too-short
	// "ad" heading is ignored.
	require.Len(t, announcements, 2)

	a := announcements[0]
	assert.Equal(t, "TEMPORARY LANE CLOSURE AT JALAN TEBRAU, JOHOR BAHRU", a.Title)
	assert.Equal(t, "12 Jan 2026", a.StartDate)
	assert.Equal(t, "18 Jan 2026", a.EndDate)
	assert.Equal(t, "10.00 PM - 5.00 AM", a.ActivityTime)
	assert.Equal(t, "Lane closure for girder launching works.", a.Description)
	assert.Equal(t, "Girder launching", a.Activity)
	assert.Equal(t, "https://example.com/wp-content/uploads/notice.pdf", a.MediaRelease)
	assert.Equal(t, "https://example.com/announcement/123", a.PostURL)

	assert.Equal(t, "ROAD WORKS AT JB SENTRAL", announcements[1].Title)
	assert.Empty(t, announcements[1].Description)
}

func TestFetchAnnouncements_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	s := mrt.NewScraper(srv.URL+"/traffic-announcement/", 1, "test-agent/1.0", 5*time.Second, slog.Default())

	_, err := s.FetchAnnouncements(context.Background())
	require.Error(t, err)
}

// scriptedGeocoder returns canned results per query and records queries.
type scriptedGeocoder struct {
	results map[string]domain.GeocodeResult
	queries []string
	err     error
}

func (s *scriptedGeocoder) Geocode(_ context.Context, query string) (domain.GeocodeResult, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return domain.GeocodeResult{}, s.err
	}
	return s.results[query], nil
}

func TestResolver_GazetteerFirst(t *testing.T) {
	geocoder := &scriptedGeocoder{}
	r := mrt.NewResolver(geocoder, filepath.Join(t.TempDir(), "cache.json"), slog.Default())

	geo, source, err := r.Resolve(context.Background(), "KM0.75 Johor–Singapore Causeway")
	require.NoError(t, err)
	assert.Equal(t, "gazetteer", source)
	assert.InDelta(t, 1.462, geo.Lat, 1e-9)
	assert.Empty(t, geocoder.queries, "gazetteer hits must not call the geocoder")
}

func TestResolver_GeocodesAndCaches(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	geocoder := &scriptedGeocoder{results: map[string]domain.GeocodeResult{
		"Jalan Skudai, Johor, Malaysia": {Geo: domain.Geo{Lat: 1.48, Lon: 103.72}},
	}}
	r := mrt.NewResolver(geocoder, cachePath, slog.Default())

	geo, source, err := r.Resolve(context.Background(), "JALAN SKUDAI")
	require.NoError(t, err)
	assert.Equal(t, "nominatim", source)
	assert.InDelta(t, 1.48, geo.Lat, 1e-9)
	// Candidates tried most specific first until one matched.
	assert.Equal(t, []string{
		"Jalan Skudai, Johor Bahru, Malaysia",
		"Jalan Skudai, Johor, Malaysia",
	}, geocoder.queries)

	require.NoError(t, r.SaveCache())

	// A fresh resolver with a nil geocoder answers from the saved cache.
	r2 := mrt.NewResolver(nil, cachePath, slog.Default())
	geo, source, err = r2.Resolve(context.Background(), "jalan  skudai")
	require.NoError(t, err)
	assert.Equal(t, "cache", source)
	assert.InDelta(t, 103.72, geo.Lon, 1e-9)
}

func TestResolver_AllCandidatesMiss(t *testing.T) {
	geocoder := &scriptedGeocoder{}
	r := mrt.NewResolver(geocoder, filepath.Join(t.TempDir(), "cache.json"), slog.Default())

	geo, source, err := r.Resolve(context.Background(), "SOMEWHERE UNKNOWN")
	require.NoError(t, err)
	assert.Equal(t, "failed", source)
	assert.False(t, geo.Valid())
	assert.Len(t, geocoder.queries, 3)
}

func TestResolver_CorruptCacheIgnored(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(cachePath, []byte("{broken"), 0o644))

	r := mrt.NewResolver(nil, cachePath, slog.Default())
	_, source, err := r.Resolve(context.Background(), "JB SENTRAL")
	require.NoError(t, err)
	assert.Equal(t, "gazetteer", source)
}

func TestBuildIncidents(t *testing.T) {
	frozen := time.Date(2026, 8, 27, 6, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })

	announcements := []domain.Announcement{
		{Title: "LANE CLOSURE AT JB SENTRAL", StartDate: "12 Jan 2026", PostURL: "https://example.com/a/1"},
		{Title: "WORKS AT NOWHERE KNOWN"},
	}
	resolver := mrt.NewResolver(nil, filepath.Join(t.TempDir(), "cache.json"), slog.Default())

	result, err := mrt.BuildIncidents(context.Background(), announcements, resolver, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Unresolved)
	require.Len(t, result.Incidents, 1)

	in := result.Incidents[0]
	assert.Equal(t, domain.IncidentID("LANE CLOSURE AT JB SENTRAL", "https://example.com/a/1"), in.ID)
	assert.Equal(t, "JB SENTRAL", in.Location)
	assert.Equal(t, "gazetteer", in.GeoSource)
	assert.Equal(t, frozen, in.ScrapedAt)

	fc := mrt.ToFeatureCollection(result.Incidents)
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, in.ID, f.Properties["id"])
	assert.Equal(t, "2026-01-12", f.Properties["start_date"])
	assert.Equal(t, frozen.UnixMilli(), f.Properties["timestamp_ms"])
	assert.NotContains(t, f.Properties, "description")

	// Feature collection stays valid JSON end to end.
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}
