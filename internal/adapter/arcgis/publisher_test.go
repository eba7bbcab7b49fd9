package arcgis_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/arcgis"
)

// fakePortal scripts the ArcGIS sharing REST endpoints and records calls.
type fakePortal struct {
	t *testing.T

	searchResults string // JSON results array body
	publishBody   string
	uploadedFile  string
	deleted       []string
	shared        []string
	calls         []string
}

func (p *fakePortal) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls = append(p.calls, r.URL.Path)
		switch {
		case r.URL.Path == "/sharing/rest/generateToken":
			require.NoError(p.t, r.ParseForm())
			if r.Form.Get("password") != "hunter2" {
				fmt.Fprint(w, `{"error": {"code": 400, "message": "Invalid credentials"}}`)
				return
			}
			fmt.Fprint(w, `{"token": "tok-123"}`)
		case r.URL.Path == "/sharing/rest/search":
			fmt.Fprintf(w, `{"results": %s}`, p.searchResults)
		case strings.HasSuffix(r.URL.Path, "/delete"):
			parts := strings.Split(r.URL.Path, "/")
			p.deleted = append(p.deleted, parts[len(parts)-2])
			fmt.Fprint(w, `{"success": true}`)
		case strings.HasSuffix(r.URL.Path, "/addItem"):
			require.NoError(p.t, r.ParseMultipartForm(1<<20))
			assert.Equal(p.t, "tok-123", r.Form.Get("token"))
			assert.Equal(p.t, "GeoJson", r.Form.Get("type"))
			file, _, err := r.FormFile("file")
			require.NoError(p.t, err)
			data, err := io.ReadAll(file)
			require.NoError(p.t, err)
			p.uploadedFile = string(data)
			fmt.Fprint(w, `{"success": true, "id": "item-1"}`)
		case strings.HasSuffix(r.URL.Path, "/publish"):
			require.NoError(p.t, r.ParseForm())
			assert.Equal(p.t, "item-1", r.Form.Get("itemID"))
			assert.Equal(p.t, "geojson", r.Form.Get("filetype"))
			fmt.Fprint(w, p.publishBody)
		case strings.HasSuffix(r.URL.Path, "/share"):
			parts := strings.Split(r.URL.Path, "/")
			p.shared = append(p.shared, parts[len(parts)-2])
			fmt.Fprint(w, `{"notSharedWith": []}`)
		default:
			p.t.Errorf("unexpected portal call: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func newTestPublisher(t *testing.T, portal *fakePortal, share bool) *arcgis.Publisher {
	t.Helper()
	portal.t = t
	srv := httptest.NewServer(portal.handler())
	t.Cleanup(srv.Close)
	return arcgis.NewPublisher(srv.URL, "etl_bot", "hunter2", share, 5*time.Second, slog.Default())
}

func TestPublish_ReplacesAndShares(t *testing.T) {
	portal := &fakePortal{
		searchResults: `[{"id": "old-1", "title": "Traffic Incidents"}, {"id": "other", "title": "Traffic Incidents Backup"}]`,
		publishBody:   `{"services": [{"serviceItemId": "layer-1"}]}`,
	}
	p := newTestPublisher(t, portal, true)

	result, err := p.Publish(context.Background(), arcgis.Dataset{
		Title:     "Traffic Incidents",
		Tags:      []string{"traffic", "johor"},
		TimeField: "timestamp_ms",
		GeoJSON:   []byte(`{"type":"FeatureCollection","features":[]}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "item-1", result.ItemID)
	assert.Equal(t, "layer-1", result.LayerItemID)

	// Only the exact-title match is deleted.
	assert.Equal(t, []string{"old-1"}, portal.deleted)
	assert.ElementsMatch(t, []string{"item-1", "layer-1"}, portal.shared)
	assert.Contains(t, portal.uploadedFile, `"FeatureCollection"`)
}

func TestPublish_FallsBackToFileItem(t *testing.T) {
	portal := &fakePortal{
		searchResults: `[]`,
		publishBody:   `{"services": [{"error": {"message": "conversion failed"}}]}`,
	}
	p := newTestPublisher(t, portal, false)

	result, err := p.Publish(context.Background(), arcgis.Dataset{
		Title:   "Weather Forecast",
		GeoJSON: []byte(`{"type":"FeatureCollection","features":[]}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "item-1", result.ItemID)
	assert.Empty(t, result.LayerItemID)
	assert.Empty(t, portal.shared)
}

func TestPublish_BadCredentials(t *testing.T) {
	portal := &fakePortal{searchResults: `[]`}
	srv := httptest.NewServer(portal.handler())
	t.Cleanup(srv.Close)
	portal.t = t

	p := arcgis.NewPublisher(srv.URL, "etl_bot", "wrong", false, 5*time.Second, slog.Default())
	_, err := p.Publish(context.Background(), arcgis.Dataset{Title: "X", GeoJSON: []byte(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestPublish_TokenReused(t *testing.T) {
	portal := &fakePortal{
		searchResults: `[]`,
		publishBody:   `{"services": [{"serviceItemId": "layer-1"}]}`,
	}
	p := newTestPublisher(t, portal, false)

	for i := 0; i < 2; i++ {
		_, err := p.Publish(context.Background(), arcgis.Dataset{
			Title:   "Hotspots",
			GeoJSON: []byte(`{"type":"FeatureCollection","features":[]}`),
		})
		require.NoError(t, err)
	}

	tokenCalls := 0
	for _, path := range portal.calls {
		if path == "/sharing/rest/generateToken" {
			tokenCalls++
		}
	}
	assert.Equal(t, 1, tokenCalls)
}
