package nominatim_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/nominatim"
	"github.com/ackgis/weather-traffic-etl/internal/domain"
	"github.com/ackgis/weather-traffic-etl/internal/observability"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *nominatim.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return nominatim.NewClient(srv.URL, "test-agent/1.0", 5*time.Second, time.Millisecond,
		slog.Default(), observability.NewMetricsForTesting())
}

func TestGeocode_Found(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Jalan Tebrau, Johor Bahru, Malaysia", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))

		w.Write([]byte(`[{"lat":"1.4857","lon":"103.7837","display_name":"Jalan Tebrau, Johor Bahru"}]`))
	})

	result, err := client.Geocode(context.Background(), "Jalan Tebrau, Johor Bahru, Malaysia")
	require.NoError(t, err)
	assert.True(t, result.Found())
	assert.InDelta(t, 1.4857, result.Geo.Lat, 1e-9)
	assert.InDelta(t, 103.7837, result.Geo.Lon, 1e-9)
	assert.Equal(t, "Jalan Tebrau, Johor Bahru", result.DisplayName)
}

func TestGeocode_NoMatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	})

	result, err := client.Geocode(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.False(t, result.Found())
}

func TestGeocode_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Geocode(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGeocode_BadCoordinates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"lat":"north","lon":"a bit east"}]`))
	})

	_, err := client.Geocode(context.Background(), "anything")
	require.Error(t, err)
}

func TestGeocode_RateLimited(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"lat":"1.46","lon":"103.76"}]`))
	}))
	t.Cleanup(srv.Close)

	interval := 50 * time.Millisecond
	client := nominatim.NewClient(srv.URL, "test-agent/1.0", 5*time.Second, interval,
		slog.Default(), observability.NewMetricsForTesting())

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Geocode(context.Background(), "JB Sentral")
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 2*interval)
}

// stubGeocoder counts calls and returns a canned result.
type stubGeocoder struct {
	calls  atomic.Int64
	result domain.GeocodeResult
	err    error
}

func (s *stubGeocoder) Geocode(context.Context, string) (domain.GeocodeResult, error) {
	s.calls.Add(1)
	return s.result, s.err
}

func TestCachedGeocoder_HitsAndNormalization(t *testing.T) {
	stub := &stubGeocoder{result: domain.GeocodeResult{Geo: domain.Geo{Lat: 1.46, Lon: 103.76}}}
	cached := nominatim.NewCachedGeocoder(stub, 10, observability.NewMetricsForTesting())

	_, err := cached.Geocode(context.Background(), "Jalan Tebrau")
	require.NoError(t, err)
	// Same location, different spacing and case: must hit the cache.
	_, err = cached.Geocode(context.Background(), "  jalan   TEBRAU ")
	require.NoError(t, err)

	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestCachedGeocoder_DoesNotCacheMisses(t *testing.T) {
	stub := &stubGeocoder{} // zero result: not found
	cached := nominatim.NewCachedGeocoder(stub, 10, observability.NewMetricsForTesting())

	for i := 0; i < 2; i++ {
		result, err := cached.Geocode(context.Background(), "unknown place")
		require.NoError(t, err)
		assert.False(t, result.Found())
	}
	assert.Equal(t, int64(2), stub.calls.Load())
}

func TestCachedGeocoder_Eviction(t *testing.T) {
	stub := &stubGeocoder{result: domain.GeocodeResult{Geo: domain.Geo{Lat: 1, Lon: 2}}}
	cached := nominatim.NewCachedGeocoder(stub, 2, observability.NewMetricsForTesting())

	ctx := context.Background()
	for _, q := range []string{"a", "b", "c"} { // "a" falls out
		_, err := cached.Geocode(ctx, q)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), stub.calls.Load())

	_, err := cached.Geocode(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stub.calls.Load(), "evicted entry must refetch")

	_, err = cached.Geocode(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stub.calls.Load(), "recent entry must still be cached")
}
