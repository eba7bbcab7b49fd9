package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 20*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 1000.0, cfg.HexEdgeMeters)
	assert.Equal(t, 5, cfg.MRTPages)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.NominatimURL)
	assert.Equal(t, 1100*time.Millisecond, cfg.NominatimInterval)
	assert.Equal(t, 1000, cfg.GeocodeCacheSize)
	assert.Equal(t, "https://api.data.gov.my/weather", cfg.METBaseURL)
	assert.True(t, cfg.ArcGISSharePublic)
	assert.False(t, cfg.PublishConfigured())
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "traffic-incidents", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/etl/data")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("HEX_EDGE_METERS", "2500")
	t.Setenv("MRT_PAGES", "3")
	t.Setenv("NOMINATIM_INTERVAL", "2s")
	t.Setenv("ARCGIS_USERNAME", "gisops")
	t.Setenv("ARCGIS_PASSWORD", "secret")
	t.Setenv("ARCGIS_SHARE_PUBLIC", "false")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "incidents")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/etl/data", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2500.0, cfg.HexEdgeMeters)
	assert.Equal(t, 3, cfg.MRTPages)
	assert.Equal(t, 2*time.Second, cfg.NominatimInterval)
	assert.True(t, cfg.PublishConfigured())
	assert.False(t, cfg.ArcGISSharePublic)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "incidents", cfg.KafkaTopic)
}

func TestLoad_InvalidHexEdge(t *testing.T) {
	for _, bad := range []string{"0", "-500", "abc"} {
		t.Setenv("HEX_EDGE_METERS", bad)
		_, err := Load()
		require.Error(t, err, "HEX_EDGE_METERS=%s", bad)
		assert.Contains(t, err.Error(), "HEX_EDGE_METERS")
	}
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_InvalidMRTPages(t *testing.T) {
	t.Setenv("MRT_PAGES", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MRT_PAGES")
}
