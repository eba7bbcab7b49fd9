package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all pipeline settings, populated from environment variables.
// Per-run parameters (cell size, data dir, stage selection) may be overridden
// by CLI flags on top of the loaded config.
type Config struct {
	DataDir   string
	LogLevel  string
	LogFormat string

	// HTTPAddr serves /healthz, /readyz, and /metrics while the pipeline
	// runs. Empty disables the server.
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// HTTPTimeout applies to all outbound API clients.
	HTTPTimeout time.Duration
	UserAgent   string

	// HexEdgeMeters is the hotspot cell edge length (center to vertex).
	HexEdgeMeters float64

	MRTBaseURL string
	MRTPages   int

	NominatimURL string
	// NominatimInterval is the minimum gap between Nominatim requests.
	// The public instance's usage policy caps clients at one per second.
	NominatimInterval time.Duration
	GeocodeCacheSize  int

	METBaseURL   string
	OpenMeteoURL string

	ArcGISURL         string
	ArcGISUsername    string
	ArcGISPassword    string
	ArcGISSharePublic bool

	// Kafka emission of transformed incidents is opt-in.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset. Invalid values are configuration errors: the caller must abort
// before any stage runs.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := envDuration("HTTP_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	nominatimInterval, err := envDuration("NOMINATIM_INTERVAL", 1100*time.Millisecond)
	if err != nil {
		return nil, err
	}

	hexEdge, err := envFloat("HEX_EDGE_METERS", 1000)
	if err != nil {
		return nil, err
	}
	mrtPages, err := envInt("MRT_PAGES", 5)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("GEOCODE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:   envOrDefault("DATA_DIR", "data"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		HTTPTimeout: httpTimeout,
		UserAgent:   envOrDefault("USER_AGENT", "ackgis-weather-traffic/1.0 (contact@example.com)"),

		HexEdgeMeters: hexEdge,

		MRTBaseURL: envOrDefault("MRT_BASE_URL", "https://www.mymrt.com.my/traffic-announcement/"),
		MRTPages:   mrtPages,

		NominatimURL:      envOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimInterval: nominatimInterval,
		GeocodeCacheSize:  cacheSize,

		METBaseURL:   envOrDefault("MET_BASE_URL", "https://api.data.gov.my/weather"),
		OpenMeteoURL: envOrDefault("OPENMETEO_URL", "https://api.open-meteo.com/v1/forecast"),

		ArcGISURL:         envOrDefault("ARCGIS_URL", "https://www.arcgis.com"),
		ArcGISUsername:    os.Getenv("ARCGIS_USERNAME"),
		ArcGISPassword:    os.Getenv("ARCGIS_PASSWORD"),
		ArcGISSharePublic: envBool("ARCGIS_SHARE_PUBLIC", true),

		KafkaEnabled: envBool("KAFKA_ENABLED", false),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "traffic-incidents"),
	}

	if cfg.HexEdgeMeters <= 0 {
		return nil, fmt.Errorf("HEX_EDGE_METERS must be positive, got %g", cfg.HexEdgeMeters)
	}
	if cfg.MRTPages <= 0 {
		return nil, fmt.Errorf("MRT_PAGES must be positive, got %d", cfg.MRTPages)
	}
	if cfg.GeocodeCacheSize <= 0 {
		return nil, fmt.Errorf("GEOCODE_CACHE_SIZE must be positive, got %d", cfg.GeocodeCacheSize)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

// PublishConfigured reports whether ArcGIS credentials are present.
func (c *Config) PublishConfigured() bool {
	return c.ArcGISUsername != "" && c.ArcGISPassword != ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, s)
	}
	return d, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, s)
	}
	return v, nil
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return v, nil
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
