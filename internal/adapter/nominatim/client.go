// Package nominatim implements domain.Geocoder against the Nominatim search
// API. The public instance allows at most one request per second, so every
// lookup passes through a rate limiter; callers are expected to wrap the
// client in a CachedGeocoder to keep repeat queries off the network.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
	"github.com/ackgis/weather-traffic-etl/internal/observability"
)

// Client implements domain.Geocoder using the Nominatim search API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Nominatim client. minInterval is the smallest allowed
// gap between requests; the identifying userAgent is required by the
// Nominatim usage policy.
func NewClient(baseURL, userAgent string, timeout, minInterval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		logger:     logger,
		metrics:    metrics,
	}
}

// Geocode resolves a free-text query to a coordinate. A zero result with nil
// error means Nominatim had no match.
func (c *Client) Geocode(ctx context.Context, query string) (domain.GeocodeResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("geocode rate limit wait: %w", err)
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	reqURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("create geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodeResult{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return domain.GeocodeResult{}, fmt.Errorf("nominatim status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodeResult{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if len(places) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		c.logger.Debug("no geocode match", "query", query)
		return domain.GeocodeResult{}, nil
	}

	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(places[0].Lon, 64)
	if errLat != nil || errLon != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodeResult{}, fmt.Errorf("nominatim returned unparseable coordinates %q,%q", places[0].Lat, places[0].Lon)
	}

	c.metrics.GeocodeRequests.WithLabelValues("found").Inc()
	return domain.GeocodeResult{
		Geo:         domain.Geo{Lat: lat, Lon: lon},
		DisplayName: places[0].DisplayName,
	}, nil
}

// place is one entry of a Nominatim search response. Coordinates arrive as
// strings.
type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
