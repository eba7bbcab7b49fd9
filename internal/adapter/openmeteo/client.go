// Package openmeteo enriches forecast features with numeric daily weather
// values from the Open-Meteo API, behind a persistent per-day cache so reruns
// on the same day cost no requests.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// Client calls the Open-Meteo forecast API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client rooted at baseURL
// (e.g. https://api.open-meteo.com/v1/forecast).
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Daily fetches the daily weather numbers for a coordinate and ISO date.
func (c *Client) Daily(ctx context.Context, geo domain.Geo, date string) (domain.WeatherNumbers, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", geo.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", geo.Lon))
	q.Set("daily", "temperature_2m_min,temperature_2m_max,precipitation_probability_max,wind_speed_10m_max,wind_direction_10m_dominant")
	q.Set("hourly", "relative_humidity_2m")
	q.Set("timezone", "Asia/Kuala_Lumpur")
	q.Set("start_date", date)
	q.Set("end_date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.WeatherNumbers{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherNumbers{}, fmt.Errorf("fetch open-meteo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WeatherNumbers{}, fmt.Errorf("read open-meteo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.WeatherNumbers{}, fmt.Errorf("open-meteo status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.WeatherNumbers{}, fmt.Errorf("parse open-meteo response: %w", err)
	}
	return payload.numbers(), nil
}

type response struct {
	Daily struct {
		TempMin    []*float64 `json:"temperature_2m_min"`
		TempMax    []*float64 `json:"temperature_2m_max"`
		RainChance []*float64 `json:"precipitation_probability_max"`
		WindSpeed  []*float64 `json:"wind_speed_10m_max"`
		WindDir    []*float64 `json:"wind_direction_10m_dominant"`
	} `json:"daily"`
	Hourly struct {
		Time     []string   `json:"time"`
		Humidity []*float64 `json:"relative_humidity_2m"`
	} `json:"hourly"`
}

func (r response) numbers() domain.WeatherNumbers {
	return domain.WeatherNumbers{
		TempMin:    first(r.Daily.TempMin),
		TempMax:    first(r.Daily.TempMax),
		RainChance: first(r.Daily.RainChance),
		WindSpeed:  first(r.Daily.WindSpeed),
		WindDir:    first(r.Daily.WindDir),
		Humidity:   r.humidity(),
	}
}

// humidity picks the noon relative humidity when present, otherwise the mean
// of the day's hourly values.
func (r response) humidity() *float64 {
	var sum float64
	var n int
	for i, ts := range r.Hourly.Time {
		if i >= len(r.Hourly.Humidity) || r.Hourly.Humidity[i] == nil {
			continue
		}
		v := *r.Hourly.Humidity[i]
		if strings.HasSuffix(ts, "T12:00") {
			return &v
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}

func first(values []*float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
