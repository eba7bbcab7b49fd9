// Package metgov fetches forecasts and warnings from the MET Malaysia open
// data API and maintains the geocoded location lookup the forecast features
// are joined against.
package metgov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// Client calls the MET Malaysia API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a MET Malaysia API client rooted at baseURL
// (e.g. https://api.data.gov.my/weather).
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FetchForecasts returns the current daily forecasts for all locations.
func (c *Client) FetchForecasts(ctx context.Context) ([]domain.ForecastRecord, error) {
	body, err := c.get(ctx, c.baseURL+"/forecast?limit=500")
	if err != nil {
		return nil, err
	}

	var raws []forecastRecord
	if err := unwrapRecords(body, &raws); err != nil {
		return nil, fmt.Errorf("parse forecast payload: %w", err)
	}

	out := make([]domain.ForecastRecord, 0, len(raws))
	for _, r := range raws {
		rec := domain.ForecastRecord{
			LocationID:        firstNonEmpty(r.Location.LocationID, r.FlatLocationID),
			LocationName:      firstNonEmpty(r.Location.LocationName, r.FlatLocationName),
			Date:              r.Date,
			SummaryForecast:   r.SummaryForecast,
			MorningForecast:   r.MorningForecast,
			AfternoonForecast: r.AfternoonForecast,
			NightForecast:     r.NightForecast,
			MinTemp:           r.MinTemp,
			MaxTemp:           r.MaxTemp,
		}
		if rec.LocationID == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// FetchWarnings returns active weather warnings. Warnings are an optional
// data source; callers treat errors as skippable.
func (c *Client) FetchWarnings(ctx context.Context) ([]domain.WarningRecord, error) {
	body, err := c.get(ctx, c.baseURL+"/warning?limit=200")
	if err != nil {
		return nil, err
	}

	var raws []warningRecord
	if err := unwrapRecords(body, &raws); err != nil {
		return nil, fmt.Errorf("parse warning payload: %w", err)
	}

	out := make([]domain.WarningRecord, 0, len(raws))
	for _, r := range raws {
		out = append(out, domain.WarningRecord{
			Heading:    firstNonEmpty(r.WarningIssue.Heading, r.Heading),
			Text:       firstNonEmpty(r.WarningIssue.TextEn, r.Text, r.TextEn),
			Areas:      r.areas(),
			Severity:   r.Severity,
			ValidFrom:  r.ValidFrom,
			ValidTo:    r.ValidTo,
			IssuedDate: firstNonEmpty(r.WarningIssue.Issued, r.Date),
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("met API status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

// unwrapRecords decodes a payload that is either a bare JSON array or an
// object wrapping the array under one of several historical keys.
func unwrapRecords(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err == nil {
		return nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	for _, key := range []string{"data", "result", "records", "results"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		return json.Unmarshal(raw, out)
	}
	return fmt.Errorf("payload has no recognized record list")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// forecastRecord mirrors the API's two historical shapes: a nested location
// object or flattened location__ columns.
type forecastRecord struct {
	Location struct {
		LocationID   string `json:"location_id"`
		LocationName string `json:"location_name"`
	} `json:"location"`
	FlatLocationID   string `json:"location__location_id"`
	FlatLocationName string `json:"location__location_name"`

	Date              string   `json:"date"`
	SummaryForecast   string   `json:"summary_forecast"`
	MorningForecast   string   `json:"morning_forecast"`
	AfternoonForecast string   `json:"afternoon_forecast"`
	NightForecast     string   `json:"night_forecast"`
	MinTemp           *float64 `json:"min_temp"`
	MaxTemp           *float64 `json:"max_temp"`
}

type warningRecord struct {
	WarningIssue struct {
		Heading string `json:"heading"`
		TextEn  string `json:"text_en"`
		Issued  string `json:"issued"`
	} `json:"warning_issue"`
	Heading   string          `json:"heading"`
	Text      string          `json:"text"`
	TextEn    string          `json:"text_en"`
	AreasRaw  json.RawMessage `json:"valid_areas"`
	AreaRaw   json.RawMessage `json:"area"`
	Severity  string          `json:"severity_level"`
	ValidFrom string          `json:"valid_from"`
	ValidTo   string          `json:"valid_to"`
	Date      string          `json:"date"`
}

// areas flattens the warning area field, which the API renders as a string,
// a list of strings, or is missing entirely.
func (w warningRecord) areas() []string {
	for _, raw := range []json.RawMessage{w.AreasRaw, w.AreaRaw} {
		if len(raw) == 0 {
			continue
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			return list
		}
		var single string
		if err := json.Unmarshal(raw, &single); err == nil && single != "" {
			return splitAreas(single)
		}
	}
	return nil
}

func splitAreas(s string) []string {
	var out []string
	for _, part := range splitAny(s, ",;") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitAny(s, seps string) []string {
	var out []string
	start := 0
	for i, r := range s {
		for _, sep := range seps {
			if r == sep {
				out = append(out, trim(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, trim(s[start:]))
	return out
}

func trim(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
