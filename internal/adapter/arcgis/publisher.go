// Package arcgis publishes GeoJSON datasets to ArcGIS Online via the portal
// sharing REST API: token, search and replace by title, item upload, hosted
// layer publish, and public sharing.
package arcgis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Publisher uploads datasets to an ArcGIS Online organization.
type Publisher struct {
	portalURL  string
	username   string
	password   string
	share      bool
	httpClient *http.Client
	logger     *slog.Logger

	token string
}

// NewPublisher creates a Publisher for the portal at portalURL
// (e.g. https://www.arcgis.com). When share is true, published items are
// shared with everyone.
func NewPublisher(portalURL, username, password string, share bool, timeout time.Duration, logger *slog.Logger) *Publisher {
	return &Publisher{
		portalURL:  strings.TrimRight(portalURL, "/"),
		username:   username,
		password:   password,
		share:      share,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Dataset is one GeoJSON payload to publish.
type Dataset struct {
	Title string
	Tags  []string
	// TimeField names the epoch-millisecond property to enable the hosted
	// layer's time slider on. Empty disables time.
	TimeField string
	GeoJSON   []byte
}

// PublishResult describes what a publish run produced.
type PublishResult struct {
	ItemID string
	// LayerItemID is the hosted feature layer item, empty when publishing
	// fell back to a plain file item.
	LayerItemID string
}

// Publish replaces any items with the dataset's title, uploads the GeoJSON,
// and publishes it as a hosted feature layer. When the publish step fails the
// uploaded file item is kept so the data is still downloadable.
func (p *Publisher) Publish(ctx context.Context, d Dataset) (PublishResult, error) {
	if err := p.ensureToken(ctx); err != nil {
		return PublishResult{}, err
	}

	if err := p.deleteByTitle(ctx, d.Title); err != nil {
		return PublishResult{}, err
	}

	itemID, err := p.addItem(ctx, d)
	if err != nil {
		return PublishResult{}, err
	}
	result := PublishResult{ItemID: itemID}

	layerID, err := p.publishItem(ctx, itemID, d)
	if err != nil {
		p.logger.Warn("hosted layer publish failed, keeping file item",
			"title", d.Title, "item_id", itemID, "error", err)
	} else {
		result.LayerItemID = layerID
	}

	if p.share {
		for _, id := range []string{result.ItemID, result.LayerItemID} {
			if id == "" {
				continue
			}
			if err := p.shareEveryone(ctx, id); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

func (p *Publisher) ensureToken(ctx context.Context) error {
	if p.token != "" {
		return nil
	}
	form := url.Values{
		"username":   {p.username},
		"password":   {p.password},
		"referer":    {p.portalURL},
		"expiration": {"60"},
		"f":          {"json"},
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := p.postForm(ctx, "/sharing/rest/generateToken", form, &out); err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	if out.Token == "" {
		return fmt.Errorf("generate token: empty token in response")
	}
	p.token = out.Token
	return nil
}

// deleteByTitle removes existing items with the exact title so republishing
// replaces rather than accumulates.
func (p *Publisher) deleteByTitle(ctx context.Context, title string) error {
	form := url.Values{
		"q":     {fmt.Sprintf(`title:"%s" AND owner:%s`, title, p.username)},
		"num":   {"100"},
		"token": {p.token},
		"f":     {"json"},
	}
	var out struct {
		Results []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"results"`
	}
	if err := p.postForm(ctx, "/sharing/rest/search", form, &out); err != nil {
		return fmt.Errorf("search items: %w", err)
	}

	for _, item := range out.Results {
		if item.Title != title {
			continue
		}
		var del struct {
			Success bool `json:"success"`
		}
		path := fmt.Sprintf("/sharing/rest/content/users/%s/items/%s/delete", p.username, item.ID)
		if err := p.postForm(ctx, path, url.Values{"token": {p.token}, "f": {"json"}}, &del); err != nil {
			return fmt.Errorf("delete item %s: %w", item.ID, err)
		}
		p.logger.Info("deleted existing item", "title", title, "item_id", item.ID)
	}
	return nil
}

// addItem uploads the GeoJSON as a portal item and returns its id.
func (p *Publisher) addItem(ctx context.Context, d Dataset) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"title": d.Title,
		"type":  "GeoJson",
		"tags":  strings.Join(d.Tags, ","),
		"token": p.token,
		"f":     "json",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("build upload form: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", d.Title+".geojson")
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(d.GeoJSON); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	endpoint := fmt.Sprintf("%s/sharing/rest/content/users/%s/addItem", p.portalURL, p.username)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := p.do(req, &out); err != nil {
		return "", fmt.Errorf("add item: %w", err)
	}
	if !out.Success || out.ID == "" {
		return "", fmt.Errorf("add item: portal reported failure")
	}
	return out.ID, nil
}

// publishItem turns a GeoJSON file item into a hosted feature layer.
func (p *Publisher) publishItem(ctx context.Context, itemID string, d Dataset) (string, error) {
	params := map[string]any{
		"name":           sanitizeServiceName(d.Title),
		"maxRecordCount": 10000,
		"hasStaticData":  true,
		"targetSR":       map[string]int{"wkid": 102100},
	}
	if d.TimeField != "" {
		params["timeInfo"] = map[string]any{
			"startTimeField": d.TimeField,
			"timeReference":  map[string]string{"timeZone": "UTC"},
		}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	form := url.Values{
		"itemID":            {itemID},
		"filetype":          {"geojson"},
		"publishParameters": {string(paramsJSON)},
		"token":             {p.token},
		"f":                 {"json"},
	}
	var out struct {
		Services []struct {
			ServiceItemID string `json:"serviceItemId"`
			Error         *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"services"`
	}
	path := fmt.Sprintf("/sharing/rest/content/users/%s/publish", p.username)
	if err := p.postForm(ctx, path, form, &out); err != nil {
		return "", err
	}
	if len(out.Services) == 0 {
		return "", fmt.Errorf("publish returned no services")
	}
	svc := out.Services[0]
	if svc.Error != nil {
		return "", fmt.Errorf("publish failed: %s", svc.Error.Message)
	}
	if svc.ServiceItemID == "" {
		return "", fmt.Errorf("publish returned no service item id")
	}
	return svc.ServiceItemID, nil
}

func (p *Publisher) shareEveryone(ctx context.Context, itemID string) error {
	form := url.Values{
		"everyone": {"true"},
		"org":      {"true"},
		"token":    {p.token},
		"f":        {"json"},
	}
	path := fmt.Sprintf("/sharing/rest/content/users/%s/items/%s/share", p.username, itemID)
	var out struct {
		NotSharedWith []string `json:"notSharedWith"`
	}
	if err := p.postForm(ctx, path, form, &out); err != nil {
		return fmt.Errorf("share item %s: %w", itemID, err)
	}
	return nil
}

func (p *Publisher) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.portalURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(req, out)
}

// do executes a portal request and decodes the JSON body, surfacing the
// portal's in-band error object. ArcGIS returns HTTP 200 for most failures.
func (p *Publisher) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("portal status %d: %s", resp.StatusCode, body)
	}

	var portalErr struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &portalErr); err == nil && portalErr.Error != nil {
		return fmt.Errorf("portal error %d: %s", portalErr.Error.Code, portalErr.Error.Message)
	}
	return json.Unmarshal(body, out)
}

// sanitizeServiceName turns a dataset title into a valid hosted service name.
func sanitizeServiceName(title string) string {
	var sb strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
