package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Geo is a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies within plausible geographic
// bounds. The zero value is treated as missing rather than a point in the
// Gulf of Guinea, since every upstream source uses 0,0 as "unknown".
func (g Geo) Valid() bool {
	if g.Lat == 0 && g.Lon == 0 {
		return false
	}
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}

// Announcement is one scraped MRT traffic announcement, fields as they appear
// on the listing page before any interpretation.
type Announcement struct {
	Title        string `json:"title"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	ActivityTime string `json:"activity_time,omitempty"`
	Description  string `json:"description,omitempty"`
	Activity     string `json:"activity,omitempty"`
	MediaRelease string `json:"media_release,omitempty"`
	PostURL      string `json:"post_url,omitempty"`
}

// Incident is a geolocated traffic event derived from an announcement.
type Incident struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Location     string    `json:"location,omitempty"`
	Description  string    `json:"description,omitempty"`
	Activity     string    `json:"activity,omitempty"`
	ActivityTime string    `json:"activity_time,omitempty"`
	StartDate    time.Time `json:"start_date,omitzero"`
	EndDate      time.Time `json:"end_date,omitzero"`
	MediaRelease string    `json:"media_release,omitempty"`
	PostURL      string    `json:"post_url,omitempty"`
	Geo          Geo       `json:"geo"`

	// GeoSource records how the coordinate was resolved:
	// "gazetteer", "cache", "nominatim", or "failed".
	GeoSource string `json:"geo_source,omitempty"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// IncidentID produces a deterministic ID from the title/post URL pair, the
// same signature the listing is deduplicated on.
func IncidentID(title, postURL string) string {
	hash := sha256.Sum256([]byte(title + "|" + postURL))
	return "mrt-" + hex.EncodeToString(hash[:8])
}

// NewIncident builds an Incident from a scraped announcement. Coordinates and
// GeoSource are filled in later by the geocoding step.
func NewIncident(a Announcement) Incident {
	return Incident{
		ID:           IncidentID(a.Title, a.PostURL),
		Title:        a.Title,
		Location:     LocationFromTitle(a.Title),
		Description:  a.Description,
		Activity:     a.Activity,
		ActivityTime: a.ActivityTime,
		StartDate:    ParseAnnouncementDate(a.StartDate),
		EndDate:      ParseAnnouncementDate(a.EndDate),
		MediaRelease: a.MediaRelease,
		PostURL:      a.PostURL,
		ScrapedAt:    clock.Now().UTC(),
	}
}
