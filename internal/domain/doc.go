// Package domain models the traffic and weather data flowing through the
// Johor Bahru ETL pipeline.
//
// # Data Sources
//
// Traffic incidents come from the MRT corporation's traffic announcement
// listing. Each announcement carries a title, a date range, an activity time
// window, free-text description and activity fields, an optional media release
// PDF, and a post URL. Titles follow the convention
//
//	"<WORKS DESCRIPTION> AT <LOCATION>"
//
// so the location string is everything after the last " AT " separator.
// Announcements carry no coordinates; locations are resolved through a
// gazetteer of known trouble spots, then a persistent geocode cache, then
// Nominatim.
//
// Weather forecasts and warnings come from the MET Malaysia open data API
// (api.data.gov.my). Forecast records reference locations by id only; the
// pipeline maintains a locations.csv lookup of geocoded location centroids.
// Forecasts are later enriched with numeric daily values from Open-Meteo.
//
// # Date Conventions
//
// Announcement dates are rendered as "<day> <month> <year>" with either
// abbreviated or full month names ("2 Jan 2026", "14 February 2026").
// Forecast dates are ISO "2006-01-02". Parsers accept both plus ISO
// timestamps; unparseable dates are carried as zero times, never errors.
//
// # ID Generation
//
// Incident IDs are deterministic SHA-256 hashes of title|post_url, the same
// pair the source system deduplicates on. Re-scraping the same announcement
// always yields the same ID, which keeps downstream dataset updates and the
// optional Kafka emission idempotent.
package domain
