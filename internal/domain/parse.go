package domain

import (
	"regexp"
	"strings"
	"time"
)

var (
	// boundsNoteRe strips directional clutter that confuses geocoders,
	// e.g. "JALAN TEBRAU (BOTH BOUNDS)" or "(NEAR PLAZA ANGSANA)".
	boundsNoteRe = regexp.MustCompile(`(?i)\((?:BOTH BOUNDS|BOTH DIRECTIONS)\)|\(NEAR [^)]+\)`)

	whitespaceRe = regexp.MustCompile(`\s+`)

	nonWordRe = regexp.MustCompile(`[\W_]+`)
)

// announcementDateFormats covers the date renderings seen on the listing:
// day + abbreviated or full month + year, with or without a comma.
var announcementDateFormats = []string{
	"2 Jan 2006",
	"2 January 2006",
	"2 Jan, 2006",
	"2 January, 2006",
	"2006-01-02",
}

// LocationFromTitle extracts the location portion of an announcement title.
// Titles follow "<WORKS> AT <LOCATION>"; when no " AT " separator is present
// the whole title is returned and left to the gazetteer to match.
func LocationFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	if idx := strings.LastIndex(title, " AT "); idx >= 0 {
		return strings.TrimSpace(title[idx+len(" AT "):])
	}
	return title
}

// CleanLocation prepares a raw location string for a geocoder query: strips
// parenthetical bound notes, collapses whitespace, and title-cases the
// shouty listing text while keeping tokens with digits, such as kilometer
// marks, untouched.
func CleanLocation(raw string) string {
	s := boundsNoteRe.ReplaceAllString(raw, "")
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	if s == "" {
		return ""
	}
	words := strings.Split(s, " ")
	for i, w := range words {
		if !strings.ContainsAny(w, "0123456789") {
			words[i] = titleWord(w)
		}
	}
	return strings.Join(words, " ")
}

// NormalizeLocation canonicalizes a location string for gazetteer and cache
// lookups: uppercase, dashes unified, whitespace collapsed.
func NormalizeLocation(s string) string {
	s = strings.ReplaceAll(s, "–", "-")
	s = strings.ReplaceAll(s, "—", "-")
	s = strings.ToUpper(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizeName canonicalizes a place name for fuzzy matching: lowercase with
// all non-word runs collapsed to single spaces.
func NormalizeName(s string) string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func titleWord(w string) string {
	w = strings.ToLower(w)
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

// ParseAnnouncementDate parses a listing date string. Returns the zero time
// when the value is empty or in no known format; bad dates are cosmetic and
// must not fail the incident.
func ParseAnnouncementDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range announcementDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// ParseForecastDate parses a MET forecast date, accepting plain ISO dates and
// ISO timestamps with or without zone.
func ParseForecastDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
