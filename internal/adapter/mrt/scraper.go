// Package mrt scrapes the MRT corporation's traffic announcement listing and
// turns announcements into geolocated incident features.
package mrt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// Scraper fetches announcement listing pages.
type Scraper struct {
	baseURL   string
	pages     int
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewScraper creates a Scraper for the listing at baseURL. Pagination uses
// the listing's sf_paged query parameter; pages is the number of pages to
// walk.
func NewScraper(baseURL string, pages int, userAgent string, timeout time.Duration, logger *slog.Logger) *Scraper {
	return &Scraper{
		baseURL:   baseURL,
		pages:     pages,
		userAgent: userAgent,
		timeout:   timeout,
		logger:    logger,
	}
}

// FetchAnnouncements walks the listing pages and returns deduplicated
// announcements. A page that fails to fetch fails the whole scrape: a partial
// listing would silently drop incidents downstream.
func (s *Scraper) FetchAnnouncements(ctx context.Context) ([]domain.Announcement, error) {
	var (
		all      []domain.Announcement
		fetchErr error
	)

	c := colly.NewCollector(colly.UserAgent(s.userAgent))
	c.SetRequestTimeout(s.timeout)

	c.OnHTML("h5", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.Text)
		if len(title) < 5 {
			return
		}
		all = append(all, parseAnnouncement(title, e.DOM.Closest("div, section, article")))
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: %w", r.Request.URL, err)
	})

	for page := 1; page <= s.pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageURL := s.baseURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s?sf_paged=%d", s.baseURL, page)
		}
		s.logger.Debug("fetching announcement page", "page", page, "url", pageURL)

		if err := c.Visit(pageURL); err != nil {
			return nil, fmt.Errorf("visit %s: %w", pageURL, err)
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
	}

	return dedupe(all), nil
}

// parseAnnouncement extracts one announcement from the container element
// around a listing title. Missing pieces stay empty; only the title is
// guaranteed.
func parseAnnouncement(title string, container *goquery.Selection) domain.Announcement {
	a := domain.Announcement{Title: title}
	if container == nil || container.Length() == 0 {
		return a
	}

	// Date blocks render as an uppercase "<day> <month>" span paired with a
	// separately styled year span; the first pair is the start date, the
	// second the end date.
	dayMonths := container.Find("span[style*='text-transform:uppercase']")
	years := container.Find("span[style*='font-weight:500']")
	if dayMonths.Length() >= 1 && years.Length() >= 1 {
		a.StartDate = spanDate(dayMonths.Eq(0), years.Eq(0))
	}
	if dayMonths.Length() >= 2 && years.Length() >= 2 {
		a.EndDate = spanDate(dayMonths.Eq(1), years.Eq(1))
	}

	container.Find("span[style*='text-align:left']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(sel.Text(), "Activity Time") {
			return true
		}
		if bold := sel.Find("span[style*='font-weight:700'], strong").First(); bold.Length() > 0 {
			a.ActivityTime = squash(bold.Text())
		} else {
			a.ActivityTime = squash(sel.Text())
		}
		return false
	})

	a.Description = textAfterLabel(container, "Description")
	a.Activity = textAfterLabel(container, "Activity")

	if link := container.Find("a.button[href$='.pdf'], a.button[href*='wp-content/uploads']").First(); link.Length() > 0 {
		a.MediaRelease = link.AttrOr("href", "")
	}
	if share := container.Find("div.addtoany_shortcode").First(); share.Length() > 0 {
		a.PostURL = share.AttrOr("data-a2a-url", "")
	}

	return a
}

// textAfterLabel finds a <p> whose whole text equals label and returns the
// text of the following <p>.
func textAfterLabel(container *goquery.Selection, label string) string {
	var out string
	container.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(p.Text()), label) {
			return true
		}
		if next := p.Next(); next.Is("p") {
			out = squash(next.Text())
		}
		return false
	})
	return out
}

func spanDate(dayMonth, year *goquery.Selection) string {
	return squash(dayMonth.Text() + " " + year.Text())
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dedupe drops announcements repeated across pages, keyed the same way as
// incident IDs.
func dedupe(announcements []domain.Announcement) []domain.Announcement {
	seen := make(map[string]struct{}, len(announcements))
	out := announcements[:0]
	for _, a := range announcements {
		key := a.Title + "|" + a.PostURL
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}
