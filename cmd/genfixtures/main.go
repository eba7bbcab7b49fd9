// Command genfixtures generates a synthetic traffic_incidents.geojson so the
// hotspot, publish, and validate tooling can be exercised without scraping.
// It routes the synthetic announcements through the real domain types, so the
// fixture matches true pipeline output shape.
//
// Usage:
//
//	go run ./cmd/genfixtures -out data/traffic_incidents.geojson -n 120 -seed 1
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ackgis/weather-traffic-etl/internal/adapter/geojsonio"
	"github.com/ackgis/weather-traffic-etl/internal/adapter/mrt"
	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// clusters are synthetic incident hot zones around Johor Bahru, weighted by
// how many incidents each should attract.
var clusters = []struct {
	name     string
	geo      domain.Geo
	spreadKM float64
	weight   int
}{
	{"JOHOR-SINGAPORE CAUSEWAY", domain.Geo{Lat: 1.4620, Lon: 103.7630}, 0.6, 5},
	{"JALAN TEBRAU", domain.Geo{Lat: 1.4857, Lon: 103.7837}, 1.2, 3},
	{"JALAN SKUDAI", domain.Geo{Lat: 1.4800, Lon: 103.7200}, 1.5, 2},
	{"SUNGAI TIRAM", domain.Geo{Lat: 1.6407, Lon: 103.6787}, 2.0, 1},
}

var works = []string{
	"TEMPORARY LANE CLOSURE",
	"NIGHT PILING WORKS",
	"GIRDER LAUNCHING WORKS",
	"ROAD RESURFACING",
	"UTILITY RELOCATION WORKS",
}

func main() {
	out := flag.String("out", "data/traffic_incidents.geojson", "output GeoJSON path")
	n := flag.Int("n", 120, "number of incidents")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if err := run(*out, *n, *seed); err != nil {
		log.Fatal(err)
	}
}

func run(out string, n int, seed int64) error {
	// Fixed clock so repeated runs with the same seed are byte-identical.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.January, 15, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(seed))

	var weighted []int
	for i, c := range clusters {
		for w := 0; w < c.weight; w++ {
			weighted = append(weighted, i)
		}
	}

	incidents := make([]domain.Incident, 0, n)
	for i := 0; i < n; i++ {
		c := clusters[weighted[rng.Intn(len(weighted))]]

		title := fmt.Sprintf("%s AT %s", works[rng.Intn(len(works))], c.name)
		start := time.Date(2026, time.January, 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)
		a := domain.Announcement{
			Title:     title,
			StartDate: start.Format("2 Jan 2006"),
			EndDate:   start.AddDate(0, 0, 1+rng.Intn(14)).Format("2 Jan 2006"),
			PostURL:   fmt.Sprintf("https://example.invalid/announcement/%d", i+1),
		}

		in := domain.NewIncident(a)
		// Jitter around the cluster center. One degree of latitude is ~111 km.
		spreadDeg := c.spreadKM / 111.0
		in.Geo = domain.Geo{
			Lat: c.geo.Lat + rng.NormFloat64()*spreadDeg,
			Lon: c.geo.Lon + rng.NormFloat64()*spreadDeg,
		}
		in.GeoSource = "gazetteer"
		incidents = append(incidents, in)
	}

	if err := geojsonio.WriteFeatureCollection(out, mrt.ToFeatureCollection(incidents)); err != nil {
		return err
	}
	log.Printf("wrote %d synthetic incidents to %s", n, out)
	return nil
}
