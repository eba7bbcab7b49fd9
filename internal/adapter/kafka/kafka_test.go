package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	scraped := time.Date(2026, 8, 27, 6, 0, 0, 0, time.UTC)
	incident := domain.Incident{
		ID:        "mrt-0011223344556677",
		Title:     "LANE CLOSURE AT JB SENTRAL",
		Location:  "JB SENTRAL",
		Geo:       domain.Geo{Lat: 1.4624, Lon: 103.7639},
		GeoSource: "gazetteer",
		ScrapedAt: scraped,
	}

	msg, err := serializeToMessage(incident)
	require.NoError(t, err)

	assert.Equal(t, []byte("mrt-0011223344556677"), msg.Key)
	assert.Contains(t, string(msg.Value), `"location":"JB SENTRAL"`)
	assert.Contains(t, string(msg.Value), `"lat":1.4624`)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "geo_source", msg.Headers[0].Key)
	assert.Equal(t, []byte("gazetteer"), msg.Headers[0].Value)
	assert.Equal(t, "scraped_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-08-27T06:00:00Z"), msg.Headers[1].Value)
}

func TestSerializeToMessage_OmitsEmptyOptionalFields(t *testing.T) {
	msg, err := serializeToMessage(domain.Incident{ID: "mrt-1", Title: "WORKS AT X"})
	require.NoError(t, err)

	s := string(msg.Value)
	assert.NotContains(t, s, "description")
	assert.NotContains(t, s, "media_release")
	assert.NotContains(t, s, "start_date")
}
