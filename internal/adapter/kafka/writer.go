// Package kafka emits finished traffic incidents to a downstream topic for
// consumers that want a stream rather than GeoJSON files.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ackgis/weather-traffic-etl/internal/domain"
)

// Writer produces incident messages to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the incident topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// EmitIncidents serializes and publishes incidents in a single WriteMessages
// call so a batch either lands together or fails together.
func (w *Writer) EmitIncidents(ctx context.Context, incidents []domain.Incident) error {
	if len(incidents) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(incidents))
	for i := range incidents {
		msg, err := serializeToMessage(incidents[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write incident batch: %w", err)
	}
	w.logger.Info("emitted incidents", "count", len(incidents))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Incident into a Kafka message keyed by
// incident id, so replays of the same announcement compact away.
func serializeToMessage(incident domain.Incident) (kafkago.Message, error) {
	data, err := json.Marshal(incident)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(incident.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "geo_source", Value: []byte(incident.GeoSource)},
			{Key: "scraped_at", Value: []byte(incident.ScrapedAt.Format(time.RFC3339))},
		},
	}, nil
}
