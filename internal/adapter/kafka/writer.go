package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/station-telemetry-ingest/internal/config"
	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes committed telemetry records to a Kafka topic.
// It implements domain.TelemetryPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured telemetry topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes record keyed by device id, so every reading of a station
// lands on the same partition.
func (w *Writer) Publish(ctx context.Context, record domain.TelemetryRecord, runID string) error {
	msg, err := serializeToMessage(record, runID, domain.Now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish telemetry for %s: %w", record.DeviceID, err)
	}
	w.logger.Debug("telemetry published", "device_id", record.DeviceID, "topic", w.writer.Topic, "run_id", runID)
	return nil
}

// Close flushes pending messages and closes the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a TelemetryRecord into a Kafka message.
func serializeToMessage(record domain.TelemetryRecord, runID string, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize telemetry record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.DeviceID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "device_id", Value: []byte(record.DeviceID)},
			{Key: "run_id", Value: []byte(runID)},
			{Key: "published_at", Value: []byte(publishedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
