package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes record changes to a Kafka topic.
// It implements pipeline.ChangeLoader.
type Writer struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured record topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, topic: cfg.KafkaTopic, logger: logger}
}

// LoadBatch serializes and publishes all changes of a run in a single
// WriteMessages call. Messages are keyed by record ID so every change to the
// same fire lands on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, changes []domain.RecordChange) error {
	if len(changes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(changes))
	for i := range changes {
		msg, err := serializeToMessage(changes[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d record changes to %s: %w", len(msgs), w.topic, err)
	}
	w.logger.Debug("record changes published", "topic", w.topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RecordChange into a Kafka message.
func serializeToMessage(change domain.RecordChange) (kafkago.Message, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record change: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(change.Record.ID.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "action", Value: []byte(change.Action)},
			{Key: "updated_at", Value: []byte(change.Record.UpdatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
