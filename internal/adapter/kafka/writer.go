package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/spotlane/internal/config"
	"github.com/couchcryptid/spotlane/internal/domain"
	"github.com/couchcryptid/spotlane/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher produces accepted spots to the sink topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates an asynchronous Kafka producer for the configured sink
// topic. Delivery failures are logged and counted; they never block the
// submitting source.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafkago.Message, err error) {
			if err == nil {
				return
			}
			metrics.PublishErrors.Add(float64(len(messages)))
			logger.Warn("publish spots failed", "count", len(messages), "error", err)
		},
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes spot and queues it for delivery keyed by label.
func (p *Publisher) Publish(ctx context.Context, spot domain.Spot) error {
	msg, err := serializeToMessage(spot)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending messages and closes the producer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a Spot into a Kafka message.
func serializeToMessage(spot domain.Spot) (kafkago.Message, error) {
	data, err := json.Marshal(spot)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize spot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(spot.Label),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte(spot.SourceID)},
			{Key: "spot_time", Value: []byte(spot.SpotTime.UTC().Format(time.RFC3339))},
		},
	}, nil
}
