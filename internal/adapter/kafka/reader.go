package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/spotlane/internal/backoff"
	"github.com/couchcryptid/spotlane/internal/config"
	"github.com/couchcryptid/spotlane/internal/domain"
	"github.com/couchcryptid/spotlane/internal/observability"
	"github.com/couchcryptid/spotlane/internal/pipeline"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// SourceName identifies the Kafka source in the registry and in metrics.
const SourceName = "kafka"

var errInvalidSpot = errors.New("invalid spot message")

// Source consumes JSON spots from the inbound topic.
// It implements pipeline.Source.
type Source struct {
	readerConfig kafkago.ReaderConfig
	submit       pipeline.SubmitFunc
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSource creates a consumer-group reader source for the configured topic.
// No connection is made until Start.
func NewSource(cfg *config.Config, submit pipeline.SubmitFunc, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Source {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Source{
		readerConfig: kafkago.ReaderConfig{
			Brokers:        cfg.KafkaBrokers,
			GroupID:        cfg.KafkaGroupID,
			Topic:          cfg.KafkaSourceTopic,
			MinBytes:       1,
			MaxBytes:       1 << 20,
			MaxWait:        500 * time.Millisecond,
			CommitInterval: time.Second,
		},
		submit:  submit,
		clock:   clock,
		logger:  logger.With("source", SourceName),
		metrics: metrics,
	}
}

// Start opens the reader and begins consuming. It is a no-op while running.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return nil
	}
	reader := kafkago.NewReader(s.readerConfig)
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, reader, s.done)
	return nil
}

// Stop cancels consumption, waits for the worker and closes the reader.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Source) run(ctx context.Context, reader *kafkago.Reader, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := reader.Close(); err != nil {
			s.logger.Warn("kafka reader close error", "error", err)
		}
	}()
	s.logger.Info("kafka source started", "topic", s.readerConfig.Topic, "group_id", s.readerConfig.GroupID)

	// Fetch errors back off from 200ms doubling to 5s.
	retry := &backoff.Exponential{Initial: 200 * time.Millisecond, Max: 5 * time.Second}

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("kafka source stopping", "reason", ctx.Err())
				return
			}
			wait := retry.Next()
			s.logger.Error("fetch message failed", "error", err, "retry_in", wait)
			if !backoff.Sleep(ctx, s.clock, wait) {
				return
			}
			continue
		}
		retry.Reset()

		spot, err := mapMessageToSpot(msg)
		if err != nil {
			s.logger.Warn("skipping message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			s.metrics.RecordsSkipped.WithLabelValues(SourceName).Inc()
		} else {
			s.submit(spot)
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			s.logger.Warn("commit offset failed", "error", err,
				"partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

// mapMessageToSpot decodes a JSON spot and checks the fields every spot needs.
func mapMessageToSpot(msg kafkago.Message) (domain.Spot, error) {
	var spot domain.Spot
	if err := json.Unmarshal(msg.Value, &spot); err != nil {
		return domain.Spot{}, fmt.Errorf("decode spot: %w", err)
	}
	spot.Label = strings.TrimSpace(spot.Label)
	switch {
	case spot.Label == "":
		return domain.Spot{}, fmt.Errorf("%w: missing label", errInvalidSpot)
	case !domain.ValidFrequency(spot.Frequency):
		return domain.Spot{}, fmt.Errorf("%w: frequency %v must be a finite value > 0", errInvalidSpot, spot.Frequency)
	case spot.SpotTime.IsZero():
		return domain.Spot{}, fmt.Errorf("%w: missing spot_time", errInvalidSpot)
	}
	spot.SpotTime = spot.SpotTime.UTC()
	spot.SourceID = ""
	return spot, nil
}
