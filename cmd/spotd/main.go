package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/spotlane/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/spotlane/internal/adapter/kafka"
	"github.com/couchcryptid/spotlane/internal/adapter/poll"
	"github.com/couchcryptid/spotlane/internal/adapter/push"
	"github.com/couchcryptid/spotlane/internal/config"
	"github.com/couchcryptid/spotlane/internal/layout"
	"github.com/couchcryptid/spotlane/internal/observability"
	"github.com/couchcryptid/spotlane/internal/pipeline"
	"github.com/couchcryptid/spotlane/internal/render"
	"github.com/couchcryptid/spotlane/internal/store"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	opts := pipeline.Options{
		SpotLifetime: cfg.SpotLifetime,
		MaxLanes:     cfg.MaxLanes,
		Measurer:     layout.NewCachedMeasurer(layout.NewFaceMeasurer(nil), 1024),
		Clock:        clock,
	}

	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		opts.Publisher = publisher
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic)
	}

	d := pipeline.New(store.New(cfg.MaxSpotLifetime, clock), opts, logger, metrics)
	if err := registerSources(d, cfg, clock, logger, metrics); err != nil {
		logger.Error("failed to register sources", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, d, clock, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if cfg.AutoStart {
		if err := d.Start(ctx); err != nil {
			logger.Error("some sources failed to start", "error", err)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	d.Stop()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// registerSources adds the polled feeds, the push listener and, when brokers
// are configured, the Kafka consumer, applying per-source overrides.
func registerSources(d *pipeline.Dispatcher, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) error {
	for _, feed := range poll.Feeds() {
		pollCfg := poll.Config{
			Name:     feed.Name,
			URL:      feed.URL,
			Parse:    feed.Parse,
			Interval: cfg.PollInterval,
			Timeout:  cfg.PollTimeout,
			Retry:    cfg.PollRetry,
			Location: cfg.TimeZone,
		}
		err := register(d, cfg, feed.Name, feed.Label, feed.Color, false, func(submit pipeline.SubmitFunc) pipeline.Source {
			return poll.New(pollCfg, submit, clock, logger, metrics)
		})
		if err != nil {
			return err
		}
	}

	err := register(d, cfg, "push", "TCP push feed", "#CFFDBC", true, func(submit pipeline.SubmitFunc) pipeline.Source {
		return push.NewServer(cfg.PushAddr(), cfg.TimeZone, submit, logger, metrics)
	})
	if err != nil {
		return err
	}

	if cfg.KafkaEnabled() {
		return register(d, cfg, kafkaadapter.SourceName, "Kafka topic "+cfg.KafkaSourceTopic, "#B5A8F0", true, func(submit pipeline.SubmitFunc) pipeline.Source {
			return kafkaadapter.NewSource(cfg, submit, clock, logger, metrics)
		})
	}
	return nil
}

func register(d *pipeline.Dispatcher, cfg *config.Config, name, label, color string, enabled bool, factory pipeline.Factory) error {
	if override, ok := cfg.Sources[name]; ok {
		if override.Enabled != nil {
			enabled = *override.Enabled
		}
		if override.Color != "" {
			color = override.Color
		}
	}
	c, err := render.ParseColor(color)
	if err != nil {
		return fmt.Errorf("color for source %s: %w", name, err)
	}
	return d.Register(name, label, c, enabled, factory)
}
