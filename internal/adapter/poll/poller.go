// Package poll implements sources that periodically fetch a remote spot
// list over HTTP and submit every spot parsed from it.
package poll

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/spotlane/internal/backoff"
	"github.com/couchcryptid/spotlane/internal/domain"
	"github.com/couchcryptid/spotlane/internal/observability"
	"github.com/couchcryptid/spotlane/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// maxRetryBackoff caps the delay between failed polls when retry is enabled.
const maxRetryBackoff = 5 * time.Minute

// ParseFunc converts a response body into spots. Records that cannot be
// parsed are reported in skipped; err is reserved for payloads that cannot be
// read at all. Zone-less timestamps are interpreted in loc.
type ParseFunc func(body []byte, loc *time.Location) (spots []domain.Spot, skipped []error, err error)

// Config describes one polled upstream.
type Config struct {
	Name     string
	URL      string
	Parse    ParseFunc
	Interval time.Duration
	Timeout  time.Duration
	// Retry keeps the worker alive after a failed poll, backing off
	// exponentially from Interval. Without it the worker ends on the first
	// failure and the source has to be started again.
	Retry    bool
	Location *time.Location
}

var _ pipeline.Liveness = (*Poller)(nil)

// Poller is a pipeline.Source backed by periodic HTTP GETs.
type Poller struct {
	name     string
	url      string
	parse    ParseFunc
	interval time.Duration
	retry    bool
	loc      *time.Location

	httpClient *http.Client
	submit     pipeline.SubmitFunc
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Poller that hands parsed spots to submit.
func New(cfg Config, submit pipeline.SubmitFunc, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		name:       cfg.Name,
		url:        cfg.URL,
		parse:      cfg.Parse,
		interval:   cfg.Interval,
		retry:      cfg.Retry,
		loc:        cfg.Location,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		submit:     submit,
		clock:      clock,
		logger:     logger.With("source", cfg.Name),
		metrics:    metrics,
	}
}

// Start spawns the polling worker. It is a no-op while a worker is alive; a
// worker that ended after a failed poll is replaced.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		select {
		case <-p.done:
			p.cancel()
		default:
			return nil
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
	return nil
}

// Stop cancels the worker and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

// Running reports whether a worker is alive.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	p.logger.Info("poller started", "url", p.url, "interval", p.interval)
	p.metrics.SourceRunning.WithLabelValues(p.name).Set(1)
	defer p.metrics.SourceRunning.WithLabelValues(p.name).Set(0)

	retry := &backoff.Exponential{Initial: p.interval, Max: max(p.interval, maxRetryBackoff)}
	for {
		err := p.pollOnce(ctx)
		if ctx.Err() != nil {
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return
		}

		wait := p.interval
		if err != nil {
			if !p.retry {
				p.logger.Error("poll failed, stopping source", "error", err)
				return
			}
			wait = retry.Next()
			p.logger.Warn("poll failed, retrying", "error", err, "retry_in", wait)
		} else {
			retry.Reset()
		}

		if !backoff.Sleep(ctx, p.clock, wait) {
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return
		}
	}
}

// pollOnce fetches and parses the upstream once, submitting every parsed spot.
func (p *Poller) pollOnce(ctx context.Context) error {
	start := p.clock.Now()
	defer func() {
		p.metrics.PollDuration.WithLabelValues(p.name).Observe(p.clock.Since(start).Seconds())
	}()

	body, err := p.fetch(ctx)
	if err != nil {
		p.metrics.PollRequests.WithLabelValues(p.name, "error").Inc()
		return err
	}

	spots, skipped, err := p.parse(body, p.loc)
	if err != nil {
		p.metrics.PollRequests.WithLabelValues(p.name, "error").Inc()
		return fmt.Errorf("parse %s response: %w", p.name, err)
	}
	p.metrics.PollRequests.WithLabelValues(p.name, "success").Inc()

	for _, err := range skipped {
		p.logger.Warn("skipping invalid record", "error", err)
	}
	p.metrics.RecordsSkipped.WithLabelValues(p.name).Add(float64(len(skipped)))

	for _, spot := range spots {
		p.submit(spot)
	}
	p.logger.Debug("poll complete", "spots", len(spots), "skipped", len(skipped))
	return nil
}

func (p *Poller) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set("User-Agent", "spotlane")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, string(snippet))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", p.name, err)
	}
	return body, nil
}
