package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/spotlane/internal/domain"
	"github.com/couchcryptid/spotlane/internal/layout"
	"github.com/couchcryptid/spotlane/internal/observability"
	"github.com/couchcryptid/spotlane/internal/render"
	"github.com/couchcryptid/spotlane/internal/store"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrUnknownSource is returned for a source name that was never registered.
	ErrUnknownSource = errors.New("unknown source")
	// ErrDuplicateSource is returned when a name is registered twice.
	ErrDuplicateSource = errors.New("source already registered")
	// ErrInvalidLifetime is returned when the display lifetime exceeds the max lifetime.
	ErrInvalidLifetime = errors.New("invalid spot lifetime")
)

// SourceInfo describes a registered source.
type SourceInfo struct {
	Name    string       `json:"name"`
	Label   string       `json:"label"`
	Color   render.Color `json:"color"`
	Enabled bool         `json:"enabled"`
	Running bool         `json:"running"`
}

type entry struct {
	SourceInfo
	source Source
}

// Options configures a Dispatcher.
type Options struct {
	SpotLifetime time.Duration
	MaxLanes     int
	Measurer     layout.Measurer
	// Publisher is optional; when set, every accepted spot is forwarded to it.
	Publisher Publisher
	Clock     clockwork.Clock
}

// Dispatcher is the single entry point between sources, the spot store and
// the layout engine.
type Dispatcher struct {
	store     *store.Store
	clock     clockwork.Clock
	measurer  layout.Measurer
	maxLanes  int
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu           sync.Mutex
	entries      []*entry
	running      bool
	spotLifetime time.Duration

	// runCtx is read by submitting workers, which may be joined while mu is
	// held, so it has its own lock.
	ctxMu  sync.Mutex
	runCtx context.Context
}

// New creates a Dispatcher over st.
func New(st *store.Store, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	measurer := opts.Measurer
	if measurer == nil {
		measurer = layout.NewCachedMeasurer(layout.NewFaceMeasurer(nil), 1024)
	}
	return &Dispatcher{
		store:        st,
		clock:        clock,
		measurer:     measurer,
		maxLanes:     opts.MaxLanes,
		publisher:    opts.Publisher,
		logger:       logger,
		metrics:      metrics,
		spotLifetime: opts.SpotLifetime,
		runCtx:       context.Background(),
	}
}

// Register adds a source. The factory is called once with a submit function
// that stamps spots with name. When the dispatcher is already running and
// the source is enabled, it is started immediately.
func (d *Dispatcher) Register(name, label string, color render.Color, enabled bool, factory Factory) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.find(name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, name)
	}
	e := &entry{
		SourceInfo: SourceInfo{Name: name, Label: label, Color: color, Enabled: enabled},
	}
	e.source = factory(d.submitter(name))
	d.entries = append(d.entries, e)
	d.metrics.SourceRunning.WithLabelValues(name).Set(0)

	if d.running && enabled {
		return d.startLocked(e)
	}
	return nil
}

// Start starts every enabled source. Calling Start again restarts any source
// whose worker ended on its own. A source that fails to start is logged and
// left stopped; the others still start.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		d.ctxMu.Lock()
		d.runCtx = context.WithoutCancel(ctx)
		d.ctxMu.Unlock()
		d.running = true
		d.metrics.DispatcherRunning.Set(1)
		d.logger.Info("dispatcher started", "sources", len(d.entries))
	}

	var errs []error
	for _, e := range d.entries {
		if !e.Enabled {
			continue
		}
		if err := d.startLocked(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every running source and waits for each to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	for _, e := range d.entries {
		d.stopLocked(e)
	}
	d.running = false
	d.metrics.DispatcherRunning.Set(0)
	d.logger.Info("dispatcher stopped")
}

// Running reports whether the dispatcher has been started.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// CheckReadiness returns nil once the dispatcher is running.
func (d *Dispatcher) CheckReadiness(_ context.Context) error {
	if !d.Running() {
		return errors.New("dispatcher is not running")
	}
	return nil
}

// SetEnabled flips a source's enable flag, starting or stopping it when the
// dispatcher is running.
func (d *Dispatcher) SetEnabled(name string, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.find(name)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	e.Enabled = enabled
	if !d.running {
		return nil
	}
	if enabled {
		return d.startLocked(e)
	}
	d.stopLocked(e)
	return nil
}

// Sources lists registered sources in registration order. A source whose
// worker has ended on its own is reported as not running.
func (d *Dispatcher) Sources() []SourceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]SourceInfo, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.SourceInfo
		if l, ok := e.source.(Liveness); ok && e.Running {
			out[i].Running = l.Running()
		}
	}
	return out
}

// SetLifetimes changes the display and max lifetimes at runtime.
func (d *Dispatcher) SetLifetimes(display, maxLifetime time.Duration) error {
	if display <= 0 || maxLifetime <= 0 || display > maxLifetime {
		return fmt.Errorf("%w: display %s, max %s", ErrInvalidLifetime, display, maxLifetime)
	}
	d.mu.Lock()
	d.spotLifetime = display
	d.mu.Unlock()
	d.store.SetMaxLifetime(maxLifetime)
	return nil
}

// Lifetimes returns the display and max lifetimes in effect.
func (d *Dispatcher) Lifetimes() (display, maxLifetime time.Duration) {
	return d.displayLifetime(), d.store.MaxLifetime()
}

// Spots returns the spots currently on display, in frequency order.
func (d *Dispatcher) Spots() []domain.Spot {
	now := d.clock.Now()
	d.prune(now)
	return d.store.Snapshot(now, d.displayLifetime())
}

// Clear drops every stored spot.
func (d *Dispatcher) Clear() {
	d.store.Clear()
	d.metrics.SpotsStored.Set(0)
	d.logger.Info("spots cleared")
}

// Render runs one layout pass over the current display snapshot and returns
// the draw commands for it.
func (d *Dispatcher) Render(w layout.Window) render.Frame {
	spots := d.Spots()
	l := layout.Compute(spots, w, d.measurer, layout.Options{MaxLanes: d.maxLanes})

	d.metrics.LayoutLanes.Observe(float64(l.Lanes))
	d.metrics.LabelsOmitted.Add(float64(l.Omitted))

	return render.Frame{
		Layout:   l,
		Commands: render.Commands(l, d.palette()),
	}
}

// Submit stores a spot on behalf of source and forwards it downstream when
// accepted.
func (d *Dispatcher) Submit(source string, spot domain.Spot) store.Outcome {
	spot.SourceID = source
	spot.SpotTime = spot.SpotTime.UTC()

	outcome := d.store.Upsert(spot)
	d.metrics.SpotsSubmitted.WithLabelValues(source, outcome.String()).Inc()
	d.metrics.SpotsStored.Set(float64(d.store.Len()))

	if outcome.Accepted() && d.publisher != nil {
		if err := d.publisher.Publish(d.runContext(), spot); err != nil {
			d.metrics.PublishErrors.Inc()
			d.logger.Warn("publish spot failed", "source", source, "label", spot.Label, "error", err)
		}
	}
	return outcome
}

func (d *Dispatcher) submitter(name string) SubmitFunc {
	return func(spot domain.Spot) {
		d.Submit(name, spot)
	}
}

func (d *Dispatcher) prune(now time.Time) {
	if n := d.store.Prune(now); n > 0 {
		d.metrics.SpotsEvicted.Add(float64(n))
		d.logger.Debug("spots evicted", "count", n)
	}
	d.metrics.SpotsStored.Set(float64(d.store.Len()))
}

func (d *Dispatcher) runContext() context.Context {
	d.ctxMu.Lock()
	defer d.ctxMu.Unlock()
	return d.runCtx
}

func (d *Dispatcher) displayLifetime() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.spotLifetime
}

func (d *Dispatcher) palette() render.Palette {
	d.mu.Lock()
	colors := make(map[string]render.Color, len(d.entries))
	for _, e := range d.entries {
		colors[e.Name] = e.Color
	}
	d.mu.Unlock()

	return func(sourceID string) render.Color {
		if c, ok := colors[sourceID]; ok {
			return c
		}
		return render.DefaultSpotColor
	}
}

func (d *Dispatcher) find(name string) *entry {
	for _, e := range d.entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (d *Dispatcher) startLocked(e *entry) error {
	if err := e.source.Start(d.runContext()); err != nil {
		d.logger.Error("source start failed", "source", e.Name, "error", err)
		return fmt.Errorf("start %s: %w", e.Name, err)
	}
	if !e.Running {
		d.logger.Info("source started", "source", e.Name)
	}
	e.Running = true
	d.metrics.SourceRunning.WithLabelValues(e.Name).Set(1)
	return nil
}

func (d *Dispatcher) stopLocked(e *entry) {
	if !e.Running {
		return
	}
	e.source.Stop()
	e.Running = false
	d.metrics.SourceRunning.WithLabelValues(e.Name).Set(0)
	d.logger.Info("source stopped", "source", e.Name)
}
