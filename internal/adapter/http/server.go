package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/spotlane/internal/domain"
	"github.com/couchcryptid/spotlane/internal/layout"
	"github.com/couchcryptid/spotlane/internal/pipeline"
	"github.com/couchcryptid/spotlane/internal/render"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatcher is the control surface the API drives.
type Dispatcher interface {
	sharedobs.ReadinessChecker
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Spots() []domain.Spot
	Clear()
	Sources() []pipeline.SourceInfo
	SetEnabled(name string, enabled bool) error
	Lifetimes() (display, maxLifetime time.Duration)
	SetLifetimes(display, maxLifetime time.Duration) error
	Render(w layout.Window) render.Frame
}

// Server exposes health, metrics, and the spot control API.
type Server struct {
	httpServer *http.Server
	dispatcher Dispatcher
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the health, metrics, and /api routes.
func NewServer(addr string, d Dispatcher, clock clockwork.Clock, logger *slog.Logger) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dispatcher: d,
		clock:      clock,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(d))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/spots", s.handleListSpots)
	mux.HandleFunc("DELETE /api/spots", s.handleClearSpots)
	mux.HandleFunc("GET /api/sources", s.handleListSources)
	mux.HandleFunc("PUT /api/sources/{name}", s.handleUpdateSource)
	mux.HandleFunc("GET /api/lifetimes", s.handleGetLifetimes)
	mux.HandleFunc("PUT /api/lifetimes", s.handleSetLifetimes)
	mux.HandleFunc("POST /api/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/layout", s.handleLayout)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// spotView is a spot as listed by the API, with its age for tooltips.
type spotView struct {
	domain.Spot
	Age string `json:"age"`
}

type statusResponse struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type layoutResponse struct {
	render.Frame
	Hit *spotView `json:"hit,omitempty"`
}

func (s *Server) handleListSpots(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now()
	spots := s.dispatcher.Spots()
	out := make([]spotView, len(spots))
	for i, sp := range spots {
		out[i] = s.view(sp, now)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClearSpots(w http.ResponseWriter, _ *http.Request) {
	s.dispatcher.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Sources())
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"enabled\": true|false}")
		return
	}

	name := r.PathValue("name")
	err := s.dispatcher.SetEnabled(name, *body.Enabled)
	switch {
	case errors.Is(err, pipeline.ErrUnknownSource):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("update source failed", "source", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, info := range s.dispatcher.Sources() {
		if info.Name == name {
			writeJSON(w, http.StatusOK, info)
			return
		}
	}
	writeError(w, http.StatusNotFound, "source not found")
}

// lifetimesBody carries durations in time.ParseDuration form, e.g. "30m".
type lifetimesBody struct {
	Display string `json:"display"`
	Max     string `json:"max"`
}

func (s *Server) handleGetLifetimes(w http.ResponseWriter, _ *http.Request) {
	display, maxLifetime := s.dispatcher.Lifetimes()
	writeJSON(w, http.StatusOK, lifetimesBody{Display: display.String(), Max: maxLifetime.String()})
}

func (s *Server) handleSetLifetimes(w http.ResponseWriter, r *http.Request) {
	var body lifetimesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "body must be {\"display\": duration, \"max\": duration}")
		return
	}
	display, errDisplay := time.ParseDuration(body.Display)
	maxLifetime, errMax := time.ParseDuration(body.Max)
	if err := errors.Join(errDisplay, errMax); err != nil {
		writeError(w, http.StatusBadRequest, "display and max must be durations such as \"30m\"")
		return
	}

	if err := s.dispatcher.SetLifetimes(display, maxLifetime); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("spot lifetimes changed", "display", display, "max", maxLifetime)
	s.handleGetLifetimes(w, r)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.Start(r.Context()); err != nil {
		s.logger.Error("start sources failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Running: s.dispatcher.Running(), Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Running: s.dispatcher.Running()})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.dispatcher.Stop()
	writeJSON(w, http.StatusOK, statusResponse{Running: s.dispatcher.Running()})
}

// handleLayout renders the current spots into a window described by the
// query: low/high in Hz, width/height in pixels, and an optional x/y point
// to hit-test against the result.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	low, errLow := parseFinite(q.Get("low"))
	high, errHigh := parseFinite(q.Get("high"))
	width, errWidth := parseFinite(q.Get("width"))
	height, errHeight := parseFinite(q.Get("height"))
	if err := errors.Join(errLow, errHigh, errWidth, errHeight); err != nil {
		writeError(w, http.StatusBadRequest, "low, high, width and height must be finite numbers")
		return
	}
	if low >= high || width <= 0 || height <= 0 {
		writeError(w, http.StatusBadRequest, "need low < high and a positive width and height")
		return
	}
	if ratio := width / (high - low); math.IsInf(ratio, 0) {
		writeError(w, http.StatusBadRequest, "frequency span too narrow for the width")
		return
	}

	var (
		hitPoint layout.Point
		hitTest  = q.Has("x") && q.Has("y")
	)
	if hitTest {
		x, errX := parseFinite(q.Get("x"))
		y, errY := parseFinite(q.Get("y"))
		if errX != nil || errY != nil {
			writeError(w, http.StatusBadRequest, "x and y must be finite numbers")
			return
		}
		hitPoint = layout.Point{X: x, Y: y}
	}

	win := layout.NewWindow(low, high, layout.Point{}, layout.Point{X: width, Y: height})
	resp := layoutResponse{Frame: s.dispatcher.Render(win)}
	if hitTest {
		if p, ok := resp.Layout.HitTest(hitPoint); ok {
			v := s.view(p.Spot, s.clock.Now())
			resp.Hit = &v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) view(sp domain.Spot, now time.Time) spotView {
	return spotView{Spot: sp, Age: render.FormatAge(sp.Age(now))}
}

var errNotFinite = errors.New("not a finite number")

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
