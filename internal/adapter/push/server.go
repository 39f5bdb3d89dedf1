package push

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/spotlane/internal/observability"
	"github.com/couchcryptid/spotlane/internal/pipeline"
	"github.com/google/uuid"
)

// maxLineLength bounds a single command; longer lines close the connection.
const maxLineLength = 4096

// Server is a pipeline.Source that accepts spots over TCP. Every connection
// is served by its own goroutine until the peer closes it or Stop is called.
type Server struct {
	addr    string
	loc     *time.Location
	submit  pipeline.SubmitFunc
	logger  *slog.Logger
	metrics *observability.Metrics

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex
	listener  net.Listener
	wg        sync.WaitGroup

	mu       sync.Mutex
	conns    map[string]net.Conn
	stopping bool
}

// NewServer creates a push server bound to addr once started.
func NewServer(addr string, loc *time.Location, submit pipeline.SubmitFunc, logger *slog.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		addr:    addr,
		loc:     loc,
		submit:  submit,
		logger:  logger.With("source", "push"),
		metrics: metrics,
		conns:   make(map[string]net.Conn),
	}
}

// Start binds the listener and begins accepting connections. It is a no-op
// when already listening.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.listener != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info("push server listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Stop closes the listener and every open connection, then waits for all
// connection handlers to return.
func (s *Server) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.listener == nil {
		return
	}
	if err := s.listener.Close(); err != nil {
		s.logger.Warn("close listener", "error", err)
	}
	s.listener = nil

	s.mu.Lock()
	s.stopping = true
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.stopping = false
	s.mu.Unlock()
	s.logger.Info("push server stopped")
}

// Addr returns the bound listener address, or nil when not listening.
func (s *Server) Addr() net.Addr {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Error("accept failed", "error", err)
			}
			return
		}

		id := uuid.NewString()
		s.mu.Lock()
		if s.stopping {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[id] = conn
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serve(id, conn)
	}
}

func (s *Server) serve(id string, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		_ = conn.Close()
		s.metrics.PushConnections.Dec()
	}()

	s.metrics.PushConnections.Inc()
	logger := s.logger.With("conn_id", id, "remote", conn.RemoteAddr().String())
	logger.Debug("connection opened")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), maxLineLength)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		reply := replyOK
		spot, err := ParseCommand(line, s.loc)
		if err != nil {
			reply = replyError
			s.metrics.PushCommands.WithLabelValues("error").Inc()
			logger.Warn("rejecting command", "error", err)
		} else {
			s.metrics.PushCommands.WithLabelValues("ok").Inc()
			s.submit(spot)
		}

		if _, err := io.WriteString(conn, reply); err != nil {
			logger.Debug("write reply failed", "error", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("connection read failed", "error", err)
	}
	logger.Debug("connection closed")
}
