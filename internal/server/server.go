// Package server exposes the arbiter-facing HTTP callbacks.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/dominionbot/internal/credentials"
	"github.com/lox/dominionbot/internal/decisionlog"
	"github.com/lox/dominionbot/internal/protocol"
	"github.com/lox/dominionbot/internal/session"
	"github.com/lox/dominionbot/internal/strategy"
)

// Server answers arbiter callbacks for any number of concurrent games.
type Server struct {
	logger   *log.Logger
	store    *session.Store
	strategy strategy.Strategy
	creds    credentials.Provider
	sink     decisionlog.Sink
	name     string
	clock    quartz.Clock

	mu         sync.Mutex
	httpServer *http.Server
	stopped    bool
}

// Option configures a Server.
type Option func(*Server)

// WithCredentials assigns a credential to every game on /start_game.
func WithCredentials(p credentials.Provider) Option {
	return func(s *Server) { s.creds = p }
}

// WithDecisionSink records every /play decision.
func WithDecisionSink(sink decisionlog.Sink) Option {
	return func(s *Server) { s.sink = sink }
}

// WithName sets the display name returned by /name.
func WithName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
	}
}

// WithClock overrides the clock used for decision timestamps.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// NewServer creates a server deciding with strat and keeping state in store.
func NewServer(logger *log.Logger, store *session.Store, strat strategy.Strategy, opts ...Option) *Server {
	s := &Server{
		logger:   logger.WithPrefix("server"),
		store:    store,
		strategy: strat,
		sink:     decisionlog.Nop{},
		name:     protocol.DefaultBotName,
		clock:    quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the configured display name.
func (s *Server) Name() string { return s.name }

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.recoverer(s.routes())
}

// Start listens on addr and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ln.Close()
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Listening for arbiter callbacks", "addr", ln.Addr().String(), "strategy", s.strategy.Name(), "name", s.name)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
