package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sadewadee/maboo-spoa/internal/dispatch"
)

// defaults for the builder surface.
const (
	DefaultMaxFrameSize = 16384
	DefaultIdleTimeout  = 30 * time.Second
	DefaultPipelining   = true
)

// Config is the engine's builder surface: port, handler, and the
// negotiation/timeout knobs.
type Config struct {
	Port int
	// MaxFrameSize bounds accepted and advertised frame sizes. Zero
	// falls back to DefaultMaxFrameSize.
	MaxFrameSize uint64
	// IdleTimeout is the per-read deadline. Zero falls back to
	// DefaultIdleTimeout; a negative value disables the deadline.
	IdleTimeout time.Duration
	// Pipelining controls whether the capability is advertised during
	// negotiation. Defaults to true via NewConfig.
	Pipelining bool
}

// NewConfig fills in the default builder surface for port.
func NewConfig(port int) Config {
	return Config{
		Port:         port,
		MaxFrameSize: DefaultMaxFrameSize,
		IdleTimeout:  DefaultIdleTimeout,
		Pipelining:   DefaultPipelining,
	}
}

// Engine binds a listening socket and hands each accepted connection
// to the state machine, bounding concurrent handler dispatch through a
// dispatch.Pool.
type Engine struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger
	pool    *dispatch.Pool

	observers []observer

	listener  net.Listener
	running   atomic.Bool
	connCount atomic.Int64

	wg sync.WaitGroup
}

// Stats is a point-in-time snapshot of engine-level state, reported
// alongside dispatch.Pool.Stats() and record.Recorder.Stats() on the
// admin surface's /stats endpoint.
type Stats struct {
	ActiveConnections int64  `json:"active_connections"`
	Port              int    `json:"port"`
	MaxFrameSize      uint64 `json:"max_frame_size"`
}

// Stats returns the current connection count and listener configuration.
func (e *Engine) Stats() Stats {
	return Stats{
		ActiveConnections: e.connCount.Load(),
		Port:              e.cfg.Port,
		MaxFrameSize:      e.cfg.MaxFrameSize,
	}
}

// New builds an Engine. handler must be non-nil; pool must already be
// started by the caller (it is shared with any other ambient
// consumer, e.g. an admin stats endpoint).
func New(cfg Config, handler Handler, pool *dispatch.Pool, logger *slog.Logger) (*Engine, error) {
	if handler == nil {
		return nil, &ConfigurationError{Reason: "handler is required"}
	}
	if pool == nil {
		return nil, &ConfigurationError{Reason: "dispatch pool is required"}
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		pool:    pool,
	}, nil
}

// Attach registers a lifecycle observer (recorder, live monitor) that
// receives every frame in and out of every connection. Must be called
// before Start.
func (e *Engine) Attach(obs observer) {
	e.observers = append(e.observers, obs)
}

// Start binds the configured port and accepts connections until Stop
// is called or the listener fails. It blocks the calling goroutine.
func (e *Engine) Start() error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	addr := fmt.Sprintf(":%d", e.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		e.running.Store(false)
		return &BindError{Addr: addr, Err: err}
	}
	e.listener = ln
	e.logger.Info("spop engine listening", "addr", addr, "max_frame_size", e.cfg.MaxFrameSize, "idle_timeout", e.cfg.IdleTimeout)

	for {
		nc, err := ln.Accept()
		if err != nil {
			if !e.running.Load() {
				e.logger.Info("listener closed, accept loop stopping")
				return nil
			}
			e.logger.Error("accept error", "err", err)
			return fmt.Errorf("agent: accept: %w", err)
		}

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.serve(nc)
		}()
	}
}

func (e *Engine) serve(nc net.Conn) {
	e.connCount.Add(1)
	defer e.connCount.Add(-1)

	conn := newConn(nc, e.handler, e.pool.Exec, e.logger, e.cfg.MaxFrameSize, e.cfg.IdleTimeout, e.cfg.Pipelining, e.observers)
	conn.Run(context.Background(), func() bool { return !e.running.Load() })
}

// Stop flips the running flag and closes the listener; in-flight
// connections observe the flag at their next frame boundary and close
// on their own. ctx bounds how long Stop waits for that drain.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	e.logger.Info("stopping spop engine")
	if e.listener != nil {
		e.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("agent: stop: %w", ctx.Err())
	}
}
