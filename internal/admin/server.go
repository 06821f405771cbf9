// Package admin implements the agent's observability HTTP surface:
// health/readiness, Prometheus-style metrics, and a websocket live
// frame dashboard, wired through a plain net/http server, h2c,
// and optionally HTTP/3 + ACME TLS. It carries no SPOP protocol
// semantics; it exists to make a running agent operable.
package admin

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sadewadee/maboo-spoa/internal/dispatch"
	"github.com/sadewadee/maboo-spoa/internal/monitor"
	"github.com/sadewadee/maboo-spoa/internal/record"
	"github.com/sadewadee/maboo-spoa/internal/spoe/agent"
)

// Config is the admin server's builder surface.
type Config struct {
	Address      string // e.g. ":8081"
	MetricsPath  string // default "/metrics"
	StaticRoot   string
	StaticPrefix string
	CacheControl string
	HTTP3        bool
	TLS          TLSConfig
}

// TLSConfig selects between a static cert/key pair and ACME.
type TLSConfig struct {
	Cert         string
	Key          string
	ACME         ACMEConfig
	AutoACME     bool
	HTTPRedirect bool
}

// Server is the admin HTTP(S)/H2/H3 listener.
type Server struct {
	cfg    Config
	logger *slog.Logger

	http        *http.Server
	http3       *HTTP3Server
	redirectSrv *http.Server

	metrics *Metrics
	router  *Router
}

// New builds an admin server. pool backs the health/metrics/stats
// endpoints; engine (nilable) contributes connection counts to
// /health and /stats; hub (nilable) backs the dashboard websocket;
// recorder (nilable) contributes its write/drop counters to /metrics
// and /stats.
func New(cfg Config, pool *dispatch.Pool, engine *agent.Engine, hub *monitor.Hub, recorder *record.Recorder, logger *slog.Logger) *Server {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{cfg: cfg, logger: logger}
	s.metrics = NewMetrics(pool, recorder)
	s.router = NewRouter(RouterConfig{
		Pool:         pool,
		Engine:       engine,
		Recorder:     recorder,
		Hub:          hub,
		StaticRoot:   cfg.StaticRoot,
		StaticPrefix: cfg.StaticPrefix,
		CacheControl: cfg.CacheControl,
	}, logger)

	handler := s.buildMiddleware(s.router)

	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) buildMiddleware(h http.Handler) http.Handler {
	wrapped := s.metrics.Middleware(s.cfg.MetricsPath)(h)
	wrapped = CompressionMiddleware()(wrapped)
	wrapped = CoreMiddleware(s.logger)(wrapped)
	return wrapped
}

// Start begins serving admin HTTP traffic, selecting plaintext+h2c,
// static TLS, or ACME TLS (optionally with HTTP/3) based on Config.
func (s *Server) Start() error {
	s.logger.Info("admin server starting", "address", s.cfg.Address, "http3", s.cfg.HTTP3)

	useTLS := s.cfg.TLS.AutoACME || (s.cfg.TLS.Cert != "" && s.cfg.TLS.Key != "")
	if err := EnableHTTP2(s.http, useTLS); err != nil {
		return fmt.Errorf("admin: enabling http2: %w", err)
	}

	if useTLS {
		return s.startTLS()
	}
	return s.http.ListenAndServe()
}

func (s *Server) startTLS() error {
	var tlsConfig *tls.Config

	if s.cfg.TLS.Cert != "" && s.cfg.TLS.Key != "" {
		if s.cfg.HTTP3 {
			cert, err := tls.LoadX509KeyPair(s.cfg.TLS.Cert, s.cfg.TLS.Key)
			if err != nil {
				return fmt.Errorf("admin: loading TLS key pair: %w", err)
			}
			tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
		}
		s.http3 = NewHTTP3Server(s.cfg.HTTP3, s.cfg.Address, s.http.Handler, tlsConfig, s.logger)
		if s.http3 != nil {
			go func() {
				if err := s.http3.Start(); err != nil {
					s.logger.Error("admin HTTP/3 server error", "error", err)
				}
			}()
		}
		return s.http.ListenAndServeTLS(s.cfg.TLS.Cert, s.cfg.TLS.Key)
	}

	if !s.cfg.TLS.AutoACME {
		return fmt.Errorf("admin: TLS requested but no cert/key and ACME disabled")
	}

	var err error
	tlsConfig, s.redirectSrv, err = SetupACME(s.cfg.TLS.ACME, s.cfg.TLS.HTTPRedirect, s.logger)
	if err != nil {
		return fmt.Errorf("admin: setting up ACME: %w", err)
	}
	s.http.TLSConfig = tlsConfig

	s.http3 = NewHTTP3Server(s.cfg.HTTP3, s.cfg.Address, s.http.Handler, tlsConfig, s.logger)
	if s.http3 != nil {
		go func() {
			if err := s.http3.Start(); err != nil {
				s.logger.Error("admin HTTP/3 server error", "error", err)
			}
		}()
	}

	return s.http.ListenAndServeTLS("", "")
}

// Stop gracefully shuts down the admin HTTP, HTTP/3, and ACME-redirect
// listeners.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("admin server shutting down")
	if s.http3 != nil {
		s.http3.Stop(ctx)
	}
	if s.redirectSrv != nil {
		s.redirectSrv.Shutdown(ctx)
	}
	return s.http.Shutdown(ctx)
}
