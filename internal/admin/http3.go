package admin

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/quic-go/quic-go/http3"
)

// HTTP3Server wraps the HTTP/3 (QUIC) admin listener.
type HTTP3Server struct {
	server *http3.Server
	logger *slog.Logger
}

// NewHTTP3Server creates an HTTP/3 admin server, or nil when disabled
// or when no TLS config is available (HTTP/3 requires TLS).
func NewHTTP3Server(enabled bool, addr string, handler http.Handler, tlsConfig *tls.Config, logger *slog.Logger) *HTTP3Server {
	if !enabled {
		return nil
	}
	if tlsConfig == nil {
		logger.Warn("admin HTTP/3 requires TLS, but no TLS config provided")
		return nil
	}
	return &HTTP3Server{
		server: &http3.Server{Addr: addr, Handler: handler, TLSConfig: tlsConfig},
		logger: logger,
	}
}

// Start begins listening for HTTP/3 connections. A nil receiver is a no-op.
func (s *HTTP3Server) Start() error {
	if s == nil {
		return nil
	}
	s.logger.Info("starting admin HTTP/3 server", "address", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop shuts down the HTTP/3 server. A nil receiver is a no-op.
func (s *HTTP3Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.server.Close()
}

// AltSvcHeader returns the Alt-Svc header value advertising HTTP/3 on port.
func AltSvcHeader(port int) string {
	return fmt.Sprintf(`h3=":%d"; ma=86400`, port)
}
