package admin

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

// ACMEConfig configures Let's Encrypt certificate management for the
// admin HTTPS listener.
type ACMEConfig struct {
	Email    string
	Domains  []string
	CacheDir string
	Staging  bool
}

// NewACMEManager creates an autocert manager for cfg.
func NewACMEManager(cfg ACMEConfig, logger *slog.Logger) (*autocert.Manager, error) {
	if cfg.Email == "" {
		return nil, fmt.Errorf("admin: ACME email is required")
	}
	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("admin: ACME domains are required")
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = "/var/lib/spoa-agent/certs"
	}
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return nil, fmt.Errorf("admin: creating cert cache dir: %w", err)
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.Email,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	if cfg.Staging {
		manager.Client = &acme.Client{DirectoryURL: "https://acme-staging-v02.api.letsencrypt.org/directory"}
		logger.Info("admin: using Let's Encrypt staging server")
	}

	return manager, nil
}

// HTTPRedirectServer serves ACME HTTP-01 challenges and redirects
// everything else to HTTPS.
func HTTPRedirectServer(addr string, manager *autocert.Manager, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httpsURL := "https://" + r.Host + r.URL.Path
		if r.URL.RawQuery != "" {
			httpsURL += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
	})

	srv := &http.Server{Addr: addr, Handler: manager.HTTPHandler(mux)}
	go func() {
		logger.Info("starting admin ACME redirect server", "address", addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("admin ACME redirect server error", "error", err)
		}
	}()
	return srv
}

// SetupACME builds a tls.Config backed by ACME and, if httpRedirect is
// set, an HTTP-01 challenge/redirect server on :80.
func SetupACME(cfg ACMEConfig, httpRedirect bool, logger *slog.Logger) (*tls.Config, *http.Server, error) {
	manager, err := NewACMEManager(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("admin: creating ACME manager: %w", err)
	}

	tlsConfig := &tls.Config{
		GetCertificate: manager.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}

	var redirectSrv *http.Server
	if httpRedirect {
		redirectSrv = HTTPRedirectServer(":80", manager, logger)
	}

	return tlsConfig, redirectSrv, nil
}
