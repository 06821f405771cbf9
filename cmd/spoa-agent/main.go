package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sadewadee/maboo-spoa/internal/admin"
	"github.com/sadewadee/maboo-spoa/internal/config"
	"github.com/sadewadee/maboo-spoa/internal/dispatch"
	"github.com/sadewadee/maboo-spoa/internal/handlers"
	"github.com/sadewadee/maboo-spoa/internal/monitor"
	"github.com/sadewadee/maboo-spoa/internal/record"
	"github.com/sadewadee/maboo-spoa/internal/spoe/agent"
)

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve", "start":
		serve()
	case "version":
		fmt.Printf("spoa-agent v%s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serve() {
	cfgPath := "spoa-agent.yaml"
	if len(os.Args) > 2 {
		cfgPath = os.Args[2]
	}

	logger, startupCloser := setupLogger("info", "json", "stdout")
	if startupCloser != nil {
		defer startupCloser.Close()
	}
	logger.Info("spoa-agent starting", "version", version)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if startupCloser != nil {
		_ = startupCloser.Close()
		startupCloser = nil
	}
	logger, logCloser := setupLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if logCloser != nil {
		defer logCloser.Close()
	}

	router := handlers.NewRouter(logger)
	router.Replace(loadRoutingTable(cfg.Handlers.RoutesFile, logger))

	pool := dispatch.New(dispatch.Config{
		MinSlots:        cfg.Dispatch.MinSlots,
		MaxSlots:        cfg.Dispatch.MaxSlots,
		MaxJobsPerSlot:  cfg.Dispatch.MaxJobsPerSlot,
		AllocateTimeout: cfg.Dispatch.AllocateTimeout.Duration(),
	}, logger)
	if err := pool.Start(); err != nil {
		logger.Error("failed to start dispatch pool", "error", err)
		os.Exit(1)
	}

	eng, err := agent.New(agent.Config{
		Port:         cfg.Agent.Port,
		MaxFrameSize: cfg.Agent.MaxFrameSize,
		IdleTimeout:  cfg.Agent.IdleTimeout.Duration(),
		Pipelining:   cfg.Agent.Pipelining,
	}, router, pool, logger)
	if err != nil {
		logger.Error("failed to build agent engine", "error", err)
		os.Exit(1)
	}

	var recorder *record.Recorder
	if cfg.Record.Enabled {
		f, err := os.OpenFile(cfg.Record.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open record sink", "path", cfg.Record.Path, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		recorder = record.New(f, cfg.Record.BufferSize, logger)
		recorder.Start()
		defer recorder.Stop()
		eng.Attach(recorder)
	}

	var hub *monitor.Hub
	if cfg.Admin.Dashboard.Enabled {
		hub = monitor.New(logger, func() int64 { return time.Now().Unix() })
		eng.Attach(hub)
	}

	var adminSrv *admin.Server
	if cfg.Admin.Enabled {
		adminSrv = admin.New(admin.Config{
			Address:      cfg.Admin.Address,
			MetricsPath:  cfg.Admin.MetricsPath,
			StaticRoot:   cfg.Admin.Dashboard.StaticRoot,
			StaticPrefix: cfg.Admin.Dashboard.StaticPrefix,
			CacheControl: cfg.Admin.Dashboard.CacheControl,
			HTTP3:        cfg.Admin.HTTP3,
			TLS: admin.TLSConfig{
				Cert:         cfg.Admin.TLS.Cert,
				Key:          cfg.Admin.TLS.Key,
				AutoACME:     cfg.Admin.TLS.AutoACME,
				HTTPRedirect: cfg.Admin.TLS.HTTPRedirect,
				ACME: admin.ACMEConfig{
					Email:    cfg.Admin.TLS.ACME.Email,
					Domains:  cfg.Admin.TLS.ACME.Domains,
					CacheDir: cfg.Admin.TLS.ACME.CacheDir,
					Staging:  cfg.Admin.TLS.ACME.Staging,
				},
			},
		}, pool, eng, hub, recorder, logger)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGUSR1)
	go func() {
		for range reload {
			logger.Info("SIGUSR1 received, reloading handler routing table")
			router.Replace(loadRoutingTable(cfg.Handlers.RoutesFile, logger))
		}
	}()

	go func() {
		if err := eng.Start(); err != nil {
			logger.Error("agent engine error", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	if adminSrv != nil {
		go func() {
			if err := adminSrv.Start(); err != nil {
				logger.Error("admin server error", "error", err)
			}
		}()
	}

	logger.Info("spoa-agent ready", "port", cfg.Agent.Port, "admin", cfg.Admin.Enabled)

	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := eng.Stop(ctx); err != nil {
		logger.Error("agent engine shutdown error", "error", err)
	}
	if adminSrv != nil {
		if err := adminSrv.Stop(ctx); err != nil {
			logger.Error("admin server shutdown error", "error", err)
		}
	}
	pool.Stop()

	logger.Info("spoa-agent stopped")
}

// loadRoutingTable resolves the handler routing table from routesFile
// if one is configured, falling back to the built-in example handlers
// on a missing path, a parse error, or no configured file at all.
func loadRoutingTable(routesFile string, logger *slog.Logger) map[string]handlers.HandlerFunc {
	if routesFile == "" {
		return handlers.DefaultTable(logger)
	}

	table, err := handlers.LoadTable(routesFile, handlers.Registry(logger))
	if err != nil {
		logger.Error("failed to load handler routing file, keeping built-in table", "path", routesFile, "error", err)
		return handlers.DefaultTable(logger)
	}
	logger.Info("loaded handler routing table", "path", routesFile, "routes", len(table))
	return table
}

func setupLogger(level, format, output string) (*slog.Logger, io.Closer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	writer, closer := resolveLogOutput(output)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(writer, opts)
	} else {
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler), closer
}

func resolveLogOutput(output string) (io.Writer, io.Closer) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout, nil
		}
		return f, f
	}
}

func printUsage() {
	fmt.Println(`spoa-agent - SPOP request-processing agent

Usage:
  spoa-agent <command> [options]

Commands:
  serve [config]   Start the agent (default config: spoa-agent.yaml)
  start [config]   Alias for serve
  version          Show version
  help             Show this help

Signals:
  SIGUSR1          Reload the handler routing table
  SIGINT/SIGTERM   Graceful shutdown

Examples:
  spoa-agent serve
  spoa-agent serve /etc/spoa-agent/spoa-agent.yaml
  spoa-agent version
  kill -USR1 $(pidof spoa-agent)   # Reload handlers`)
}
