package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete spoa-agent configuration.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LogConfig      `yaml:"logging"`
	Record   RecordConfig   `yaml:"record"`
	Handlers HandlersConfig `yaml:"handlers"`
}

// AgentConfig configures the SPOP listener.
type AgentConfig struct {
	Port         int      `yaml:"port"`
	MaxFrameSize uint64   `yaml:"max_frame_size"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
	Pipelining   bool     `yaml:"pipelining"`
}

// DispatchConfig sizes the handler worker pool.
type DispatchConfig struct {
	MinSlots        int      `yaml:"min_slots"`
	MaxSlots        int      `yaml:"max_slots"`
	MaxJobsPerSlot  int      `yaml:"max_jobs_per_slot"`
	AllocateTimeout Duration `yaml:"allocate_timeout"`
}

// AdminConfig configures the observability HTTP surface.
type AdminConfig struct {
	Enabled     bool            `yaml:"enabled"`
	Address     string          `yaml:"address"`
	MetricsPath string          `yaml:"metrics_path"`
	HTTP3       bool            `yaml:"http3"`
	Dashboard   DashboardConfig `yaml:"dashboard"`
	TLS         TLSConfig       `yaml:"tls"`
}

// DashboardConfig controls the websocket live-frame monitor.
type DashboardConfig struct {
	Enabled      bool   `yaml:"enabled"`
	StaticRoot   string `yaml:"static_root"`
	StaticPrefix string `yaml:"static_prefix"`
	CacheControl string `yaml:"cache_control"`
}

// TLSConfig selects between a static certificate and ACME for the
// admin HTTPS listener.
type TLSConfig struct {
	Cert         string     `yaml:"cert"`
	Key          string     `yaml:"key"`
	AutoACME     bool       `yaml:"auto_acme"`
	HTTPRedirect bool       `yaml:"http_redirect"`
	ACME         ACMEConfig `yaml:"acme"`
}

// ACMEConfig configures Let's Encrypt certificate management.
type ACMEConfig struct {
	Email    string   `yaml:"email"`
	Domains  []string `yaml:"domains"`
	CacheDir string   `yaml:"cache_dir"`
	Staging  bool     `yaml:"staging"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RecordConfig controls the msgpack frame recorder.
type RecordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	BufferSize int    `yaml:"buffer_size"`
}

// HandlersConfig controls the message-name -> handler routing table.
type HandlersConfig struct {
	// RoutesFile, if set, is a YAML file binding SPOP message names to
	// handlers.Registry keys. SIGUSR1 reloads the routing table from
	// this file without restarting the listener. Empty means the
	// built-in handlers.DefaultTable is used and never reloaded.
	RoutesFile string `yaml:"routes_file"`
}

// Duration is a time.Duration that supports YAML string unmarshaling.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads config from a YAML file, applying defaults for missing values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Agent.Port <= 0 {
		return fmt.Errorf("agent.port must be > 0, got %d", c.Agent.Port)
	}
	if c.Agent.MaxFrameSize == 0 {
		return fmt.Errorf("agent.max_frame_size must be > 0")
	}

	if c.Dispatch.MinSlots < 1 {
		return fmt.Errorf("dispatch.min_slots must be >= 1, got %d", c.Dispatch.MinSlots)
	}
	if c.Dispatch.MaxSlots < c.Dispatch.MinSlots {
		return fmt.Errorf("dispatch.max_slots (%d) must be >= dispatch.min_slots (%d)", c.Dispatch.MaxSlots, c.Dispatch.MinSlots)
	}
	if c.Dispatch.MaxJobsPerSlot < 0 {
		return fmt.Errorf("dispatch.max_jobs_per_slot must be >= 0, got %d", c.Dispatch.MaxJobsPerSlot)
	}

	if c.Admin.Enabled {
		if c.Admin.Address == "" {
			return fmt.Errorf("admin.address is required when admin is enabled")
		}
		if c.Admin.TLS.AutoACME && c.Admin.TLS.ACME.Email == "" {
			return fmt.Errorf("admin.tls.acme.email is required when admin.tls.auto_acme is set")
		}
		if c.Admin.Dashboard.Enabled && c.Admin.Dashboard.StaticRoot == "" {
			return fmt.Errorf("admin.dashboard.static_root is required when the dashboard is enabled")
		}
	}

	if c.Record.Enabled && c.Record.Path == "" {
		return fmt.Errorf("record.path is required when record is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}

	return nil
}
