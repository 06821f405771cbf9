package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Agent.Port != 12345 {
		t.Errorf("expected default port 12345, got %d", cfg.Agent.Port)
	}
	if cfg.Dispatch.MinSlots != 4 {
		t.Errorf("expected min_slots 4, got %d", cfg.Dispatch.MinSlots)
	}
	if cfg.Dispatch.MaxSlots != 32 {
		t.Errorf("expected max_slots 32, got %d", cfg.Dispatch.MaxSlots)
	}
	if cfg.Dispatch.AllocateTimeout.Duration() != 5*time.Second {
		t.Errorf("expected allocate_timeout 5s, got %s", cfg.Dispatch.AllocateTimeout.Duration())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	yamlSrc := `
agent:
  port: 9090
  max_frame_size: 32768
  idle_timeout: "45s"
  pipelining: true
dispatch:
  min_slots: 2
  max_slots: 16
  max_jobs_per_slot: 5000
  allocate_timeout: "2s"
logging:
  level: "debug"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "spoa-agent.yaml")
	if err := os.WriteFile(path, []byte(yamlSrc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Agent.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Agent.Port)
	}
	if cfg.Agent.MaxFrameSize != 32768 {
		t.Errorf("expected max_frame_size 32768, got %d", cfg.Agent.MaxFrameSize)
	}
	if cfg.Agent.IdleTimeout.Duration() != 45*time.Second {
		t.Errorf("expected idle_timeout 45s, got %s", cfg.Agent.IdleTimeout.Duration())
	}
	if cfg.Dispatch.MinSlots != 2 {
		t.Errorf("expected min_slots 2, got %d", cfg.Dispatch.MinSlots)
	}
	if cfg.Dispatch.MaxSlots != 16 {
		t.Errorf("expected max_slots 16, got %d", cfg.Dispatch.MaxSlots)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Fields not present in the YAML fall through from Default().
	if cfg.Admin.Address != "0.0.0.0:8081" {
		t.Errorf("expected default admin address to survive partial load, got %s", cfg.Admin.Address)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/spoa-agent.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestValidateMinSlotsZero(t *testing.T) {
	cfg := Default()
	cfg.Dispatch.MinSlots = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for min_slots=0")
	}
}

func TestValidateMaxSlotsLessThanMin(t *testing.T) {
	cfg := Default()
	cfg.Dispatch.MinSlots = 8
	cfg.Dispatch.MaxSlots = 4
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for max_slots < min_slots")
	}
}

func TestValidateAgentPortRequired(t *testing.T) {
	cfg := Default()
	cfg.Agent.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing agent.port")
	}
}

func TestValidateAdminAddressRequiredWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Admin.Enabled = true
	cfg.Admin.Address = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for enabled admin without address")
	}
}

func TestValidateACMEEmailRequiredWhenAutoACME(t *testing.T) {
	cfg := Default()
	cfg.Admin.Enabled = true
	cfg.Admin.TLS.AutoACME = true
	cfg.Admin.TLS.ACME.Email = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for auto_acme without an ACME email")
	}
}

func TestValidateRecordPathRequiredWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Record.Enabled = true
	cfg.Record.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for enabled record without a path")
	}
}
