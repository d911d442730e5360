package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Store.Backend != "pebble" {
		t.Fatalf("default backend: %s", cfg.Store.Backend)
	}
	if !cfg.WAL.Enabled {
		t.Fatalf("wal should be enabled by default")
	}
	if !cfg.Runtime.RecoverChannels {
		t.Fatalf("recover should default to true")
	}
	if cfg.Runtime.TasksThreshold != 1024 {
		t.Fatalf("tasks threshold default")
	}
	if cfg.Runtime.ShutdownWait().Milliseconds() != 2000 {
		t.Fatalf("shutdown wait default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "quiu.json")
	data := []byte(`{"data_dir":"/srv/quiu","store":{"backend":"sqlite"},"wal":{"enabled":false}}`)
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/srv/quiu" {
		t.Fatalf("data_dir: %s", cfg.DataDir)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Fatalf("backend: %s", cfg.Store.Backend)
	}
	if cfg.WAL.Enabled {
		t.Fatalf("expected wal disabled")
	}
	// untouched sections keep defaults
	if cfg.Store.Fsync != "always" {
		t.Fatalf("fsync default lost: %s", cfg.Store.Fsync)
	}
}

func TestLoadYAMLExpandsEnv(t *testing.T) {
	t.Setenv("QUIU_TEST_ROOT", "/tmp/qroot")
	dir := t.TempDir()
	file := filepath.Join(dir, "quiu.yaml")
	data := []byte(`
data_dir: $QUIU_TEST_ROOT/data
server:
  addr: ":9000"
runtime:
  shutdown_wait_ms: 500
  builtins:
    - 7d9f1c0e-8a4b-4b51-9d0a-0f2d8e6c1a11
log:
  level: debug
  format: json
`)
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/tmp/qroot/data" {
		t.Fatalf("expected expanded data dir, got %s", cfg.DataDir)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("addr: %s", cfg.Server.Addr)
	}
	if cfg.Runtime.ShutdownWaitMs != 500 || len(cfg.Runtime.Builtins) != 1 {
		t.Fatalf("runtime section: %+v", cfg.Runtime)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log section: %+v", cfg.Log)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("QUIU_WAL_ENABLED", "false")
	t.Setenv("QUIU_HTTP_ADDR", "0.0.0.0:1")
	t.Setenv("QUIU_TASKS_THRESHOLD", "16")
	t.Setenv("QUIU_BUILTINS", " a , ,b")
	FromEnv(&cfg)
	if cfg.WAL.Enabled {
		t.Fatalf("env override bool")
	}
	if cfg.Server.Addr != "0.0.0.0:1" {
		t.Fatalf("env override addr")
	}
	if cfg.Runtime.TasksThreshold != 16 {
		t.Fatalf("env override threshold")
	}
	if len(cfg.Runtime.Builtins) != 2 || cfg.Runtime.Builtins[1] != "b" {
		t.Fatalf("env builtins: %v", cfg.Runtime.Builtins)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Store.Backend = "mysql" }},
		{"fsync", func(c *Config) { c.Store.Fsync = "sometimes" }},
		{"threshold", func(c *Config) { c.Runtime.TasksThreshold = 0 }},
		{"commit timeout", func(c *Config) { c.WAL.CommitTimeoutMs = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
