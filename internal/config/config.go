package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	logpkg "github.com/luismedel/quiu/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir string        `json:"data_dir" yaml:"data_dir"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	WAL     WALConfig     `json:"wal" yaml:"wal"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	Log     logpkg.Config `json:"log" yaml:"log"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// StoreConfig selects the per-channel log store backend.
type StoreConfig struct {
	Backend         string `json:"backend" yaml:"backend"` // pebble | sqlite
	Fsync           string `json:"fsync" yaml:"fsync"`     // always | interval | never
	FsyncIntervalMs int    `json:"fsync_interval_ms" yaml:"fsync_interval_ms"`
}

// WALConfig configures the shared write-ahead queue.
type WALConfig struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	CommitTimeoutMs int  `json:"commit_timeout_ms" yaml:"commit_timeout_ms"`
}

// RuntimeConfig configures the channel registry.
type RuntimeConfig struct {
	RecoverChannels bool     `json:"recover_channels" yaml:"recover_channels"`
	TasksThreshold  int      `json:"tasks_threshold" yaml:"tasks_threshold"`
	ShutdownWaitMs  int      `json:"shutdown_wait_ms" yaml:"shutdown_wait_ms"`
	Builtins        []string `json:"builtins" yaml:"builtins"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: "127.0.0.1:27812"},
		Store: StoreConfig{
			Backend:         "pebble",
			Fsync:           "always",
			FsyncIntervalMs: 5,
		},
		WAL: WALConfig{
			Enabled:         true,
			CommitTimeoutMs: 30000,
		},
		Runtime: RuntimeConfig{
			RecoverChannels: true,
			TasksThreshold:  1024,
			ShutdownWaitMs:  2000,
		},
		Log: logpkg.Config{Level: "info", Format: "text"},
	}
}

// CommitTimeout is the bound on a waiting append.
func (c WALConfig) CommitTimeout() time.Duration {
	return time.Duration(c.CommitTimeoutMs) * time.Millisecond
}

// ShutdownWait bounds how long Shutdown waits for tracked tasks.
func (c RuntimeConfig) ShutdownWait() time.Duration {
	return time.Duration(c.ShutdownWaitMs) * time.Millisecond
}

func (c StoreConfig) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.expand()
	return cfg, nil
}

// expand resolves $VAR and ${VAR} references in path-like values.
func (c *Config) expand() {
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.Log.File = os.ExpandEnv(c.Log.File)
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "pebble", "sqlite":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	switch c.Store.Fsync {
	case "always", "interval", "never":
	default:
		return fmt.Errorf("config: unknown fsync mode %q", c.Store.Fsync)
	}
	if c.Runtime.TasksThreshold <= 0 {
		return fmt.Errorf("config: tasks_threshold must be positive")
	}
	if c.WAL.CommitTimeoutMs <= 0 {
		return fmt.Errorf("config: commit_timeout_ms must be positive")
	}
	return nil
}
