package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays QUIU_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("QUIU_DATA_DIR"); v != "" {
		cfg.DataDir = os.ExpandEnv(v)
	}
	if v := os.Getenv("QUIU_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("QUIU_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("QUIU_FSYNC"); v != "" {
		cfg.Store.Fsync = strings.ToLower(v)
	}
	if v := os.Getenv("QUIU_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("QUIU_WAL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.WAL.Enabled = b
		}
	}
	if v := os.Getenv("QUIU_WAL_COMMIT_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WAL.CommitTimeoutMs = n
		}
	}
	if v := os.Getenv("QUIU_RECOVER_CHANNELS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Runtime.RecoverChannels = b
		}
	}
	if v := os.Getenv("QUIU_TASKS_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.TasksThreshold = n
		}
	}
	if v := os.Getenv("QUIU_SHUTDOWN_WAIT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runtime.ShutdownWaitMs = n
		}
	}
	if v := os.Getenv("QUIU_BUILTINS"); v != "" {
		cfg.Runtime.Builtins = nil
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Runtime.Builtins = append(cfg.Runtime.Builtins, p)
			}
		}
	}
	if v := os.Getenv("QUIU_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("QUIU_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("QUIU_LOG_FILE"); v != "" {
		cfg.Log.Output = "file"
		cfg.Log.File = os.ExpandEnv(v)
	}
}
