package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func serverStart(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	root := newRootCommand()
	cmd, _, err := root.Find([]string{"server", "start"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadServerConfigLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quiu.yaml")
	body := "data_dir: /from/file\nstore:\n  backend: sqlite\n  fsync: never\nwal:\n  commit_timeout_ms: 100\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("QUIU_FSYNC", "interval")
	t.Setenv("QUIU_HTTP_ADDR", "127.0.0.1:9999")

	cmd := serverStart(t, "--config", path, "--http", "127.0.0.1:1234", "--no-wal", "--builtins", "a,b")
	cfg, err := loadServerConfig(cmd)
	require.NoError(t, err)

	require.Equal(t, "/from/file", cfg.DataDir)
	require.Equal(t, "sqlite", cfg.Store.Backend)
	require.Equal(t, "interval", cfg.Store.Fsync)
	require.Equal(t, "127.0.0.1:1234", cfg.Server.Addr)
	require.Equal(t, 100, cfg.WAL.CommitTimeoutMs)
	require.False(t, cfg.WAL.Enabled)
	require.Equal(t, []string{"a", "b"}, cfg.Runtime.Builtins)
	require.True(t, cfg.Runtime.RecoverChannels)
}

func TestLoadServerConfigRejectsBadFlags(t *testing.T) {
	cmd := serverStart(t, "--backend", "bolt")
	_, err := loadServerConfig(cmd)
	require.Error(t, err)
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	cmd := serverStart(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := loadServerConfig(cmd)
	require.Error(t, err)
}
