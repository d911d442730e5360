package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/luismedel/quiu/internal/cmd/client"
	serverrun "github.com/luismedel/quiu/internal/cmd/server"
	cfgpkg "github.com/luismedel/quiu/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "quiu",
		Short:        "quiu append-only log server",
		Long:         "quiu stores newline-delimited records in durable, offset-addressed channels and serves them over HTTP.",
		SilenceUsage: true,
	}

	var apiURL string
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", clientcmd.BaseURLFromEnv(), "Server base URL for client commands (env QUIU_HTTP)")

	rootCmd.AddCommand(newServerCommand())
	rootCmd.AddCommand(clientcmd.NewChannelCommand(func() string { return apiURL }))
	return rootCmd
}

func newServerCommand() *cobra.Command {
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the quiu HTTP server",
		Aliases: []string{"run"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServerConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	f := serverStartCmd.Flags()
	f.String("config", os.Getenv("QUIU_CONFIG"), "Config file (.yaml, .yml or .json)")
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("http", "", "HTTP listen address (default 127.0.0.1:27812)")
	f.String("backend", "", "Store backend: pebble|sqlite")
	f.String("fsync", "", "Fsync mode: always|interval|never")
	f.Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms")
	f.Bool("no-wal", false, "Append directly to channel stores instead of through the write-ahead queue")
	f.Int("commit-timeout-ms", 0, "Upper bound on a waiting append")
	f.Bool("no-recover", false, "Do not reopen channels listed in the index")
	f.StringSlice("builtins", nil, "Channel GUIDs to create at startup")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	return serverCmd
}

// loadServerConfig layers defaults, the config file, QUIU_* variables and
// explicitly set flags, in that order.
func loadServerConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfg, err
	}
	cfgpkg.FromEnv(&cfg)

	if f.Changed("data-dir") {
		cfg.DataDir, _ = f.GetString("data-dir")
		cfg.DataDir = os.ExpandEnv(cfg.DataDir)
	}
	if f.Changed("http") {
		cfg.Server.Addr, _ = f.GetString("http")
	}
	if f.Changed("backend") {
		cfg.Store.Backend, _ = f.GetString("backend")
	}
	if f.Changed("fsync") {
		cfg.Store.Fsync, _ = f.GetString("fsync")
	}
	if f.Changed("fsync-interval-ms") {
		cfg.Store.FsyncIntervalMs, _ = f.GetInt("fsync-interval-ms")
	}
	if f.Changed("no-wal") {
		noWAL, _ := f.GetBool("no-wal")
		cfg.WAL.Enabled = !noWAL
	}
	if f.Changed("commit-timeout-ms") {
		cfg.WAL.CommitTimeoutMs, _ = f.GetInt("commit-timeout-ms")
	}
	if f.Changed("no-recover") {
		noRecover, _ := f.GetBool("no-recover")
		cfg.Runtime.RecoverChannels = !noRecover
	}
	if f.Changed("builtins") {
		cfg.Runtime.Builtins, _ = f.GetStringSlice("builtins")
	}
	if f.Changed("log-level") {
		cfg.Log.Level, _ = f.GetString("log-level")
	}
	if f.Changed("log-format") {
		cfg.Log.Format, _ = f.GetString("log-format")
	}
	return cfg, cfg.Validate()
}
