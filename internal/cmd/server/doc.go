// Package serverrun exposes the Run entrypoint used by the CLI to start a
// quiu server: channel registry, shared write-ahead queue and HTTP boundary,
// with ordered shutdown.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun
