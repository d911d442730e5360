// Package log is quiu's structured logging facade.
//
// # Overview
//
// Logger is a small leveled interface carrying Field values for structured
// context. It is backed by log/slog through a custom handler that feeds each
// record into a Formatter and a set of Outputs.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("wal"), log.Str("channel", id))
//	l.Info("queue started", log.Int("pending", 0))
//
// # Configuration
//
// ApplyConfig builds a logger from a Config (level, json or text format, and
// console/file/null output) and installs it as the package default.
//
// # Interop
//
// ToStdLogger and RedirectStdLog bridge libraries that expect *log.Logger,
// such as net/http.Server's ErrorLog.
package log
