package log

import (
	"fmt"
	"strings"
	"sync"
)

// Config is the declarative logger configuration.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // text | json
	Output string `json:"output" yaml:"output"` // console | stdout | file | null
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// GetDefaultLogger returns the process-wide logger, creating an info-level
// text logger on first use.
func GetDefaultLogger() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(WithFormatter(&TextFormatter{}))
	}
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide logger.
func SetDefaultLogger(l Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// ApplyConfig builds a logger from cfg and installs it as the default.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	var out Output
	switch strings.ToLower(cfg.Output) {
	case "", "console", "stderr":
		out = NewConsoleOutput()
	case "stdout":
		out = NewWriterOutput(stdout())
	case "null", "none":
		out = NullOutput{}
	case "file":
		if cfg.File == "" {
			return nil, fmt.Errorf("log: file output requires a path")
		}
		fo, err := NewFileOutput(cfg.File)
		if err != nil {
			return nil, err
		}
		out = fo
	default:
		return nil, fmt.Errorf("log: unknown output %q", cfg.Output)
	}

	l := NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(out))
	SetDefaultLogger(l)
	return l, nil
}
