package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultDataDirXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/quiu" {
		t.Errorf("expected /custom/data/quiu, got %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	t.Setenv("HOME", "")
	// UserHomeDir fails without HOME on unix.
	if got := DefaultDataDir(); got != "./data" {
		t.Errorf("expected fallback to './data', got %s", got)
	}
}

func TestIsDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{name: "existing directory", path: ".", expected: true},
		{name: "non-existent path", path: "/non/existent/path/that/does/not/exist", expected: false},
		{name: "file instead of directory", path: file, expected: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDir(tt.path); got != tt.expected {
				t.Errorf("isDir(%s) = %v, expected %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestDefaultDataDirShape(t *testing.T) {
	result := DefaultDataDir()
	if result == "" {
		t.Fatal("DefaultDataDir should not return empty string")
	}
	if !filepath.IsAbs(result) && !strings.HasPrefix(result, "./") {
		t.Errorf("expected absolute path or ./ prefix, got %s", result)
	}
	if result != "./data" && !strings.HasSuffix(strings.ToLower(result), "quiu") {
		t.Errorf("expected path to end in quiu, got %s", result)
	}
	if result != DefaultDataDir() {
		t.Errorf("DefaultDataDir should be stable")
	}
}
