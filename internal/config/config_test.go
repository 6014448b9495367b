package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetenv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		def       string
		shouldSet bool
		expected  string
	}{
		{
			name:      "variable set",
			key:       "TEST_GETENV_SET",
			value:     "custom",
			def:       "fallback",
			shouldSet: true,
			expected:  "custom",
		},
		{
			name:     "variable not set",
			key:      "TEST_GETENV_MISSING",
			def:      "fallback",
			expected: "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.value)
			}
			if got := getenv(tt.key, tt.def); got != tt.expected {
				t.Errorf("getenv() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{name: "valid duration", value: "90s", def: time.Second, expected: 90 * time.Second},
		{name: "invalid duration", value: "ninety", def: time.Second, expected: time.Second},
		{name: "empty", value: "", def: 2 * time.Hour, expected: 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_MUST_DURATION", tt.value)
			}
			if got := mustDuration("TEST_MUST_DURATION", tt.def); got != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` "a.example.com" , b.example.com ,, 'c.example.com' `)
	want := []string{"a.example.com", "b.example.com", "c.example.com"}
	if len(got) != len(want) {
		t.Fatalf("splitAndTrim() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitAndTrim()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %v, want :8080", cfg.ListenAddr)
	}
	if cfg.DataDir != "./data" {
		t.Errorf("DataDir = %v, want ./data", cfg.DataDir)
	}
	if cfg.MaxUploadBytes != 32<<20 {
		t.Errorf("MaxUploadBytes = %v, want %v", cfg.MaxUploadBytes, int64(32<<20))
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("SweepInterval = %v, want 1h", cfg.SweepInterval)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracklib.yaml")
	content := []byte("listen_addr: \":9999\"\ndata_dir: /srv/tracks\nwrite_password: filepass\nsweep_interval: 30m\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("TRACKLIB_CONFIG_FILE", path)
	t.Setenv("TRACKLIB_WRITE_PASSWORD", "envpass") // env overrides file

	cfg := Load()
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %v, want :9999", cfg.ListenAddr)
	}
	if cfg.DataDir != "/srv/tracks" {
		t.Errorf("DataDir = %v, want /srv/tracks", cfg.DataDir)
	}
	if cfg.SweepInterval != 30*time.Minute {
		t.Errorf("SweepInterval = %v, want 30m", cfg.SweepInterval)
	}
	if cfg.WritePassword != "envpass" {
		t.Errorf("WritePassword = %v, want envpass (env must win over file)", cfg.WritePassword)
	}
}

func TestLoadBadFilePanics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: [not, a, string"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("TRACKLIB_CONFIG_FILE", path)

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should have panicked on a broken config file")
		}
	}()
	Load()
}
