package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("embedded defaults failed validation: %v", err)
	}
	if len(cfg.Sources) == 0 {
		t.Fatal("embedded defaults contain no sources")
	}
	if got := len(cfg.Checker.ProbeTargets); got < 2 || got > 3 {
		t.Fatalf("default probe targets = %d, want 2-3", got)
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Checker.Threads != Default().Checker.Threads {
		t.Fatalf("threads = %d, want default %d", cfg.Checker.Threads, Default().Checker.Threads)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default settings file not written: %v", err)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	body := `{"checker": {"threads": 7}, "sources": [{"url": "https://example.com/list.txt", "format": "text"}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Checker.Threads != 7 {
		t.Fatalf("threads = %d, want 7", cfg.Checker.Threads)
	}
	if cfg.Checker.Timeout != Default().Checker.Timeout {
		t.Fatalf("timeout = %d, want default %d", cfg.Checker.Timeout, Default().Checker.Timeout)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(cfg.Sources))
	}
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted invalid JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"zero threads", func(cfg *Config) { cfg.Checker.Threads = 0 }, "checker.threads"},
		{"zero timeout", func(cfg *Config) { cfg.Checker.Timeout = 0 }, "checker.timeout"},
		{"zero retries", func(cfg *Config) { cfg.Checker.Retries = 0 }, "checker.retries"},
		{"no probe targets", func(cfg *Config) { cfg.Checker.ProbeTargets = nil }, "probe_targets"},
		{"empty source url", func(cfg *Config) { cfg.Sources = []Source{{URL: " "}} }, "url is empty"},
		{"unknown format", func(cfg *Config) { cfg.Sources = []Source{{URL: "https://x", Format: "csv"}} }, "unknown format"},
		{"unknown render", func(cfg *Config) { cfg.Sources = []Source{{URL: "https://x", Render: "js"}} }, "unknown render"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate returned nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSourceDefaults(t *testing.T) {
	no := false
	source := Source{Name: "list", URL: "https://example.com/socks5.txt"}

	if !source.ShouldFollowRedirects() || !source.ShouldDecompress() {
		t.Fatal("unset redirect/decompress flags should default to true")
	}
	source.FollowRedirects = &no
	if source.ShouldFollowRedirects() {
		t.Fatal("explicit follow_redirects=false ignored")
	}
	if got := source.Identifier(); got != "list https://example.com/socks5.txt" {
		t.Fatalf("Identifier returned %q", got)
	}
	if got := (Source{URL: "https://x"}).Label(); got != "https://x" {
		t.Fatalf("Label returned %q, want url fallback", got)
	}
}
