package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:5000/api" {
		t.Errorf("APIBaseURL = %q, want default", cfg.APIBaseURL)
	}
	if cfg.Sync.PollIntervalSec != 120 {
		t.Errorf("PollIntervalSec = %d, want 120", cfg.Sync.PollIntervalSec)
	}
	if cfg.Sync.IngestCount != 50 {
		t.Errorf("IngestCount = %d, want 50", cfg.Sync.IngestCount)
	}
	if !cfg.Sync.Classify {
		t.Error("Classify = false, want true by default")
	}
	if cfg.DBPath == "" {
		t.Error("DBPath empty, want default fill-in")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("api_base_url: https://triage.example.com/api\nsync:\n  poll_interval_sec: 30\ndisplay:\n  theme: light\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIBaseURL != "https://triage.example.com/api" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.Sync.PollIntervalSec != 30 {
		t.Errorf("PollIntervalSec = %d, want 30", cfg.Sync.PollIntervalSec)
	}
	if cfg.Display.Theme != "light" {
		t.Errorf("Theme = %q, want light", cfg.Display.Theme)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Sync.StatusLimit != 100 {
		t.Errorf("StatusLimit = %d, want 100", cfg.Sync.StatusLimit)
	}
}

func TestLoad_EnvOverridesBaseURL(t *testing.T) {
	t.Setenv("TRIAGE_API_URL", "http://127.0.0.1:9999/api")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:9999/api" {
		t.Errorf("APIBaseURL = %q, want env override", cfg.APIBaseURL)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Display.Theme = "light"
	cfg.Sync.PollIntervalSec = 45

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if got.Display.Theme != "light" {
		t.Errorf("Theme = %q after round trip, want light", got.Display.Theme)
	}
	if got.Sync.PollIntervalSec != 45 {
		t.Errorf("PollIntervalSec = %d after round trip, want 45", got.Sync.PollIntervalSec)
	}
}
