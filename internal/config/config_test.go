package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"LOOKOUT_CONFIG", "MATCH_THRESHOLD", "MATCH_CONCURRENCY", "MATCH_TIMEOUT_SECONDS", "DATABASE_DRIVER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Matching.Threshold != 0.96 {
		t.Errorf("expected default threshold 0.96, got %v", cfg.Matching.Threshold)
	}
	if cfg.Matching.Concurrency != 8 {
		t.Errorf("expected default concurrency 8, got %d", cfg.Matching.Concurrency)
	}
	if cfg.Matching.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cfg.Matching.Timeout)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Templates.FaceMatch.Title != "Possible Face Match Found" {
		t.Errorf("unexpected face match title %q", cfg.Templates.FaceMatch.Title)
	}
	if cfg.Templates.Sighting.Title == "" {
		t.Error("expected sighting template to be loaded")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOOKOUT_CONFIG", "")
	t.Setenv("MATCH_THRESHOLD", "0.9")
	t.Setenv("MATCH_CONCURRENCY", "3")
	t.Setenv("MATCH_TIMEOUT_SECONDS", "5")
	t.Setenv("PHOTO_STORE", "minio")
	t.Setenv("WEB_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Matching.Threshold != 0.9 {
		t.Errorf("expected threshold 0.9, got %v", cfg.Matching.Threshold)
	}
	if cfg.Matching.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", cfg.Matching.Concurrency)
	}
	if cfg.Matching.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.Matching.Timeout)
	}
	if cfg.Photos.Backend != "minio" {
		t.Errorf("expected minio backend, got %q", cfg.Photos.Backend)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lookout.yaml")
	content := `
matching:
  threshold: 0.98
  concurrency: 2
  timeout_seconds: 12
templates:
  face_match:
    title: "Match"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOOKOUT_CONFIG", path)
	t.Setenv("MATCH_THRESHOLD", "")
	t.Setenv("MATCH_CONCURRENCY", "4")
	t.Setenv("MATCH_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Matching.Threshold != 0.98 {
		t.Errorf("expected threshold from file 0.98, got %v", cfg.Matching.Threshold)
	}
	// Environment wins over the file.
	if cfg.Matching.Concurrency != 4 {
		t.Errorf("expected env concurrency 4, got %d", cfg.Matching.Concurrency)
	}
	if cfg.Matching.Timeout != 12*time.Second {
		t.Errorf("expected timeout 12s, got %s", cfg.Matching.Timeout)
	}
	if cfg.Templates.FaceMatch.Title != "Match" {
		t.Errorf("expected overridden title, got %q", cfg.Templates.FaceMatch.Title)
	}
	if cfg.Templates.FaceMatch.Message == "" {
		t.Error("expected embedded message to survive a partial override")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("LOOKOUT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	t.Setenv("LOOKOUT_CONFIG", "")

	t.Run("unparseable", func(t *testing.T) {
		t.Setenv("MATCH_THRESHOLD", "abc")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for MATCH_THRESHOLD=abc")
		}
	})

	t.Run("NaN", func(t *testing.T) {
		t.Setenv("MATCH_THRESHOLD", "NaN")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("Validate() error = %v, want ErrInvalidThreshold", err)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "postgres"},
			Matching: MatchingConfig{Threshold: 0.96, Concurrency: 1, Timeout: time.Second},
			Photos:   PhotoStoreConfig{Backend: "local"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"threshold zero", func(c *Config) { c.Matching.Threshold = 0 }, false},
		{"threshold one", func(c *Config) { c.Matching.Threshold = 1 }, false},
		{"threshold negative", func(c *Config) { c.Matching.Threshold = -0.1 }, true},
		{"threshold above one", func(c *Config) { c.Matching.Threshold = 1.5 }, true},
		{"threshold NaN", func(c *Config) { c.Matching.Threshold = math.NaN() }, true},
		{"zero concurrency", func(c *Config) { c.Matching.Concurrency = 0 }, true},
		{"zero timeout", func(c *Config) { c.Matching.Timeout = 0 }, true},
		{"mysql driver", func(c *Config) { c.Database.Driver = "mysql" }, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, true},
		{"unknown photo store", func(c *Config) { c.Photos.Backend = "ftp" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ThresholdSentinel(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "postgres"},
		Matching: MatchingConfig{Threshold: 2, Concurrency: 1, Timeout: time.Second},
		Photos:   PhotoStoreConfig{Backend: "local"},
	}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}
}
