package config

import (
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/artshelf/internal/constants"
)

func TestLoad(t *testing.T) {
	cfg := Load()

	if cfg.Port != constants.DefaultPort {
		t.Errorf("Expected Port to be %s, got %s", constants.DefaultPort, cfg.Port)
	}
	if cfg.DBPath != constants.DefaultDBPath {
		t.Errorf("Expected DBPath to be %s, got %s", constants.DefaultDBPath, cfg.DBPath)
	}
	if cfg.MetadataTimeout != constants.DefaultMetadataTimeout {
		t.Errorf("Expected MetadataTimeout %s, got %s", constants.DefaultMetadataTimeout, cfg.MetadataTimeout)
	}
	if cfg.VectorTimeout != constants.DefaultVectorTimeout {
		t.Errorf("Expected VectorTimeout %s, got %s", constants.DefaultVectorTimeout, cfg.VectorTimeout)
	}
	if cfg.SimilarityThreshold != constants.DefaultSimilarityThreshold {
		t.Errorf("Expected SimilarityThreshold %g, got %g", constants.DefaultSimilarityThreshold, cfg.SimilarityThreshold)
	}
	if !cfg.ColorTaggingEnabled {
		t.Error("Expected color tagging enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadWithEnvVars(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/test.db")
	t.Setenv("METADATA_TIMEOUT", "30")
	t.Setenv("VECTOR_TIMEOUT", "2m")
	t.Setenv("SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("COLOR_TAGGING_ENABLED", "false")
	t.Setenv("COLOR_TAG_LIMIT", "5")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Expected Port to be 9090, got %s", cfg.Port)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("Expected DBPath to be /tmp/test.db, got %s", cfg.DBPath)
	}
	if cfg.MetadataTimeout != 30*time.Second {
		t.Errorf("Expected bare seconds to parse, got %s", cfg.MetadataTimeout)
	}
	if cfg.VectorTimeout != 2*time.Minute {
		t.Errorf("Expected 2m, got %s", cfg.VectorTimeout)
	}
	if cfg.SimilarityThreshold != 0.9 {
		t.Errorf("Expected 0.9, got %g", cfg.SimilarityThreshold)
	}
	if cfg.ColorTaggingEnabled {
		t.Error("Expected color tagging disabled")
	}
	if cfg.ColorTagLimit != 5 {
		t.Errorf("Expected limit 5, got %d", cfg.ColorTagLimit)
	}
}

func TestLoadClampsColorOptions(t *testing.T) {
	tests := []struct {
		name       string
		limit      string
		confidence string
		wantLimit  int
		wantConf   float64
	}{
		{"in range", "4", "0.2", 4, 0.2},
		{"limit too low", "0", "0.2", 1, 0.2},
		{"limit too high", "50", "0.2", constants.MaxColorTagLimit, 0.2},
		{"negative confidence", "3", "-0.5", 3, 0},
		{"confidence above one", "3", "1.7", 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("COLOR_TAG_LIMIT", tt.limit)
			t.Setenv("COLOR_TAG_MIN_CONFIDENCE", tt.confidence)
			cfg := Load()
			if cfg.ColorTagLimit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, cfg.ColorTagLimit)
			}
			if cfg.ColorTagMinConfidence != tt.wantConf {
				t.Errorf("Expected confidence %g, got %g", tt.wantConf, cfg.ColorTagMinConfidence)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Expected clamped values to validate, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty port", func(c *Config) { c.Port = "" }, "PORT cannot be empty"},
		{"bad port", func(c *Config) { c.Port = "abc" }, "PORT must be a valid number"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "PORT must be between"},
		{"empty db", func(c *Config) { c.DBPath = "" }, "DB_PATH cannot be empty"},
		{"empty thumbs", func(c *Config) { c.ThumbnailsDir = "" }, "THUMBNAILS_DIR cannot be empty"},
		{"zero timeout", func(c *Config) { c.VectorTimeout = 0 }, "VECTOR_TIMEOUT must be positive"},
		{"bad threshold", func(c *Config) { c.SimilarityThreshold = 2 }, "SIMILARITY_THRESHOLD"},
		{"bad concurrency", func(c *Config) { c.MaintenanceConcurrency = 0 }, "MAINTENANCE_CONCURRENCY"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateReportsParseErrors(t *testing.T) {
	t.Setenv("COLOR_TAG_LIMIT", "lots")
	t.Setenv("METADATA_TIMEOUT", "soon")

	err := Load().Validate()
	if err == nil {
		t.Fatal("Expected parse errors to surface")
	}
	for _, want := range []string{"COLOR_TAG_LIMIT must be an integer", "METADATA_TIMEOUT must be a duration"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in %v", want, err)
		}
	}
}
