package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cesargomez89/artshelf/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port          string
	DBPath        string
	ThumbnailsDir string

	ExtractorPython string
	ExtractorScript string
	MetadataTimeout time.Duration
	VectorTimeout   time.Duration

	SimilarityThreshold float64

	ColorTaggingEnabled   bool
	ColorTagMinConfidence float64
	ColorTagLimit         int

	MaintenanceConcurrency int

	LogLevel  string
	LogFormat string

	// parse problems collected by Load and reported by Validate
	problems []string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	c := &Config{
		Port:            getEnv("PORT", constants.DefaultPort),
		DBPath:          getEnv("DB_PATH", constants.DefaultDBPath),
		ThumbnailsDir:   getEnv("THUMBNAILS_DIR", constants.DefaultThumbnailsDir),
		ExtractorPython: getEnv("EXTRACTOR_PYTHON", constants.DefaultExtractorPython),
		ExtractorScript: getEnv("EXTRACTOR_SCRIPT", constants.DefaultExtractorScript),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
	}

	c.MetadataTimeout = c.getEnvDuration("METADATA_TIMEOUT", constants.DefaultMetadataTimeout)
	c.VectorTimeout = c.getEnvDuration("VECTOR_TIMEOUT", constants.DefaultVectorTimeout)
	c.SimilarityThreshold = c.getEnvFloat("SIMILARITY_THRESHOLD", constants.DefaultSimilarityThreshold)
	c.ColorTaggingEnabled = c.getEnvBool("COLOR_TAGGING_ENABLED", constants.DefaultColorTaggingEnabled)
	c.ColorTagMinConfidence = ClampConfidence(c.getEnvFloat("COLOR_TAG_MIN_CONFIDENCE", constants.DefaultColorTagMinConfidence))
	c.ColorTagLimit = ClampLimit(c.getEnvInt("COLOR_TAG_LIMIT", constants.DefaultColorTagLimit))
	c.MaintenanceConcurrency = c.getEnvInt("MAINTENANCE_CONCURRENCY", constants.DefaultMaintenanceConcurrency)

	return c
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	errors := append([]string(nil), c.problems...)

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.ThumbnailsDir == "" {
		errors = append(errors, "THUMBNAILS_DIR cannot be empty")
	}

	if c.ExtractorPython == "" {
		errors = append(errors, "EXTRACTOR_PYTHON cannot be empty")
	}
	if c.ExtractorScript == "" {
		errors = append(errors, "EXTRACTOR_SCRIPT cannot be empty")
	}

	if c.MetadataTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("METADATA_TIMEOUT must be positive, got: %s", c.MetadataTimeout))
	}
	if c.VectorTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("VECTOR_TIMEOUT must be positive, got: %s", c.VectorTimeout))
	}

	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		errors = append(errors, fmt.Sprintf("SIMILARITY_THRESHOLD must be between -1 and 1, got: %g", c.SimilarityThreshold))
	}

	if c.MaintenanceConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("MAINTENANCE_CONCURRENCY must be at least 1, got: %d", c.MaintenanceConcurrency))
	}

	// Validate LogLevel
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	// Validate LogFormat
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// ClampLimit bounds the number of automatic color tags per image.
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > constants.MaxColorTagLimit {
		return constants.MaxColorTagLimit
	}
	return limit
}

// ClampConfidence bounds a confidence threshold to [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func (c *Config) getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s must be an integer, got: %s", key, value))
		return fallback
	}
	return parsed
}

func (c *Config) getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s must be a number, got: %s", key, value))
		return fallback
	}
	return parsed
}

func (c *Config) getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s must be a boolean, got: %s", key, value))
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func (c *Config) getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("%s must be a duration, got: %s", key, value))
		return fallback
	}
	return parsed
}
