package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
)

type SettingsRepo struct {
	db *DB
}

func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now())
	return err
}

func (r *SettingsRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

// GetBool returns fallback when the key is unset or unparsable.
func (r *SettingsRepo) GetBool(ctx context.Context, key string, fallback bool) bool {
	value, err := r.Get(ctx, key)
	if err != nil || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (r *SettingsRepo) GetFloat(ctx context.Context, key string, fallback float64) float64 {
	value, err := r.Get(ctx, key)
	if err != nil || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (r *SettingsRepo) GetInt(ctx context.Context, key string, fallback int) int {
	value, err := r.Get(ctx, key)
	if err != nil || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

const (
	SettingColorTaggingEnabled   = "color_tagging_enabled"
	SettingColorTagMinConfidence = "color_tag_min_confidence"
	SettingColorTagLimit         = "color_tag_limit"
)
