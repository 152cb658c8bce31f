package app

import (
	"context"
	"strconv"

	"github.com/cesargomez89/artshelf/internal/config"
	"github.com/cesargomez89/artshelf/internal/store"
)

// ColorTagOptions controls automatic color tagging. Values stored in the
// settings table override the configured defaults.
type ColorTagOptions struct {
	Enabled       bool    `json:"enabled"`
	MinConfidence float64 `json:"min_confidence"`
	Limit         int     `json:"limit"`
}

// ColorTagUpdate carries a partial update; nil fields are left unchanged.
type ColorTagUpdate struct {
	Enabled       *bool    `json:"enabled,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	Limit         *int     `json:"limit,omitempty"`
}

type SettingsService struct {
	Settings *store.SettingsRepo
	Defaults ColorTagOptions
}

func NewSettingsService(settings *store.SettingsRepo, cfg *config.Config) *SettingsService {
	return &SettingsService{
		Settings: settings,
		Defaults: ColorTagOptions{
			Enabled:       cfg.ColorTaggingEnabled,
			MinConfidence: cfg.ColorTagMinConfidence,
			Limit:         cfg.ColorTagLimit,
		},
	}
}

// ColorTagging returns the effective options, clamped to valid ranges.
func (s *SettingsService) ColorTagging(ctx context.Context) ColorTagOptions {
	return ColorTagOptions{
		Enabled:       s.Settings.GetBool(ctx, store.SettingColorTaggingEnabled, s.Defaults.Enabled),
		MinConfidence: config.ClampConfidence(s.Settings.GetFloat(ctx, store.SettingColorTagMinConfidence, s.Defaults.MinConfidence)),
		Limit:         config.ClampLimit(s.Settings.GetInt(ctx, store.SettingColorTagLimit, s.Defaults.Limit)),
	}
}

// UpdateColorTagging stores the given overrides. Out-of-range values are
// clamped before they are saved.
func (s *SettingsService) UpdateColorTagging(ctx context.Context, u ColorTagUpdate) (ColorTagOptions, error) {
	if u.Enabled != nil {
		if err := s.Settings.Set(ctx, store.SettingColorTaggingEnabled, strconv.FormatBool(*u.Enabled)); err != nil {
			return ColorTagOptions{}, err
		}
	}
	if u.MinConfidence != nil {
		v := config.ClampConfidence(*u.MinConfidence)
		if err := s.Settings.Set(ctx, store.SettingColorTagMinConfidence, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
			return ColorTagOptions{}, err
		}
	}
	if u.Limit != nil {
		v := config.ClampLimit(*u.Limit)
		if err := s.Settings.Set(ctx, store.SettingColorTagLimit, strconv.Itoa(v)); err != nil {
			return ColorTagOptions{}, err
		}
	}
	return s.ColorTagging(ctx), nil
}

// ResetColorTagging drops every override so the configured defaults apply.
func (s *SettingsService) ResetColorTagging(ctx context.Context) error {
	for _, key := range []string{store.SettingColorTaggingEnabled, store.SettingColorTagMinConfidence, store.SettingColorTagLimit} {
		if err := s.Settings.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
