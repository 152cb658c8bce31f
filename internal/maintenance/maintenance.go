// Package maintenance rebuilds derived state (similarity edges and automatic
// color tags) from what is already stored. Every operation supports a dry run
// that computes the result in memory and reports the difference without
// writing.
package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"github.com/cesargomez89/artshelf/internal/app"
	"github.com/cesargomez89/artshelf/internal/config"
	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/extractor"
	"github.com/cesargomez89/artshelf/internal/logger"
	"github.com/cesargomez89/artshelf/internal/pipeline"
	"github.com/cesargomez89/artshelf/internal/store"
)

// ErrLocked means another process holds the maintenance lock.
var ErrLocked = errors.New("maintenance already running")

// Extractor is the subset of the extractor client maintenance needs.
type Extractor interface {
	pipeline.Extractor
	ClearTemp(ctx context.Context, days int) (*extractor.ClearTempResult, error)
}

type Options struct {
	DryRun            bool `json:"dry_run"`
	RegenerateVectors bool `json:"regenerate_vectors"`
}

type Service struct {
	Repo        *store.DB
	Extractor   Extractor
	Settings    *app.SettingsService
	Logger      *logger.Logger
	Threshold   float64
	Concurrency int
	lockPath    string
}

func New(repo *store.DB, ext Extractor, settings *app.SettingsService, cfg *config.Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	concurrency := cfg.MaintenanceConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		Repo:        repo,
		Extractor:   ext,
		Settings:    settings,
		Logger:      log.WithComponent("maintenance"),
		Threshold:   cfg.SimilarityThreshold,
		Concurrency: concurrency,
		lockPath:    repo.Path() + constants.MaintenanceLockSuffix,
	}
}

// LockPath is the lock file shared by every process using the same database.
func (s *Service) LockPath() string {
	return s.lockPath
}

func (s *Service) withLock(fn func() error) error {
	lock := flock.New(s.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire maintenance lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is held", ErrLocked, s.lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.Logger.Warn("Failed to release maintenance lock", "error", err)
		}
	}()
	return fn()
}

// ClearTemp asks the extractor to remove temp thumbnails older than days.
func (s *Service) ClearTemp(ctx context.Context, days int) (*extractor.ClearTempResult, error) {
	if days <= 0 {
		days = constants.DefaultClearTempDays
	}
	res, err := s.Extractor.ClearTemp(ctx, days)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("Temp thumbnails cleared", "removed", res.Removed, "temp_dir", res.TempDir, "days", days)
	return res, nil
}
