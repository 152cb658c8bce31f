package main

import (
	"io"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/cesargomez89/artshelf/internal/app"
	"github.com/cesargomez89/artshelf/internal/config"
	"github.com/cesargomez89/artshelf/internal/extractor"
	"github.com/cesargomez89/artshelf/internal/logger"
	"github.com/cesargomez89/artshelf/internal/maintenance"
	"github.com/cesargomez89/artshelf/internal/pipeline"
	"github.com/cesargomez89/artshelf/internal/storage"
	"github.com/cesargomez89/artshelf/internal/store"
)

// environment is everything a command needs, built once per invocation.
type environment struct {
	cfg         *config.Config
	logger      *logger.Logger
	db          *store.DB
	extractor   *extractor.CLI
	settings    *app.SettingsService
	queue       *app.QueueService
	library     *app.LibraryService
	maintenance *maintenance.Service
}

// newPipeline starts nothing by itself; processors run only once triggered.
func (e *environment) newPipeline() *pipeline.Pipeline {
	thumbs := storage.NewThumbnails(e.cfg.ThumbnailsDir)
	return pipeline.New(e.db, e.extractor, thumbs, e.settings, e.cfg, e.logger)
}

type commandContext struct {
	dbFlag       *string
	logLevelFlag *string

	envOnce sync.Once
	env     *environment
	envErr  error
}

func newCommandContext(dbFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		dbFlag:       dbFlag,
		logLevelFlag: logLevelFlag,
	}
}

// ensureEnv loads .env and the process environment, applies flag overrides
// and opens the store. Logs go to logOut so tables on stdout stay clean.
func (c *commandContext) ensureEnv(logOut io.Writer) (*environment, error) {
	c.envOnce.Do(func() {
		_ = godotenv.Load()
		cfg := config.Load()
		if c.dbFlag != nil && strings.TrimSpace(*c.dbFlag) != "" {
			cfg.DBPath = strings.TrimSpace(*c.dbFlag)
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.LogLevel = strings.TrimSpace(*c.logLevelFlag)
		}
		if err := cfg.Validate(); err != nil {
			c.envErr = err
			return
		}

		log := logger.New(logger.Config{Output: logOut, Level: cfg.LogLevel, Format: cfg.LogFormat})
		db, err := store.NewSQLiteDB(cfg.DBPath)
		if err != nil {
			c.envErr = err
			return
		}
		if err := storage.EnsureDir(cfg.ThumbnailsDir); err != nil {
			_ = db.Close()
			c.envErr = err
			return
		}

		ext := extractor.NewCLI(
			extractor.WithPython(cfg.ExtractorPython),
			extractor.WithScript(cfg.ExtractorScript),
			extractor.WithTimeouts(cfg.MetadataTimeout, cfg.VectorTimeout),
		)
		settings := app.NewSettingsService(store.NewSettingsRepo(db), cfg)

		c.env = &environment{
			cfg:         cfg,
			logger:      log,
			db:          db,
			extractor:   ext,
			settings:    settings,
			queue:       app.NewQueueService(db, log),
			library:     app.NewLibraryService(db),
			maintenance: maintenance.New(db, ext, settings, cfg, log),
		}
	})
	return c.env, c.envErr
}

func (c *commandContext) close() error {
	if c.env == nil {
		return nil
	}
	err := c.env.db.Close()
	c.env = nil
	return err
}
