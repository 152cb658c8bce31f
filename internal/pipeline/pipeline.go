// Package pipeline runs the metadata, vector and color-tag stages over the
// durable processing queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/artshelf/internal/app"
	"github.com/cesargomez89/artshelf/internal/config"
	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/logger"
	"github.com/cesargomez89/artshelf/internal/storage"
	"github.com/cesargomez89/artshelf/internal/store"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

type Pipeline struct {
	Repo       *store.DB
	Logger     *logger.Logger
	processors map[domain.QueueType]*Processor
	workerID   string
}

// New wires one processor per queue type.
func New(repo *store.DB, ext Extractor, thumbs *storage.Thumbnails, settings *app.SettingsService, cfg *config.Config, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Default()
	}
	p := &Pipeline{
		Repo:       repo,
		Logger:     log.WithComponent("pipeline"),
		processors: make(map[domain.QueueType]*Processor, len(domain.QueueTypes)),
		workerID:   NewWorkerID(),
	}

	handlers := map[domain.QueueType]Handler{
		domain.QueueTypeMetadata: &MetadataHandler{
			Repo:       repo,
			Extractor:  ext,
			Thumbnails: thumbs,
			Settings:   settings,
			Trigger:    p.Trigger,
		},
		domain.QueueTypeVector: &VectorHandler{
			Repo:      repo,
			Extractor: ext,
			Threshold: cfg.SimilarityThreshold,
		},
		domain.QueueTypeColorTag: &ColorTagHandler{
			Repo:     repo,
			Settings: settings,
		},
	}

	for _, qt := range domain.QueueTypes {
		p.processors[qt] = NewProcessor(qt, repo, handlers[qt], p.workerID+":"+string(qt), log)
	}
	return p
}

// NewWorkerID identifies this process in locked_by: host, pid and a short
// random suffix so restarts with a recycled pid stay distinguishable.
func NewWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.New().String()[:8])
}

func (p *Pipeline) WorkerID() string {
	return p.workerID
}

func (p *Pipeline) Processor(qt domain.QueueType) *Processor {
	return p.processors[qt]
}

// EnqueueFile queues a .procreate file for ingestion and kicks the metadata
// stage. It reports false when the file is already pending or processing.
func (p *Pipeline) EnqueueFile(ctx context.Context, path string) (bool, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return false, err
	}

	added, err := p.Repo.Enqueue(ctx, domain.MetadataPayload{FilePath: path})
	if err != nil {
		return false, err
	}
	if added {
		p.Logger.Info("File enqueued", "file_path", path)
	}
	p.Trigger(domain.QueueTypeMetadata)
	return added, nil
}

// NormalizePath checks that path names a .procreate file and makes it
// absolute, so the same file always produces the same metadata payload.
func NormalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrInvalidPayload)
	}
	if !strings.EqualFold(filepath.Ext(path), constants.ExtProcreate) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// Resume recovers items orphaned by a crashed process and starts every stage
// that has pending work. Call it once at startup.
func (p *Pipeline) Resume(ctx context.Context) error {
	recovered, err := p.Repo.RecoverStale(ctx, constants.StaleLockWindow)
	if err != nil {
		return fmt.Errorf("recover stale items: %w", err)
	}
	if recovered > 0 {
		p.Logger.Warn("Recovered stale items", "count", recovered)
	}

	for _, qt := range domain.QueueTypes {
		pending, err := p.Repo.PendingCount(ctx, qt)
		if err != nil {
			return err
		}
		if pending > 0 {
			p.Logger.Info("Resuming queue", "queue_type", qt, "pending", pending)
			p.Trigger(qt)
		}
	}
	return nil
}

func (p *Pipeline) Trigger(qt domain.QueueType) {
	if proc, ok := p.processors[qt]; ok {
		proc.Trigger()
	}
}

// WaitIdle blocks until no stage is draining or scheduled and no queue has
// pending items.
func (p *Pipeline) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(constants.IdlePollInterval)
	defer ticker.Stop()

	for {
		idle, err := p.idle(ctx)
		if err != nil {
			return err
		}
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) idle(ctx context.Context) (bool, error) {
	for _, proc := range p.processors {
		if proc.Busy() {
			return false, nil
		}
	}
	for _, qt := range domain.QueueTypes {
		pending, err := p.Repo.PendingCount(ctx, qt)
		if err != nil {
			return false, err
		}
		if pending > 0 {
			// Nothing is draining; make sure something will.
			p.Trigger(qt)
			return false, nil
		}
	}
	return true, nil
}

// Stop halts every processor. Items in flight remain processing and are
// recovered by the next Resume after the stale window.
func (p *Pipeline) Stop() {
	for _, qt := range domain.QueueTypes {
		p.processors[qt].Stop()
	}
	p.Logger.Info("Pipeline stopped")
}
