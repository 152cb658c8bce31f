package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/cesargomez89/artshelf/internal/app"
	"github.com/cesargomez89/artshelf/internal/colortag"
	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/extractor"
	"github.com/cesargomez89/artshelf/internal/similarity"
	"github.com/cesargomez89/artshelf/internal/storage"
	"github.com/cesargomez89/artshelf/internal/store"
)

// Extractor is the external metadata and embedding process.
type Extractor interface {
	Inspect(ctx context.Context, path string) (*extractor.Metadata, error)
	Embed(ctx context.Context, imagePath string) (domain.Vector, error)
}

// MetadataHandler ingests a .procreate file and fans out to the vector and
// color-tag stages.
type MetadataHandler struct {
	Repo       *store.DB
	Extractor  Extractor
	Thumbnails *storage.Thumbnails
	Settings   *app.SettingsService
	Trigger    func(domain.QueueType)
}

func (h *MetadataHandler) Handle(ctx context.Context, _ *domain.QueueItem, payload domain.Payload, logger *slog.Logger) error {
	p, ok := payload.(domain.MetadataPayload)
	if !ok {
		return fmt.Errorf("%w: expected metadata payload", domain.ErrInvalidPayload)
	}
	logger = logger.With("file_path", p.FilePath)

	if !storage.Exists(p.FilePath) {
		logger.Info("Source file no longer exists, skipping")
		return nil
	}

	meta, err := h.Extractor.Inspect(ctx, p.FilePath)
	if err != nil {
		return err
	}

	file := fileFromMetadata(p.FilePath, meta)

	thumbnail := ""
	if tmp := meta.Thumbnail(); tmp != "" && storage.Exists(tmp) {
		thumbnail, err = h.Thumbnails.Relocate(tmp, meta.FileHash)
		if err != nil {
			return fmt.Errorf("relocate thumbnail: %w", err)
		}
		file.ThumbnailPath = sql.NullString{String: thumbnail, Valid: true}
	}

	colorTagging := h.Settings.ColorTagging(ctx).Enabled
	var queued []domain.QueueType

	err = h.Repo.RunInTx(ctx, func(tx *store.DB) error {
		if err := tx.UpsertFile(ctx, file); err != nil {
			return err
		}
		if thumbnail == "" {
			return nil
		}

		if _, err := tx.Enqueue(ctx, domain.VectorPayload{FileID: file.ID, ThumbnailPath: thumbnail}); err != nil {
			return err
		}
		queued = append(queued, domain.QueueTypeVector)

		if colorTagging {
			if _, err := tx.Enqueue(ctx, domain.ColorTagPayload{FileHash: file.FileHash, ThumbnailPath: thumbnail}); err != nil {
				return err
			}
			queued = append(queued, domain.QueueTypeColorTag)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger = logger.With("file_id", file.ID, "file_hash", file.FileHash)
	if thumbnail == "" {
		logger.Warn("No thumbnail extracted, downstream stages skipped")
		return nil
	}
	logger.Info("Metadata stored", "layers", file.LayerCount, "canvas", fmt.Sprintf("%dx%d", file.CanvasWidth, file.CanvasHeight))

	for _, qt := range queued {
		if h.Trigger != nil {
			h.Trigger(qt)
		}
	}
	return nil
}

func fileFromMetadata(path string, meta *extractor.Metadata) *domain.ArtworkFile {
	f := &domain.ArtworkFile{
		FilePath:     path,
		FileName:     filepath.Base(path),
		FileHash:     meta.FileHash,
		CanvasWidth:  meta.CanvasWidth,
		CanvasHeight: meta.CanvasHeight,
		DPI:          meta.DPI,
		Orientation:  meta.Orientation,
		LayerCount:   meta.LayerCount,
		TimeSpent:    meta.TimeSpent,
	}
	if meta.ColorProfile != nil {
		f.ColorProfile = sql.NullString{String: *meta.ColorProfile, Valid: true}
	}
	if meta.AppVersion != nil {
		f.AppVersion = sql.NullString{String: *meta.AppVersion, Valid: true}
	}
	if meta.SourceCreatedAt != nil {
		f.SourceCreatedAt = sql.NullInt64{Int64: *meta.SourceCreatedAt, Valid: true}
	}
	if meta.SourceModifiedAt != nil {
		f.SourceModifiedAt = sql.NullInt64{Int64: *meta.SourceModifiedAt, Valid: true}
	}
	return f
}

// VectorHandler stores the embedding for a file and rebuilds its similarity
// edges.
type VectorHandler struct {
	Repo      *store.DB
	Extractor Extractor
	Threshold float64
}

func (h *VectorHandler) Handle(ctx context.Context, _ *domain.QueueItem, payload domain.Payload, logger *slog.Logger) error {
	p, ok := payload.(domain.VectorPayload)
	if !ok {
		return fmt.Errorf("%w: expected vector payload", domain.ErrInvalidPayload)
	}
	logger = logger.With("file_id", p.FileID)

	if !storage.Exists(p.ThumbnailPath) {
		logger.Info("Thumbnail missing, skipping", "thumbnail_path", p.ThumbnailPath)
		return nil
	}

	file, err := h.Repo.GetFileByID(ctx, p.FileID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Info("File was removed before its vector was computed, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	// The cache is keyed by the file's current hash, so a thumbnail from older
	// content must never be embedded under it.
	if !file.ThumbnailPath.Valid || file.ThumbnailPath.String != p.ThumbnailPath {
		logger.Info("Thumbnail superseded by newer content, skipping", "thumbnail_path", p.ThumbnailPath)
		return nil
	}

	vector, err := Embedding(ctx, h.Repo, h.Extractor, file.FileHash, p.ThumbnailPath, false)
	if err != nil {
		return err
	}

	edges := 0
	err = h.Repo.RunInTx(ctx, func(tx *store.DB) error {
		if err := tx.UpdateFileVector(ctx, file.ID, vector); err != nil {
			return err
		}
		if _, err := tx.DeleteSimilaritiesForFile(ctx, file.ID); err != nil {
			return err
		}

		candidates, malformed, err := tx.ListVectors(ctx, file.ID)
		if err != nil {
			return err
		}
		for _, id := range malformed {
			logger.Warn("Skipping malformed stored vector", "candidate_id", id)
		}

		edges, err = similarity.NewEngine(tx, logger).ComputeAndStore(ctx, file.ID, vector, candidates, h.Threshold)
		return err
	})
	if err != nil {
		return err
	}

	logger.Info("Vector stored", "dimensions", len(vector), "edges", edges)
	return nil
}

// Embedding returns the embedding for a thumbnail, consulting the cache keyed
// by content hash unless refresh is set. Fresh embeddings are cached.
func Embedding(ctx context.Context, repo *store.DB, ext Extractor, fileHash, thumbnail string, refresh bool) (domain.Vector, error) {
	key := constants.VectorCacheKeyPrefix + fileHash

	if !refresh && fileHash != "" {
		if data, err := repo.GetCache(ctx, key); err == nil && data != nil {
			if v, err := domain.DecodeVector(string(data)); err == nil {
				return v, nil
			}
		}
	}

	vector, err := ext.Embed(ctx, thumbnail)
	if err != nil {
		return nil, err
	}

	if fileHash != "" {
		if data, err := json.Marshal(vector); err == nil {
			_ = repo.SetCache(ctx, key, data, constants.DefaultVectorCacheTTL)
		}
	}
	return vector, nil
}

// ColorTagHandler attaches automatic color tags to a content hash.
type ColorTagHandler struct {
	Repo     *store.DB
	Settings *app.SettingsService
}

func (h *ColorTagHandler) Handle(ctx context.Context, _ *domain.QueueItem, payload domain.Payload, logger *slog.Logger) error {
	p, ok := payload.(domain.ColorTagPayload)
	if !ok {
		return fmt.Errorf("%w: expected color tag payload", domain.ErrInvalidPayload)
	}
	logger = logger.With("file_hash", p.FileHash)

	if !storage.Exists(p.ThumbnailPath) {
		logger.Info("Thumbnail missing, skipping", "thumbnail_path", p.ThumbnailPath)
		return nil
	}

	opts := h.Settings.ColorTagging(ctx)
	if !opts.Enabled {
		logger.Info("Color tagging disabled, skipping")
		return nil
	}

	results, err := colortag.Analyze(p.ThumbnailPath, opts.Limit, opts.MinConfidence)
	if err != nil {
		return err
	}

	added, err := ApplyColorTags(ctx, h.Repo, p.FileHash, results, logger)
	if err != nil {
		return err
	}
	logger.Info("Color tags applied", "found", len(results), "added", added)
	return nil
}

// ApplyColorTags inserts the results as color-sourced tags on fileHash. Unknown
// tag names and tags the hash already carries are skipped.
func ApplyColorTags(ctx context.Context, repo *store.DB, fileHash string, results []colortag.Result, logger *slog.Logger) (int, error) {
	added := 0
	for _, r := range results {
		tag, err := repo.GetTagByName(ctx, r.Tag)
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("Unknown color tag, skipping", "tag", r.Tag)
			continue
		}
		if err != nil {
			return added, err
		}

		has, err := repo.HasHashTag(ctx, fileHash, tag.ID)
		if err != nil {
			return added, err
		}
		if has {
			continue
		}

		ok, err := repo.AddHashTag(ctx, &domain.HashTag{
			FileHash:   fileHash,
			TagID:      tag.ID,
			Source:     constants.HashTagSourceColor,
			Confidence: sql.NullFloat64{Float64: r.Confidence, Valid: true},
		})
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}
