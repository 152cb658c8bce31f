package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cesargomez89/artshelf/internal/domain"
)

const fileColumns = `id, file_path, file_name, file_hash, canvas_width, canvas_height, dpi, orientation,
	layer_count, time_spent, color_profile, app_version, source_created_at, source_modified_at,
	thumbnail_path, vector, vector_updated_at, created_at, updated_at`

// UpsertFile inserts or updates the row for f.FilePath and sets f.ID. When the
// content hash changed, the stored vector is dropped so the vector stage
// recomputes it.
func (db *DB) UpsertFile(ctx context.Context, f *domain.ArtworkFile) error {
	if f.FileName == "" {
		f.FileName = filepath.Base(f.FilePath)
	}
	if f.Orientation == "" {
		f.Orientation = "unknown"
	}
	stamp := now()

	err := db.QueryRowxContext(ctx, `INSERT INTO artwork_files (
		file_path, file_name, file_hash, canvas_width, canvas_height, dpi, orientation,
		layer_count, time_spent, color_profile, app_version, source_created_at, source_modified_at,
		thumbnail_path, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(file_path) DO UPDATE SET
		file_name = excluded.file_name,
		file_hash = excluded.file_hash,
		canvas_width = excluded.canvas_width,
		canvas_height = excluded.canvas_height,
		dpi = excluded.dpi,
		orientation = excluded.orientation,
		layer_count = excluded.layer_count,
		time_spent = excluded.time_spent,
		color_profile = excluded.color_profile,
		app_version = excluded.app_version,
		source_created_at = excluded.source_created_at,
		source_modified_at = excluded.source_modified_at,
		thumbnail_path = excluded.thumbnail_path,
		vector = CASE WHEN artwork_files.file_hash = excluded.file_hash THEN artwork_files.vector ELSE NULL END,
		vector_updated_at = CASE WHEN artwork_files.file_hash = excluded.file_hash THEN artwork_files.vector_updated_at ELSE NULL END,
		updated_at = excluded.updated_at
	RETURNING id`,
		f.FilePath, f.FileName, f.FileHash, f.CanvasWidth, f.CanvasHeight, f.DPI, f.Orientation,
		f.LayerCount, f.TimeSpent, f.ColorProfile, f.AppVersion, f.SourceCreatedAt, f.SourceModifiedAt,
		f.ThumbnailPath, stamp, stamp,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", f.FilePath, err)
	}
	return nil
}

func (db *DB) GetFileByID(ctx context.Context, id int64) (*domain.ArtworkFile, error) {
	var f domain.ArtworkFile
	err := db.GetContext(ctx, &f, `SELECT `+fileColumns+` FROM artwork_files WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file %d: %w", id, err)
	}
	return &f, nil
}

func (db *DB) GetFileByPath(ctx context.Context, path string) (*domain.ArtworkFile, error) {
	var f domain.ArtworkFile
	err := db.GetContext(ctx, &f, `SELECT `+fileColumns+` FROM artwork_files WHERE file_path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", path, err)
	}
	return &f, nil
}

func (db *DB) ListFiles(ctx context.Context) ([]*domain.ArtworkFile, error) {
	var files []*domain.ArtworkFile
	if err := db.SelectContext(ctx, &files, `SELECT `+fileColumns+` FROM artwork_files ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// DeleteFile removes the file row. Similarity edges cascade; hash tags stay.
func (db *DB) DeleteFile(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM artwork_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete file %d: %w", id, err)
	}
	return requireRow(res, "file", id)
}

func (db *DB) UpdateFileVector(ctx context.Context, id int64, vector domain.Vector) error {
	value, err := vector.Value()
	if err != nil {
		return fmt.Errorf("encode vector for file %d: %w", id, err)
	}
	stamp := now()
	res, err := db.ExecContext(ctx,
		`UPDATE artwork_files SET vector = ?, vector_updated_at = ?, updated_at = ? WHERE id = ?`,
		value, stamp, stamp, id)
	if err != nil {
		return fmt.Errorf("update vector for file %d: %w", id, err)
	}
	return requireRow(res, "file", id)
}

// ListVectors returns decoded vectors for every file except excludeID (pass 0
// to include all). Rows whose stored JSON cannot be decoded are returned in
// malformed instead of failing the whole read.
func (db *DB) ListVectors(ctx context.Context, excludeID int64) (vectors []domain.FileVector, malformed []int64, err error) {
	type vectorRow struct {
		Vector string `db:"vector"`
		ID     int64  `db:"id"`
	}

	var rows []vectorRow
	err = db.SelectContext(ctx, &rows,
		`SELECT id, vector FROM artwork_files WHERE vector IS NOT NULL AND id != ? ORDER BY id`, excludeID)
	if err != nil {
		return nil, nil, fmt.Errorf("list vectors: %w", err)
	}

	vectors = make([]domain.FileVector, 0, len(rows))
	for _, r := range rows {
		v, decodeErr := domain.DecodeVector(r.Vector)
		if decodeErr != nil {
			malformed = append(malformed, r.ID)
			continue
		}
		vectors = append(vectors, domain.FileVector{ID: r.ID, Vector: v})
	}
	return vectors, malformed, nil
}

// FileStats summarizes ingestion progress for operators.
type FileStats struct {
	Total          int `db:"total"`
	WithThumbnail  int `db:"with_thumbnail"`
	WithVector     int `db:"with_vector"`
	DistinctHashes int `db:"distinct_hashes"`
}

func (db *DB) GetFileStats(ctx context.Context) (*FileStats, error) {
	stats := &FileStats{}
	err := db.GetContext(ctx, stats, `SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN thumbnail_path IS NOT NULL THEN 1 ELSE 0 END), 0) AS with_thumbnail,
		COALESCE(SUM(CASE WHEN vector IS NOT NULL THEN 1 ELSE 0 END), 0) AS with_vector,
		COUNT(DISTINCT file_hash) AS distinct_hashes
	FROM artwork_files`)
	if err != nil {
		return nil, fmt.Errorf("file stats: %w", err)
	}
	return stats, nil
}
