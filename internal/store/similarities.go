package store

import (
	"context"
	"fmt"

	"github.com/cesargomez89/artshelf/internal/domain"
)

// UpsertSimilarity stores the canonical pair for a and b. An existing pair
// keeps the larger of the stored and new scores.
func (db *DB) UpsertSimilarity(ctx context.Context, a, b int64, score float64) error {
	if a == b {
		return fmt.Errorf("similarity pair needs two distinct files, got %d twice", a)
	}
	low, high := domain.CanonicalPair(a, b)
	stamp := now()

	_, err := db.ExecContext(ctx, `INSERT INTO similarities (file_id_low, file_id_high, score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_id_low, file_id_high) DO UPDATE SET
			score = MAX(similarities.score, excluded.score),
			updated_at = excluded.updated_at`,
		low, high, score, stamp, stamp)
	if err != nil {
		return fmt.Errorf("upsert similarity (%d, %d): %w", low, high, err)
	}
	return nil
}

// DeleteSimilaritiesForFile removes every edge touching id.
func (db *DB) DeleteSimilaritiesForFile(ctx context.Context, id int64) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM similarities WHERE file_id_low = ? OR file_id_high = ?`, id, id)
	if err != nil {
		return 0, fmt.Errorf("delete similarities for file %d: %w", id, err)
	}
	return res.RowsAffected()
}

func (db *DB) ClearSimilarities(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM similarities`)
	if err != nil {
		return 0, fmt.Errorf("clear similarities: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) ListSimilarities(ctx context.Context) ([]domain.SimilarityEdge, error) {
	var edges []domain.SimilarityEdge
	err := db.SelectContext(ctx, &edges,
		`SELECT file_id_low, file_id_high, score FROM similarities ORDER BY file_id_low, file_id_high`)
	if err != nil {
		return nil, fmt.Errorf("list similarities: %w", err)
	}
	return edges, nil
}

// SimilarFiles returns edges touching id, best match first.
func (db *DB) SimilarFiles(ctx context.Context, id int64, limit int) ([]domain.SimilarityEdge, error) {
	if limit <= 0 {
		limit = -1
	}
	var edges []domain.SimilarityEdge
	err := db.SelectContext(ctx, &edges, `SELECT file_id_low, file_id_high, score FROM similarities
		WHERE file_id_low = ? OR file_id_high = ?
		ORDER BY score DESC, file_id_low, file_id_high
		LIMIT ?`, id, id, limit)
	if err != nil {
		return nil, fmt.Errorf("similar files for %d: %w", id, err)
	}
	return edges, nil
}

func (db *DB) CountSimilarities(ctx context.Context) (int, error) {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM similarities`); err != nil {
		return 0, fmt.Errorf("count similarities: %w", err)
	}
	return count, nil
}
