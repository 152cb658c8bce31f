package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
)

func (db *DB) GetTagByName(ctx context.Context, name string) (*domain.Tag, error) {
	var tag domain.Tag
	err := db.GetContext(ctx, &tag, `SELECT id, name, category FROM tags WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tag %q: %w", name, err)
	}
	return &tag, nil
}

func (db *DB) CreateTag(ctx context.Context, name, category string) (*domain.Tag, error) {
	tag := &domain.Tag{Name: name, Category: category}
	err := db.QueryRowxContext(ctx,
		`INSERT INTO tags (name, category) VALUES (?, ?) RETURNING id`, name, category).Scan(&tag.ID)
	if err != nil {
		return nil, fmt.Errorf("create tag %q: %w", name, err)
	}
	return tag, nil
}

func (db *DB) ListTags(ctx context.Context, category string) ([]domain.Tag, error) {
	var tags []domain.Tag
	var err error
	if category == "" {
		err = db.SelectContext(ctx, &tags, `SELECT id, name, category FROM tags ORDER BY name`)
	} else {
		err = db.SelectContext(ctx, &tags, `SELECT id, name, category FROM tags WHERE category = ? ORDER BY name`, category)
	}
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// AddHashTag associates a tag with a content hash. It never replaces an
// existing association and reports whether a row was inserted.
func (db *DB) AddHashTag(ctx context.Context, ht *domain.HashTag) (bool, error) {
	if ht.Source == "" {
		ht.Source = constants.HashTagSourceManual
	}
	type hashTagRow struct {
		Confidence sql.NullFloat64 `db:"confidence"`
		FileHash   string          `db:"file_hash"`
		Source     string          `db:"source"`
		CreatedAt  string          `db:"created_at"`
		TagID      int64           `db:"tag_id"`
	}

	res, err := db.NamedExecContext(ctx, `INSERT OR IGNORE INTO hash_tags (file_hash, tag_id, source, confidence, created_at)
		VALUES (:file_hash, :tag_id, :source, :confidence, :created_at)`,
		hashTagRow{
			Confidence: ht.Confidence,
			FileHash:   ht.FileHash,
			Source:     ht.Source,
			CreatedAt:  now(),
			TagID:      ht.TagID,
		})
	if err != nil {
		return false, fmt.Errorf("add tag %d to hash %s: %w", ht.TagID, ht.FileHash, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (db *DB) HasHashTag(ctx context.Context, fileHash string, tagID int64) (bool, error) {
	var count int
	err := db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM hash_tags WHERE file_hash = ? AND tag_id = ?`, fileHash, tagID)
	if err != nil {
		return false, fmt.Errorf("check tag %d on hash %s: %w", tagID, fileHash, err)
	}
	return count > 0, nil
}

const hashTagSelect = `SELECT ht.file_hash, ht.tag_id, t.name AS tag_name, ht.source, ht.confidence, ht.created_at
	FROM hash_tags ht JOIN tags t ON t.id = ht.tag_id`

func (db *DB) TagsForHash(ctx context.Context, fileHash string) ([]domain.HashTag, error) {
	var tags []domain.HashTag
	err := db.SelectContext(ctx, &tags, hashTagSelect+` WHERE ht.file_hash = ? ORDER BY t.name`, fileHash)
	if err != nil {
		return nil, fmt.Errorf("tags for hash %s: %w", fileHash, err)
	}
	return tags, nil
}

func (db *DB) ListHashTagsBySource(ctx context.Context, source string) ([]domain.HashTag, error) {
	var tags []domain.HashTag
	err := db.SelectContext(ctx, &tags, hashTagSelect+` WHERE ht.source = ? ORDER BY ht.file_hash, t.name`, source)
	if err != nil {
		return nil, fmt.Errorf("list %s hash tags: %w", source, err)
	}
	return tags, nil
}

// DeleteHashTags removes the associations source created on one hash.
func (db *DB) DeleteHashTags(ctx context.Context, fileHash, source string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM hash_tags WHERE file_hash = ? AND source = ?`, fileHash, source)
	if err != nil {
		return 0, fmt.Errorf("delete %s tags on hash %s: %w", source, fileHash, err)
	}
	return res.RowsAffected()
}
