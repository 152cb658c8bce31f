package app

import (
	"context"
	"errors"

	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/store"
)

// LibraryStats summarizes the derived state the pipeline has built.
type LibraryStats struct {
	Files          int `json:"files"`
	WithThumbnail  int `json:"with_thumbnail"`
	WithVector     int `json:"with_vector"`
	DistinctHashes int `json:"distinct_hashes"`
	Edges          int `json:"similarity_edges"`
	ColorTags      int `json:"color_tags"`
}

type SimilarFile struct {
	FilePath string  `json:"file_path"`
	FileID   int64   `json:"file_id"`
	Score    float64 `json:"score"`
}

// LibraryService answers read-only questions about ingested files.
type LibraryService struct {
	Repo *store.DB
}

func NewLibraryService(repo *store.DB) *LibraryService {
	return &LibraryService{Repo: repo}
}

func (s *LibraryService) Stats(ctx context.Context) (*LibraryStats, error) {
	files, err := s.Repo.GetFileStats(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.Repo.CountSimilarities(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := s.Repo.ListHashTagsBySource(ctx, constants.HashTagSourceColor)
	if err != nil {
		return nil, err
	}

	return &LibraryStats{
		Files:          files.Total,
		WithThumbnail:  files.WithThumbnail,
		WithVector:     files.WithVector,
		DistinctHashes: files.DistinctHashes,
		Edges:          edges,
		ColorTags:      len(tags),
	}, nil
}

// Similar lists the files linked to id, strongest first. A limit <= 0 means
// no limit.
func (s *LibraryService) Similar(ctx context.Context, id int64, limit int) ([]SimilarFile, error) {
	if _, err := s.Repo.GetFileByID(ctx, id); err != nil {
		return nil, err
	}

	edges, err := s.Repo.SimilarFiles(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	similar := make([]SimilarFile, 0, len(edges))
	for _, e := range edges {
		other := e.IDLow
		if other == id {
			other = e.IDHigh
		}
		f, err := s.Repo.GetFileByID(ctx, other)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		similar = append(similar, SimilarFile{FileID: f.ID, FilePath: f.FilePath, Score: e.Score})
	}
	return similar, nil
}
