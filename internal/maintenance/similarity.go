package maintenance

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/pipeline"
	"github.com/cesargomez89/artshelf/internal/similarity"
	"github.com/cesargomez89/artshelf/internal/storage"
	"github.com/cesargomez89/artshelf/internal/store"
)

const scoreEpsilon = 1e-9

type SimilarityReport struct {
	DryRun             bool    `json:"dry_run"`
	Threshold          float64 `json:"threshold"`
	Files              int     `json:"files"`
	Vectors            int     `json:"vectors"`
	VectorsRegenerated int     `json:"vectors_regenerated"`
	VectorsFailed      int     `json:"vectors_failed"`
	Malformed          int     `json:"malformed"`
	EdgesBefore        int     `json:"edges_before"`
	EdgesAfter         int     `json:"edges_after"`
	Added              int     `json:"added"`
	Removed            int     `json:"removed"`
	Changed            int     `json:"changed"`
}

type regenerated struct {
	vector domain.Vector
	hash   string
	id     int64
	ok     bool
}

// vectorSet is the input to a full recompute: every file's vector, with
// freshly regenerated ones taking precedence over stored ones.
type vectorSet struct {
	vectors   []domain.FileVector
	applied   []regenerated
	malformed int
	files     int
}

// RecomputeSimilarity rebuilds the whole similarity graph from stored vectors,
// optionally re-embedding every thumbnail first.
func (s *Service) RecomputeSimilarity(ctx context.Context, opts Options) (*SimilarityReport, error) {
	var report *SimilarityReport
	err := s.withLock(func() error {
		var err error
		report, err = s.recomputeSimilarity(ctx, opts)
		return err
	})
	return report, err
}

func (s *Service) recomputeSimilarity(ctx context.Context, opts Options) (*SimilarityReport, error) {
	log := s.Logger.With("dry_run", opts.DryRun)
	report := &SimilarityReport{DryRun: opts.DryRun, Threshold: s.Threshold}

	var fresh []regenerated
	if opts.RegenerateVectors {
		files, err := s.Repo.ListFiles(ctx)
		if err != nil {
			return nil, err
		}
		fresh, err = s.regenerateVectors(ctx, files, opts.DryRun)
		if err != nil {
			return nil, err
		}
	}
	for _, r := range fresh {
		if r.ok {
			report.VectorsRegenerated++
		} else {
			report.VectorsFailed++
		}
	}

	var before, after []domain.SimilarityEdge
	var set *vectorSet

	if opts.DryRun {
		var err error
		if before, err = s.Repo.ListSimilarities(ctx); err != nil {
			return nil, err
		}
		if set, err = collectVectors(ctx, s.Repo, fresh, log); err != nil {
			return nil, err
		}
		mem := similarity.NewMemoryWriter()
		if _, err := similarity.NewEngine(mem, log).ComputeAll(ctx, set.vectors, s.Threshold); err != nil {
			return nil, err
		}
		after = mem.Edges()
	} else {
		// Files and vectors are read inside the write transaction so work the
		// vector stage committed during regeneration is part of the rebuild.
		err := s.Repo.RunInTx(ctx, func(tx *store.DB) error {
			var err error
			if before, err = tx.ListSimilarities(ctx); err != nil {
				return err
			}
			if set, err = collectVectors(ctx, tx, fresh, log); err != nil {
				return err
			}
			for _, r := range set.applied {
				if err := tx.UpdateFileVector(ctx, r.id, r.vector); err != nil {
					return err
				}
			}
			if _, err := tx.ClearSimilarities(ctx); err != nil {
				return err
			}
			if _, err := similarity.NewEngine(tx, log).ComputeAll(ctx, set.vectors, s.Threshold); err != nil {
				return err
			}
			after, err = tx.ListSimilarities(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	report.Files = set.files
	report.Vectors = len(set.vectors)
	report.Malformed = set.malformed
	report.EdgesBefore = len(before)
	report.EdgesAfter = len(after)
	report.Added, report.Removed, report.Changed = diffEdges(before, after)

	log.Info("Similarity recomputed",
		"files", report.Files,
		"vectors", report.Vectors,
		"regenerated", report.VectorsRegenerated,
		"edges_before", report.EdgesBefore,
		"edges_after", report.EdgesAfter,
		"added", report.Added,
		"removed", report.Removed,
		"changed", report.Changed)
	return report, nil
}

// collectVectors reads the current files and vectors from repo and overlays
// regenerated vectors. A regenerated vector only applies while the file still
// holds the content it was computed from.
func collectVectors(ctx context.Context, repo *store.DB, fresh []regenerated, log *slog.Logger) (*vectorSet, error) {
	files, err := repo.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	stored, malformed, err := repo.ListVectors(ctx, 0)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.Vector, len(stored)+len(fresh))
	for _, fv := range stored {
		byID[fv.ID] = fv.Vector
	}
	hashes := make(map[int64]string, len(files))
	for _, f := range files {
		hashes[f.ID] = f.FileHash
	}
	set := &vectorSet{files: len(files)}
	for _, r := range fresh {
		if r.ok && hashes[r.id] == r.hash {
			byID[r.id] = r.vector
			set.applied = append(set.applied, r)
		}
	}

	for _, id := range malformed {
		if _, replaced := byID[id]; replaced {
			continue
		}
		log.Warn("Skipping malformed stored vector", "file_id", id)
		set.malformed++
	}
	for _, f := range files {
		if v, ok := byID[f.ID]; ok {
			set.vectors = append(set.vectors, domain.FileVector{ID: f.ID, Vector: v})
		}
	}
	return set, nil
}

// regenerateVectors re-embeds every file with a thumbnail on disk. A dry run
// calls the extractor directly so the embedding cache is left alone.
func (s *Service) regenerateVectors(ctx context.Context, files []*domain.ArtworkFile, dryRun bool) ([]regenerated, error) {
	var targets []*domain.ArtworkFile
	for _, f := range files {
		if f.ThumbnailPath.Valid && storage.Exists(f.ThumbnailPath.String) {
			targets = append(targets, f)
		}
	}

	results := make([]regenerated, len(targets))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)

	for i, f := range targets {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			var (
				v   domain.Vector
				err error
			)
			if dryRun {
				v, err = s.Extractor.Embed(gCtx, f.ThumbnailPath.String)
			} else {
				v, err = pipeline.Embedding(gCtx, s.Repo, s.Extractor, f.FileHash, f.ThumbnailPath.String, true)
			}
			if err != nil {
				s.Logger.WithFile(f.ID, f.FilePath).Warn("Vector regeneration failed", "error", err)
				results[i] = regenerated{id: f.ID, hash: f.FileHash}
				return nil
			}
			results[i] = regenerated{id: f.ID, hash: f.FileHash, vector: v, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func diffEdges(before, after []domain.SimilarityEdge) (added, removed, changed int) {
	old := make(map[[2]int64]float64, len(before))
	for _, e := range before {
		old[[2]int64{e.IDLow, e.IDHigh}] = e.Score
	}
	for _, e := range after {
		key := [2]int64{e.IDLow, e.IDHigh}
		score, ok := old[key]
		if !ok {
			added++
			continue
		}
		if math.Abs(score-e.Score) > scoreEpsilon {
			changed++
		}
		delete(old, key)
	}
	removed = len(old)
	return added, removed, changed
}
