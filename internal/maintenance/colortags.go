package maintenance

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/cesargomez89/artshelf/internal/colortag"
	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/pipeline"
	"github.com/cesargomez89/artshelf/internal/storage"
	"github.com/cesargomez89/artshelf/internal/store"
)

type ColorTagReport struct {
	DryRun             bool    `json:"dry_run"`
	MinConfidence      float64 `json:"min_confidence"`
	Limit              int     `json:"limit"`
	Hashes             int     `json:"hashes"`
	Analyzed           int     `json:"analyzed"`
	Failed             int     `json:"failed"`
	Untouched          int     `json:"untouched"`
	AssociationsBefore int     `json:"associations_before"`
	AssociationsAfter  int     `json:"associations_after"`
	Added              int     `json:"added"`
	Removed            int     `json:"removed"`
}

type hashTarget struct {
	hash      string
	thumbnail string
}

type analysis struct {
	results []colortag.Result
	ok      bool
}

type assoc struct {
	hash string
	tag  string
}

// RecomputeColorTags re-classifies one thumbnail per content hash and replaces
// the color-sourced tags of every hash it could analyze. Manual tags are never
// touched. The enabled toggle only gates the pipeline stage; an explicit
// recompute always runs.
func (s *Service) RecomputeColorTags(ctx context.Context, opts Options) (*ColorTagReport, error) {
	var report *ColorTagReport
	err := s.withLock(func() error {
		var err error
		report, err = s.recomputeColorTags(ctx, opts)
		return err
	})
	return report, err
}

func (s *Service) recomputeColorTags(ctx context.Context, opts Options) (*ColorTagReport, error) {
	log := s.Logger.With("dry_run", opts.DryRun)
	settings := s.Settings.ColorTagging(ctx)
	report := &ColorTagReport{
		DryRun:        opts.DryRun,
		MinConfidence: settings.MinConfidence,
		Limit:         settings.Limit,
	}

	files, err := s.Repo.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	targets := uniqueHashes(files)
	report.Hashes = len(targets)

	before, err := s.Repo.ListHashTagsBySource(ctx, constants.HashTagSourceColor)
	if err != nil {
		return nil, err
	}
	report.AssociationsBefore = len(before)

	analyses := make([]analysis, len(targets))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results, err := colortag.Analyze(t.thumbnail, settings.Limit, settings.MinConfidence)
			if err != nil {
				log.Warn("Color analysis failed", "file_hash", t.hash, "thumbnail_path", t.thumbnail, "error", err)
				return nil
			}
			analyses[i] = analysis{results: results, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, a := range analyses {
		if a.ok {
			report.Analyzed++
		} else {
			report.Failed++
		}
	}
	report.Untouched = untouchedHashes(before, targets, analyses)

	var after []assoc
	if opts.DryRun {
		after, err = s.simulateColorTags(ctx, before, targets, analyses)
	} else {
		after, err = s.applyColorTags(ctx, targets, analyses)
	}
	if err != nil {
		return nil, err
	}

	report.AssociationsAfter = len(after)
	report.Added, report.Removed = diffAssocs(toAssocs(before), after)

	log.Info("Color tags recomputed",
		"hashes", report.Hashes,
		"analyzed", report.Analyzed,
		"failed", report.Failed,
		"untouched", report.Untouched,
		"before", report.AssociationsBefore,
		"after", report.AssociationsAfter,
		"added", report.Added,
		"removed", report.Removed)
	return report, nil
}

func (s *Service) applyColorTags(ctx context.Context, targets []hashTarget, analyses []analysis) ([]assoc, error) {
	var after []assoc
	err := s.Repo.RunInTx(ctx, func(tx *store.DB) error {
		for i, t := range targets {
			if !analyses[i].ok {
				continue
			}
			if _, err := tx.DeleteHashTags(ctx, t.hash, constants.HashTagSourceColor); err != nil {
				return err
			}
			if _, err := pipeline.ApplyColorTags(ctx, tx, t.hash, analyses[i].results, s.Logger.Logger); err != nil {
				return err
			}
		}
		tags, err := tx.ListHashTagsBySource(ctx, constants.HashTagSourceColor)
		if err != nil {
			return err
		}
		after = toAssocs(tags)
		return nil
	})
	return after, err
}

// simulateColorTags predicts the color associations an apply would leave,
// using the same skip rules as ApplyColorTags.
func (s *Service) simulateColorTags(ctx context.Context, before []domain.HashTag, targets []hashTarget, analyses []analysis) ([]assoc, error) {
	replaced := make(map[string]bool, len(targets))
	for i, t := range targets {
		if analyses[i].ok {
			replaced[t.hash] = true
		}
	}

	var after []assoc
	for _, ht := range before {
		if !replaced[ht.FileHash] {
			after = append(after, assoc{hash: ht.FileHash, tag: ht.TagName})
		}
	}

	for i, t := range targets {
		if !analyses[i].ok {
			continue
		}
		existing, err := s.Repo.TagsForHash(ctx, t.hash)
		if err != nil {
			return nil, err
		}
		taken := make(map[string]bool, len(existing))
		for _, ht := range existing {
			if ht.Source != constants.HashTagSourceColor {
				taken[ht.TagName] = true
			}
		}

		for _, r := range analyses[i].results {
			if taken[r.Tag] {
				continue
			}
			if _, err := s.Repo.GetTagByName(ctx, r.Tag); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return nil, err
			}
			taken[r.Tag] = true
			after = append(after, assoc{hash: t.hash, tag: r.Tag})
		}
	}
	return after, nil
}

// untouchedHashes counts the hashes holding color tags that this run leaves
// as they are, because no thumbnail was on disk or the analysis failed.
func untouchedHashes(before []domain.HashTag, targets []hashTarget, analyses []analysis) int {
	replaced := make(map[string]bool, len(targets))
	for i, t := range targets {
		if analyses[i].ok {
			replaced[t.hash] = true
		}
	}
	kept := make(map[string]bool)
	for _, ht := range before {
		if !replaced[ht.FileHash] {
			kept[ht.FileHash] = true
		}
	}
	return len(kept)
}

// uniqueHashes picks the first file per content hash whose thumbnail is still
// on disk.
func uniqueHashes(files []*domain.ArtworkFile) []hashTarget {
	seen := make(map[string]bool, len(files))
	var targets []hashTarget
	for _, f := range files {
		if seen[f.FileHash] || !f.ThumbnailPath.Valid || !storage.Exists(f.ThumbnailPath.String) {
			continue
		}
		seen[f.FileHash] = true
		targets = append(targets, hashTarget{hash: f.FileHash, thumbnail: f.ThumbnailPath.String})
	}
	return targets
}

func toAssocs(tags []domain.HashTag) []assoc {
	out := make([]assoc, 0, len(tags))
	for _, ht := range tags {
		out = append(out, assoc{hash: ht.FileHash, tag: ht.TagName})
	}
	return out
}

func diffAssocs(before, after []assoc) (added, removed int) {
	old := make(map[assoc]bool, len(before))
	for _, a := range before {
		old[a] = true
	}
	for _, a := range after {
		if old[a] {
			delete(old, a)
			continue
		}
		added++
	}
	return added, len(old)
}
