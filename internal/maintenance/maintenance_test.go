package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesargomez89/artshelf/internal/app"
	"github.com/cesargomez89/artshelf/internal/config"
	"github.com/cesargomez89/artshelf/internal/constants"
	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/extractor"
	"github.com/cesargomez89/artshelf/internal/logger"
	"github.com/cesargomez89/artshelf/internal/similarity"
	"github.com/cesargomez89/artshelf/internal/store"
)

type fakeExtractor struct {
	mu        sync.Mutex
	vectors   map[string]domain.Vector
	embedded  []string
	clearDays int
	onEmbed   func()
}

func (f *fakeExtractor) Inspect(context.Context, string) (*extractor.Metadata, error) {
	return nil, fmt.Errorf("%w: inspect not expected", extractor.ErrExtractor)
}

func (f *fakeExtractor) Embed(_ context.Context, imagePath string) (domain.Vector, error) {
	if f.onEmbed != nil {
		f.onEmbed()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedded = append(f.embedded, imagePath)
	v, ok := f.vectors[imagePath]
	if !ok {
		return nil, fmt.Errorf("%w: no vector for %s", extractor.ErrExtractor, imagePath)
	}
	return v, nil
}

func (f *fakeExtractor) ClearTemp(_ context.Context, days int) (*extractor.ClearTempResult, error) {
	f.clearDays = days
	return &extractor.ClearTempResult{TempDir: "/tmp/procreate_thumbs", Removed: 4}, nil
}

type fixture struct {
	db  *store.DB
	ext *fakeExtractor
	svc *Service
	dir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := store.NewSQLiteDB(filepath.Join(dir, "artshelf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		SimilarityThreshold:    0.85,
		ColorTaggingEnabled:    true,
		ColorTagMinConfidence:  0.15,
		ColorTagLimit:          3,
		MaintenanceConcurrency: 2,
	}
	ext := &fakeExtractor{vectors: make(map[string]domain.Vector)}
	settings := app.NewSettingsService(store.NewSettingsRepo(db), cfg)
	return &fixture{
		db:  db,
		ext: ext,
		svc: New(db, ext, settings, cfg, logger.Discard()),
		dir: dir,
	}
}

func writeSolidPNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// seed stores a file whose thumbnail is a solid color. A nil color leaves the
// thumbnail path pointing at nothing; a nil vector leaves the file unembedded.
func (fx *fixture) seed(t *testing.T, name, hash string, c *color.NRGBA, vector domain.Vector) *domain.ArtworkFile {
	t.Helper()
	ctx := context.Background()
	thumb := filepath.Join(fx.dir, hash+constants.ExtPNG)
	if c != nil {
		writeSolidPNG(t, thumb, *c)
	}
	f := &domain.ArtworkFile{
		FilePath:      filepath.Join(fx.dir, name+constants.ExtProcreate),
		FileHash:      hash,
		ThumbnailPath: sql.NullString{String: thumb, Valid: true},
	}
	require.NoError(t, fx.db.UpsertFile(ctx, f))
	if vector != nil {
		require.NoError(t, fx.db.UpdateFileVector(ctx, f.ID, vector))
	}
	return f
}

func (fx *fixture) tagHash(t *testing.T, hash, tag, source string) {
	t.Helper()
	ctx := context.Background()
	tg, err := fx.db.GetTagByName(ctx, tag)
	require.NoError(t, err)
	_, err = fx.db.AddHashTag(ctx, &domain.HashTag{FileHash: hash, TagID: tg.ID, Source: source})
	require.NoError(t, err)
}

func tagNames(t *testing.T, db *store.DB, hash string) map[string]string {
	t.Helper()
	tags, err := db.TagsForHash(context.Background(), hash)
	require.NoError(t, err)
	out := make(map[string]string, len(tags))
	for _, ht := range tags {
		out[ht.TagName] = ht.Source
	}
	return out
}

var (
	red  = &color.NRGBA{R: 230, G: 10, B: 20, A: 255}
	blue = &color.NRGBA{R: 30, G: 70, B: 200, A: 255}
)

func seedGraph(t *testing.T, fx *fixture) []*domain.ArtworkFile {
	return []*domain.ArtworkFile{
		fx.seed(t, "fox", "ha", red, domain.Vector{1, 0, 0}),
		fx.seed(t, "fox-2", "hb", red, domain.Vector{0.95, 0.3, 0}),
		fx.seed(t, "sky", "hc", blue, domain.Vector{0, 1, 0}),
		fx.seed(t, "sky-2", "hd", blue, domain.Vector{0.1, 0.99, 0}),
	}
}

func TestRecomputeSimilarity_MatchesIncremental(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	files := seedGraph(t, fx)

	// Build the graph the way the vector stage does: each file against the
	// ones embedded before it.
	engine := similarity.NewEngine(fx.db, logger.Discard().Logger)
	var prior []domain.FileVector
	for _, f := range files {
		got, err := fx.db.GetFileByID(ctx, f.ID)
		require.NoError(t, err)
		v, err := domain.DecodeVector(got.Vector.String)
		require.NoError(t, err)
		_, err = engine.ComputeAndStore(ctx, f.ID, v, prior, 0.85)
		require.NoError(t, err)
		prior = append(prior, domain.FileVector{ID: f.ID, Vector: v})
	}

	report, err := fx.svc.RecomputeSimilarity(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Files)
	assert.Equal(t, 4, report.Vectors)
	assert.Equal(t, 2, report.EdgesBefore)
	assert.Equal(t, 2, report.EdgesAfter)
	assert.Zero(t, report.Added)
	assert.Zero(t, report.Removed)
	assert.Zero(t, report.Changed)
}

func TestRecomputeSimilarity_DryRunWritesNothing(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	files := seedGraph(t, fx)
	a, b, c := files[0], files[1], files[2]

	require.NoError(t, fx.db.UpsertSimilarity(ctx, a.ID, c.ID, 0.9))
	require.NoError(t, fx.db.UpsertSimilarity(ctx, a.ID, b.ID, 0.5))

	report, err := fx.svc.RecomputeSimilarity(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.EdgesBefore)
	assert.Equal(t, 2, report.EdgesAfter)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 1, report.Changed)

	edges, err := fx.db.ListSimilarities(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, e := range edges {
		if e.IDLow == a.ID && e.IDHigh == b.ID {
			assert.InDelta(t, 0.5, e.Score, 1e-9)
		}
	}

	report, err = fx.svc.RecomputeSimilarity(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, report.DryRun)

	edges, err = fx.db.ListSimilarities(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.NotEqual(t, [2]int64{a.ID, c.ID}, [2]int64{e.IDLow, e.IDHigh})
		assert.GreaterOrEqual(t, e.Score, 0.85)
	}

	// A second run over the rebuilt graph changes nothing.
	report, err = fx.svc.RecomputeSimilarity(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, report.Added+report.Removed+report.Changed)
}

func TestRecomputeSimilarity_RegenerateVectors(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a := fx.seed(t, "a", "ha", red, domain.Vector{1, 0})
	b := fx.seed(t, "b", "hb", red, domain.Vector{0, 1})
	missing := fx.seed(t, "gone", "hg", nil, domain.Vector{0.99, 0.1})
	broken := fx.seed(t, "broken", "hx", blue, domain.Vector{0, 1})

	fx.ext.vectors[a.ThumbnailPath.String] = domain.Vector{1, 0}
	fx.ext.vectors[b.ThumbnailPath.String] = domain.Vector{0.99, 0.12}

	report, err := fx.svc.RecomputeSimilarity(ctx, Options{DryRun: true, RegenerateVectors: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.VectorsRegenerated)
	assert.Equal(t, 1, report.VectorsFailed)
	assert.Equal(t, 4, report.Vectors)
	// a-b, a-missing and b-missing all clear the threshold after regeneration.
	assert.Equal(t, 3, report.Added)
	assert.Zero(t, report.EdgesBefore)

	stored, err := fx.db.GetFileByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "[0,1]", stored.Vector.String)
	cached, err := fx.db.GetCache(ctx, constants.VectorCacheKeyPrefix+"hb")
	require.NoError(t, err)
	assert.Nil(t, cached)

	report, err = fx.svc.RecomputeSimilarity(ctx, Options{RegenerateVectors: true})
	require.NoError(t, err)
	assert.Equal(t, 3, report.EdgesAfter)

	stored, err = fx.db.GetFileByID(ctx, b.ID)
	require.NoError(t, err)
	v, err := domain.DecodeVector(stored.Vector.String)
	require.NoError(t, err)
	assert.Equal(t, domain.Vector{0.99, 0.12}, v)

	cached, err = fx.db.GetCache(ctx, constants.VectorCacheKeyPrefix+"hb")
	require.NoError(t, err)
	assert.NotNil(t, cached)

	// The failed file keeps its old vector.
	stored, err = fx.db.GetFileByID(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, "[0,1]", stored.Vector.String)
	assert.NotContains(t, fx.ext.embedded, missing.ThumbnailPath.String)
}

func TestRecomputeSimilarity_KeepsFilesVectorizedDuringRegeneration(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fox := fx.seed(t, "fox", "ha", red, domain.Vector{1, 0, 0})
	fx.ext.vectors[fox.ThumbnailPath.String] = domain.Vector{1, 0, 0}

	// The vector stage finishes another file while thumbnails are re-embedded.
	var (
		once    sync.Once
		late    *domain.ArtworkFile
		lateErr error
	)
	fx.ext.onEmbed = func() {
		once.Do(func() {
			late = &domain.ArtworkFile{FilePath: filepath.Join(fx.dir, "late.procreate"), FileHash: "hl"}
			if lateErr = fx.db.UpsertFile(ctx, late); lateErr != nil {
				return
			}
			if lateErr = fx.db.UpdateFileVector(ctx, late.ID, domain.Vector{1, 0, 0}); lateErr != nil {
				return
			}
			lateErr = fx.db.UpsertSimilarity(ctx, fox.ID, late.ID, 1)
		})
	}

	report, err := fx.svc.RecomputeSimilarity(ctx, Options{RegenerateVectors: true})
	require.NoError(t, err)
	require.NoError(t, lateErr)
	require.NotNil(t, late)
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, 2, report.Vectors)
	assert.Equal(t, 1, report.VectorsRegenerated)

	edges, err := fx.db.SimilarFiles(ctx, late.ID, 0)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, fox.ID, edges[0].IDLow)
	assert.Equal(t, late.ID, edges[0].IDHigh)
}

func TestRecomputeSimilarity_SkipsMalformedVectors(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	seedGraph(t, fx)
	bad := fx.seed(t, "bad", "hz", red, domain.Vector{1, 0, 0})
	_, err := fx.db.ExecContext(ctx, `UPDATE artwork_files SET vector = 'nope' WHERE id = ?`, bad.ID)
	require.NoError(t, err)

	report, err := fx.svc.RecomputeSimilarity(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Malformed)
	assert.Equal(t, 4, report.Vectors)
	assert.Equal(t, 2, report.EdgesAfter)
}

func TestMaintenance_Locked(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	held := flock.New(fx.svc.LockPath())
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	_, err = fx.svc.RecomputeSimilarity(ctx, Options{DryRun: true})
	assert.ErrorIs(t, err, ErrLocked)
	_, err = fx.svc.RecomputeColorTags(ctx, Options{DryRun: true})
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, held.Unlock())
	_, err = fx.svc.RecomputeSimilarity(ctx, Options{DryRun: true})
	assert.NoError(t, err)
}

func TestRecomputeColorTags(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.seed(t, "fox", "hr", red, nil)
	fx.seed(t, "fox-copy", "hr", nil, nil)
	fx.seed(t, "sky", "hb", blue, nil)
	fx.seed(t, "lost", "hm", nil, nil)

	fx.tagHash(t, "hr", "green", constants.HashTagSourceColor)
	fx.tagHash(t, "hb", "blue", constants.HashTagSourceManual)
	fx.tagHash(t, "hm", "green", constants.HashTagSourceColor)

	report, err := fx.svc.RecomputeColorTags(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Hashes)
	assert.Equal(t, 2, report.Analyzed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, report.Untouched)
	assert.Equal(t, 2, report.AssociationsBefore)
	assert.Equal(t, 2, report.AssociationsAfter)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 3, report.Limit)

	assert.Equal(t, map[string]string{"green": constants.HashTagSourceColor}, tagNames(t, fx.db, "hr"))

	applied, err := fx.svc.RecomputeColorTags(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, report.AssociationsAfter, applied.AssociationsAfter)
	assert.Equal(t, report.Added, applied.Added)
	assert.Equal(t, report.Removed, applied.Removed)
	assert.Equal(t, 1, applied.Untouched)

	assert.Equal(t, map[string]string{"red": constants.HashTagSourceColor}, tagNames(t, fx.db, "hr"))
	assert.Equal(t, map[string]string{"blue": constants.HashTagSourceManual}, tagNames(t, fx.db, "hb"))
	assert.Equal(t, map[string]string{"green": constants.HashTagSourceColor}, tagNames(t, fx.db, "hm"))

	again, err := fx.svc.RecomputeColorTags(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, again.Added)
	assert.Zero(t, again.Removed)
}

func TestClearTemp_DefaultsDays(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.ClearTemp(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultClearTempDays, fx.ext.clearDays)
	assert.Equal(t, 4, res.Removed)

	_, err = fx.svc.ClearTemp(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 30, fx.ext.clearDays)
}
