// Package similarity computes cosine similarity between artwork embeddings and
// records the pairs that clear a threshold.
package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/cesargomez89/artshelf/internal/domain"
)

// EdgeWriter persists an undirected similarity edge. Implementations keep the
// larger score when the pair already exists.
type EdgeWriter interface {
	UpsertSimilarity(ctx context.Context, a, b int64, score float64) error
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// magnitude or their dimensions differ.
func Cosine(a, b domain.Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type Engine struct {
	writer EdgeWriter
	logger *slog.Logger
}

func NewEngine(writer EdgeWriter, log *slog.Logger) *Engine {
	return &Engine{writer: writer, logger: log}
}

// ComputeAndStore compares subject against every candidate and writes the
// pairs scoring at least threshold. It returns the number of edges written.
func (e *Engine) ComputeAndStore(ctx context.Context, subjectID int64, subject domain.Vector, candidates []domain.FileVector, threshold float64) (int, error) {
	written := 0
	for _, c := range candidates {
		if c.ID == subjectID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if len(c.Vector) != len(subject) {
			e.logger.Warn("Skipping candidate with mismatched dimensions",
				"file_id", subjectID, "candidate_id", c.ID, "dims", len(subject), "candidate_dims", len(c.Vector))
			continue
		}

		score := Cosine(subject, c.Vector)
		if score < threshold {
			continue
		}
		if err := e.writer.UpsertSimilarity(ctx, subjectID, c.ID, score); err != nil {
			return written, fmt.Errorf("store edge %d-%d: %w", subjectID, c.ID, err)
		}
		written++
	}
	return written, nil
}

// ComputeAll scores every unordered pair once. The resulting edge set equals
// running ComputeAndStore for each file against all the others.
func (e *Engine) ComputeAll(ctx context.Context, vectors []domain.FileVector, threshold float64) (int, error) {
	written := 0
	for i := range vectors {
		n, err := e.ComputeAndStore(ctx, vectors[i].ID, vectors[i].Vector, vectors[i+1:], threshold)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// MemoryWriter collects edges in memory with the same canonical ordering and
// max-score semantics as the store. Dry runs write here.
type MemoryWriter struct {
	mu    sync.Mutex
	edges map[[2]int64]float64
}

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{edges: make(map[[2]int64]float64)}
}

func (m *MemoryWriter) UpsertSimilarity(_ context.Context, a, b int64, score float64) error {
	if a == b {
		return fmt.Errorf("similarity pair needs two distinct files, got %d twice", a)
	}
	low, high := domain.CanonicalPair(a, b)
	key := [2]int64{low, high}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.edges[key]; !ok || score > prev {
		m.edges[key] = score
	}
	return nil
}

// Edges returns the collected edges ordered by (low, high).
func (m *MemoryWriter) Edges() []domain.SimilarityEdge {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.SimilarityEdge, 0, len(m.edges))
	for k, score := range m.edges {
		out = append(out, domain.SimilarityEdge{IDLow: k[0], IDHigh: k[1], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IDLow != out[j].IDLow {
			return out[i].IDLow < out[j].IDLow
		}
		return out[i].IDHigh < out[j].IDHigh
	})
	return out
}

func (m *MemoryWriter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.edges)
}
