// internal/matchindex/index.go
package matchindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"jobhunt-pipeline/internal/common/logger"
	"jobhunt-pipeline/internal/common/metrics"
	"jobhunt-pipeline/internal/embedding"
	"jobhunt-pipeline/internal/models"
)

var (
	ErrIndexNotReady = errors.New("INDEX_NOT_READY")
	ErrNoChunks      = errors.New("NO_CHUNKS")
)

// Hit is one retrieval result.
type Hit struct {
	Chunk      models.ResumeChunk
	Similarity float64
}

// snapshot is one immutable build of the index. Queries only ever see a
// fully built snapshot; Rebuild publishes a new one with an atomic swap.
type snapshot struct {
	version      string
	chunks       []models.ResumeChunk
	failedChunks []int
	partial      bool
}

// Index stores embedded resume chunks and answers nearest-neighbor queries.
// Reads are unbounded and lock-free; rebuilds are exclusive.
type Index struct {
	provider embedding.Provider
	logger   logger.Logger

	current   atomic.Pointer[snapshot]
	rebuildMu sync.Mutex
}

func New(provider embedding.Provider, log logger.Logger) *Index {
	return &Index{
		provider: provider,
		logger:   log.WithFields(map[string]interface{}{"component": "matchindex"}),
	}
}

// Rebuild embeds all chunks for a new resume version and atomically replaces
// any prior index. A chunk whose embedding fails is recorded and skipped;
// the rebuild proceeds with the remainder and the snapshot is marked partial.
// Prior match scores are invalidated by the version change.
func (idx *Index) Rebuild(ctx context.Context, version string, chunks []models.ResumeChunk) error {
	idx.rebuildMu.Lock()
	defer idx.rebuildMu.Unlock()

	if len(chunks) == 0 {
		return ErrNoChunks
	}

	next := &snapshot{version: version}
	for _, ch := range chunks {
		vec, err := idx.provider.Embed(ctx, ch.Text)
		if err != nil {
			if ctx.Err() != nil {
				metrics.IndexRebuildsTotal.WithLabelValues("aborted").Inc()
				return fmt.Errorf("rebuild aborted: %w", ctx.Err())
			}
			idx.logger.Warn("chunk embedding failed, skipping", map[string]interface{}{
				"chunkIndex": ch.Index,
				"error":      err.Error(),
			})
			next.failedChunks = append(next.failedChunks, ch.Index)
			continue
		}
		ch.Embedding = vec
		next.chunks = append(next.chunks, ch)
	}

	if len(next.chunks) == 0 {
		metrics.IndexRebuildsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("all %d chunks failed to embed", len(chunks))
	}
	next.partial = len(next.failedChunks) > 0

	idx.current.Store(next)

	result := "complete"
	if next.partial {
		result = "partial"
	}
	metrics.IndexRebuildsTotal.WithLabelValues(result).Inc()
	idx.logger.Info("index rebuilt", map[string]interface{}{
		"version":      version,
		"chunks":       len(next.chunks),
		"failedChunks": len(next.failedChunks),
		"partial":      next.partial,
	})

	return nil
}

// Query returns up to k chunks most similar to the text, descending by
// cosine similarity, ties broken by ascending chunk index.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	snap := idx.current.Load()
	if snap == nil {
		return nil, ErrIndexNotReady
	}
	if k <= 0 {
		return nil, nil
	}

	queryVec, err := idx.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits := make([]Hit, 0, len(snap.chunks))
	for _, ch := range snap.chunks {
		hits = append(hits, Hit{
			Chunk:      ch,
			Similarity: cosineSimilarity(queryVec, ch.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Version returns the resume version of the published snapshot, or empty
// before the first successful rebuild.
func (idx *Index) Version() string {
	if snap := idx.current.Load(); snap != nil {
		return snap.version
	}
	return ""
}

// Partial reports whether the published snapshot is missing failed chunks.
func (idx *Index) Partial() bool {
	if snap := idx.current.Load(); snap != nil {
		return snap.partial
	}
	return false
}

// Chunks returns a copy of the embedded chunks in the published snapshot.
func (idx *Index) Chunks() []models.ResumeChunk {
	if snap := idx.current.Load(); snap != nil {
		return append([]models.ResumeChunk(nil), snap.chunks...)
	}
	return nil
}

// FailedChunks returns the chunk indexes that could not be embedded during
// the last rebuild.
func (idx *Index) FailedChunks() []int {
	if snap := idx.current.Load(); snap != nil {
		return append([]int(nil), snap.failedChunks...)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
