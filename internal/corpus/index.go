package corpus

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Index holds the immutable in-memory reference corpus and answers
// nearest-neighbor queries by brute-force cosine scan. The corpus is
// small enough that a linear scan beats the operational cost of an
// approximate index; the scan is O(N*D) per query. All fields are
// read-only after construction, so concurrent Search calls are safe
// without locking.
type Index struct {
	vectors   [][]float32
	meta      []EntryMeta
	threshold float64
	dims      int
	loadedAt  time.Time
	logger    *zap.Logger
}

// NewIndex builds an index from row-aligned vectors and metadata. The
// two slices must have equal length and every vector must share the
// same dimensionality.
func NewIndex(vectors [][]float32, meta []EntryMeta, threshold float64, logger *zap.Logger) (*Index, error) {
	if len(vectors) != len(meta) {
		return nil, fmt.Errorf("corpus misaligned: %d vectors vs %d metadata rows", len(vectors), len(meta))
	}

	dims := 0
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("corpus row %d has an empty embedding", i)
		}
		if dims == 0 {
			dims = len(v)
		} else if len(v) != dims {
			return nil, fmt.Errorf("corpus row %d has dimension %d, want %d", i, len(v), dims)
		}
	}

	// Own the slice headers so later mutation of the caller's slices
	// cannot reach the index.
	ownedVectors := make([][]float32, len(vectors))
	copy(ownedVectors, vectors)
	ownedMeta := make([]EntryMeta, len(meta))
	copy(ownedMeta, meta)

	idx := &Index{
		vectors:   ownedVectors,
		meta:      ownedMeta,
		threshold: threshold,
		dims:      dims,
		loadedAt:  time.Now(),
		logger:    logger,
	}

	if logger != nil {
		logger.Info("Embedding index ready",
			zap.Int("entries", len(ownedVectors)),
			zap.Int("dimensions", dims),
			zap.Float64("threshold", threshold))
	}

	return idx, nil
}

// Search scans every corpus entry and returns the best cosine
// similarity. Ties keep the earliest index: a later entry replaces the
// running best only with a strictly greater score. An empty corpus
// yields {Matched: false, Similarity: 0}.
func (idx *Index) Search(query []float32) Match {
	maxSimilarity := 0.0
	maxIdx := -1

	for i, v := range idx.vectors {
		similarity := cosineSimilarity(query, v)
		if similarity > maxSimilarity {
			maxSimilarity = similarity
			maxIdx = i
		}
	}

	if maxIdx >= 0 && maxSimilarity >= idx.threshold {
		return Match{Matched: true, Index: maxIdx, Similarity: maxSimilarity}
	}
	return Match{Matched: false, Index: -1, Similarity: maxSimilarity}
}

// Size returns the number of corpus entries.
func (idx *Index) Size() int {
	return len(idx.vectors)
}

// Dimensions returns the embedding dimensionality, 0 for an empty corpus.
func (idx *Index) Dimensions() int {
	return idx.dims
}

// Threshold returns the match threshold.
func (idx *Index) Threshold() float64 {
	return idx.threshold
}

// Meta returns the metadata row for a corpus index.
func (idx *Index) Meta(i int) (EntryMeta, bool) {
	if i < 0 || i >= len(idx.meta) {
		return EntryMeta{}, false
	}
	return idx.meta[i], true
}

// Stats returns a snapshot describing the loaded corpus.
func (idx *Index) Stats() Stats {
	return Stats{
		Entries:    len(idx.vectors),
		Dimensions: idx.dims,
		Threshold:  idx.threshold,
		LoadedAt:   idx.loadedAt,
	}
}

// cosineSimilarity computes dot(a,b)/(|a||b|) accumulating in float64
// for stable comparisons across scan order.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
