package corpus

import (
	"math"
	"testing"
)

func testIndex(t *testing.T, vectors [][]float32, threshold float64) *Index {
	t.Helper()

	meta := make([]EntryMeta, len(vectors))
	for i := range meta {
		meta[i] = EntryMeta{ID: string(rune('a' + i)), Source: "test", Generator: "test"}
	}

	idx, err := NewIndex(vectors, meta, threshold, nil)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	return idx
}

func TestSearchExactMatch(t *testing.T) {
	idx := testIndex(t, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}, 0.85)

	match := idx.Search([]float32{0, 1, 0})

	if !match.Matched {
		t.Fatal("expected a match for a query identical to a corpus row")
	}
	if match.Index != 1 {
		t.Errorf("expected index 1, got %d", match.Index)
	}
	if math.Abs(match.Similarity-1.0) > 1e-9 {
		t.Errorf("expected similarity 1.0, got %v", match.Similarity)
	}
}

func TestSearchEmptyCorpus(t *testing.T) {
	idx := testIndex(t, nil, 0.85)

	match := idx.Search([]float32{1, 0, 0})

	if match.Matched {
		t.Error("empty corpus must never match")
	}
	if match.Index != -1 {
		t.Errorf("expected index -1, got %d", match.Index)
	}
	if match.Similarity != 0.0 {
		t.Errorf("expected similarity 0.0, got %v", match.Similarity)
	}
}

func TestSearchBelowThreshold(t *testing.T) {
	idx := testIndex(t, [][]float32{
		{1, 0},
		{0, 1},
	}, 0.85)

	// 45 degrees from both rows: similarity ~0.7071 for each.
	match := idx.Search([]float32{1, 1})

	if match.Matched {
		t.Error("similarity below threshold must not match")
	}
	if match.Index != -1 {
		t.Errorf("expected index -1 for a non-match, got %d", match.Index)
	}
	if math.Abs(match.Similarity-math.Sqrt2/2) > 1e-9 {
		t.Errorf("expected best similarity ~0.7071, got %v", match.Similarity)
	}
}

func TestSearchThresholdInclusive(t *testing.T) {
	// Identical row gives similarity exactly 1.0 against threshold 1.0.
	idx := testIndex(t, [][]float32{{3, 4}}, 1.0)

	match := idx.Search([]float32{3, 4})

	if !match.Matched {
		t.Error("similarity equal to the threshold must match")
	}
}

func TestSearchTieKeepsEarliestIndex(t *testing.T) {
	// Rows 0 and 2 are scalar multiples, so both score 1.0 against the
	// query. The earliest must win.
	idx := testIndex(t, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{2, 0, 0},
	}, 0.85)

	match := idx.Search([]float32{5, 0, 0})

	if !match.Matched {
		t.Fatal("expected a match")
	}
	if match.Index != 0 {
		t.Errorf("tie must keep the earliest corpus index, got %d", match.Index)
	}
}

func TestNewIndexMisaligned(t *testing.T) {
	_, err := NewIndex([][]float32{{1, 0}}, []EntryMeta{}, 0.85, nil)
	if err == nil {
		t.Error("expected error for misaligned vectors and metadata")
	}
}

func TestNewIndexDimensionMismatch(t *testing.T) {
	vectors := [][]float32{{1, 0}, {1, 0, 0}}
	meta := []EntryMeta{{ID: "a"}, {ID: "b"}}

	_, err := NewIndex(vectors, meta, 0.85, nil)
	if err == nil {
		t.Error("expected error for inconsistent embedding dimensions")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"scaled", []float32{1, 1}, []float32{4, 4}, 1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIndexStats(t *testing.T) {
	idx := testIndex(t, [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}, 0.9)

	stats := idx.Stats()
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.Dimensions != 4 {
		t.Errorf("expected 4 dimensions, got %d", stats.Dimensions)
	}
	if stats.Threshold != 0.9 {
		t.Errorf("expected threshold 0.9, got %v", stats.Threshold)
	}
	if stats.LoadedAt.IsZero() {
		t.Error("expected a load timestamp")
	}
}

func TestIndexMeta(t *testing.T) {
	idx := testIndex(t, [][]float32{{1, 0}}, 0.85)

	if _, ok := idx.Meta(0); !ok {
		t.Error("expected metadata for row 0")
	}
	if _, ok := idx.Meta(1); ok {
		t.Error("expected no metadata for out-of-range row")
	}
	if _, ok := idx.Meta(-1); ok {
		t.Error("expected no metadata for negative row")
	}
}
