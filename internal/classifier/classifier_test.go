package classifier

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
	"github.com/trainguard/img-sentinel/internal/fusion"
)

func TestMapScores(t *testing.T) {
	tests := []struct {
		name           string
		labels         []string
		scores         []float64
		wantAI         bool
		wantConfidence float64
	}{
		{
			name:           "artificial wins",
			labels:         []string{"artificial", "human"},
			scores:         []float64{0.91, 0.09},
			wantAI:         true,
			wantConfidence: 0.91,
		},
		{
			name:           "human wins",
			labels:         []string{"artificial", "human"},
			scores:         []float64{0.2, 0.8},
			wantAI:         false,
			wantConfidence: 0.8,
		},
		{
			name:           "tie is not AI",
			labels:         []string{"artificial", "human"},
			scores:         []float64{0.5, 0.5},
			wantAI:         false,
			wantConfidence: 0.5,
		},
		{
			name:           "multiple labels sum per bucket",
			labels:         []string{"ai art", "fake photo", "real photo"},
			scores:         []float64{0.3, 0.3, 0.4},
			wantAI:         true,
			wantConfidence: 0.6,
		},
		{
			name:           "unmapped label contributes nothing",
			labels:         []string{"landscape", "human"},
			scores:         []float64{0.7, 0.3},
			wantAI:         false,
			wantConfidence: 0.3,
		},
		{
			name:           "confidence rounded to four decimals",
			labels:         []string{"artificial", "human"},
			scores:         []float64{0.123456, 0.876544},
			wantAI:         false,
			wantConfidence: 0.8765,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapScores("test-model", tt.labels, tt.scores)

			if got.IsAIGenerated != tt.wantAI {
				t.Errorf("IsAIGenerated = %v, want %v", got.IsAIGenerated, tt.wantAI)
			}
			if math.Abs(got.Confidence-tt.wantConfidence) > 1e-9 {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if got.ModelName != "test-model" {
				t.Errorf("ModelName = %q", got.ModelName)
			}
			if len(got.RawScores) != len(tt.labels) {
				t.Errorf("RawScores has %d entries, want %d", len(got.RawScores), len(tt.labels))
			}
		})
	}
}

func TestMapScoresAIKeywordChecksFirst(t *testing.T) {
	// "ai portrait of a human" matches both buckets; AI wins the bucket.
	got := mapScores("m", []string{"ai portrait of a human"}, []float64{1.0})
	if !got.IsAIGenerated {
		t.Error("label matching both buckets must count as AI")
	}
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{2.0, 1.0, 0.1})

	var sum float64
	for _, p := range probs {
		sum += p
		if p <= 0 || p >= 1 {
			t.Errorf("probability %v out of (0,1)", p)
		}
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("probabilities sum to %v, want 1.0", sum)
	}
	if !(probs[0] > probs[1] && probs[1] > probs[2]) {
		t.Errorf("softmax must preserve order, got %v", probs)
	}

	if softmax(nil) != nil {
		t.Error("expected nil for empty logits")
	}
}

// fakeBackend counts inferences for pool tests.
type fakeBackend struct {
	calls atomic.Int64
	err   error
}

func (f *fakeBackend) Classify(ctx context.Context, data []byte) (*fusion.DetectionEvidence, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &fusion.DetectionEvidence{ModelName: "fake", IsAIGenerated: true, Confidence: 0.9}, nil
}

func (f *fakeBackend) ModelName() string { return "fake" }
func (f *fakeBackend) Close() error      { return nil }

func TestPoolClassify(t *testing.T) {
	backend := &fakeBackend{}
	p := newPool(backend, 2, zap.NewNop())
	defer p.Close()

	evidence, err := p.Classify(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if evidence == nil || !evidence.IsAIGenerated {
		t.Errorf("unexpected evidence %+v", evidence)
	}
}

func TestPoolPropagatesErrors(t *testing.T) {
	backend := &fakeBackend{err: errors.New("inference blew up")}
	p := newPool(backend, 1, zap.NewNop())
	defer p.Close()

	if _, err := p.Classify(context.Background(), []byte("img")); err == nil {
		t.Error("expected backend error to propagate")
	}
}

func TestPoolConcurrentCallers(t *testing.T) {
	backend := &fakeBackend{}
	p := newPool(backend, 2, zap.NewNop())
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Classify(context.Background(), []byte("img")); err != nil {
				t.Errorf("Classify failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := backend.calls.Load(); got != 20 {
		t.Errorf("expected 20 inferences, got %d", got)
	}
}

func TestPoolCancelledContext(t *testing.T) {
	backend := &fakeBackend{}
	p := newPool(backend, 1, zap.NewNop())
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Classify(ctx, []byte("img")); err == nil {
		t.Error("expected error for a cancelled context")
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := newPool(&fakeBackend{}, 1, zap.NewNop())
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestNewDisabled(t *testing.T) {
	c, err := New(&config.ClassifierConfig{Enabled: false}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c != nil {
		t.Error("disabled classifier must be nil")
	}
}

func TestNewWithoutLabels(t *testing.T) {
	if _, err := New(&config.ClassifierConfig{Enabled: true}, zap.NewNop()); err == nil {
		t.Error("expected error for empty label list")
	}
}
