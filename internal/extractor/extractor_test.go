package extractor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
)

// encodePNG renders a deterministic test pattern.
func encodePNG(t *testing.T, seed int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8((x*seed + y*3) % 256)
			img.SetRGBA(x, y, color.RGBA{R: v, G: 255 - v, B: uint8(x * y % 256), A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestPHashDeterministic(t *testing.T) {
	p := newPHashExtractor(zap.NewNop())
	data := encodePNG(t, 7)

	first, err := p.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(first) != phashDimensions {
		t.Fatalf("expected %d dimensions, got %d", phashDimensions, len(first))
	}

	second, err := p.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("embedding differs at %d between identical inputs", i)
		}
	}

	for i, v := range first {
		if v != 1.0 && v != -1.0 {
			t.Fatalf("component %d = %v, want +1 or -1", i, v)
		}
	}
}

func TestPHashDistinguishesImages(t *testing.T) {
	p := newPHashExtractor(zap.NewNop())

	a, err := p.Extract(context.Background(), encodePNG(t, 7))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	b, err := p.Extract(context.Background(), encodePNG(t, 101))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different test patterns produced identical embeddings")
	}
}

func TestExtractRejectsGarbage(t *testing.T) {
	p := newPHashExtractor(zap.NewNop())
	if _, err := p.Extract(context.Background(), []byte("not an image")); err == nil {
		t.Error("expected decode error for garbage bytes")
	}
}

func TestExtractHonorsCancelledContext(t *testing.T) {
	p := newPHashExtractor(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Extract(ctx, encodePNG(t, 7)); err == nil {
		t.Error("expected error for a cancelled context")
	}
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(&config.ExtractorConfig{Type: "magic"}, zap.NewNop())
	if err == nil {
		t.Error("expected error for unknown extractor type")
	}
}

func TestNewPHash(t *testing.T) {
	e, err := New(&config.ExtractorConfig{Type: "phash"}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if e.ModelName() != "phash-ext-16x16" {
		t.Errorf("unexpected model name %q", e.ModelName())
	}
}

func TestCacheKeyScopedByModel(t *testing.T) {
	data := encodePNG(t, 7)

	a := &cachedExtractor{inner: newPHashExtractor(zap.NewNop())}
	keyA := a.cacheKey(data)
	keyB := a.cacheKey(encodePNG(t, 101))

	if keyA == keyB {
		t.Error("different images must produce different cache keys")
	}
	if keyA != a.cacheKey(data) {
		t.Error("cache key must be stable for identical bytes")
	}
}

func TestEmbeddingCodecRoundTrip(t *testing.T) {
	original := []float32{1.0, -1.0, 0.5, -0.25, 0}

	decoded, err := decodeEmbedding(encodeEmbedding(original))
	if err != nil {
		t.Fatalf("decodeEmbedding failed: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("expected %d values, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("value %d = %v, want %v", i, decoded[i], original[i])
		}
	}
}

func TestDecodeEmbeddingCorrupt(t *testing.T) {
	if _, err := decodeEmbedding("1.0,x,3"); err == nil {
		t.Error("expected error for corrupt cache data")
	}
	if _, err := decodeEmbedding(""); err == nil {
		t.Error("expected error for empty cache data")
	}
}
