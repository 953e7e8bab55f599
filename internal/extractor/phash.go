package extractor

import (
	"context"
	"fmt"

	"github.com/corona10/goimagehash"
	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/imaging"
)

// phashDimensions is the embedding length: a 16x16 extended perceptual
// hash gives 256 bits, one embedding component per bit.
const phashDimensions = 256

// phashExtractor computes perceptual-hash embeddings. No model files,
// no native runtime: each DCT hash bit becomes a +1/-1 component, so
// cosine similarity over the embeddings equals 1 - 2*hammingDistance/256
// against other phash embeddings. Useful as a corpus bootstrap and as
// the fallback when the service runs without an inference runtime.
type phashExtractor struct {
	logger *zap.Logger
}

func newPHashExtractor(logger *zap.Logger) *phashExtractor {
	logger.Info("Perceptual hash extractor ready", zap.Int("dimensions", phashDimensions))
	return &phashExtractor{logger: logger}
}

func (p *phashExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	hash, err := goimagehash.ExtPerceptionHash(img, 16, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to compute perceptual hash: %w", err)
	}

	embedding := make([]float32, phashDimensions)
	for i, word := range hash.GetHash() {
		for bit := 0; bit < 64; bit++ {
			idx := i*64 + bit
			if idx >= phashDimensions {
				break
			}
			if word&(1<<uint(63-bit)) != 0 {
				embedding[idx] = 1.0
			} else {
				embedding[idx] = -1.0
			}
		}
	}

	return embedding, nil
}

func (p *phashExtractor) ModelName() string {
	return "phash-ext-16x16"
}

func (p *phashExtractor) Close() error {
	return nil
}
