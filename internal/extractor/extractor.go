package extractor

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
)

// Extractor turns raw image bytes into a feature embedding suitable for
// the reference corpus search. Implementations must be deterministic:
// identical bytes always yield an identical embedding.
type Extractor interface {
	// Extract decodes the image and computes its embedding.
	Extract(ctx context.Context, data []byte) ([]float32, error)
	// ModelName identifies the backing model or algorithm.
	ModelName() string
	// Close releases native resources.
	Close() error
}

// New builds the configured extractor, wrapped with the Redis embedding
// cache when enabled. Cache connectivity problems do not fail
// construction; the cache degrades to recompute at request time.
func New(cfg *config.ExtractorConfig, logger *zap.Logger) (Extractor, error) {
	var inner Extractor
	var err error

	switch cfg.Type {
	case "onnx":
		inner, err = newONNXExtractor(cfg, logger)
	case "phash":
		inner = newPHashExtractor(logger)
	default:
		return nil, fmt.Errorf("unknown extractor type: %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s extractor: %w", cfg.Type, err)
	}

	if !cfg.Cache.Enabled {
		return inner, nil
	}

	opts, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	return newCachedExtractor(inner, client, cfg.Cache.TTL, logger), nil
}
