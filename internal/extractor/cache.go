package extractor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// cachedExtractor wraps an extractor with a Redis embedding cache keyed
// by the SHA-256 of the image bytes. Cache failures are logged and
// degrade to recompute; they never fail the extraction.
type cachedExtractor struct {
	inner  Extractor
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func newCachedExtractor(inner Extractor, client *redis.Client, ttl time.Duration, logger *zap.Logger) *cachedExtractor {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	logger.Info("Embedding cache enabled",
		zap.String("extractor", inner.ModelName()),
		zap.Duration("ttl", ttl))

	return &cachedExtractor{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *cachedExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	key := c.cacheKey(data)

	if cached, err := c.getCached(ctx, key); err == nil {
		c.logger.Debug("Embedding cache hit", zap.String("key", key))
		return cached, nil
	} else if err != redis.Nil {
		c.logger.Debug("Embedding cache read failed", zap.Error(err))
	}

	embedding, err := c.inner.Extract(ctx, data)
	if err != nil {
		return nil, err
	}

	// Write back off the request path.
	go c.setCached(context.Background(), key, embedding)

	return embedding, nil
}

func (c *cachedExtractor) ModelName() string {
	return c.inner.ModelName()
}

func (c *cachedExtractor) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Warn("Failed to close redis client", zap.Error(err))
	}
	return c.inner.Close()
}

// cacheKey scopes entries by extractor so corpora built with different
// models never collide.
func (c *cachedExtractor) cacheKey(data []byte) string {
	digest := sha256.Sum256(data)
	return fmt.Sprintf("embedding:img:%s:%x", c.inner.ModelName(), digest)
}

func (c *cachedExtractor) getCached(ctx context.Context, key string) ([]float32, error) {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	return decodeEmbedding(data)
}

func (c *cachedExtractor) setCached(ctx context.Context, key string, embedding []float32) {
	if err := c.client.Set(ctx, key, encodeEmbedding(embedding), c.ttl).Err(); err != nil {
		c.logger.Debug("Embedding cache write failed", zap.Error(err))
	}
}

// encodeEmbedding renders an embedding as comma-separated floats.
func encodeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}

// decodeEmbedding parses the comma-separated cache format.
func decodeEmbedding(data string) ([]float32, error) {
	if data == "" {
		return nil, fmt.Errorf("empty cached embedding")
	}

	parts := strings.Split(data, ",")
	embedding := make([]float32, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 32)
		if err != nil {
			return nil, fmt.Errorf("corrupt cached embedding: %w", err)
		}
		embedding[i] = float32(v)
	}
	return embedding, nil
}
