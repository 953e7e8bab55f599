//go:build !onnx
// +build !onnx

package extractor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
)

// Stub used when the 'onnx' build tag is not set. Keeps the default
// build free of CGO while making the misconfiguration explicit.
func newONNXExtractor(cfg *config.ExtractorConfig, logger *zap.Logger) (Extractor, error) {
	return nil, fmt.Errorf("extractor type %q requires a binary built with the onnx tag", cfg.Type)
}
