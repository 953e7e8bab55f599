//go:build !onnx
// +build !onnx

package classifier

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
)

// Stub used when the 'onnx' build tag is not set. The detection layer
// either runs a real model or is disabled in configuration; there is no
// silent downgrade.
func newONNXClassifier(cfg *config.ClassifierConfig, logger *zap.Logger) (Classifier, error) {
	return nil, fmt.Errorf("classifier %q requires a binary built with the onnx tag", cfg.ModelName)
}
