package classifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
	"github.com/trainguard/img-sentinel/internal/fusion"
)

// Classifier runs the AI-vs-real detection model on an image and
// returns its evidence. A nil Classifier in the pipeline means the
// detection layer is disabled entirely.
type Classifier interface {
	// Classify decodes the image, runs inference, and maps the label
	// scores to detection evidence.
	Classify(ctx context.Context, data []byte) (*fusion.DetectionEvidence, error)
	// ModelName identifies the backing model.
	ModelName() string
	// Close stops workers and releases native resources.
	Close() error
}

// New builds the configured classifier behind a worker pool. A disabled
// configuration yields (nil, nil).
func New(cfg *config.ClassifierConfig, logger *zap.Logger) (Classifier, error) {
	if !cfg.Enabled {
		logger.Info("Detection classifier disabled")
		return nil, nil
	}
	if len(cfg.Labels) == 0 {
		return nil, fmt.Errorf("classifier labels must not be empty")
	}

	backend, err := newONNXClassifier(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return newPool(backend, workers, logger), nil
}
