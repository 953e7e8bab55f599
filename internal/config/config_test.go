package config

import (
	"testing"
	"time"
)

func TestGetDefaults(t *testing.T) {
	cfg := GetDefaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxBatchFiles != 50 {
		t.Errorf("Expected default batch cap 50, got %d", cfg.Server.MaxBatchFiles)
	}
	if cfg.Corpus.SimilarityThreshold != 0.85 {
		t.Errorf("Expected default similarity threshold 0.85, got %f", cfg.Corpus.SimilarityThreshold)
	}
	if cfg.Fusion.HashWeight != 0.3 || cfg.Fusion.MetadataWeight != 0.4 || cfg.Fusion.DetectionWeight != 0.3 {
		t.Errorf("Unexpected default fusion weights: %+v", cfg.Fusion)
	}
	if cfg.Fusion.ConfidenceThreshold != 0.7 {
		t.Errorf("Expected default confidence threshold 0.7, got %f", cfg.Fusion.ConfidenceThreshold)
	}
	if cfg.Extractor.Cache.TTL != 6*time.Hour {
		t.Errorf("Expected default cache TTL 6h, got %v", cfg.Extractor.Cache.TTL)
	}

	if err := validateConfig(cfg); err != nil {
		t.Errorf("Default configuration should validate: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	newValid := func() *Config { return GetDefaults() }

	t.Run("InvalidPort", func(t *testing.T) {
		cfg := newValid()
		cfg.Server.Port = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for port 0")
		}
	})

	t.Run("InvalidCorpusSource", func(t *testing.T) {
		cfg := newValid()
		cfg.Corpus.Source = "sqlite"
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for unknown corpus source")
		}
	})

	t.Run("SimilarityThresholdOutOfRange", func(t *testing.T) {
		cfg := newValid()
		cfg.Corpus.SimilarityThreshold = 1.5
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for similarity threshold > 1")
		}
	})

	t.Run("NegativeWeight", func(t *testing.T) {
		cfg := newValid()
		cfg.Fusion.MetadataWeight = -0.1
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for negative fusion weight")
		}
	})

	t.Run("ConfidenceThresholdTooLow", func(t *testing.T) {
		cfg := newValid()
		cfg.Fusion.ConfidenceThreshold = 0.5
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for confidence threshold at 0.5")
		}
	})

	t.Run("InvalidExtractorType", func(t *testing.T) {
		cfg := newValid()
		cfg.Extractor.Type = "clip"
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for unknown extractor type")
		}
	})

	t.Run("ZeroClassifierWorkers", func(t *testing.T) {
		cfg := newValid()
		cfg.Classifier.Workers = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for zero classifier workers")
		}
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := newValid()
		cfg.Logging.Level = "verbose"
		if err := validateConfig(cfg); err == nil {
			t.Error("Expected error for unknown log level")
		}
	})
}
