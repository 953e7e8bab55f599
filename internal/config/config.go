package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	config := GetDefaults()

	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/img-sentinel/")
	viper.AddConfigPath("$HOME/.img-sentinel/")

	// Environment variable overrides
	viper.SetEnvPrefix("IMGSENTINEL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.MaxBatchFiles <= 0 {
		return fmt.Errorf("max_batch_files must be positive")
	}

	if config.Corpus.Source != "parquet" && config.Corpus.Source != "postgres" {
		return fmt.Errorf("invalid corpus source: %s (must be parquet or postgres)", config.Corpus.Source)
	}

	if config.Corpus.SimilarityThreshold < 0 || config.Corpus.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be within [0,1]: %f", config.Corpus.SimilarityThreshold)
	}

	if config.Fusion.HashWeight < 0 || config.Fusion.MetadataWeight < 0 || config.Fusion.DetectionWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative")
	}

	if config.Fusion.ConfidenceThreshold <= 0.5 || config.Fusion.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be within (0.5,1]: %f", config.Fusion.ConfidenceThreshold)
	}

	if config.Extractor.Type != "onnx" && config.Extractor.Type != "phash" {
		return fmt.Errorf("invalid extractor type: %s (must be onnx or phash)", config.Extractor.Type)
	}

	if config.Classifier.Enabled && config.Classifier.Workers <= 0 {
		return fmt.Errorf("classifier workers must be positive")
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := &Config{}
		if err := viper.Unmarshal(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		if err := validateConfig(newConfig); err != nil {
			// Log error but don't crash
			return
		}

		callback(newConfig)
	})

	return nil
}
