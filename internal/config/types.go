package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Corpus     CorpusConfig     `yaml:"corpus" mapstructure:"corpus"`
	Fusion     FusionConfig     `yaml:"fusion" mapstructure:"fusion"`
	Extractor  ExtractorConfig  `yaml:"extractor" mapstructure:"extractor"`
	Metadata   MetadataConfig   `yaml:"metadata" mapstructure:"metadata"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	WebSocket  WebSocketConfig  `yaml:"websocket" mapstructure:"websocket"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `yaml:"port" mapstructure:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxUploadSize int64         `yaml:"max_upload_size" mapstructure:"max_upload_size"` // bytes per file
	MaxBatchFiles int           `yaml:"max_batch_files" mapstructure:"max_batch_files"`
}

// CorpusConfig describes where the reference embedding corpus is loaded from.
// The corpus is loaded once at startup and is read-only afterwards.
type CorpusConfig struct {
	Source              string         `yaml:"source" mapstructure:"source"` // parquet or postgres
	ParquetPath         string         `yaml:"parquet_path" mapstructure:"parquet_path"`
	SimilarityThreshold float64        `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	Database            DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig contains the Postgres corpus source configuration
type DatabaseConfig struct {
	URL             string        `yaml:"url" mapstructure:"url"`
	Table           string        `yaml:"table" mapstructure:"table"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// FusionConfig contains the evidence fusion weights and verdict threshold
type FusionConfig struct {
	HashWeight          float64 `yaml:"hash_weight" mapstructure:"hash_weight"`
	MetadataWeight      float64 `yaml:"metadata_weight" mapstructure:"metadata_weight"`
	DetectionWeight     float64 `yaml:"detection_weight" mapstructure:"detection_weight"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// ExtractorConfig contains feature extractor configuration
type ExtractorConfig struct {
	Type      string        `yaml:"type" mapstructure:"type"` // onnx or phash
	ModelName string        `yaml:"model_name" mapstructure:"model_name"`
	ModelPath string        `yaml:"model_path" mapstructure:"model_path"`
	InputSize int           `yaml:"input_size" mapstructure:"input_size"` // model input edge in pixels
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Cache     CacheConfig   `yaml:"cache" mapstructure:"cache"`
}

// CacheConfig contains the Redis embedding cache configuration
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL string        `yaml:"redis_url" mapstructure:"redis_url"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// MetadataConfig contains metadata analyzer configuration
type MetadataConfig struct {
	// ExtraAISignatures extends the built-in AI tool signature table.
	ExtraAISignatures []string `yaml:"extra_ai_signatures" mapstructure:"extra_ai_signatures"`
}

// ClassifierConfig contains the AI-detection classifier configuration
type ClassifierConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	ModelName string        `yaml:"model_name" mapstructure:"model_name"`
	ModelPath string        `yaml:"model_path" mapstructure:"model_path"`
	InputSize int           `yaml:"input_size" mapstructure:"input_size"`
	// Labels maps model output positions to label names, in output order.
	Labels  []string      `yaml:"labels" mapstructure:"labels"`
	Workers int           `yaml:"workers" mapstructure:"workers"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RateLimitConfig contains per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled          bool     `yaml:"enabled" mapstructure:"enabled"`
	Path             string   `yaml:"path" mapstructure:"path"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	BroadcastResults bool     `yaml:"broadcast_results" mapstructure:"broadcast_results"`
	BroadcastSystem  bool     `yaml:"broadcast_system" mapstructure:"broadcast_system"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			IdleTimeout:   60 * time.Second,
			MaxUploadSize: 20 << 20, // 20 MB
			MaxBatchFiles: 50,
		},
		Corpus: CorpusConfig{
			Source:              "parquet",
			ParquetPath:         "./data/ai_corpus.parquet",
			SimilarityThreshold: 0.85,
			Database: DatabaseConfig{
				Table:           "reference_embeddings",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: time.Hour,
			},
		},
		Fusion: FusionConfig{
			HashWeight:          0.3,
			MetadataWeight:      0.4,
			DetectionWeight:     0.3,
			ConfidenceThreshold: 0.7,
		},
		Extractor: ExtractorConfig{
			Type:      "phash",
			ModelName: "facebook/dinov2-small",
			ModelPath: "./models/dinov2-small.onnx",
			InputSize: 224,
			Timeout:   30 * time.Second,
			Cache: CacheConfig{
				Enabled:  false,
				RedisURL: "redis://localhost:6379",
				TTL:      6 * time.Hour,
			},
		},
		Classifier: ClassifierConfig{
			Enabled:   true,
			ModelName: "ai-vs-human-image-detector",
			ModelPath: "./models/ai-detector.onnx",
			InputSize: 224,
			Labels:    []string{"artificial", "human"},
			Workers:   2,
			Timeout:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 120,
			Burst:          20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:          true,
			Path:             "/ws",
			AllowedOrigins:   []string{"*"},
			BroadcastResults: true,
			BroadcastSystem:  true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
