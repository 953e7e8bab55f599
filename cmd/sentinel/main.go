package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/classifier"
	"github.com/trainguard/img-sentinel/internal/config"
	"github.com/trainguard/img-sentinel/internal/corpus"
	"github.com/trainguard/img-sentinel/internal/extractor"
	"github.com/trainguard/img-sentinel/internal/fusion"
	"github.com/trainguard/img-sentinel/internal/logger"
	"github.com/trainguard/img-sentinel/internal/metadata"
	"github.com/trainguard/img-sentinel/internal/metrics"
	"github.com/trainguard/img-sentinel/internal/pipeline"
	"github.com/trainguard/img-sentinel/internal/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("img-sentinel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting img-sentinel",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	index, err := loadCorpus(cfg, log)
	if err != nil {
		log.Fatal("Failed to load reference corpus", zap.Error(err))
	}
	metrics.CorpusEntries.Set(float64(index.Size()))

	ext, err := extractor.New(&cfg.Extractor, log.WithComponent("extractor").Logger)
	if err != nil {
		log.Fatal("Failed to create feature extractor", zap.Error(err))
	}
	defer ext.Close()

	cls, err := classifier.New(&cfg.Classifier, log.WithComponent("classifier").Logger)
	if err != nil {
		log.Fatal("Failed to create AI detection classifier", zap.Error(err))
	}
	if cls != nil {
		defer cls.Close()
	}

	engine := fusion.New(fusion.Config{
		HashWeight:          cfg.Fusion.HashWeight,
		MetadataWeight:      cfg.Fusion.MetadataWeight,
		DetectionWeight:     cfg.Fusion.DetectionWeight,
		ConfidenceThreshold: cfg.Fusion.ConfidenceThreshold,
	}, log.WithComponent("fusion").Logger)

	analyzer := metadata.NewAnalyzer(&cfg.Metadata, log.WithComponent("metadata").Logger)

	var detection pipeline.AIClassifier
	if cls != nil {
		detection = cls
	}

	orchestrator := pipeline.New(
		index,
		ext,
		analyzer,
		detection,
		engine,
		log.WithComponent("pipeline").Logger,
	)

	srv := server.New(cfg, log, orchestrator, index)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// loadCorpus loads the reference embedding corpus from the configured
// source.
func loadCorpus(cfg *config.Config, log *logger.Logger) (*corpus.Index, error) {
	corpusLog := log.WithComponent("corpus").Logger

	switch cfg.Corpus.Source {
	case "parquet":
		return corpus.LoadParquet(cfg.Corpus.ParquetPath, cfg.Corpus.SimilarityThreshold, corpusLog)
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		return corpus.LoadPostgres(ctx, &corpus.StoreConfig{
			DatabaseURL:     cfg.Corpus.Database.URL,
			Table:           cfg.Corpus.Database.Table,
			MaxOpenConns:    cfg.Corpus.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Corpus.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Corpus.Database.ConnMaxLifetime,
		}, cfg.Corpus.SimilarityThreshold, corpusLog)
	default:
		return nil, fmt.Errorf("unknown corpus source %q", cfg.Corpus.Source)
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
