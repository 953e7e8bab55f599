package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
	"github.com/trainguard/img-sentinel/internal/corpus"
	"github.com/trainguard/img-sentinel/internal/extractor"
	"github.com/trainguard/img-sentinel/internal/logger"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

func main() {
	var (
		configPath   = flag.String("config", "", "Configuration file path")
		buildDir     = flag.String("build", "", "Build a corpus parquet from a directory of images")
		parquetPath  = flag.String("parquet", "", "Corpus parquet path (defaults to the configured one)")
		source       = flag.String("source", "local", "Source label stored with built records")
		workers      = flag.Int("workers", 4, "Number of extraction workers")
		validateOnly = flag.Bool("validate", false, "Validate a corpus parquet and exit")
		loadDB       = flag.Bool("load", false, "Load a corpus parquet into Postgres")
		showStats    = flag.Bool("stats", false, "Show Postgres corpus statistics and exit")
	)
	flag.Parse()

	if *buildDir == "" && !*validateOnly && !*loadDB && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --build ./reference_images --parquet ./data/ai_corpus.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --validate --parquet ./data/ai_corpus.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --load --parquet ./data/ai_corpus.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *parquetPath == "" {
		*parquetPath = cfg.Corpus.ParquetPath
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	switch {
	case *showStats:
		err = showCorpusStats(ctx, cfg, log)
	case *validateOnly:
		err = validateParquet(*parquetPath, cfg.Corpus.SimilarityThreshold, log)
	case *loadDB:
		err = loadParquetIntoPostgres(ctx, cfg, *parquetPath, log)
	default:
		err = buildCorpus(ctx, cfg, *buildDir, *parquetPath, *source, *workers, log)
	}
	if err != nil {
		log.Fatal("corpusctl operation failed", zap.Error(err))
	}
}

// buildCorpus walks an image directory, extracts an embedding per file,
// and writes the row-aligned parquet artifact. Images in a first-level
// subdirectory are labeled with that directory name as their generator.
func buildCorpus(ctx context.Context, cfg *config.Config, dir, output, source string, workers int, log *logger.Logger) error {
	start := time.Now()

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found under %s", dir)
	}

	log.Info("Building corpus",
		zap.String("dir", dir),
		zap.Int("images", len(paths)),
		zap.Int("workers", workers))

	// ETL runs do not benefit from the request-path cache.
	extractorCfg := cfg.Extractor
	extractorCfg.Cache.Enabled = false
	ext, err := extractor.New(&extractorCfg, log.WithComponent("extractor").Logger)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}
	defer ext.Close()

	if workers < 1 {
		workers = 1
	}

	records := make([]corpus.Record, len(paths))
	failed := make([]bool, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				path := paths[i]
				data, err := os.ReadFile(path)
				if err != nil {
					log.Warn("Skipping unreadable file", zap.String("path", path), zap.Error(err))
					failed[i] = true
					continue
				}
				embedding, err := ext.Extract(ctx, data)
				if err != nil {
					log.Warn("Skipping file, extraction failed", zap.String("path", path), zap.Error(err))
					failed[i] = true
					continue
				}
				refID, _ := filepath.Rel(dir, path)
				records[i] = corpus.Record{
					ID:        refID,
					Source:    source,
					Generator: generatorLabel(dir, path),
					Embedding: embedding,
				}
			}
		}()
	}

	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	kept := records[:0]
	for i := range records {
		if !failed[i] {
			kept = append(kept, records[i])
		}
	}
	if len(kept) == 0 {
		return fmt.Errorf("no images could be embedded")
	}

	if err := corpus.WriteParquet(output, kept); err != nil {
		return err
	}

	log.Info("Corpus built",
		zap.String("output", output),
		zap.Int("records", len(kept)),
		zap.Int("skipped", len(paths)-len(kept)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// generatorLabel derives the generator name from the first path element
// under the scan root.
func generatorLabel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "unknown"
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[0]
}

func validateParquet(path string, threshold float64, log *logger.Logger) error {
	index, err := corpus.LoadParquet(path, threshold, log.WithComponent("corpus").Logger)
	if err != nil {
		return err
	}

	stats := index.Stats()
	fmt.Printf("Corpus OK: %d entries, %d dimensions, threshold %.2f\n",
		stats.Entries, stats.Dimensions, stats.Threshold)
	return nil
}

func loadParquetIntoPostgres(ctx context.Context, cfg *config.Config, path string, log *logger.Logger) error {
	records, err := corpus.ReadParquet(path)
	if err != nil {
		return err
	}

	store, err := corpus.NewStore(&corpus.StoreConfig{
		DatabaseURL:     cfg.Corpus.Database.URL,
		Table:           cfg.Corpus.Database.Table,
		MaxOpenConns:    cfg.Corpus.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Corpus.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Corpus.Database.ConnMaxLifetime,
	}, log.WithComponent("corpus").Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	inserted, err := store.BatchInsert(ctx, records)
	if err != nil {
		return err
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}

	log.Info("Corpus loaded into Postgres",
		zap.Int("records", len(records)),
		zap.Int64("inserted", inserted),
		zap.Int64("table_total", total))
	return nil
}

func showCorpusStats(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	store, err := corpus.NewStore(&corpus.StoreConfig{
		DatabaseURL:     cfg.Corpus.Database.URL,
		Table:           cfg.Corpus.Database.Table,
		MaxOpenConns:    cfg.Corpus.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Corpus.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Corpus.Database.ConnMaxLifetime,
	}, log.WithComponent("corpus").Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Postgres corpus table %q: %d entries\n", cfg.Corpus.Database.Table, total)
	return nil
}
