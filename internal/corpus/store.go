package corpus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// StoreConfig contains the Postgres corpus source configuration
type StoreConfig struct {
	DatabaseURL     string        `yaml:"url" mapstructure:"url"`
	Table           string        `yaml:"table" mapstructure:"table"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Store reads and writes corpus rows in PostgreSQL + pgvector. The
// serving path uses it only as a load source at startup; searches run
// against the in-memory Index, never against the database.
type Store struct {
	db     *sqlx.DB
	table  string
	logger *zap.Logger
}

// NewStore creates a new corpus store instance
func NewStore(config *StoreConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	table := config.Table
	if table == "" {
		table = "reference_embeddings"
	}

	store := &Store{
		db:     db,
		table:  table,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Corpus store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.String("table", table))

	return store, nil
}

// initialize checks database connection and ensures pgvector extension
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var extensionExists bool
	query := "SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')"
	if err := s.db.GetContext(ctx, &extensionExists, query); err != nil {
		return fmt.Errorf("failed to check pgvector extension: %w", err)
	}

	if !extensionExists {
		return fmt.Errorf("pgvector extension is not installed")
	}

	return nil
}

// LoadAll reads every corpus row in stable row order. Row order defines
// the index alignment, so the query orders by the serial primary key.
func (s *Store) LoadAll(ctx context.Context) ([]Record, error) {
	query := fmt.Sprintf(`
		SELECT ref_id, source, generator, embedding
		FROM %s
		ORDER BY row_id`, s.table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus rows: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var embeddingStr string

		if err := rows.Scan(&record.ID, &record.Source, &record.Generator, &embeddingStr); err != nil {
			return nil, fmt.Errorf("failed to scan corpus row %d: %w", len(records), err)
		}

		record.Embedding, err = parseEmbedding(embeddingStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedding at row %d: %w", len(records), err)
		}

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("corpus row iteration failed: %w", err)
	}

	s.logger.Debug("Corpus rows loaded from database", zap.Int("records", len(records)))
	return records, nil
}

// BatchInsert adds corpus records, skipping duplicate reference IDs.
func (s *Store) BatchInsert(ctx context.Context, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	valueStrings := make([]string, 0, len(records))
	valueArgs := make([]interface{}, 0, len(records)*4)

	for i, record := range records {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4))
		valueArgs = append(valueArgs,
			record.ID,
			record.Source,
			record.Generator,
			formatEmbedding(record.Embedding),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (ref_id, source, generator, embedding)
		VALUES %s
		ON CONFLICT (ref_id) DO NOTHING`,
		s.table, strings.Join(valueStrings, ","))

	res, err := s.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		s.logger.Error("Corpus batch insert failed", zap.Error(err))
		return 0, fmt.Errorf("batch insert failed: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		s.logger.Warn("Could not get rows affected", zap.Error(err))
		inserted = int64(len(records))
	}

	s.logger.Info("Corpus batch insert completed",
		zap.Int64("inserted", inserted),
		zap.Int64("duplicates_skipped", int64(len(records))-inserted))

	return inserted, nil
}

// Count returns the number of corpus rows in the table.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	if err := s.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count corpus rows: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadPostgres loads the full corpus from Postgres and builds the index.
func LoadPostgres(ctx context.Context, config *StoreConfig, threshold float64, logger *zap.Logger) (*Index, error) {
	store, err := NewStore(config, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	records, err := store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(records))
	meta := make([]EntryMeta, len(records))
	for i, record := range records {
		vectors[i] = record.Embedding
		meta[i] = EntryMeta{ID: record.ID, Source: record.Source, Generator: record.Generator}
	}

	return NewIndex(vectors, meta, threshold, logger)
}

// Helper functions

// formatEmbedding converts float32 slice to PostgreSQL vector format
func formatEmbedding(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}

	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseEmbedding converts PostgreSQL vector format back to float32 slice
func parseEmbedding(embeddingStr string) ([]float32, error) {
	embeddingStr = strings.Trim(embeddingStr, "[]")
	if embeddingStr == "" {
		return []float32{}, nil
	}

	parts := strings.Split(embeddingStr, ",")
	embedding := make([]float32, len(parts))

	for i, part := range parts {
		var val float32
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%g", &val); err != nil {
			return nil, fmt.Errorf("failed to parse embedding value: %w", err)
		}
		embedding[i] = val
	}

	return embedding, nil
}

// maskDatabaseURL masks sensitive information in database URL for logging
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
