package corpus

import (
	"fmt"
	"io"
	"os"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// LoadParquet reads a corpus artifact written by WriteParquet (or
// corpusctl) and builds the in-memory index. The file carries the
// embedding and its metadata in the same row, so alignment is inherent;
// dimensional consistency is still validated by NewIndex.
func LoadParquet(path string, threshold float64, logger *zap.Logger) (*Index, error) {
	records, err := ReadParquet(path)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(records))
	meta := make([]EntryMeta, 0, len(records))
	for _, record := range records {
		vectors = append(vectors, record.Embedding)
		meta = append(meta, EntryMeta{
			ID:        record.ID,
			Source:    record.Source,
			Generator: record.Generator,
		})
	}

	if logger != nil {
		logger.Info("Corpus parquet loaded",
			zap.String("path", path),
			zap.Int("records", len(vectors)))
	}

	return NewIndex(vectors, meta, threshold, logger)
}

// ReadParquet reads every record from a corpus parquet artifact.
func ReadParquet(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var records []Record
	for {
		var record Record
		err := reader.Read(&record)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus record %d: %w", len(records), err)
		}
		records = append(records, record)
	}

	return records, nil
}

// WriteParquet persists corpus records as a parquet artifact.
func WriteParquet(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create corpus file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewWriter(file)
	for i := range records {
		if err := writer.Write(&records[i]); err != nil {
			return fmt.Errorf("failed to write corpus record %d: %w", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize corpus file: %w", err)
	}

	return nil
}
