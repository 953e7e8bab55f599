package corpus

import "time"

// EntryMeta is the metadata row aligned with one reference embedding.
// Row i of the vector artifact corresponds to row i of the metadata
// artifact for the lifetime of the process.
type EntryMeta struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Generator string `json:"generator"`
}

// Record is one corpus row as persisted in the parquet artifact or the
// Postgres table: the reference embedding plus its metadata.
type Record struct {
	ID        string    `csv:"id" parquet:"id" json:"id"`
	Source    string    `csv:"source" parquet:"source" json:"source"`
	Generator string    `csv:"generator" parquet:"generator" json:"generator"`
	Embedding []float32 `parquet:"embedding,list" json:"embedding"`
}

// Match is the result of a nearest-neighbor search. Matched is true iff
// the best similarity reached the index threshold; Index is only
// meaningful when Matched is true.
type Match struct {
	Matched    bool    `json:"matched"`
	Index      int     `json:"index"`
	Similarity float64 `json:"similarity"`
}

// Stats describes a loaded corpus.
type Stats struct {
	Entries    int       `json:"entries"`
	Dimensions int       `json:"dimensions"`
	Threshold  float64   `json:"threshold"`
	LoadedAt   time.Time `json:"loaded_at"`
}
