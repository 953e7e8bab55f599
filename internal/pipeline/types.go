package pipeline

import (
	"fmt"
	"time"

	"github.com/trainguard/img-sentinel/internal/fusion"
)

// Stage names, in execution order. They double as the per-layer timing
// keys and the layers_executed entries.
const (
	StageHashCheck        = "hash_check"
	StageMetadataAnalysis = "metadata_analysis"
	StageAIDetection      = "ai_detection"
)

// AnalysisResult is the full per-image analysis record returned to the
// caller. Every analysis gets a fresh ID; nothing is persisted.
type AnalysisResult struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	HashResult      fusion.HashEvidence       `json:"hash_result"`
	MetadataResult  fusion.MetadataEvidence   `json:"metadata_result"`
	DetectionResult *fusion.DetectionEvidence `json:"detection_result,omitempty"`

	FinalVerdict    fusion.Verdict `json:"final_verdict"`
	ConfidenceScore float64        `json:"confidence_score"`
	Reasoning       string         `json:"reasoning"`

	TotalExecutionTimeMs float64            `json:"total_execution_time_ms"`
	PerLayerTimings      map[string]float64 `json:"per_layer_timings"`
	LayersExecuted       []string           `json:"layers_executed"`
}

// BatchItem is one uploaded file in a batch request.
type BatchItem struct {
	Filename    string
	ContentType string
	Data        []byte
}

// BatchItemFailure is the structured entry recorded for a batch item
// whose analysis failed. It takes the failed item's slot in the results
// list instead of aborting the batch.
type BatchItemFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
	Status   string `json:"status"`
}

// BatchResult aggregates a batch run. The verdict counts scan completed
// results for verdict equality; the uncertain count is derived by
// subtraction, so failed entries without a verdict fold into it.
type BatchResult struct {
	TotalProcessed        int     `json:"total_processed"`
	AIGeneratedCount      int     `json:"ai_generated_count"`
	LikelyRealCount       int     `json:"likely_real_count"`
	UncertainCount        int     `json:"uncertain_count"`
	Results               []any   `json:"results"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// StageError marks an analysis failure with the stage that produced it.
// Hash and metadata stage failures are fatal to the image's analysis;
// detection failures never become StageErrors.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
