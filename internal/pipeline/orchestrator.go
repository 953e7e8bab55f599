package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/corpus"
	"github.com/trainguard/img-sentinel/internal/fusion"
)

// MaxBatchSize caps the number of files in one batch request.
const MaxBatchSize = 50

// FeatureExtractor produces the embedding the hash layer searches with.
type FeatureExtractor interface {
	Extract(ctx context.Context, data []byte) ([]float32, error)
}

// MetadataAnalyzer produces the metadata evidence layer.
type MetadataAnalyzer interface {
	Analyze(data []byte, filename string) (fusion.MetadataEvidence, error)
}

// AIClassifier produces the detection evidence layer. Implementations
// may fail per request; the orchestrator degrades those failures to
// evidence-absent.
type AIClassifier interface {
	Classify(ctx context.Context, data []byte) (*fusion.DetectionEvidence, error)
}

// Orchestrator sequences the three evidence stages for one image and
// fuses their outputs into the final verdict. All collaborators are
// shared and read-only across concurrent requests.
type Orchestrator struct {
	index      *corpus.Index
	extractor  FeatureExtractor
	metadata   MetadataAnalyzer
	classifier AIClassifier
	engine     *fusion.Engine
	logger     *zap.Logger
}

// New creates an analysis orchestrator. classifier may be nil, which
// disables the detection stage.
func New(
	index *corpus.Index,
	extractor FeatureExtractor,
	metadata MetadataAnalyzer,
	classifier AIClassifier,
	engine *fusion.Engine,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		index:      index,
		extractor:  extractor,
		metadata:   metadata,
		classifier: classifier,
		engine:     engine,
		logger:     logger,
	}
}

// Analyze runs the three evidence stages in order, fuses them, and
// returns the analysis record. Hash and metadata stage failures abort
// the analysis with a StageError; a detection failure degrades to
// absent evidence and the analysis completes.
func (o *Orchestrator) Analyze(ctx context.Context, data []byte, filename string) (*AnalysisResult, error) {
	start := time.Now()
	analysisID := uuid.New().String()
	layersExecuted := []string{}
	timings := map[string]float64{}

	log := o.logger.With(
		zap.String("analysis_id", analysisID),
		zap.String("filename", filename))

	// Stage 1: embedding search against the reference corpus.
	stageStart := time.Now()
	embedding, err := o.extractor.Extract(ctx, data)
	if err != nil {
		return nil, &StageError{Stage: StageHashCheck, Err: err}
	}
	match := o.index.Search(embedding)
	hashEvidence := fusion.HashEvidence{
		IsMatch:    match.Matched,
		Similarity: match.Similarity,
	}
	layersExecuted = append(layersExecuted, StageHashCheck)
	timings[StageHashCheck] = elapsedMs(stageStart)

	// Stage 2: metadata analysis.
	stageStart = time.Now()
	metaEvidence, err := o.metadata.Analyze(data, filename)
	if err != nil {
		return nil, &StageError{Stage: StageMetadataAnalysis, Err: err}
	}
	layersExecuted = append(layersExecuted, StageMetadataAnalysis)
	timings[StageMetadataAnalysis] = elapsedMs(stageStart)

	// Stage 3: detection model, evidence-absent on failure.
	var detectEvidence *fusion.DetectionEvidence
	if o.classifier != nil {
		stageStart = time.Now()
		detectEvidence, err = o.classifier.Classify(ctx, data)
		if err != nil {
			log.Warn("Detection stage failed, continuing without its evidence", zap.Error(err))
			detectEvidence = nil
		}
		layersExecuted = append(layersExecuted, StageAIDetection)
		timings[StageAIDetection] = elapsedMs(stageStart)
	}

	outcome := o.engine.Fuse(hashEvidence, metaEvidence, detectEvidence)

	result := &AnalysisResult{
		ID:                   analysisID,
		Filename:             filename,
		AnalyzedAt:           time.Now().UTC(),
		HashResult:           hashEvidence,
		MetadataResult:       metaEvidence,
		DetectionResult:      detectEvidence,
		FinalVerdict:         outcome.Verdict,
		ConfidenceScore:      outcome.Confidence,
		Reasoning:            fusion.RenderReasoning(outcome.Reasoning),
		TotalExecutionTimeMs: elapsedMs(start),
		PerLayerTimings:      timings,
		LayersExecuted:       layersExecuted,
	}

	log.Info("Analysis completed",
		zap.String("verdict", string(outcome.Verdict)),
		zap.Float64("confidence", outcome.Confidence),
		zap.Float64("total_ms", result.TotalExecutionTimeMs))

	return result, nil
}

// AnalyzeBatch runs up to MaxBatchSize items sequentially. Items whose
// declared content type is not image/* are silently skipped. A failing
// item becomes a structured failure entry and its siblings continue.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, items []BatchItem) (*BatchResult, error) {
	if len(items) > MaxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds the limit of %d files", len(items), MaxBatchSize)
	}

	start := time.Now()
	results := []any{}

	for _, item := range items {
		if !strings.HasPrefix(item.ContentType, "image/") {
			continue
		}

		analysis, err := o.Analyze(ctx, item.Data, item.Filename)
		if err != nil {
			o.logger.Warn("Batch item failed",
				zap.String("filename", item.Filename),
				zap.Error(err))
			results = append(results, BatchItemFailure{
				Filename: item.Filename,
				Error:    err.Error(),
				Status:   "failed",
			})
			continue
		}
		results = append(results, analysis)
	}

	aiCount, realCount := 0, 0
	for _, r := range results {
		analysis, ok := r.(*AnalysisResult)
		if !ok {
			continue
		}
		switch analysis.FinalVerdict {
		case fusion.VerdictAIGenerated:
			aiCount++
		case fusion.VerdictLikelyReal:
			realCount++
		}
	}

	total := len(results)
	return &BatchResult{
		TotalProcessed:   total,
		AIGeneratedCount: aiCount,
		LikelyRealCount:  realCount,
		// Failed entries have no verdict, so subtraction folds them in
		// with the uncertain ones.
		UncertainCount:        total - aiCount - realCount,
		Results:               results,
		ProcessingTimeSeconds: math.Round(time.Since(start).Seconds()*100) / 100,
	}, nil
}

func elapsedMs(since time.Time) float64 {
	return math.Round(float64(time.Since(since).Microseconds())/1000*100) / 100
}
