package fusion

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Config contains the fusion weights and the verdict threshold. Weights
// are not required to sum to 1, and sub-rules within a layer may jointly
// exceed the layer weight; that slack is part of the calibration and is
// kept as-is.
type Config struct {
	HashWeight          float64 `yaml:"hash_weight" mapstructure:"hash_weight"`
	MetadataWeight      float64 `yaml:"metadata_weight" mapstructure:"metadata_weight"`
	DetectionWeight     float64 `yaml:"detection_weight" mapstructure:"detection_weight"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// DefaultConfig returns the calibrated default weights.
func DefaultConfig() Config {
	return Config{
		HashWeight:          0.3,
		MetadataWeight:      0.4,
		DetectionWeight:     0.3,
		ConfidenceThreshold: 0.7,
	}
}

// Engine combines the three evidence layers into a single verdict with a
// confidence score and an ordered reasoning trail. Fuse is pure: given
// identical evidence it returns identical output.
type Engine struct {
	config Config
	logger *zap.Logger
}

// New creates a fusion engine
func New(config Config, logger *zap.Logger) *Engine {
	return &Engine{
		config: config,
		logger: logger,
	}
}

// inconsistencyLabels maps known EXIF inconsistency tags to the
// human-readable form used in the reasoning trail. Unknown tags are
// rendered verbatim.
var inconsistencyLabels = map[string]string{
	"editing_software_without_camera": "Editing SW only",
	"perfect_square_ai_resolution":    "AI Resolution",
	"unrealistic_aperture":            "Unrealistic Settings",
	"missing_datetime_original":       "Missing Original Time",
}

// Fuse evaluates the evidence layers in fixed order (hash, metadata,
// detection) and derives the verdict from the accumulated AI/real score
// ratio. detect may be nil when the classifier produced no evidence.
func (e *Engine) Fuse(hash HashEvidence, meta MetadataEvidence, detect *DetectionEvidence) Outcome {
	aiScore, realScore, reasons := e.accumulate(hash, meta, detect)

	verdict, confidence := e.decide(aiScore, realScore)

	if e.logger != nil {
		e.logger.Debug("Evidence fusion completed",
			zap.Float64("ai_score", aiScore),
			zap.Float64("real_score", realScore),
			zap.String("verdict", string(verdict)),
			zap.Float64("confidence", confidence))
	}

	return Outcome{
		Verdict:    verdict,
		Confidence: confidence,
		Reasoning:  reasons,
	}
}

// accumulate applies the layer sub-rules in their fixed evaluation order
// and returns the two score accumulators plus the reasoning fragments.
func (e *Engine) accumulate(hash HashEvidence, meta MetadataEvidence, detect *DetectionEvidence) (float64, float64, []string) {
	var aiScore, realScore float64
	var reasons []string

	// Layer 1: similarity against the reference corpus, progressive score.
	similarity := hash.Similarity
	switch {
	case similarity >= 0.85:
		aiScore += e.config.HashWeight * math.Min((similarity-0.85)/0.15+0.5, 1.0)
		label := "High similarity"
		if hash.IsMatch {
			label = "Matched"
		}
		reasons = append(reasons, fmt.Sprintf("%s with AI image DB (similarity: %.1f%%)", label, similarity*100))
	case similarity >= 0.70:
		// Uncertain band: score is split between both sides.
		uncertainty := (0.85 - similarity) / 0.15
		aiScore += e.config.HashWeight * 0.5 * (1 - uncertainty)
		realScore += e.config.HashWeight * 0.5 * uncertainty
		reasons = append(reasons, fmt.Sprintf("Medium similarity with AI image DB (similarity: %.1f%%, uncertain)", similarity*100))
	default:
		realScore += e.config.HashWeight * 0.5
		reasons = append(reasons, fmt.Sprintf("Low similarity with AI image DB (max similarity: %.1f%%)", similarity*100))
	}

	// Layer 2: metadata sub-rules, each firing independently.
	if len(meta.AIToolSignatures) > 0 {
		aiScore += e.config.MetadataWeight * 0.4
		reasons = append(reasons, fmt.Sprintf("AI tool signature found: %s", strings.Join(meta.AIToolSignatures, ", ")))
	}

	if meta.HasC2PA {
		if meta.C2PAInfo != nil && len(meta.C2PAInfo.AIRelatedAssertions) > 0 {
			aiScore += e.config.MetadataWeight * 0.2
			reasons = append(reasons, "AI generation info included in C2PA")
		} else {
			// C2PA credentials without AI assertions point at a real capture chain.
			realScore += e.config.MetadataWeight * 0.15
			reasons = append(reasons, "C2PA content credentials present (no AI info)")
		}
	}

	exifScore := meta.ExifAuthenticityScore
	switch {
	case exifScore >= 0.7:
		realScore += e.config.MetadataWeight * 0.35 * exifScore
		reasons = append(reasons, fmt.Sprintf("High EXIF authenticity (score: %.2f) - likely real camera", exifScore))
	case exifScore >= 0.3:
		realScore += e.config.MetadataWeight * 0.15 * exifScore
		reasons = append(reasons, fmt.Sprintf("EXIF data present (authenticity: %.2f)", exifScore))
	default:
		aiScore += e.config.MetadataWeight * 0.25
		reasons = append(reasons, fmt.Sprintf("Low EXIF authenticity (score: %.2f) - AI generation suspected", exifScore))
	}

	if len(meta.ExifInconsistencies) > 0 {
		weight := math.Min(float64(len(meta.ExifInconsistencies))*0.05, 0.15)
		aiScore += e.config.MetadataWeight * weight

		labels := make([]string, 0, len(meta.ExifInconsistencies))
		for _, tag := range meta.ExifInconsistencies {
			if label, ok := inconsistencyLabels[tag]; ok {
				labels = append(labels, label)
			} else {
				labels = append(labels, tag)
			}
		}
		reasons = append(reasons, fmt.Sprintf("EXIF abnormal pattern: %s", strings.Join(labels, ", ")))
	}

	// Layer 3: classifier verdict, skipped when no evidence was produced.
	if detect != nil {
		if detect.IsAIGenerated {
			aiScore += e.config.DetectionWeight * detect.Confidence
			reasons = append(reasons, fmt.Sprintf("AI detection model verdict: AI generated (confidence: %.1f%%)", detect.Confidence*100))
		} else {
			realScore += e.config.DetectionWeight * detect.Confidence
			reasons = append(reasons, fmt.Sprintf("AI detection model verdict: likely real (confidence: %.1f%%)", detect.Confidence*100))
		}
	} else {
		reasons = append(reasons, "AI detection skipped")
	}

	return aiScore, realScore, reasons
}

// decide maps the accumulated scores to a verdict. With no evidence at
// all the result is uncertain at exactly 0.5.
func (e *Engine) decide(aiScore, realScore float64) (Verdict, float64) {
	total := aiScore + realScore
	if total == 0 {
		return VerdictUncertain, 0.5
	}

	ratio := aiScore / total
	switch {
	case ratio >= e.config.ConfidenceThreshold:
		return VerdictAIGenerated, round4(ratio)
	case ratio <= 1-e.config.ConfidenceThreshold:
		return VerdictLikelyReal, round4(1 - ratio)
	default:
		return VerdictUncertain, round4(0.5 + math.Abs(ratio-0.5))
	}
}

// RenderReasoning joins reasoning fragments into the response trail.
func RenderReasoning(reasons []string) string {
	return strings.Join(reasons, ReasoningSeparator)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
