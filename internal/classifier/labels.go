package classifier

import (
	"math"
	"strings"

	"github.com/trainguard/img-sentinel/internal/fusion"
)

// Label keywords that bucket a model output into the AI or the real
// side. Matching is case-insensitive substring; AI keywords are checked
// first, so a label matching both buckets counts as AI.
var (
	aiLabelKeywords   = []string{"artificial", "ai", "fake", "generated", "synthetic"}
	realLabelKeywords = []string{"human", "real", "authentic", "natural", "hum"}
)

// mapScores turns per-label probabilities into detection evidence. AI
// and real label scores are summed per bucket; the verdict is AI iff
// the AI sum strictly exceeds the real sum, and confidence is the
// winning sum rounded to four decimals. Labels matching neither bucket
// stay in the raw scores but do not contribute.
func mapScores(modelName string, labels []string, scores []float64) *fusion.DetectionEvidence {
	raw := make(map[string]float64, len(labels))
	var aiScore, realScore float64

	for i, label := range labels {
		if i >= len(scores) {
			break
		}
		raw[label] = scores[i]

		lower := strings.ToLower(label)
		if matchesAny(lower, aiLabelKeywords) {
			aiScore += scores[i]
		} else if matchesAny(lower, realLabelKeywords) {
			realScore += scores[i]
		}
	}

	isAI := aiScore > realScore
	confidence := realScore
	if isAI {
		confidence = aiScore
	}

	return &fusion.DetectionEvidence{
		ModelName:     modelName,
		IsAIGenerated: isAI,
		Confidence:    math.Round(confidence*10000) / 10000,
		RawScores:     raw,
	}
}

func matchesAny(label string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(label, keyword) {
			return true
		}
	}
	return false
}

// softmax converts logits to probabilities, shifted by the max logit
// for numeric stability.
func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v - maxLogit))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
