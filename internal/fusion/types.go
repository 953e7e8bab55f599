package fusion

// Verdict is the final classification of an analyzed image.
type Verdict string

const (
	VerdictAIGenerated Verdict = "ai_generated"
	VerdictLikelyReal  Verdict = "likely_real"
	VerdictUncertain   Verdict = "uncertain"
)

// HashEvidence is the similarity-search evidence layer: the best cosine
// similarity against the reference corpus and whether it cleared the
// match threshold.
type HashEvidence struct {
	IsMatch    bool    `json:"is_match"`
	Similarity float64 `json:"similarity"`
}

// C2PAInfo holds the parsed subset of a C2PA manifest the fusion rules
// care about. AIRelatedAssertions is non-empty when the manifest declares
// an AI generation action or tool.
type C2PAInfo struct {
	AIRelatedAssertions []string `json:"ai_related_assertions,omitempty"`
	Generator           string   `json:"generator,omitempty"`
	SoftwareAgent       string   `json:"software_agent,omitempty"`
}

// MetadataEvidence is the metadata evidence layer produced by the
// metadata analyzer. Zero values are the deterministic defaults: no
// C2PA, no signatures, authenticity score 0.
type MetadataEvidence struct {
	HasC2PA               bool      `json:"has_c2pa"`
	C2PAInfo              *C2PAInfo `json:"c2pa_info,omitempty"`
	AIToolSignatures      []string  `json:"ai_tool_signatures"`
	SoftwareUsed          string    `json:"software_used,omitempty"`
	CreationDate          string    `json:"creation_date,omitempty"`
	ExifAuthenticityScore float64   `json:"exif_authenticity_score"`
	ExifInconsistencies   []string  `json:"exif_inconsistencies"`
}

// DetectionEvidence is the classifier evidence layer. A nil
// *DetectionEvidence means the classifier did not produce evidence at
// all, which is distinct from a present verdict saying "real".
type DetectionEvidence struct {
	ModelName     string             `json:"model_name"`
	IsAIGenerated bool               `json:"is_ai_generated"`
	Confidence    float64            `json:"confidence"`
	RawScores     map[string]float64 `json:"raw_scores,omitempty"`
}

// Outcome is the fused decision: verdict, confidence in [0,1] rounded to
// four decimals, and the ordered reasoning fragments.
type Outcome struct {
	Verdict    Verdict  `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Reasoning  []string `json:"reasoning"`
}

// ReasoningSeparator joins reasoning fragments in the rendered trail.
const ReasoningSeparator = " | "
