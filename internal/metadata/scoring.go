package metadata

import "strings"

// Inconsistency tags reported by findInconsistencies. The fusion layer
// maps these to human-readable reasoning fragments.
const (
	InconsistencyEditingSoftwareOnly = "editing_software_without_camera"
	InconsistencyAIResolution        = "perfect_square_ai_resolution"
	InconsistencyUnrealisticAperture = "unrealistic_aperture"
	InconsistencyMissingOriginalTime = "missing_datetime_original"
)

// aiNativeResolutions are the square output sizes common AI generators
// produce by default.
var aiNativeResolutions = map[int]bool{
	512:  true,
	768:  true,
	1024: true,
	1536: true,
	2048: true,
}

// editingSoftware identifies post-processing tools whose presence
// without camera fields is suspicious.
var editingSoftware = []string{
	"photoshop",
	"lightroom",
	"gimp",
	"affinity photo",
	"luminar",
	"capture one",
	"pixelmator",
	"paint.net",
}

// authenticityScore estimates how much the EXIF block looks like a real
// camera wrote it. 0 means no camera trace at all, 1 means a fully
// populated capture record. AI generators and screenshots score near 0
// because they carry no capture hardware fields.
func authenticityScore(exif exifFields) float64 {
	if !exif.present {
		return 0.0
	}

	score := 0.0

	if exif.Make != "" && exif.Model != "" {
		score += 0.35
	} else if exif.Make != "" || exif.Model != "" {
		score += 0.15
	}

	if exif.DateTimeOriginal != "" {
		score += 0.2
	}

	// Exposure parameters only come from a capture pipeline.
	exposureFields := 0
	if exif.FNumber > 0 {
		exposureFields++
	}
	if exif.ExposureTime != "" {
		exposureFields++
	}
	if exif.ISO > 0 {
		exposureFields++
	}
	score += float64(exposureFields) * 0.1

	if exif.LensModel != "" {
		score += 0.05
	}
	if exif.HasGPS {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// findInconsistencies detects EXIF patterns that contradict a real
// camera origin. Tags are appended in a fixed order so the reasoning
// trail is deterministic.
func findInconsistencies(exif exifFields) []string {
	inconsistencies := []string{}

	if exif.Software != "" && exif.Make == "" && exif.Model == "" {
		lower := strings.ToLower(exif.Software)
		for _, tool := range editingSoftware {
			if strings.Contains(lower, tool) {
				inconsistencies = append(inconsistencies, InconsistencyEditingSoftwareOnly)
				break
			}
		}
	}

	if exif.PixelXDimension > 0 &&
		exif.PixelXDimension == exif.PixelYDimension &&
		aiNativeResolutions[exif.PixelXDimension] {
		inconsistencies = append(inconsistencies, InconsistencyAIResolution)
	}

	if exif.FNumber != 0 && (exif.FNumber < 0.7 || exif.FNumber > 45) {
		inconsistencies = append(inconsistencies, InconsistencyUnrealisticAperture)
	}

	if exif.present && exif.DateTimeOriginal == "" && (exif.Make != "" || exif.Model != "") {
		inconsistencies = append(inconsistencies, InconsistencyMissingOriginalTime)
	}

	return inconsistencies
}
