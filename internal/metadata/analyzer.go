package metadata

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/bep/imagemeta"
	"go.uber.org/zap"

	"github.com/trainguard/img-sentinel/internal/config"
	"github.com/trainguard/img-sentinel/internal/fusion"
)

// aiToolSignatures are substrings that identify an AI image generator
// when found (case-insensitive) in software, description, or comment
// fields, or in the raw file header.
var aiToolSignatures = []string{
	"midjourney",
	"dall-e",
	"dall·e",
	"dalle",
	"stable diffusion",
	"stablediffusion",
	"sdxl",
	"adobe firefly",
	"firefly",
	"leonardo.ai",
	"leonardo ai",
	"flux.1",
	"black forest labs",
	"ideogram",
	"imagen",
	"bing image creator",
	"dreamstudio",
	"invokeai",
	"comfyui",
	"automatic1111",
	"novelai",
	"nijijourney",
	"playground ai",
	"recraft",
}

// exifFields is the subset of EXIF tags the analyzer reads. Everything
// else is skipped at decode time.
type exifFields struct {
	Make             string
	Model            string
	LensModel        string
	Software         string
	Artist           string
	ImageDescription string
	UserComment      string
	DateTimeOriginal string
	DateTime         string
	FNumber          float64
	ExposureTime     string
	ISO              float64
	PixelXDimension  int
	PixelYDimension  int
	HasGPS           bool

	present bool
}

var wantedExifTags = map[string]bool{
	"Make":             true,
	"Model":            true,
	"LensModel":        true,
	"Software":         true,
	"Artist":           true,
	"ImageDescription": true,
	"UserComment":      true,
	"DateTimeOriginal": true,
	"DateTime":         true,
	"FNumber":          true,
	"ExposureTime":     true,
	"ISOSpeedRatings":  true,
	"PixelXDimension":  true,
	"PixelYDimension":  true,
	"GPSLatitude":      true,
	"GPSLongitude":     true,
}

var wantedXMPTags = map[string]bool{
	"CreatorTool": true,
	"CreateDate":  true,
}

// Analyzer extracts metadata evidence from raw image bytes. It never
// fails the request: images with no parseable metadata produce the
// zero-value evidence.
type Analyzer struct {
	signatures []string
	logger     *zap.Logger
}

// NewAnalyzer creates a metadata analyzer. Extra signatures from the
// configuration extend the built-in table.
func NewAnalyzer(cfg *config.MetadataConfig, logger *zap.Logger) *Analyzer {
	signatures := make([]string, 0, len(aiToolSignatures)+len(cfg.ExtraAISignatures))
	signatures = append(signatures, aiToolSignatures...)
	for _, s := range cfg.ExtraAISignatures {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			signatures = append(signatures, s)
		}
	}

	return &Analyzer{
		signatures: signatures,
		logger:     logger,
	}
}

// Analyze inspects the image bytes and returns the metadata evidence
// layer: AI tool signatures, C2PA manifest info, EXIF authenticity
// score, and EXIF inconsistency tags.
func (a *Analyzer) Analyze(data []byte, filename string) (fusion.MetadataEvidence, error) {
	if len(data) == 0 {
		return fusion.MetadataEvidence{}, fmt.Errorf("empty image data")
	}

	evidence := fusion.MetadataEvidence{
		AIToolSignatures:    []string{},
		ExifInconsistencies: []string{},
	}

	exif, xmpCreatorTool, xmpCreateDate := a.decodeTags(data)

	evidence.SoftwareUsed = exif.Software
	if evidence.SoftwareUsed == "" {
		evidence.SoftwareUsed = xmpCreatorTool
	}
	evidence.CreationDate = exif.DateTimeOriginal
	if evidence.CreationDate == "" {
		evidence.CreationDate = exif.DateTime
	}
	if evidence.CreationDate == "" {
		evidence.CreationDate = xmpCreateDate
	}

	evidence.AIToolSignatures = a.findSignatures(exif, xmpCreatorTool, data)
	evidence.ExifAuthenticityScore = authenticityScore(exif)
	evidence.ExifInconsistencies = findInconsistencies(exif)

	if manifest := probeC2PA(data); manifest != nil {
		evidence.HasC2PA = true
		evidence.C2PAInfo = manifest
	}

	a.logger.Debug("Metadata analysis completed",
		zap.String("filename", filename),
		zap.Int("signatures", len(evidence.AIToolSignatures)),
		zap.Bool("has_c2pa", evidence.HasC2PA),
		zap.Float64("authenticity", evidence.ExifAuthenticityScore))

	return evidence, nil
}

// decodeTags reads the wanted EXIF and XMP tags. Decode errors are
// treated as "no metadata", not as analysis failures.
func (a *Analyzer) decodeTags(data []byte) (exifFields, string, string) {
	var exif exifFields
	var creatorTool, createDate string

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			switch ti.Source {
			case imagemeta.EXIF:
				return wantedExifTags[ti.Tag]
			case imagemeta.XMP:
				return wantedXMPTags[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			switch ti.Source {
			case imagemeta.EXIF:
				handleExifTag(&exif, ti)
			case imagemeta.XMP:
				switch ti.Tag {
				case "CreatorTool":
					creatorTool = tagValueString(ti.Value)
				case "CreateDate":
					createDate = tagValueString(ti.Value)
				}
			}
			return nil
		},
	})
	if err != nil {
		a.logger.Debug("Metadata decode failed", zap.Error(err))
	}

	return exif, creatorTool, createDate
}

func handleExifTag(exif *exifFields, ti imagemeta.TagInfo) {
	switch ti.Tag {
	case "Make":
		exif.Make = tagValueString(ti.Value)
	case "Model":
		exif.Model = tagValueString(ti.Value)
	case "LensModel":
		exif.LensModel = tagValueString(ti.Value)
	case "Software":
		exif.Software = tagValueString(ti.Value)
	case "Artist":
		exif.Artist = tagValueString(ti.Value)
	case "ImageDescription":
		exif.ImageDescription = tagValueString(ti.Value)
	case "UserComment":
		exif.UserComment = tagValueString(ti.Value)
	case "DateTimeOriginal":
		exif.DateTimeOriginal = tagValueString(ti.Value)
	case "DateTime":
		exif.DateTime = tagValueString(ti.Value)
	case "FNumber":
		exif.FNumber = tagValueFloat(ti.Value)
	case "ExposureTime":
		exif.ExposureTime = tagValueString(ti.Value)
	case "ISOSpeedRatings":
		exif.ISO = tagValueFloat(ti.Value)
	case "PixelXDimension":
		exif.PixelXDimension = int(tagValueFloat(ti.Value))
	case "PixelYDimension":
		exif.PixelYDimension = int(tagValueFloat(ti.Value))
	case "GPSLatitude", "GPSLongitude":
		exif.HasGPS = true
	default:
		return
	}
	exif.present = true
}

// findSignatures scans text metadata fields and the file header for
// known AI tool signatures. Each signature is reported at most once.
func (a *Analyzer) findSignatures(exif exifFields, xmpCreatorTool string, data []byte) []string {
	fields := []string{
		exif.Software,
		exif.Artist,
		exif.ImageDescription,
		exif.UserComment,
		xmpCreatorTool,
	}

	// PNG tEXt chunks and JPEG comment segments sit near the start of
	// the file, so a bounded header scan catches generator stamps that
	// are not proper EXIF.
	header := data
	if len(header) > 64*1024 {
		header = header[:64*1024]
	}
	haystack := strings.ToLower(strings.Join(fields, "\x00")) + "\x00" + strings.ToLower(string(header))

	var found []string
	seen := make(map[string]bool)
	for _, sig := range a.signatures {
		if seen[sig] {
			continue
		}
		if strings.Contains(haystack, sig) {
			found = append(found, sig)
			seen[sig] = true
		}
	}
	if found == nil {
		found = []string{}
	}
	return found
}

// tagValueString renders an imagemeta tag value as a trimmed string.
func tagValueString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []string:
		return strings.TrimSpace(strings.Join(s, " "))
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// tagValueFloat renders an imagemeta tag value as a float64, handling
// the rational and integer shapes EXIF encoders emit.
func tagValueFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(fmt.Sprint(v)), 64)
		if err != nil {
			return 0
		}
		return f
	}
}
