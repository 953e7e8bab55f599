package metadata

import (
	"bytes"
	"strings"

	"github.com/trainguard/img-sentinel/internal/fusion"
)

// c2paBoxMarkers identify an embedded C2PA manifest store. The manifest
// lives in a JUMBF superbox whose label starts with "c2pa".
var c2paBoxMarkers = [][]byte{
	[]byte("jumb"),
	[]byte("c2pa"),
}

// aiAssertionKeywords are manifest substrings that declare AI
// generation. The IPTC digital source types are the normative ones;
// the c2pa.* actions appear in practice.
var aiAssertionKeywords = []string{
	"trainedalgorithmicmedia",
	"compositewithtrainedalgorithmicmedia",
	"algorithmicmedia",
	"c2pa.ai_generative",
	"c2pa.ai_generative_training",
}

// probeC2PA scans the image bytes for an embedded C2PA manifest and
// pulls out the fields the fusion rules use. This is a presence and
// keyword probe, not a signature-verifying manifest parser; manifests
// are CBOR inside JUMBF and the relevant keys survive as plain text.
func probeC2PA(data []byte) *fusion.C2PAInfo {
	for _, marker := range c2paBoxMarkers {
		if !bytes.Contains(data, marker) {
			return nil
		}
	}

	info := &fusion.C2PAInfo{}
	lower := strings.ToLower(string(data))

	for _, keyword := range aiAssertionKeywords {
		if strings.Contains(lower, keyword) {
			info.AIRelatedAssertions = append(info.AIRelatedAssertions, keyword)
		}
	}

	info.Generator = extractAfterKey(data, "claim_generator")
	info.SoftwareAgent = extractAfterKey(data, "softwareagent")
	if info.SoftwareAgent == "" {
		info.SoftwareAgent = extractAfterKey(data, "softwareAgent")
	}

	return info
}

// extractAfterKey returns the printable run that follows a manifest key,
// skipping CBOR length bytes and separators. Empty when the key is
// absent or no printable value follows.
func extractAfterKey(data []byte, key string) string {
	idx := bytes.Index(data, []byte(key))
	if idx < 0 {
		return ""
	}

	rest := data[idx+len(key):]
	// Skip up to 4 non-printable framing bytes.
	start := 0
	for start < len(rest) && start < 4 && !printable(rest[start]) {
		start++
	}

	end := start
	for end < len(rest) && end-start < 128 && printable(rest[end]) {
		end++
	}

	value := strings.TrimSpace(string(rest[start:end]))
	if len(value) < 2 {
		return ""
	}
	return value
}

func printable(b byte) bool {
	return b >= 0x20 && b < 0x7f
}
