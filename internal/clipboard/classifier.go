package clipboard

import (
	"strings"

	"github.com/berrythewa/clipkeep/internal/types"
)

// MinHTMLLength filters out near-empty wrapper markup
const MinHTMLLength = 20

// Candidate is the single representation chosen for capture
type Candidate struct {
	Type   types.ContentType
	Format types.Format
	Text   string // text, html or newline-joined paths
	Image  []byte // raw snapshot image bytes, re-encoded during ingest
}

// Classify picks at most one representation by fixed priority:
// image, then local file paths, then rich text, then plain text.
// The first tier that matches wins; later tiers are never consulted.
func Classify(snap Snapshot, settings types.Settings) (Candidate, bool) {
	if len(snap.Image) > 0 {
		return Candidate{Type: types.TypeImage, Image: snap.Image}, true
	}

	if settings.EnableFilePaths && len(snap.URLs) > 0 {
		if paths := LocalPaths(snap.URLs); len(paths) > 0 {
			return Candidate{
				Type:   types.TypeText,
				Format: types.FormatFilePaths,
				Text:   strings.Join(paths, "\n"),
			}, true
		}
	}

	if settings.EnableRichText && len(snap.HTML) > MinHTMLLength {
		return Candidate{Type: types.TypeText, Format: types.FormatHTML, Text: snap.HTML}, true
	}

	if text := strings.TrimSpace(snap.Text); text != "" {
		return Candidate{Type: types.TypeText, Format: types.FormatPlain, Text: text}, true
	}

	return Candidate{}, false
}
