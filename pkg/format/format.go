package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/berrythewa/clipkeep/internal/types"
)

// Formatter renders history records for the terminal
type Formatter struct {
	options Options
	now     func() time.Time
}

// New creates a new formatter with the given options
func New(opts Options) *Formatter {
	return &Formatter{
		options: opts,
		now:     time.Now,
	}
}

// NewDefault creates a new formatter with default options
func NewDefault() *Formatter {
	return New(DefaultOptions())
}

// FormatSummary formats one list entry
func (f *Formatter) FormatSummary(s *types.RecordSummary) string {
	if s == nil {
		return f.options.paint("No content", gray)
	}

	header := f.formatHeader(s.ID, s.Format)
	preview := f.preview(s, 50)
	if f.options.Compact {
		return header + " " + f.options.paint(preview, ansiDim)
	}

	parts := []string{header, "  " + preview}
	if f.options.ShowMetadata {
		parts = append(parts, "  "+f.formatMetadata(s.Timestamp, s.Hash, 0))
	}
	return strings.Join(parts, "\n")
}

// FormatSummaryList formats a page of history, newest first
func (f *Formatter) FormatSummaryList(summaries []types.RecordSummary) string {
	if len(summaries) == 0 {
		return f.options.paint("No clipboard history", gray)
	}

	parts := []string{f.formatListHeader(len(summaries)), ""}
	for i := range summaries {
		parts = append(parts, f.FormatSummary(&summaries[i]))
		if !f.options.Compact && i < len(summaries)-1 {
			parts = append(parts, separator(f.options))
		}
	}
	return strings.Join(parts, "\n")
}

// FormatDetail formats a single full record
func (f *Formatter) FormatDetail(d *types.RecordDetail) string {
	if d == nil {
		return f.options.paint("No content", gray)
	}

	parts := []string{f.formatHeader(d.ID, d.Format)}
	if f.options.ShowMetadata {
		size := len(d.Text)
		if d.Type == types.TypeImage {
			size = len(d.Image)
		}
		parts = append(parts, f.formatMetadata(d.Timestamp, d.Hash, size))
	}

	var body string
	if d.Type == types.TypeImage {
		body = FormatImage(d)
	} else {
		body = FormatText(d.Format, d.Text, f.options)
	}
	if box := section("Content", body, f.options); box != "" {
		parts = append(parts, box)
	}
	return strings.Join(parts, "\n")
}

// FormatStats formats history statistics
func (f *Formatter) FormatStats(stats Stats) string {
	return FormatStats(stats, f.options, f.now())
}

func (f *Formatter) preview(s *types.RecordSummary, maxLen int) string {
	if s.Type == types.TypeImage {
		return ImagePreview(s, maxLen)
	}
	return TextPreview(s.Format, s.Text, maxLen)
}

// formatHeader renders "#id icon format"
func (f *Formatter) formatHeader(id int64, format types.Format) string {
	parts := []string{f.options.paint(fmt.Sprintf("#%d", id), ansiBold)}
	if f.options.UseIcons {
		if icon, ok := FormatIcons[format]; ok {
			parts = append(parts, icon)
		}
	}
	parts = append(parts, f.options.paint(string(format), FormatColors[format]))
	return strings.Join(parts, " ")
}

func (f *Formatter) formatMetadata(ts time.Time, hash string, size int) string {
	parts := []string{"Captured: " + RelativeTime(ts, f.now())}
	if size > 0 {
		parts = append(parts, "Size: "+byteSize(int64(size)))
	}
	if hash != "" {
		parts = append(parts, "Hash: "+shortHash(hash))
	}
	return f.options.paint(strings.Join(parts, " • "), ansiDim)
}

func (f *Formatter) formatListHeader(count int) string {
	title := fmt.Sprintf("Clipboard History (%d entries)", count)
	if f.options.UseIcons {
		title = "📋 " + title
	}
	return f.options.paint(title, brightBlue)
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
