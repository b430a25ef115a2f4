package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/berrythewa/clipkeep/internal/types"
)

// Stats summarizes a history listing
type Stats struct {
	Total     int                  `json:"total"`
	TextBytes int64                `json:"text_bytes"`
	ByFormat  map[types.Format]int `json:"by_format"`
	Oldest    time.Time            `json:"oldest,omitempty"`
	Newest    time.Time            `json:"newest,omitempty"`
}

// ComputeStats tallies summaries by format and time range
func ComputeStats(summaries []types.RecordSummary) Stats {
	stats := Stats{ByFormat: make(map[types.Format]int)}
	for _, s := range summaries {
		stats.Total++
		stats.ByFormat[s.Format]++
		stats.TextBytes += int64(len(s.Text))
		if stats.Oldest.IsZero() || s.Timestamp.Before(stats.Oldest) {
			stats.Oldest = s.Timestamp
		}
		if s.Timestamp.After(stats.Newest) {
			stats.Newest = s.Timestamp
		}
	}
	return stats
}

// FormatStats formats history statistics for display
func FormatStats(stats Stats, opts Options, now time.Time) string {
	title := "Clipboard Statistics"
	if opts.UseIcons {
		title = "📊 " + title
	}
	parts := []string{opts.paint(title, brightBlue), ""}

	parts = append(parts, formatStatLine("Total entries", fmt.Sprintf("%d", stats.Total), opts))
	if stats.TextBytes > 0 {
		parts = append(parts, formatStatLine("Text size", byteSize(stats.TextBytes), opts))
	}
	if stats.Total > 0 {
		parts = append(parts, formatStatLine("Oldest entry", RelativeTime(stats.Oldest, now), opts))
		parts = append(parts, formatStatLine("Newest entry", RelativeTime(stats.Newest, now), opts))
	}

	if len(stats.ByFormat) > 0 {
		parts = append(parts, "", opts.paint("Entries by format", brightBlue))

		formats := make([]types.Format, 0, len(stats.ByFormat))
		for f := range stats.ByFormat {
			formats = append(formats, f)
		}
		sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })

		for _, f := range formats {
			icon := ""
			if opts.UseIcons {
				if i, ok := FormatIcons[f]; ok {
					icon = i + " "
				}
			}
			name := opts.paint(string(f), FormatColors[f])
			parts = append(parts, fmt.Sprintf("  %s%s: %d", icon, name, stats.ByFormat[f]))
		}
	}

	return strings.Join(parts, "\n")
}

// formatStatLine formats a statistics line with label and value
func formatStatLine(label, value string, opts Options) string {
	if opts.UseColors {
		return fmt.Sprintf("  %s%s:%s %s", brightCyan, label, ansiReset, value)
	}
	return fmt.Sprintf("  %s: %s", label, value)
}
