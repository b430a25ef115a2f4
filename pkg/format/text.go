package format

import (
	"fmt"
	"strings"

	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/internal/types"
)

// FormatText formats the body of a text record for display.
// HTML is shown as its visible text; file lists show up to three paths.
func FormatText(format types.Format, text string, opts Options) string {
	switch format {
	case types.FormatFilePaths:
		return formatFileList(splitPaths(text))
	case types.FormatHTML:
		text = clipboard.StripHTML(text)
	}

	if opts.MaxWidth > 0 {
		text = truncateEachLine(text, opts.MaxWidth)
	}
	if opts.MaxLines > 0 {
		text = clipLines(text, opts.MaxLines)
	}
	return text
}

// TextPreview creates a short single-line preview of a text record
func TextPreview(format types.Format, text string, maxLen int) string {
	switch format {
	case types.FormatFilePaths:
		paths := splitPaths(text)
		if len(paths) == 1 {
			return clip(paths[0], maxLen)
		}
		return fmt.Sprintf("[%d files]", len(paths))
	case types.FormatHTML:
		text = clipboard.StripHTML(text)
	}

	preview := strings.Join(strings.Fields(text), " ")
	if preview == "" {
		return "(empty)"
	}
	return clip(preview, maxLen)
}

func splitPaths(joined string) []string {
	var paths []string
	for _, p := range strings.Split(joined, "\n") {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// formatFileList formats a list of file paths
func formatFileList(files []string) string {
	if len(files) == 0 {
		return "[Empty file list]"
	}

	maxShow := 3
	if len(files) <= maxShow {
		return strings.Join(files, "\n")
	}

	preview := strings.Join(files[:maxShow], "\n")
	return preview + fmt.Sprintf("\n... and %d more files", len(files)-maxShow)
}

func truncateEachLine(text string, maxWidth int) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = clip(line, maxWidth)
	}
	return strings.Join(lines, "\n")
}
