package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// byteSize renders n with a binary unit, e.g. "1.5 KB"
func byteSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	size := float64(n)
	unit := ""
	for _, u := range []string{"KB", "MB", "GB", "TB"} {
		size /= 1024
		unit = u
		if size < 1024 {
			break
		}
	}
	return fmt.Sprintf("%.1f %s", size, unit)
}

// RelativeTime formats t relative to now as a human-readable string
func RelativeTime(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// clip cuts text to max runes, marking the cut with "..."
func clip(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// clipLines keeps the first max lines and says how many were dropped
func clipLines(text string, max int) string {
	lines := strings.Split(text, "\n")
	if max <= 0 || len(lines) <= max {
		return text
	}
	return fmt.Sprintf("%s\n... (%d more lines)", strings.Join(lines[:max], "\n"), len(lines)-max)
}

// section renders a dimmed title over content indented by two spaces
func section(title, content string, opts Options) string {
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return opts.paint("▼ "+title, ansiDim) + "\n" + strings.Join(lines, "\n")
}

func separator(opts Options) string {
	return opts.paint(strings.Repeat("─", 40), ansiDim)
}
