package format

import "github.com/berrythewa/clipkeep/internal/types"

// Options controls formatting behavior
type Options struct {
	UseColors    bool
	UseIcons     bool
	MaxWidth     int  // Max content width (0 = no limit)
	MaxLines     int  // Max content lines (0 = no limit)
	ShowMetadata bool // Show hash, timestamp and size
	Compact      bool // Use compact single-line format
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		UseColors:    true,
		UseIcons:     true,
		MaxWidth:     80,
		MaxLines:     10,
		ShowMetadata: true,
		Compact:      false,
	}
}

// CompactOptions returns options for compact single-line display
func CompactOptions() Options {
	opts := DefaultOptions()
	opts.Compact = true
	opts.ShowMetadata = false
	opts.MaxLines = 1
	return opts
}

// PlainOptions disables colors and icons, for pipes and non-terminals
func PlainOptions() Options {
	opts := DefaultOptions()
	opts.UseColors = false
	opts.UseIcons = false
	return opts
}

// FormatIcons maps record formats to Unicode icons
var FormatIcons = map[types.Format]string{
	types.FormatPlain:     "📝",
	types.FormatHTML:      "🌐",
	types.FormatFilePaths: "📁",
	types.FormatPNG:       "🖼️",
	types.FormatJPEG:      "🖼️",
}

// FormatColors maps record formats to colors
var FormatColors = map[types.Format]string{
	types.FormatPlain:     cyan,
	types.FormatHTML:      green,
	types.FormatFilePaths: brightYellow,
	types.FormatPNG:       magenta,
	types.FormatJPEG:      brightMagenta,
}
