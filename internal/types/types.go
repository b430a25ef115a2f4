package types

import (
	"image"
	"time"
)

// ContentType is the coarse kind of a history record
type ContentType string

const (
	TypeText  ContentType = "text"
	TypeImage ContentType = "image"
)

// Format refines ContentType. Text records are plain, html or file lists;
// image records are PNG or JPEG.
type Format string

const (
	FormatPlain     Format = "plain"
	FormatHTML      Format = "html"
	FormatFilePaths Format = "file"
	FormatPNG       Format = "PNG"
	FormatJPEG      Format = "JPEG"
)

// Type returns the content type a format belongs to, or "" for unknown formats
func (f Format) Type() ContentType {
	switch f {
	case FormatPlain, FormatHTML, FormatFilePaths:
		return TypeText
	case FormatPNG, FormatJPEG:
		return TypeImage
	default:
		return ""
	}
}

// Ext returns the file extension used when exporting a record of this format
func (f Format) Ext() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpg"
	case FormatHTML:
		return "html"
	default:
		return "txt"
	}
}

// Record is one persisted history entry.
// Exactly one of Text and Image is populated, as selected by Type.
type Record struct {
	ID        int64       `json:"id"`
	Type      ContentType `json:"type"`
	Format    Format      `json:"format"`
	Text      string      `json:"text,omitempty"`
	Image     []byte      `json:"image,omitempty"`
	Thumbnail []byte      `json:"thumbnail,omitempty"`
	Width     int         `json:"width,omitempty"`
	Height    int         `json:"height,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Hash      string      `json:"hash"`
}

// Summary drops the full image bytes, keeping the thumbnail
func (r *Record) Summary() RecordSummary {
	return RecordSummary{
		ID:        r.ID,
		Type:      r.Type,
		Format:    r.Format,
		Text:      r.Text,
		Thumbnail: r.Thumbnail,
		Width:     r.Width,
		Height:    r.Height,
		Timestamp: r.Timestamp,
		Hash:      r.Hash,
	}
}

// RecordSummary is the list-view projection of a Record
type RecordSummary struct {
	ID        int64       `json:"id"`
	Type      ContentType `json:"type"`
	Format    Format      `json:"format"`
	Text      string      `json:"text,omitempty"`
	Thumbnail []byte      `json:"thumbnail,omitempty"`
	Width     int         `json:"width,omitempty"`
	Height    int         `json:"height,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Hash      string      `json:"hash"`
}

// RecordDetail is a full record plus, for images, the decoded pixels
type RecordDetail struct {
	Record
	Decoded image.Image `json:"-"`
}

// Settings are the user-facing knobs the capture pipeline reads
type Settings struct {
	MaxHistory        int  `json:"max_history" yaml:"max_history"`
	SaveOriginalImage bool `json:"save_original_image" yaml:"save_original_image"`
	EnableRichText    bool `json:"enable_rich_text" yaml:"enable_rich_text"`
	EnableFilePaths   bool `json:"enable_file_paths" yaml:"enable_file_paths"`
}

const DefaultMaxHistory = 100

// DefaultSettings returns the settings used when no settings document exists
func DefaultSettings() Settings {
	return Settings{
		MaxHistory:        DefaultMaxHistory,
		SaveOriginalImage: false,
		EnableRichText:    true,
		EnableFilePaths:   true,
	}
}
