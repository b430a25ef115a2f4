package clipboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/berrythewa/clipkeep/internal/types"
)

func TestClassify(t *testing.T) {
	all := types.DefaultSettings()
	longHTML := "<p><b>bold</b> and <i>italic</i> text</p>"

	tests := []struct {
		name     string
		snap     Snapshot
		settings types.Settings
		want     Candidate
		ok       bool
	}{
		{
			name:     "image wins over text",
			snap:     Snapshot{Image: []byte{0x89, 'P', 'N', 'G'}, Text: "caption"},
			settings: all,
			want:     Candidate{Type: types.TypeImage, Image: []byte{0x89, 'P', 'N', 'G'}},
			ok:       true,
		},
		{
			name:     "image captured even with every flag off",
			snap:     Snapshot{Image: []byte{1}},
			settings: types.Settings{MaxHistory: 1},
			want:     Candidate{Type: types.TypeImage, Image: []byte{1}},
			ok:       true,
		},
		{
			name:     "local files joined in order",
			snap:     Snapshot{URLs: []string{"file:///tmp/b.txt", "https://example.com/x", "file:///tmp/a%20b.txt"}, Text: "ignored"},
			settings: all,
			want:     Candidate{Type: types.TypeText, Format: types.FormatFilePaths, Text: "/tmp/b.txt\n/tmp/a b.txt"},
			ok:       true,
		},
		{
			name:     "remote urls fall through to text",
			snap:     Snapshot{URLs: []string{"https://example.com"}, Text: "https://example.com"},
			settings: all,
			want:     Candidate{Type: types.TypeText, Format: types.FormatPlain, Text: "https://example.com"},
			ok:       true,
		},
		{
			name:     "file paths disabled and nothing else",
			snap:     Snapshot{URLs: []string{"file:///tmp/a.txt"}},
			settings: types.Settings{MaxHistory: 10, EnableRichText: true},
			ok:       false,
		},
		{
			name:     "rich text",
			snap:     Snapshot{HTML: longHTML, Text: "bold and italic text"},
			settings: all,
			want:     Candidate{Type: types.TypeText, Format: types.FormatHTML, Text: longHTML},
			ok:       true,
		},
		{
			name:     "short html falls through",
			snap:     Snapshot{HTML: "<b>hi</b>", Text: "hi"},
			settings: all,
			want:     Candidate{Type: types.TypeText, Format: types.FormatPlain, Text: "hi"},
			ok:       true,
		},
		{
			name:     "rich text disabled",
			snap:     Snapshot{HTML: longHTML, Text: "plain"},
			settings: types.Settings{MaxHistory: 10},
			want:     Candidate{Type: types.TypeText, Format: types.FormatPlain, Text: "plain"},
			ok:       true,
		},
		{
			name:     "text is trimmed",
			snap:     Snapshot{Text: "  padded \n"},
			settings: all,
			want:     Candidate{Type: types.TypeText, Format: types.FormatPlain, Text: "padded"},
			ok:       true,
		},
		{
			name:     "whitespace only",
			snap:     Snapshot{Text: " \t\n"},
			settings: all,
			ok:       false,
		},
		{
			name:     "empty",
			snap:     Snapshot{},
			settings: all,
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.snap, tt.settings)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotEmpty(t *testing.T) {
	assert.True(t, Snapshot{Text: "  "}.Empty())
	assert.False(t, Snapshot{HTML: "<b>x</b>"}.Empty())
	assert.False(t, Snapshot{Image: []byte{1}}.Empty())
}
