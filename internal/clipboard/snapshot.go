package clipboard

import "strings"

// Snapshot is the set of representations the system clipboard exposed at
// one change notification. Any field may be empty.
type Snapshot struct {
	Image []byte   // encoded image (PNG from most platforms)
	URLs  []string // entries of a text/uri-list target
	HTML  string
	Text  string
}

// Empty reports whether the snapshot carries nothing capturable
func (s Snapshot) Empty() bool {
	return len(s.Image) == 0 && len(s.URLs) == 0 && s.HTML == "" && strings.TrimSpace(s.Text) == ""
}
