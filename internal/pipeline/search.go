package pipeline

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/berrythewa/clipkeep/internal/types"
)

// searchText is what a query is matched against
func searchText(s types.RecordSummary) string {
	if s.Type == types.TypeImage {
		return fmt.Sprintf("image %dx%d", s.Width, s.Height)
	}
	return s.Text
}

// summarySource adapts summaries to fuzzy.Source
type summarySource []types.RecordSummary

func (s summarySource) String(i int) string { return searchText(s[i]) }
func (s summarySource) Len() int            { return len(s) }

// Filter returns the summaries matching query. The default mode is a
// case-insensitive substring match that keeps the input order; fuzzy mode
// orders results by match score. An empty query matches everything.
func Filter(summaries []types.RecordSummary, query string, useFuzzy bool) []types.RecordSummary {
	query = strings.TrimSpace(query)
	if query == "" {
		return summaries
	}

	if useFuzzy {
		matches := fuzzy.FindFrom(query, summarySource(summaries))
		out := make([]types.RecordSummary, 0, len(matches))
		for _, m := range matches {
			out = append(out, summaries[m.Index])
		}
		return out
	}

	needle := strings.ToLower(query)
	var out []types.RecordSummary
	for _, s := range summaries {
		if strings.Contains(strings.ToLower(searchText(s)), needle) {
			out = append(out, s)
		}
	}
	return out
}
