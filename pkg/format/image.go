package format

import (
	"fmt"

	"github.com/berrythewa/clipkeep/internal/types"
)

// FormatImage describes a full image record
func FormatImage(detail *types.RecordDetail) string {
	return fmt.Sprintf("[%s image %dx%d - %s]",
		detail.Format, detail.Width, detail.Height, byteSize(int64(len(detail.Image))))
}

// ImagePreview creates a short preview of an image record
func ImagePreview(summary *types.RecordSummary, maxLen int) string {
	return clip(fmt.Sprintf("[Image %dx%d]", summary.Width, summary.Height), maxLen)
}
