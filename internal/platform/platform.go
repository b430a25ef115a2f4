// Package platform connects the pipeline to the operating system clipboard.
package platform

import (
	"context"

	"github.com/berrythewa/clipkeep/internal/clipboard"
)

// ChangeHandler receives a snapshot for every observed clipboard change
type ChangeHandler func(clipboard.Snapshot)

// Clipboard is the raw clipboard accessor the daemon consumes
type Clipboard interface {
	// Snapshot reads every representation currently offered
	Snapshot(ctx context.Context) (clipboard.Snapshot, error)
	// The write methods report whether the write changed the clipboard as
	// MonitorChanges last saw it
	WriteText(text string) (bool, error)
	WriteImage(pngData []byte) (bool, error)
	WriteFileList(paths string) (bool, error)
	// MonitorChanges calls handler for each change until ctx is done
	MonitorChanges(ctx context.Context, handler ChangeHandler)
}

// TargetReader fetches one extra MIME target (text/html, text/uri-list)
// that the native clipboard binding does not expose
type TargetReader func(ctx context.Context, mime string) (string, error)

// TargetWriter offers data under one MIME target through an external tool
type TargetWriter func(ctx context.Context, mime string, data string) error
