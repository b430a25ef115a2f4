package platform

import (
	"context"
	"fmt"
	"sync"
	"time"

	xclipboard "golang.design/x/clipboard"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

const (
	mimeHTML    = "text/html"
	mimeURIList = "text/uri-list"

	// DefaultPollInterval is the base polling rate while the clipboard is active
	DefaultPollInterval = 250 * time.Millisecond
	// idleStreak polls without change before backing off
	idleStreak = 20

	targetWriteTimeout = 2 * time.Second
)

// native abstracts golang.design/x/clipboard
type native interface {
	Read(f xclipboard.Format) []byte
	Write(f xclipboard.Format, data []byte)
}

type designClipboard struct{}

func (designClipboard) Read(f xclipboard.Format) []byte { return xclipboard.Read(f) }
func (designClipboard) Write(f xclipboard.Format, data []byte) {
	xclipboard.Write(f, data)
}

// Options configures SystemClipboard
type Options struct {
	// PollInterval is the base rate; an idle clipboard is polled 4x slower
	PollInterval time.Duration
	// ExternalTools enables reading html and uri-list targets through
	// xclip or wl-paste, and writing file lists through xclip or wl-copy,
	// where available
	ExternalTools bool
	Logger        *zap.Logger
}

// SystemClipboard watches the OS clipboard by polling its text and image
// representations and assembling a Snapshot whenever either changes
type SystemClipboard struct {
	native  native
	targets TargetReader
	writer  TargetWriter
	logger  *zap.Logger

	baseInterval time.Duration
	maxInterval  time.Duration

	mu        sync.Mutex
	isRunning bool
	lastKey   string
}

// New initialises the native clipboard. It fails on headless systems.
func New(opts Options) (*SystemClipboard, error) {
	if err := xclipboard.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}
	c := newSystemClipboard(designClipboard{}, nil, opts)
	if opts.ExternalTools {
		c.targets = externalTargetReader()
		c.writer = externalTargetWriter()
	}
	return c, nil
}

func newSystemClipboard(n native, targets TargetReader, opts Options) *SystemClipboard {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &SystemClipboard{
		native:       n,
		targets:      targets,
		logger:       logger,
		baseInterval: interval,
		maxInterval:  4 * interval,
	}
}

// changeKey identifies the clipboard state cheaply between polls
func changeKey(text, img []byte) string {
	return utils.HashContent(text) + "|" + utils.HashContent(img)
}

// Snapshot reads text, image and, when enabled, html and uri-list targets
func (c *SystemClipboard) Snapshot(ctx context.Context) (clipboard.Snapshot, error) {
	text := c.native.Read(xclipboard.FmtText)
	img := c.native.Read(xclipboard.FmtImage)
	return c.assemble(ctx, text, img), nil
}

func (c *SystemClipboard) assemble(ctx context.Context, text, img []byte) clipboard.Snapshot {
	snap := clipboard.Snapshot{Text: string(text), Image: img}
	if c.targets == nil || len(img) > 0 {
		return snap
	}

	if html, err := c.targets(ctx, mimeHTML); err != nil {
		c.logger.Debug("No html target", zap.Error(err))
	} else {
		snap.HTML = html
	}
	if list, err := c.targets(ctx, mimeURIList); err != nil {
		c.logger.Debug("No uri-list target", zap.Error(err))
	} else {
		snap.URLs = clipboard.ParseURIList(list)
	}
	return snap
}

// WriteText puts text on the clipboard
func (c *SystemClipboard) WriteText(text string) (bool, error) {
	return c.write(func() error {
		c.native.Write(xclipboard.FmtText, []byte(text))
		return nil
	})
}

// WriteImage puts PNG data on the clipboard
func (c *SystemClipboard) WriteImage(pngData []byte) (bool, error) {
	if len(pngData) == 0 {
		return false, fmt.Errorf("empty image")
	}
	return c.write(func() error {
		c.native.Write(xclipboard.FmtImage, pngData)
		return nil
	})
}

// WriteFileList offers newline-joined paths as a text/uri-list target. Without
// an external tool the paths are written as plain text.
func (c *SystemClipboard) WriteFileList(paths string) (bool, error) {
	if c.writer == nil {
		return c.WriteText(paths)
	}
	return c.write(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), targetWriteTimeout)
		defer cancel()
		return c.writer(ctx, mimeURIList, clipboard.PathsToURIs(paths))
	})
}

// write runs fn and reports whether the clipboard now differs from what the
// monitor last saw. The lock keeps a concurrent poll from recording the new
// state between the write and the comparison. When nothing is monitoring
// no change will ever be reported.
func (c *SystemClipboard) write(fn func() error) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := fn(); err != nil {
		return false, err
	}
	if !c.isRunning {
		return false, nil
	}
	key := changeKey(c.native.Read(xclipboard.FmtText), c.native.Read(xclipboard.FmtImage))
	return key != c.lastKey, nil
}

// MonitorChanges polls until ctx is done. The state present when monitoring
// starts is treated as already seen. Polling slows down after a run of
// idle polls and returns to the base rate on the next change.
func (c *SystemClipboard) MonitorChanges(ctx context.Context, handler ChangeHandler) {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = true
	c.lastKey = changeKey(c.native.Read(xclipboard.FmtText), c.native.Read(xclipboard.FmtImage))
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.isRunning = false
		c.mu.Unlock()
	}()

	c.logger.Info("Clipboard monitoring started", zap.Duration("interval", c.baseInterval))
	interval := c.baseInterval
	inactive := 0
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Stopping clipboard monitoring")
			return
		case <-timer.C:
		}

		text := c.native.Read(xclipboard.FmtText)
		img := c.native.Read(xclipboard.FmtImage)
		key := changeKey(text, img)

		c.mu.Lock()
		changed := key != c.lastKey
		c.lastKey = key
		c.mu.Unlock()

		if changed {
			inactive = 0
			interval = c.baseInterval
			handler(c.assemble(ctx, text, img))
		} else {
			inactive++
			if inactive > idleStreak {
				interval = c.maxInterval
			}
		}
		timer.Reset(interval)
	}
}
