package platform

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xclipboard "golang.design/x/clipboard"
	"go.uber.org/zap/zaptest"

	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/internal/config"
	"github.com/berrythewa/clipkeep/internal/pipeline"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
)

type fakeNative struct {
	mu   sync.Mutex
	data map[xclipboard.Format][]byte
}

func newFakeNative() *fakeNative {
	return &fakeNative{data: map[xclipboard.Format][]byte{}}
}

func (f *fakeNative) Read(format xclipboard.Format) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[format]
}

func (f *fakeNative) Write(format xclipboard.Format, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[format] = data
}

func TestSnapshotAssembly(t *testing.T) {
	ctx := context.Background()
	n := newFakeNative()
	n.Write(xclipboard.FmtText, []byte("plain"))

	targets := func(_ context.Context, mime string) (string, error) {
		switch mime {
		case mimeHTML:
			return "<b>plain</b>", nil
		case mimeURIList:
			return "# comment\r\nfile:///tmp/a.txt\r\n", nil
		}
		return "", errors.New("unexpected target")
	}

	t.Run("WithTargets", func(t *testing.T) {
		c := newSystemClipboard(n, targets, Options{Logger: zaptest.NewLogger(t)})
		snap, err := c.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, "plain", snap.Text)
		assert.Equal(t, "<b>plain</b>", snap.HTML)
		assert.Equal(t, []string{"file:///tmp/a.txt"}, snap.URLs)
	})

	t.Run("WithoutTargets", func(t *testing.T) {
		c := newSystemClipboard(n, nil, Options{})
		snap, err := c.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, clipboard.Snapshot{Text: "plain"}, snap)
	})

	t.Run("TargetErrorsIgnored", func(t *testing.T) {
		failing := func(context.Context, string) (string, error) { return "", errors.New("no tool") }
		c := newSystemClipboard(n, failing, Options{Logger: zaptest.NewLogger(t)})
		snap, err := c.Snapshot(ctx)
		require.NoError(t, err)
		assert.Empty(t, snap.HTML)
		assert.Empty(t, snap.URLs)
	})
}

func TestWrite(t *testing.T) {
	n := newFakeNative()
	c := newSystemClipboard(n, nil, Options{})

	changed, err := c.WriteText("hi")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), n.Read(xclipboard.FmtText))
	assert.False(t, changed, "nothing is monitoring")

	_, err = c.WriteImage([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, n.Read(xclipboard.FmtImage))

	_, err = c.WriteImage(nil)
	assert.Error(t, err)
}

func TestWriteFileList(t *testing.T) {
	t.Run("TargetWriter", func(t *testing.T) {
		var mime, data string
		c := newSystemClipboard(newFakeNative(), nil, Options{})
		c.writer = func(_ context.Context, m, d string) error {
			mime, data = m, d
			return nil
		}
		_, err := c.WriteFileList("/tmp/a b.txt\n/tmp/c.txt")
		require.NoError(t, err)
		assert.Equal(t, mimeURIList, mime)
		assert.Equal(t, "file:///tmp/a%20b.txt\r\nfile:///tmp/c.txt\r\n", data)
	})

	t.Run("PlainTextWithoutTool", func(t *testing.T) {
		n := newFakeNative()
		c := newSystemClipboard(n, nil, Options{})
		_, err := c.WriteFileList("/tmp/a.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("/tmp/a.txt"), n.Read(xclipboard.FmtText))
	})

	t.Run("ToolError", func(t *testing.T) {
		c := newSystemClipboard(newFakeNative(), nil, Options{})
		c.writer = func(context.Context, string, string) error { return errors.New("xclip failed") }
		changed, err := c.WriteFileList("/tmp/a.txt")
		assert.Error(t, err)
		assert.False(t, changed)
	})
}

func (c *SystemClipboard) seenKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastKey
}

func TestCopyBackWithMonitor(t *testing.T) {
	backend, err := storage.Open(storage.StorageConfig{
		Driver: config.DriverBolt,
		DBPath: filepath.Join(t.TempDir(), "history.db"),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	n := newFakeNative()
	c := newSystemClipboard(n, nil, Options{PollInterval: 5 * time.Millisecond, Logger: zaptest.NewLogger(t)})
	p := pipeline.New(backend, pipeline.Options{
		Settings: types.DefaultSettings(),
		Workers:  config.WorkerConfig{PoolSize: 1, QueueSize: 32},
		Writer:   c,
		Logger:   zaptest.NewLogger(t),
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		c.MonitorChanges(ctx, p.OnClipboardChanged)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
		backend.Close()
	})

	records := func() []types.RecordSummary {
		s, _ := p.ListSummaries(context.Background(), 0)
		return s
	}
	waitFor := func(n int) {
		t.Helper()
		require.Eventually(t, func() bool { return len(records()) == n }, 3*time.Second, 10*time.Millisecond)
	}

	n.Write(xclipboard.FmtText, []byte("A"))
	waitFor(1)
	idA := records()[0].ID

	// A is still on the clipboard, so this write is not a change
	require.NoError(t, p.Copy(context.Background(), idA))
	n.Write(xclipboard.FmtText, []byte("B"))
	waitFor(2)

	// copying A over B is seen by the monitor and skipped as our own echo
	require.NoError(t, p.Copy(context.Background(), idA))
	keyA := changeKey([]byte("A"), nil)
	require.Eventually(t, func() bool { return c.seenKey() == keyA }, 3*time.Second, 5*time.Millisecond)

	n.Write(xclipboard.FmtText, []byte("C"))
	waitFor(3)
	assert.Equal(t, "C", records()[0].Text)
}

func TestMonitorChanges(t *testing.T) {
	n := newFakeNative()
	n.Write(xclipboard.FmtText, []byte("already there"))
	c := newSystemClipboard(n, nil, Options{PollInterval: 5 * time.Millisecond, Logger: zaptest.NewLogger(t)})

	var mu sync.Mutex
	var seen []clipboard.Snapshot
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.MonitorChanges(ctx, func(s clipboard.Snapshot) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		})
	}()

	received := func() []clipboard.Snapshot {
		mu.Lock()
		defer mu.Unlock()
		return append([]clipboard.Snapshot(nil), seen...)
	}

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, received(), "initial content is not a change")

	n.Write(xclipboard.FmtText, []byte("next"))
	assert.Eventually(t, func() bool { return len(received()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "next", received()[0].Text)

	n.Write(xclipboard.FmtImage, []byte("img"))
	assert.Eventually(t, func() bool { return len(received()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte("img"), received()[1].Image)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
