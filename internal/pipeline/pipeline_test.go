package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/internal/config"
	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

// fakeWriter reports a change whenever the written content differs from
// the previous write
type fakeWriter struct {
	mu      sync.Mutex
	texts   []string
	files   []string
	images  [][]byte
	current string
	err     error
}

func (w *fakeWriter) put(content string) bool {
	changed := content != w.current
	w.current = content
	return changed
}

func (w *fakeWriter) WriteText(text string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return false, w.err
	}
	w.texts = append(w.texts, text)
	return w.put("text:" + text), nil
}

func (w *fakeWriter) WriteImage(data []byte) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return false, w.err
	}
	w.images = append(w.images, data)
	return w.put("image:" + utils.HashContent(data)), nil
}

func (w *fakeWriter) WriteFileList(paths string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return false, w.err
	}
	w.files = append(w.files, paths)
	return w.put("files:" + paths), nil
}

// eventLog collects OnChange events; it is written on the coordinator
// and read by the test goroutine
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(kind EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type harness struct {
	p      *Pipeline
	writer *fakeWriter
	events *eventLog
	ctx    context.Context
}

func startPipeline(t *testing.T, opts Options) *harness {
	t.Helper()
	backend, err := storage.Open(storage.StorageConfig{
		Driver: config.DriverBolt,
		DBPath: filepath.Join(t.TempDir(), "history.db"),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	h := &harness{writer: &fakeWriter{}, events: &eventLog{}, ctx: context.Background()}
	if opts.Settings == (types.Settings{}) {
		opts.Settings = types.DefaultSettings()
	}
	if opts.Workers.PoolSize == 0 {
		// one worker keeps tasks in submission order
		opts.Workers = config.WorkerConfig{PoolSize: 1, QueueSize: 32}
	}
	if opts.Writer == nil {
		opts.Writer = h.writer
	}
	opts.OnChange = h.events.add
	opts.Logger = zaptest.NewLogger(t)
	h.p = New(backend, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		backend.Close()
	})
	return h
}

// settle waits until everything posted so far has been handled and the
// tasks it queued have finished
func (h *harness) settle(t *testing.T) {
	t.Helper()
	_, err := h.p.CountRecords(h.ctx)
	require.NoError(t, err)
}

func (h *harness) summaries(t *testing.T) []types.RecordSummary {
	t.Helper()
	h.settle(t)
	s, err := h.p.ListSummaries(h.ctx, 0)
	require.NoError(t, err)
	return s
}

func pngBytes(t *testing.T, w, h int, alpha uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 3), G: uint8(y * 5), B: 60, A: alpha})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCaptureSameTextTwice(t *testing.T) {
	h := startPipeline(t, Options{})

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "hello"})
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "hello"})

	s := h.summaries(t)
	require.Len(t, s, 1)
	assert.Equal(t, "hello", s[0].Text)
	assert.Equal(t, utils.HashContent([]byte("hello")), s[0].Hash)
}

func TestDedupAgainstStore(t *testing.T) {
	h := startPipeline(t, Options{})

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "A"})
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "B"})
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "A"})

	s := h.summaries(t)
	require.Len(t, s, 2)
	assert.Equal(t, "B", s[0].Text)
	assert.Equal(t, "A", s[1].Text)
	assert.Equal(t, 2, h.events.count(EventCaptured))
}

func TestRejectedDuplicateKeepsPreviousHash(t *testing.T) {
	h := startPipeline(t, Options{})

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "A"})
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "B"})
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "A"})
	s := h.summaries(t)
	require.Len(t, s, 2)
	require.Equal(t, "A", s[1].Text)

	require.NoError(t, h.p.DeleteRecord(h.ctx, s[1].ID))
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "A"})

	s = h.summaries(t)
	require.Len(t, s, 2)
	assert.Equal(t, "A", s[0].Text)
	assert.Equal(t, "B", s[1].Text)
}

func TestClassifierPriorityThroughPipeline(t *testing.T) {
	h := startPipeline(t, Options{})

	h.p.OnClipboardChanged(clipboard.Snapshot{
		Image: pngBytes(t, 20, 10, 255),
		HTML:  "<p>some rich text that is long enough</p>",
		Text:  "plain",
	})

	s := h.summaries(t)
	require.Len(t, s, 1)
	assert.Equal(t, types.TypeImage, s[0].Type)
	assert.Equal(t, types.FormatJPEG, s[0].Format)
	assert.NotEmpty(t, s[0].Thumbnail)
}

func TestFilePathsDisabledDoesNotFallThrough(t *testing.T) {
	settings := types.DefaultSettings()
	settings.EnableFilePaths = false
	h := startPipeline(t, Options{Settings: settings})

	h.p.OnClipboardChanged(clipboard.Snapshot{URLs: []string{"file:///tmp/a.txt"}})

	assert.Empty(t, h.summaries(t))
}

func TestImageDownscaledOnCapture(t *testing.T) {
	h := startPipeline(t, Options{MaxImageArea: 1000})

	h.p.OnClipboardChanged(clipboard.Snapshot{Image: pngBytes(t, 100, 100, 128)})

	s := h.summaries(t)
	require.Len(t, s, 1)
	assert.Equal(t, types.FormatPNG, s[0].Format, "alpha keeps PNG")
	assert.LessOrEqual(t, s[0].Width*s[0].Height, 1000)
}

func TestTrimAfterInsert(t *testing.T) {
	settings := types.DefaultSettings()
	settings.MaxHistory = 3
	h := startPipeline(t, Options{Settings: settings})

	for _, text := range []string{"1", "2", "3", "4", "5"} {
		h.p.OnClipboardChanged(clipboard.Snapshot{Text: text})
	}

	s := h.summaries(t)
	require.Len(t, s, 3)
	assert.Equal(t, "5", s[0].Text)
	assert.Equal(t, "3", s[2].Text)
}

func TestApplySettingsTrims(t *testing.T) {
	h := startPipeline(t, Options{})

	for _, text := range []string{"1", "2", "3", "4"} {
		h.p.OnClipboardChanged(clipboard.Snapshot{Text: text})
	}
	require.Len(t, h.summaries(t), 4)

	settings := types.DefaultSettings()
	settings.MaxHistory = 2
	h.p.ApplySettings(settings)

	s := h.summaries(t)
	require.Len(t, s, 2)
	assert.Equal(t, "4", s[0].Text)

	got, err := h.p.Settings(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxHistory)

	// unchanged limit does not trigger another trim
	trims := h.events.count(EventTrimmed)
	h.p.ApplySettings(settings)
	h.settle(t)
	assert.Equal(t, trims, h.events.count(EventTrimmed))
}

func TestDebouncedEdits(t *testing.T) {
	h := startPipeline(t, Options{Debounce: 150 * time.Millisecond})

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "draft"})
	s := h.summaries(t)
	require.Len(t, s, 1)
	id := s[0].ID

	h.p.UpdateText(id, "edit 1")
	h.p.UpdateText(id, "edit 2")
	h.p.UpdateText(id, "edit 3")

	assert.Eventually(t, func() bool {
		return h.events.count(EventUpdated) == 1
	}, 3*time.Second, 20*time.Millisecond)

	// nothing else arrives after the quiet period
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, h.events.count(EventUpdated))

	d, err := h.p.GetDetail(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edit 3", d.Text)
}

func TestDebouncedEditOtherRecordFlushes(t *testing.T) {
	h := startPipeline(t, Options{Debounce: time.Hour})

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "first"})
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "second"})
	s := h.summaries(t)
	require.Len(t, s, 2)
	secondID, firstID := s[0].ID, s[1].ID

	h.p.UpdateText(firstID, "first edited")
	h.p.UpdateText(secondID, "second edited")
	h.settle(t)

	d, err := h.p.GetDetail(h.ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "first edited", d.Text)

	d, err = h.p.GetDetail(h.ctx, secondID)
	require.NoError(t, err)
	assert.Equal(t, "second", d.Text, "still pending")

	require.NoError(t, h.p.FlushEdits(h.ctx))
	h.settle(t)
	d, err = h.p.GetDetail(h.ctx, secondID)
	require.NoError(t, err)
	assert.Equal(t, "second edited", d.Text)
}

func TestCopyBackSuppressesEcho(t *testing.T) {
	h := startPipeline(t, Options{})

	h.p.OnClipboardChanged(clipboard.Snapshot{HTML: "<b>bold statement here</b> and more"})
	s := h.summaries(t)
	require.Len(t, s, 1)
	require.Equal(t, types.FormatHTML, s[0].Format)

	require.NoError(t, h.p.Copy(h.ctx, s[0].ID))
	h.writer.mu.Lock()
	assert.Equal(t, []string{"bold statement here and more"}, h.writer.texts)
	h.writer.mu.Unlock()

	// the echo of our own write is consumed without capture
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "bold statement here and more"})
	assert.Len(t, h.summaries(t), 1)

	// the next real change is captured again
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "new content"})
	assert.Len(t, h.summaries(t), 2)
}

func TestCopyBackOfCurrentContent(t *testing.T) {
	h := startPipeline(t, Options{})

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "A"})
	s := h.summaries(t)
	require.Len(t, s, 1)

	// the first write changes the fake; copying the same record again
	// leaves the clipboard as it was and no echo will follow
	require.NoError(t, h.p.Copy(h.ctx, s[0].ID))
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "A"})
	require.NoError(t, h.p.Copy(h.ctx, s[0].ID))

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "B"})
	s = h.summaries(t)
	require.Len(t, s, 2)
	assert.Equal(t, "B", s[0].Text)
}

func TestCopyBackFilePaths(t *testing.T) {
	h := startPipeline(t, Options{})

	h.p.OnClipboardChanged(clipboard.Snapshot{URLs: []string{"file:///tmp/a.txt", "file:///tmp/b.txt"}})
	s := h.summaries(t)
	require.Len(t, s, 1)
	require.Equal(t, types.FormatFilePaths, s[0].Format)

	require.NoError(t, h.p.Copy(h.ctx, s[0].ID))
	h.writer.mu.Lock()
	assert.Equal(t, []string{"/tmp/a.txt\n/tmp/b.txt"}, h.writer.files)
	assert.Empty(t, h.writer.texts)
	h.writer.mu.Unlock()
}

func TestCopyBackFailureDisarmsFlag(t *testing.T) {
	h := startPipeline(t, Options{})
	h.writer.err = errors.New("clipboard busy")

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "x"})
	s := h.summaries(t)
	require.Len(t, s, 1)

	assert.Error(t, h.p.Copy(h.ctx, s[0].ID))

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "y"})
	assert.Len(t, h.summaries(t), 2)
}

func TestCopyBackImage(t *testing.T) {
	h := startPipeline(t, Options{})

	h.p.OnClipboardChanged(clipboard.Snapshot{Image: pngBytes(t, 8, 8, 255)})
	s := h.summaries(t)
	require.Len(t, s, 1)

	require.NoError(t, h.p.Copy(h.ctx, s[0].ID))
	h.writer.mu.Lock()
	defer h.writer.mu.Unlock()
	require.Len(t, h.writer.images, 1)
	_, err := png.Decode(bytes.NewReader(h.writer.images[0]))
	assert.NoError(t, err, "jpeg records are re-encoded as PNG for the clipboard")
}

func TestCopyMissingRecord(t *testing.T) {
	h := startPipeline(t, Options{})
	err := h.p.Copy(h.ctx, 12345)
	assert.True(t, kerrors.Is(err, kerrors.ErrNotFound))
}

func TestDeleteAndClear(t *testing.T) {
	h := startPipeline(t, Options{})

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "one"})
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "two"})
	s := h.summaries(t)
	require.Len(t, s, 2)

	require.NoError(t, h.p.DeleteRecord(h.ctx, s[0].ID))
	assert.Len(t, h.summaries(t), 1)

	h.p.ClearAll()
	assert.Empty(t, h.summaries(t))
	assert.Equal(t, 1, h.events.count(EventCleared))

	// after a clear the last content can be captured again
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "two"})
	assert.Len(t, h.summaries(t), 1)
}

func TestAsyncReadsAreEventuallyConsistent(t *testing.T) {
	h := startPipeline(t, Options{Workers: config.WorkerConfig{PoolSize: 4, QueueSize: 32}})

	var mu sync.Mutex
	var first []types.RecordSummary
	firstDone := false

	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "racy"})
	h.p.RefreshSummaries(1, func(s []types.RecordSummary) {
		mu.Lock()
		defer mu.Unlock()
		first = s
		firstDone = true
	})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstDone
	}, 3*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.LessOrEqual(t, len(first), 1)
	mu.Unlock()

	assert.Eventually(t, func() bool {
		var got []types.RecordSummary
		done := make(chan struct{})
		h.p.RefreshSummaries(1, func(s []types.RecordSummary) {
			got = s
			close(done)
		})
		<-done
		return len(got) == 1 && got[0].Text == "racy"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCallbackAPIs(t *testing.T) {
	h := startPipeline(t, Options{})
	h.p.OnClipboardChanged(clipboard.Snapshot{Text: "cb"})
	h.settle(t)

	counted := make(chan int, 1)
	h.p.Count(func(n int) { counted <- n })
	assert.Equal(t, 1, <-counted)

	details := make(chan *types.RecordDetail, 1)
	h.p.LoadDetail(999, func(d *types.RecordDetail) { details <- d })
	assert.Nil(t, <-details, "missing records yield nil")

	h.p.TrimToLimit(1)
	h.p.Delete(999)
	assert.Len(t, h.summaries(t), 1)
}

func TestShutdownFlushesPendingEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	open := func() storage.Backend {
		backend, err := storage.Open(storage.StorageConfig{Driver: config.DriverBolt, DBPath: path, Logger: zaptest.NewLogger(t)})
		require.NoError(t, err)
		return backend
	}

	backend := open()
	p := New(backend, Options{
		Settings: types.DefaultSettings(),
		Workers:  config.WorkerConfig{PoolSize: 1, QueueSize: 8},
		Debounce: time.Hour,
		Logger:   zaptest.NewLogger(t),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	p.OnClipboardChanged(clipboard.Snapshot{Text: "before"})
	s, err := p.ListSummaries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, s, 1)
	p.UpdateText(s[0].ID, "after")
	_, err = p.Settings(context.Background())
	require.NoError(t, err)

	cancel()
	<-done
	require.NoError(t, backend.Close())

	backend = open()
	defer backend.Close()
	store, err := backend.Session(context.Background())
	require.NoError(t, err)
	defer store.Close()
	d, err := store.LoadDetail(context.Background(), s[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "after", d.Text)

	_, err = p.CountRecords(context.Background())
	assert.True(t, kerrors.Is(err, kerrors.ErrUnavailable))
}
