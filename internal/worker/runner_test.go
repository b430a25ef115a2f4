package worker

import (
	"bytes"
	"context"
	"fmt"
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

	"github.com/berrythewa/clipkeep/internal/config"
	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

func newBackend(t *testing.T) storage.Backend {
	t.Helper()
	backend, err := storage.Open(storage.StorageConfig{
		Driver: config.DriverBolt,
		DBPath: filepath.Join(t.TempDir(), "history.db"),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func newRunner(t *testing.T, backend storage.Backend, opts Options) *Runner {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	r := NewRunner(backend, opts)
	r.Start(context.Background())
	t.Cleanup(func() { r.Stop() })
	return r
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSubmitCallbacks(t *testing.T) {
	r := newRunner(t, newBackend(t), Options{PoolSize: 2, QueueSize: 8})

	t.Run("SuccessFiresBoth", func(t *testing.T) {
		var mu sync.Mutex
		var got []string
		done := make(chan struct{})

		id := Submit(r, CaptureText{Text: "hello", Format: types.FormatPlain, Hash: utils.HashContent([]byte("hello"))},
			func(res CaptureResult) {
				mu.Lock()
				got = append(got, "result")
				mu.Unlock()
				assert.Greater(t, res.ID, int64(0))
			},
			func(err error) {
				mu.Lock()
				got = append(got, "finished")
				mu.Unlock()
				assert.NoError(t, err)
				close(done)
			})
		assert.NotEmpty(t, id)

		<-done
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"result", "finished"}, got)
	})

	t.Run("ErrorSkipsResult", func(t *testing.T) {
		done := make(chan error, 1)
		Submit(r, LoadDetail{ID: 987654},
			func(*types.RecordDetail) { t.Error("onResult must not fire on error") },
			func(err error) { done <- err })

		err := <-done
		assert.True(t, kerrors.Is(err, kerrors.ErrNotFound))
	})
}

func TestPostMarshalsCallbacks(t *testing.T) {
	inbox := make(chan func(), 16)
	r := newRunner(t, newBackend(t), Options{
		PoolSize:  2,
		QueueSize: 8,
		Post:      func(fn func()) { inbox <- fn },
	})

	called := false
	Submit(r, Count{}, func(n int) { called = true }, nil)

	select {
	case fn := <-inbox:
		assert.False(t, called, "callback must wait for the owner")
		fn()
		assert.True(t, called)
	case <-time.After(5 * time.Second):
		t.Fatal("callback was never posted")
	}
}

func TestCaptureTextDedupAndTrim(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, newBackend(t), Options{PoolSize: 1, QueueSize: 8})

	for i := 0; i < 5; i++ {
		text := fmt.Sprintf("entry %d", i)
		res, err := Await(ctx, r, CaptureText{
			Text:   text,
			Format: types.FormatPlain,
			Hash:   utils.HashContent([]byte(text)),
			Limit:  3,
		})
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
	}

	n, err := Await(ctx, r, Count{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := Await(ctx, r, CaptureText{
		Text:   "entry 4",
		Format: types.FormatPlain,
		Hash:   utils.HashContent([]byte("entry 4")),
		Limit:  3,
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Zero(t, res.ID)
}

func TestIngestImageTask(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, newBackend(t), Options{PoolSize: 2, QueueSize: 8})
	raw := pngBytes(t, 200, 100)

	res, err := Await(ctx, r, IngestImage{Raw: raw, MaxArea: 5000, Limit: 10})
	require.NoError(t, err)
	require.Greater(t, res.ID, int64(0))
	assert.Equal(t, types.FormatJPEG, res.Format)

	detail, err := Await(ctx, r, LoadDetail{ID: res.ID})
	require.NoError(t, err)
	assert.LessOrEqual(t, detail.Width*detail.Height, 5000)
	assert.Equal(t, res.Hash, detail.Hash)
	require.NotNil(t, detail.Decoded)

	again, err := Await(ctx, r, IngestImage{Raw: raw, MaxArea: 5000, Limit: 10})
	require.NoError(t, err)
	assert.True(t, again.Duplicate)

	_, err = Await(ctx, r, IngestImage{Raw: []byte("garbage"), MaxArea: 5000})
	assert.True(t, kerrors.Is(err, kerrors.ErrEncoding))

	n, err := Await(ctx, r, Count{})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a failed ingest inserts nothing")
}

func TestMutationTasks(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, newBackend(t), Options{PoolSize: 2, QueueSize: 8})

	res, err := Await(ctx, r, CaptureText{Text: "draft", Format: types.FormatPlain, Hash: utils.HashContent([]byte("draft"))})
	require.NoError(t, err)

	_, err = Await(ctx, r, UpdateText{ID: res.ID, Text: "final"})
	require.NoError(t, err)
	detail, err := Await(ctx, r, LoadDetail{ID: res.ID})
	require.NoError(t, err)
	assert.Equal(t, "final", detail.Text)

	_, err = Await(ctx, r, Delete{ID: res.ID})
	require.NoError(t, err)
	summaries, err := Await(ctx, r, LoadSummaries{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, summaries)

	for _, s := range []string{"a", "b", "c"} {
		_, err := Await(ctx, r, CaptureText{Text: s, Format: types.FormatPlain, Hash: utils.HashContent([]byte(s))})
		require.NoError(t, err)
	}
	removed, err := Await(ctx, r, Trim{Max: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = Await(ctx, r, ClearAll{})
	require.NoError(t, err)
	n, err := Await(ctx, r, Count{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSelfCheck(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t, newBackend(t), Options{PoolSize: 1, QueueSize: 4})
	temp, err := utils.NewTempManager(t.TempDir(), time.Hour)
	require.NoError(t, err)

	t.Run("Healthy", func(t *testing.T) {
		report, err := Await(ctx, r, SelfCheck{
			Temp:      temp,
			DataDir:   t.TempDir(),
			FreeSpace: func(string) (uint64, error) { return 200 << 20, nil },
		})
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Equal(t, uint64(200), report.FreeMB)
		assert.Empty(t, report.Issues)

		n, err := Await(ctx, r, Count{})
		require.NoError(t, err)
		assert.Zero(t, n, "probe record is removed")
	})

	t.Run("LowSpace", func(t *testing.T) {
		report, err := Await(ctx, r, SelfCheck{
			Temp:      temp,
			FreeSpace: func(string) (uint64, error) { return 10 << 20, nil },
		})
		require.NoError(t, err)
		assert.True(t, report.DBOK)
		assert.True(t, report.TempOK)
		assert.False(t, report.SpaceOK)
		assert.False(t, report.OK())
		assert.Len(t, report.Issues, 1)
	})

	t.Run("NoTemp", func(t *testing.T) {
		report, err := Await(ctx, r, SelfCheck{
			FreeSpace: func(string) (uint64, error) { return 100 << 20, nil },
		})
		require.NoError(t, err)
		assert.False(t, report.TempOK)
	})
}

func TestRejectedSubmissions(t *testing.T) {
	backend := newBackend(t)

	t.Run("QueueFull", func(t *testing.T) {
		// never started, so nothing drains the queue
		r := NewRunner(backend, Options{PoolSize: 1, QueueSize: 1, Logger: zaptest.NewLogger(t)})

		first := Submit(r, Count{}, nil, nil)
		assert.NotEmpty(t, first)

		var rejected error
		second := Submit(r, Count{}, func(int) { t.Error("rejected task produced a result") }, func(err error) { rejected = err })
		assert.Empty(t, second)
		assert.True(t, kerrors.Is(rejected, kerrors.ErrUnavailable))
		require.NoError(t, r.Stop())
	})

	t.Run("Stopped", func(t *testing.T) {
		r := NewRunner(backend, Options{PoolSize: 1, QueueSize: 4, Logger: zaptest.NewLogger(t)})
		r.Start(context.Background())
		require.NoError(t, r.Stop())
		require.NoError(t, r.Stop(), "stop is idempotent")

		var rejected error
		Submit(r, Count{}, nil, func(err error) { rejected = err })
		assert.True(t, kerrors.Is(rejected, kerrors.ErrUnavailable))
	})
}

func TestStopDrainsQueue(t *testing.T) {
	r := NewRunner(newBackend(t), Options{PoolSize: 1, QueueSize: 16, Logger: zaptest.NewLogger(t)})

	var mu sync.Mutex
	finished := 0
	for i := 0; i < 10; i++ {
		Submit(r, Count{}, nil, func(error) {
			mu.Lock()
			finished++
			mu.Unlock()
		})
	}
	r.Start(context.Background())
	require.NoError(t, r.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, finished)
}
