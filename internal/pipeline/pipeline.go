// Package pipeline owns the capture and persistence pipeline. A single
// coordinator goroutine holds all pipeline state (settings, dedup guard,
// debounced edit) and hands every storage or encoding job to the worker
// runner, whose callbacks are marshalled back onto the coordinator.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/internal/config"
	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/internal/worker"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

// ClipboardWriter puts content back on the system clipboard. Each write
// reports whether it changed what the clipboard watcher last saw; a write
// of content already on the clipboard produces no change notification.
type ClipboardWriter interface {
	WriteText(text string) (bool, error)
	WriteImage(pngData []byte) (bool, error)
	// WriteFileList offers newline-joined paths as a file list
	WriteFileList(paths string) (bool, error)
}

// EventKind names a completed mutation
type EventKind string

const (
	EventCaptured EventKind = "captured"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventCleared  EventKind = "cleared"
	EventTrimmed  EventKind = "trimmed"
)

// Event reports a completed mutation so views can refresh
type Event struct {
	Kind    EventKind
	ID      int64
	Removed int
}

// Options configures a Pipeline
type Options struct {
	Settings     types.Settings
	MaxImageArea int
	Workers      config.WorkerConfig
	Writer       ClipboardWriter
	Temp         *utils.TempManager
	DataDir      string
	// Debounce overrides DefaultDebounce
	Debounce time.Duration
	// OnChange runs on the coordinator after every completed mutation
	OnChange func(Event)
	Logger   *zap.Logger
}

// Pipeline is the pipeline owner. All exported methods are safe to call
// from any goroutine; callbacks passed to them run on the coordinator.
type Pipeline struct {
	runner   *worker.Runner
	events   chan func()
	stopped  chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger

	writer       ClipboardWriter
	temp         *utils.TempManager
	dataDir      string
	maxImageArea int
	onChange     func(Event)

	// coordinator-owned
	guard     clipboard.Guard
	settings  types.Settings
	debouncer *Debouncer
}

// New builds a pipeline over backend. Call Run to start it.
func New(backend storage.Backend, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxArea := opts.MaxImageArea
	if maxArea <= 0 {
		maxArea = config.DefaultMaxImageArea
	}

	p := &Pipeline{
		events:       make(chan func(), 256),
		stopped:      make(chan struct{}),
		logger:       logger,
		writer:       opts.Writer,
		temp:         opts.Temp,
		dataDir:      opts.DataDir,
		maxImageArea: maxArea,
		onChange:     opts.OnChange,
		settings:     config.NormalizeSettings(opts.Settings),
	}
	p.runner = worker.NewRunner(backend, worker.Options{
		PoolSize:  opts.Workers.PoolSize,
		QueueSize: opts.Workers.QueueSize,
		Post:      func(fn func()) { p.post(fn) },
		Logger:    logger.Named("worker"),
	})
	p.debouncer = NewDebouncer(opts.Debounce, p.post, func(id int64, text string) {
		p.writeEdit(id, text, nil)
	})
	return p
}

// post queues fn for the coordinator. It reports false once the
// coordinator has stopped, in which case fn never runs.
func (p *Pipeline) post(fn func()) bool {
	select {
	case <-p.stopped:
		return false
	default:
	}
	select {
	case p.events <- fn:
		return true
	case <-p.stopped:
		return false
	}
}

// Run starts the workers and processes events until ctx is done. On exit a
// pending debounced edit is flushed and queued tasks are drained.
func (p *Pipeline) Run(ctx context.Context) error {
	p.runner.Start(ctx)
	p.logger.Info("Pipeline started",
		zap.Int("max_history", p.settings.MaxHistory),
		zap.Int("max_image_area", p.maxImageArea))

	for {
		select {
		case fn := <-p.events:
			fn()
		case <-ctx.Done():
			p.shutdown()
			return nil
		}
	}
}

func (p *Pipeline) shutdown() {
	p.debouncer.Flush()
	p.stopOnce.Do(func() { close(p.stopped) })
	if err := p.runner.Stop(); err != nil {
		p.logger.Warn("Worker shutdown error", zap.Error(err))
	}
	p.logger.Info("Pipeline stopped")
}

// dispatch submits task from the coordinator and calls done there
func dispatch[T any](p *Pipeline, task worker.Task[T], done func(T, error)) {
	var out T
	worker.Submit(p.runner, task,
		func(v T) { out = v },
		func(err error) { done(out, err) })
}

type outcome[T any] struct {
	val T
	err error
}

// await runs start on the coordinator and blocks until it calls done
func await[T any](ctx context.Context, p *Pipeline, start func(done func(T, error))) (T, error) {
	var zero T
	ch := make(chan outcome[T], 1)
	if !p.post(func() {
		start(func(v T, err error) { ch <- outcome[T]{v, err} })
	}) {
		return zero, kerrors.NewUnavailable("pipeline is stopped", nil)
	}

	select {
	case o := <-ch:
		return o.val, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-p.stopped:
		select {
		case o := <-ch:
			return o.val, o.err
		default:
			return zero, kerrors.NewUnavailable("pipeline is stopped", nil)
		}
	}
}

func (p *Pipeline) notify(ev Event) {
	if p.onChange != nil {
		p.onChange(ev)
	}
}

// OnClipboardChanged is the entry point for each observed clipboard change
func (p *Pipeline) OnClipboardChanged(snap clipboard.Snapshot) {
	p.post(func() { p.handleSnapshot(snap) })
}

func (p *Pipeline) handleSnapshot(snap clipboard.Snapshot) {
	if p.guard.ConsumeInternalCopy() {
		p.logger.Debug("Ignoring clipboard change caused by copy-back")
		return
	}

	cand, ok := clipboard.Classify(snap, p.settings)
	if !ok {
		return
	}

	// images are keyed by their raw capture here; the persisted check
	// on the worker uses the hash of the final encoding
	var key string
	if cand.Type == types.TypeImage {
		key = utils.HashContent(cand.Image)
	} else {
		key = utils.HashContent([]byte(cand.Text))
	}
	prev := p.guard.LastHash()
	if !p.guard.Admit(key) {
		p.logger.Debug("Skipping repeat of last capture", zap.String("hash", key))
		return
	}

	done := func(res worker.CaptureResult, err error) {
		switch {
		case err != nil:
			p.guard.Restore(key, prev)
			p.logger.Warn("Capture failed", zap.String("format", string(cand.Format)), zap.Error(err))
		case res.Duplicate:
			p.guard.Restore(key, prev)
			p.logger.Debug("Content already in history", zap.String("hash", res.Hash))
		default:
			p.notify(Event{Kind: EventCaptured, ID: res.ID})
			if res.Trimmed > 0 {
				p.notify(Event{Kind: EventTrimmed, Removed: res.Trimmed})
			}
		}
	}

	if cand.Type == types.TypeImage {
		dispatch(p, worker.IngestImage{
			Raw:          cand.Image,
			MaxArea:      p.maxImageArea,
			SaveOriginal: p.settings.SaveOriginalImage,
			Limit:        p.settings.MaxHistory,
		}, done)
		return
	}
	dispatch(p, worker.CaptureText{
		Text:   cand.Text,
		Format: cand.Format,
		Hash:   key,
		Limit:  p.settings.MaxHistory,
	}, done)
}

// MarkInternalCopyInFlight arms the echo suppression for the next change
func (p *Pipeline) MarkInternalCopyInFlight() {
	p.post(func() { p.guard.MarkInternalCopy() })
}

// RefreshSummaries loads the newest summaries; cb gets nil on failure
func (p *Pipeline) RefreshSummaries(limit int, cb func([]types.RecordSummary)) {
	p.post(func() {
		dispatch(p, worker.LoadSummaries{Limit: limit}, func(s []types.RecordSummary, err error) {
			if err != nil {
				s = nil
			}
			if cb != nil {
				cb(s)
			}
		})
	})
}

// LoadDetail loads one record; cb gets nil if it is missing or unreadable
func (p *Pipeline) LoadDetail(id int64, cb func(*types.RecordDetail)) {
	p.post(func() {
		dispatch(p, worker.LoadDetail{ID: id}, func(d *types.RecordDetail, err error) {
			if err != nil {
				d = nil
			}
			if cb != nil {
				cb(d)
			}
		})
	})
}

// UpdateText routes an edit through the debouncer
func (p *Pipeline) UpdateText(id int64, text string) {
	p.post(func() { p.debouncer.Edit(id, text) })
}

func (p *Pipeline) writeEdit(id int64, text string, done func(struct{}, error)) {
	dispatch(p, worker.UpdateText{ID: id, Text: text}, func(v struct{}, err error) {
		if err != nil {
			p.logger.Warn("Saving edit failed", zap.Int64("id", id), zap.Error(err))
		} else {
			p.notify(Event{Kind: EventUpdated, ID: id})
		}
		if done != nil {
			done(v, err)
		}
	})
}

// Delete removes one record
func (p *Pipeline) Delete(id int64) {
	p.post(func() { p.deleteRecord(id, nil) })
}

func (p *Pipeline) deleteRecord(id int64, done func(struct{}, error)) {
	dispatch(p, worker.Delete{ID: id}, func(v struct{}, err error) {
		if err != nil {
			p.logger.Warn("Delete failed", zap.Int64("id", id), zap.Error(err))
		} else {
			p.notify(Event{Kind: EventDeleted, ID: id})
		}
		if done != nil {
			done(v, err)
		}
	})
}

// ClearAll removes every record
func (p *Pipeline) ClearAll() {
	p.post(func() { p.clearAll(nil) })
}

func (p *Pipeline) clearAll(done func(struct{}, error)) {
	dispatch(p, worker.ClearAll{}, func(v struct{}, err error) {
		if err != nil {
			p.logger.Warn("Clear failed", zap.Error(err))
		} else {
			p.guard.Forget(p.guard.LastHash())
			p.notify(Event{Kind: EventCleared})
		}
		if done != nil {
			done(v, err)
		}
	})
}

// TrimToLimit runs the History Trimmer with max
func (p *Pipeline) TrimToLimit(max int) {
	p.post(func() { p.trim(max, nil) })
}

func (p *Pipeline) trim(max int, done func(int, error)) {
	dispatch(p, worker.Trim{Max: max}, func(n int, err error) {
		if err != nil {
			p.logger.Warn("Trim failed", zap.Int("limit", max), zap.Error(err))
		} else if n > 0 {
			p.notify(Event{Kind: EventTrimmed, Removed: n})
		}
		if done != nil {
			done(n, err)
		}
	})
}

// Count reports the number of records; cb gets 0 on failure
func (p *Pipeline) Count(cb func(int)) {
	p.post(func() {
		dispatch(p, worker.Count{}, func(n int, err error) {
			if err != nil {
				n = 0
			}
			if cb != nil {
				cb(n)
			}
		})
	})
}

// ApplySettings replaces the settings and trims if MaxHistory changed
func (p *Pipeline) ApplySettings(s types.Settings) {
	s = config.NormalizeSettings(s)
	p.post(func() { p.applySettings(s) })
}

func (p *Pipeline) applySettings(s types.Settings) {
	old := p.settings
	p.settings = s
	p.logger.Info("Settings applied",
		zap.Int("max_history", s.MaxHistory),
		zap.Bool("save_original_image", s.SaveOriginalImage),
		zap.Bool("enable_rich_text", s.EnableRichText),
		zap.Bool("enable_file_paths", s.EnableFilePaths))
	if s.MaxHistory != old.MaxHistory {
		p.trim(s.MaxHistory, nil)
	}
}

// CopyBack puts record id on the system clipboard without capturing it again
func (p *Pipeline) CopyBack(id int64, cb func(error)) {
	p.post(func() {
		p.copyBack(id, func(_ struct{}, err error) {
			if cb != nil {
				cb(err)
			}
		})
	})
}

func (p *Pipeline) copyBack(id int64, done func(struct{}, error)) {
	if p.writer == nil {
		done(struct{}{}, kerrors.NewUnavailable("no clipboard writer", nil))
		return
	}
	dispatch(p, worker.LoadDetail{ID: id}, func(d *types.RecordDetail, err error) {
		if err != nil {
			done(struct{}{}, err)
			return
		}
		changed, err := p.writeClipboard(d)
		if err != nil {
			p.logger.Warn("Copy-back failed", zap.Int64("id", id), zap.Error(err))
			done(struct{}{}, err)
			return
		}
		if changed {
			p.guard.MarkInternalCopy()
		}
		p.logger.Debug("Copied record to clipboard", zap.Int64("id", id), zap.Bool("changed", changed))
		done(struct{}{}, nil)
	})
}

// writeClipboard runs on the coordinator, so the echo flag it leads to is
// armed before the watcher's notification for this write is handled
func (p *Pipeline) writeClipboard(d *types.RecordDetail) (bool, error) {
	switch d.Format {
	case types.FormatHTML:
		return p.writer.WriteText(clipboard.StripHTML(d.Text))
	case types.FormatPlain:
		return p.writer.WriteText(d.Text)
	case types.FormatFilePaths:
		return p.writer.WriteFileList(d.Text)
	case types.FormatPNG:
		return p.writer.WriteImage(d.Image)
	case types.FormatJPEG:
		if d.Decoded == nil {
			return false, kerrors.NewEncoding("copy image", fmt.Errorf("record %d has no decoded image", d.ID))
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, d.Decoded); err != nil {
			return false, kerrors.NewEncoding("copy image", err)
		}
		return p.writer.WriteImage(buf.Bytes())
	default:
		return false, kerrors.NewInvalidInput(fmt.Sprintf("cannot copy format %q", d.Format))
	}
}

func (p *Pipeline) selfCheck(done func(worker.SelfCheckReport, error)) {
	dispatch(p, worker.SelfCheck{Temp: p.temp, DataDir: p.dataDir}, done)
}

// ListSummaries loads summaries and waits for the result
func (p *Pipeline) ListSummaries(ctx context.Context, limit int) ([]types.RecordSummary, error) {
	return await(ctx, p, func(done func([]types.RecordSummary, error)) {
		dispatch(p, worker.LoadSummaries{Limit: limit}, done)
	})
}

// GetDetail loads one record and waits for the result
func (p *Pipeline) GetDetail(ctx context.Context, id int64) (*types.RecordDetail, error) {
	return await(ctx, p, func(done func(*types.RecordDetail, error)) {
		dispatch(p, worker.LoadDetail{ID: id}, done)
	})
}

// DeleteRecord deletes one record and waits for the result
func (p *Pipeline) DeleteRecord(ctx context.Context, id int64) error {
	_, err := await(ctx, p, func(done func(struct{}, error)) { p.deleteRecord(id, done) })
	return err
}

// ClearHistory clears every record and waits for the result
func (p *Pipeline) ClearHistory(ctx context.Context) error {
	_, err := await(ctx, p, p.clearAll)
	return err
}

// Trim trims to max and waits for the number removed
func (p *Pipeline) Trim(ctx context.Context, max int) (int, error) {
	return await(ctx, p, func(done func(int, error)) { p.trim(max, done) })
}

// CountRecords counts records and waits for the result
func (p *Pipeline) CountRecords(ctx context.Context) (int, error) {
	return await(ctx, p, func(done func(int, error)) {
		dispatch(p, worker.Count{}, done)
	})
}

// Copy runs CopyBack and waits for the clipboard write
func (p *Pipeline) Copy(ctx context.Context, id int64) error {
	_, err := await(ctx, p, func(done func(struct{}, error)) { p.copyBack(id, done) })
	return err
}

// SelfCheck runs the self-check task and waits for its report
func (p *Pipeline) SelfCheck(ctx context.Context) (worker.SelfCheckReport, error) {
	return await(ctx, p, p.selfCheck)
}

// Settings returns the settings currently in effect
func (p *Pipeline) Settings(ctx context.Context) (types.Settings, error) {
	return await(ctx, p, func(done func(types.Settings, error)) { done(p.settings, nil) })
}

// FlushEdits writes any pending debounced edit now and waits until the
// write has landed
func (p *Pipeline) FlushEdits(ctx context.Context) error {
	_, err := await(ctx, p, func(done func(struct{}, error)) {
		id, text, ok := p.debouncer.Take()
		if !ok {
			done(struct{}{}, nil)
			return
		}
		p.writeEdit(id, text, done)
	})
	return err
}
