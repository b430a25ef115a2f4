package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/internal/imaging"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

// MinFreeSpaceMB is the free space the self-check expects on the data volume
const MinFreeSpaceMB = 50

// CaptureResult is the outcome of a capture task
type CaptureResult struct {
	ID        int64
	Hash      string
	Format    types.Format
	Duplicate bool
	Trimmed   int
}

// trimAfterInsert runs the History Trimmer; a failure does not undo the insert
func trimAfterInsert(ctx context.Context, env Env, limit int) int {
	if limit < 1 {
		return 0
	}
	removed, err := env.Store.TrimToLimit(ctx, limit)
	if err != nil {
		env.Logger.Warn("Trim after insert failed", zap.Int("limit", limit), zap.Error(err))
		return 0
	}
	return removed
}

// LoadSummaries reads the newest Limit summaries; Limit <= 0 means all
type LoadSummaries struct {
	Limit int
}

func (LoadSummaries) Name() string { return "load_summaries" }

func (t LoadSummaries) Run(ctx context.Context, env Env) ([]types.RecordSummary, error) {
	return env.Store.LoadSummaries(ctx, t.Limit)
}

// LoadDetail reads one full record
type LoadDetail struct {
	ID int64
}

func (LoadDetail) Name() string { return "load_detail" }

func (t LoadDetail) Run(ctx context.Context, env Env) (*types.RecordDetail, error) {
	return env.Store.LoadDetail(ctx, t.ID)
}

// CaptureText persists a classified text candidate unless its hash is
// already in history, then trims to Limit
type CaptureText struct {
	Text   string
	Format types.Format
	Hash   string
	Limit  int
}

func (CaptureText) Name() string { return "capture_text" }

func (t CaptureText) Run(ctx context.Context, env Env) (CaptureResult, error) {
	res := CaptureResult{Hash: t.Hash, Format: t.Format}
	seen, err := clipboard.SeenBefore(ctx, env.Store, t.Hash)
	if err != nil {
		return res, err
	}
	if seen {
		res.Duplicate = true
		return res, nil
	}

	id, err := env.Store.InsertText(ctx, t.Text, t.Format, t.Hash)
	if err != nil {
		return res, err
	}
	res.ID = id
	res.Trimmed = trimAfterInsert(ctx, env, t.Limit)

	env.Logger.Info("Captured text",
		zap.Int64("id", id),
		zap.String("format", string(t.Format)),
		zap.Int("length", len(t.Text)))
	return res, nil
}

// IngestImage decodes raw clipboard image bytes, runs the Image Ingest
// Pipeline and persists the result unless the encoded hash is known
type IngestImage struct {
	Raw          []byte
	MaxArea      int
	SaveOriginal bool
	Limit        int
}

func (IngestImage) Name() string { return "ingest_image" }

func (t IngestImage) Run(ctx context.Context, env Env) (CaptureResult, error) {
	var res CaptureResult
	img, err := imaging.Decode(t.Raw)
	if err != nil {
		return res, err
	}
	ingested, err := imaging.Ingest(img, t.MaxArea, t.SaveOriginal)
	if err != nil {
		return res, err
	}
	res.Hash = ingested.Hash
	res.Format = ingested.Format

	seen, err := clipboard.SeenBefore(ctx, env.Store, ingested.Hash)
	if err != nil {
		return res, err
	}
	if seen {
		res.Duplicate = true
		return res, nil
	}

	id, err := env.Store.InsertImage(ctx, storage.ImageInput{
		Encoded:   ingested.Encoded,
		Thumbnail: ingested.Thumbnail,
		Format:    ingested.Format,
		Width:     ingested.Width,
		Height:    ingested.Height,
		Hash:      ingested.Hash,
	})
	if err != nil {
		return res, err
	}
	res.ID = id
	res.Trimmed = trimAfterInsert(ctx, env, t.Limit)

	env.Logger.Info("Captured image",
		zap.Int64("id", id),
		zap.String("format", string(ingested.Format)),
		zap.Int("width", ingested.Width),
		zap.Int("height", ingested.Height),
		zap.Int("bytes", len(ingested.Encoded)))
	return res, nil
}

// UpdateText overwrites the text of an existing text record
type UpdateText struct {
	ID   int64
	Text string
}

func (UpdateText) Name() string { return "update_text" }

func (t UpdateText) Run(ctx context.Context, env Env) (struct{}, error) {
	return struct{}{}, env.Store.UpdateText(ctx, t.ID, t.Text)
}

// Delete removes one record
type Delete struct {
	ID int64
}

func (Delete) Name() string { return "delete" }

func (t Delete) Run(ctx context.Context, env Env) (struct{}, error) {
	return struct{}{}, env.Store.Delete(ctx, t.ID)
}

// ClearAll removes every record
type ClearAll struct{}

func (ClearAll) Name() string { return "clear_all" }

func (ClearAll) Run(ctx context.Context, env Env) (struct{}, error) {
	return struct{}{}, env.Store.ClearAll(ctx)
}

// Trim keeps the Max most recent records and reports how many were removed
type Trim struct {
	Max int
}

func (Trim) Name() string { return "trim" }

func (t Trim) Run(ctx context.Context, env Env) (int, error) {
	return env.Store.TrimToLimit(ctx, t.Max)
}

// Count reports the number of stored records
type Count struct{}

func (Count) Name() string { return "count" }

func (Count) Run(ctx context.Context, env Env) (int, error) {
	return env.Store.Count(ctx)
}

// SelfCheckReport summarises daemon health at startup
type SelfCheckReport struct {
	DBOK    bool     `json:"db_ok"`
	TempOK  bool     `json:"temp_ok"`
	SpaceOK bool     `json:"space_ok"`
	FreeMB  uint64   `json:"free_mb"`
	Issues  []string `json:"issues,omitempty"`
}

// OK reports whether every probe passed
func (r SelfCheckReport) OK() bool {
	return r.DBOK && r.TempOK && r.SpaceOK
}

// SelfCheck probes the database, the temp session dir and free space.
// Probe failures are reported in the result, never as a task error.
type SelfCheck struct {
	Temp    *utils.TempManager
	DataDir string
	// FreeSpace defaults to utils.FreeDiskSpace
	FreeSpace func(path string) (uint64, error)
}

func (SelfCheck) Name() string { return "self_check" }

func (t SelfCheck) Run(ctx context.Context, env Env) (SelfCheckReport, error) {
	var report SelfCheckReport

	probe := fmt.Sprintf("clipkeep self-check %d", time.Now().UnixNano())
	if id, err := env.Store.InsertText(ctx, probe, types.FormatPlain, ""); err != nil {
		report.Issues = append(report.Issues, "database write failed: "+err.Error())
	} else if err := env.Store.Delete(ctx, id); err != nil {
		report.Issues = append(report.Issues, "database delete failed: "+err.Error())
	} else {
		report.DBOK = true
	}

	if t.Temp == nil {
		report.Issues = append(report.Issues, "no temp session directory")
	} else if path, err := t.Temp.WriteFile("selfcheck.tmp", []byte(probe)); err != nil {
		report.Issues = append(report.Issues, "temp write failed: "+err.Error())
	} else if err := utils.RemoveTempFile(path); err != nil {
		report.Issues = append(report.Issues, "temp remove failed: "+err.Error())
	} else {
		report.TempOK = true
	}

	freeSpace := t.FreeSpace
	if freeSpace == nil {
		freeSpace = utils.FreeDiskSpace
	}
	dir := t.DataDir
	if dir == "" {
		dir = os.TempDir()
	}
	if free, err := freeSpace(filepath.Clean(dir)); err != nil {
		report.Issues = append(report.Issues, "free space probe failed: "+err.Error())
	} else {
		report.FreeMB = free / (1024 * 1024)
		report.SpaceOK = report.FreeMB >= MinFreeSpaceMB
		if !report.SpaceOK {
			report.Issues = append(report.Issues, fmt.Sprintf("only %d MB free on %s", report.FreeMB, dir))
		}
	}

	return report, nil
}
