package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/config"
	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/types"
)

// ImageInput is everything needed to persist an encoded image record
type ImageInput struct {
	Encoded   []byte
	Thumbnail []byte
	Format    types.Format
	Width     int
	Height    int
	Hash      string
}

// Store is the Content Store as seen by a single task.
//
// Every method reports failures as a coded error from internal/errors:
// ErrNotFound for a missing record, ErrInvalidInput for rejected arguments,
// ErrStorage for anything the database itself refused.
type Store interface {
	InsertText(ctx context.Context, text string, format types.Format, hash string) (int64, error)
	InsertImage(ctx context.Context, in ImageInput) (int64, error)
	UpdateText(ctx context.Context, id int64, text string) error
	Delete(ctx context.Context, id int64) error
	ClearAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	// TrimToLimit keeps the max most recent records (timestamp desc, id desc)
	// and returns how many were removed
	TrimToLimit(ctx context.Context, max int) (int, error)
	HasHash(ctx context.Context, hash string) (bool, error)
	LoadSummaries(ctx context.Context, limit int) ([]types.RecordSummary, error)
	LoadDetail(ctx context.Context, id int64) (*types.RecordDetail, error)
	// Close releases the session, not the database
	Close() error
}

// Backend owns the database and hands out per-task sessions
type Backend interface {
	Session(ctx context.Context) (Store, error)
	Close() error
}

// StorageConfig holds configuration for backend initialization
type StorageConfig struct {
	Driver string
	DBPath string
	Logger *zap.Logger
	// Now stamps new records; defaults to time.Now
	Now func() time.Time
}

// Open opens the backend selected by config.Driver
func Open(cfg StorageConfig) (Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	switch cfg.Driver {
	case config.DriverBolt, "":
		return NewBoltStorage(cfg)
	case config.DriverSQLite:
		return NewSQLiteStorage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func validateText(text string, format types.Format) error {
	if format.Type() != types.TypeText {
		return kerrors.NewInvalidInput(fmt.Sprintf("format %q is not a text format", format))
	}
	if text == "" {
		return kerrors.NewInvalidInput("text content is empty")
	}
	return nil
}

func validateImage(in ImageInput) error {
	if in.Format.Type() != types.TypeImage {
		return kerrors.NewInvalidInput(fmt.Sprintf("format %q is not an image format", in.Format))
	}
	if len(in.Encoded) == 0 {
		return kerrors.NewInvalidInput("image content is empty")
	}
	if in.Width <= 0 || in.Height <= 0 {
		return kerrors.NewInvalidInput(fmt.Sprintf("invalid image dimensions %dx%d", in.Width, in.Height))
	}
	if in.Hash == "" {
		return kerrors.NewInvalidInput("image hash is empty")
	}
	return nil
}

func validateLimit(max int) error {
	if max < 1 {
		return kerrors.NewInvalidInput(fmt.Sprintf("history limit must be at least 1, got %d", max))
	}
	return nil
}

// decodeDetail decodes the persisted image bytes of an image record
func decodeDetail(rec types.Record) (*types.RecordDetail, error) {
	detail := &types.RecordDetail{Record: rec}
	if rec.Type != types.TypeImage {
		return detail, nil
	}
	img, _, err := image.Decode(bytes.NewReader(rec.Image))
	if err != nil {
		return nil, kerrors.NewEncoding(fmt.Sprintf("decode record %d", rec.ID), err)
	}
	detail.Decoded = img
	return detail, nil
}
