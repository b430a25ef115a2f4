package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// recordModel maps the records table
type recordModel struct {
	bun.BaseModel `bun:"table:records"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Type        string `bun:"type,notnull"`
	Format      string `bun:"format,notnull"`
	Content     string `bun:"content,nullzero"`
	ContentBlob []byte `bun:"content_blob"`
	Thumbnail   []byte `bun:"thumbnail"`
	Width       int    `bun:"width,nullzero"`
	Height      int    `bun:"height,nullzero"`
	Timestamp   int64  `bun:"timestamp,notnull"` // unix nanoseconds
	ContentHash string `bun:"content_hash,nullzero"`
}

func (m *recordModel) record() types.Record {
	return types.Record{
		ID:        m.ID,
		Type:      types.ContentType(m.Type),
		Format:    types.Format(m.Format),
		Text:      m.Content,
		Image:     m.ContentBlob,
		Thumbnail: m.Thumbnail,
		Width:     m.Width,
		Height:    m.Height,
		Timestamp: time.Unix(0, m.Timestamp),
		Hash:      m.ContentHash,
	}
}

// SQLiteStorage implements the Content Store on SQLite through bun.
// Each session pins its own pooled connection.
type SQLiteStorage struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteStorage opens (and migrates) the database at config.DBPath
func NewSQLiteStorage(config StorageConfig) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := config.DBPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(sqldb); err != nil {
		sqldb.Close()
		return nil, err
	}
	_ = os.Chmod(config.DBPath, 0600)

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	logger.Debug("SQLiteStorage initialized", zap.String("db_path", config.DBPath))

	return &SQLiteStorage{
		db:     bun.NewDB(sqldb, sqlitedialect.New()),
		logger: logger,
		now:    now,
	}, nil
}

// migrate applies schema migrations based on user_version
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS records (
		  id           INTEGER PRIMARY KEY AUTOINCREMENT,
		  type         TEXT NOT NULL,
		  format       TEXT NOT NULL,
		  content      TEXT,
		  content_blob BLOB,
		  thumbnail    BLOB,
		  width        INTEGER,
		  height       INTEGER,
		  timestamp    INTEGER NOT NULL,
		  content_hash TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_records_timestamp ON records(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_records_hash ON records(content_hash);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	return nil
}

// Session pins one connection from the pool for the lifetime of a task
func (s *SQLiteStorage) Session(ctx context.Context) (Store, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, kerrors.NewUnavailable("acquire connection", err)
	}
	return &sqliteSession{conn: conn, logger: s.logger, now: s.now}, nil
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type sqliteSession struct {
	conn   bun.Conn
	logger *zap.Logger
	now    func() time.Time
}

// Close returns the connection to the pool
func (s *sqliteSession) Close() error {
	return s.conn.Close()
}

func (s *sqliteSession) insert(ctx context.Context, m *recordModel) (int64, error) {
	res, err := s.conn.NewInsert().Model(m).ExcludeColumn("id").Exec(ctx)
	if err != nil {
		return 0, kerrors.NewStorage("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, kerrors.NewStorage("insert", err)
	}

	s.logger.Debug("Record inserted",
		zap.Int64("id", id),
		zap.String("format", m.Format),
		zap.String("hash", m.ContentHash))
	return id, nil
}

func (s *sqliteSession) InsertText(ctx context.Context, text string, format types.Format, hash string) (int64, error) {
	if err := validateText(text, format); err != nil {
		return 0, err
	}
	if hash == "" {
		hash = utils.HashContent([]byte(text))
	}
	return s.insert(ctx, &recordModel{
		Type:        string(types.TypeText),
		Format:      string(format),
		Content:     text,
		Timestamp:   s.now().UnixNano(),
		ContentHash: hash,
	})
}

func (s *sqliteSession) InsertImage(ctx context.Context, in ImageInput) (int64, error) {
	if err := validateImage(in); err != nil {
		return 0, err
	}
	return s.insert(ctx, &recordModel{
		Type:        string(types.TypeImage),
		Format:      string(in.Format),
		ContentBlob: in.Encoded,
		Thumbnail:   in.Thumbnail,
		Width:       in.Width,
		Height:      in.Height,
		Timestamp:   s.now().UnixNano(),
		ContentHash: in.Hash,
	})
}

func (s *sqliteSession) UpdateText(ctx context.Context, id int64, text string) error {
	var m recordModel
	err := s.conn.NewSelect().Model(&m).Column("id", "type").Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return kerrors.NewNotFound(id)
	}
	if err != nil {
		return kerrors.NewStorage("update text", err)
	}
	if m.Type != string(types.TypeText) {
		return kerrors.NewInvalidInput(fmt.Sprintf("record %d is not a text record", id))
	}

	res, err := s.conn.NewUpdate().
		Model((*recordModel)(nil)).
		Set("content = ?", text).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return kerrors.NewStorage("update text", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kerrors.NewNotFound(id)
	}
	return nil
}

func (s *sqliteSession) Delete(ctx context.Context, id int64) error {
	_, err := s.conn.NewDelete().Model((*recordModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return kerrors.NewStorage("delete", err)
	}
	return nil
}

func (s *sqliteSession) ClearAll(ctx context.Context) error {
	_, err := s.conn.NewDelete().Model((*recordModel)(nil)).Where("1 = 1").Exec(ctx)
	if err != nil {
		return kerrors.NewStorage("clear all", err)
	}
	s.logger.Debug("All records cleared")
	return nil
}

func (s *sqliteSession) Count(ctx context.Context) (int, error) {
	n, err := s.conn.NewSelect().Model((*recordModel)(nil)).Count(ctx)
	if err != nil {
		return 0, kerrors.NewStorage("count", err)
	}
	return n, nil
}

func (s *sqliteSession) TrimToLimit(ctx context.Context, max int) (int, error) {
	if err := validateLimit(max); err != nil {
		return 0, err
	}

	keep := s.conn.NewSelect().
		Model((*recordModel)(nil)).
		Column("id").
		OrderExpr("timestamp DESC, id DESC").
		Limit(max)

	res, err := s.conn.NewDelete().
		Model((*recordModel)(nil)).
		Where("id NOT IN (?)", keep).
		Exec(ctx)
	if err != nil {
		return 0, kerrors.NewStorage("trim", err)
	}

	removed, _ := res.RowsAffected()
	if removed > 0 {
		s.logger.Debug("History trimmed", zap.Int64("removed", removed), zap.Int("limit", max))
	}
	return int(removed), nil
}

func (s *sqliteSession) HasHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	exists, err := s.conn.NewSelect().
		Model((*recordModel)(nil)).
		Where("content_hash = ?", hash).
		Exists(ctx)
	if err != nil {
		return false, kerrors.NewStorage("has hash", err)
	}
	return exists, nil
}

func (s *sqliteSession) LoadSummaries(ctx context.Context, limit int) ([]types.RecordSummary, error) {
	var rows []recordModel
	q := s.conn.NewSelect().
		Model(&rows).
		ExcludeColumn("content_blob").
		OrderExpr("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, kerrors.NewStorage("load summaries", err)
	}

	summaries := make([]types.RecordSummary, 0, len(rows))
	for i := range rows {
		rec := rows[i].record()
		summaries = append(summaries, rec.Summary())
	}
	return summaries, nil
}

func (s *sqliteSession) LoadDetail(ctx context.Context, id int64) (*types.RecordDetail, error) {
	var m recordModel
	err := s.conn.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kerrors.NewNotFound(id)
	}
	if err != nil {
		return nil, kerrors.NewStorage("load detail", err)
	}
	return decodeDetail(m.record())
}
