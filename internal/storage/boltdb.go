package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

const (
	recordsBucket = "records" // id -> record metadata (JSON, no image bytes)
	blobsBucket   = "blobs"   // id -> encoded image bytes
	timeBucket    = "by_time" // unix nanos ++ id -> nil
	hashBucket    = "by_hash" // hash ++ 0x00 ++ id -> nil
)

var allBuckets = []string{recordsBucket, blobsBucket, timeBucket, hashBucket}

// BoltStorage implements the Content Store on a single bbolt file.
// bbolt allows one open handle per file, so sessions share the handle and
// isolate themselves through per-call transactions.
type BoltStorage struct {
	db     *bbolt.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewBoltStorage creates a new BoltStorage instance
func NewBoltStorage(config StorageConfig) (*BoltStorage, error) {
	if err := os.MkdirAll(filepath.Dir(config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bbolt.Open(config.DBPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	logger.Debug("BoltStorage initialized", zap.String("db_path", config.DBPath))

	return &BoltStorage{db: db, logger: logger, now: now}, nil
}

// Session returns a store view for one task
func (s *BoltStorage) Session(ctx context.Context) (Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, kerrors.NewUnavailable("session", err)
	}
	return &boltSession{s}, nil
}

// Close closes the database
func (s *BoltStorage) Close() error {
	return s.db.Close()
}

type boltSession struct {
	*BoltStorage
}

func (s *boltSession) Close() error { return nil }

func idKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func timeKey(ts time.Time, id int64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k[:8], uint64(ts.UnixNano()))
	binary.BigEndian.PutUint64(k[8:], uint64(id))
	return k
}

func hashPrefix(hash string) []byte {
	return append([]byte(hash), 0)
}

func hashKey(hash string, id int64) []byte {
	return append(hashPrefix(hash), idKey(id)...)
}

// insert assigns an id and writes the record and its index entries
func (s *BoltStorage) insert(rec types.Record, blob []byte) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket([]byte(recordsBucket))
		seq, err := records.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		rec.ID = id

		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		if err := records.Put(idKey(id), encoded); err != nil {
			return err
		}
		if blob != nil {
			if err := tx.Bucket([]byte(blobsBucket)).Put(idKey(id), blob); err != nil {
				return err
			}
		}
		if err := tx.Bucket([]byte(timeBucket)).Put(timeKey(rec.Timestamp, id), nil); err != nil {
			return err
		}
		if rec.Hash != "" {
			if err := tx.Bucket([]byte(hashBucket)).Put(hashKey(rec.Hash, id), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, kerrors.NewStorage("insert", err)
	}

	s.logger.Debug("Record inserted",
		zap.Int64("id", id),
		zap.String("format", string(rec.Format)),
		zap.String("hash", rec.Hash))
	return id, nil
}

// InsertText appends a text record
func (s *BoltStorage) InsertText(ctx context.Context, text string, format types.Format, hash string) (int64, error) {
	if err := validateText(text, format); err != nil {
		return 0, err
	}
	if hash == "" {
		hash = utils.HashContent([]byte(text))
	}
	return s.insert(types.Record{
		Type:      types.TypeText,
		Format:    format,
		Text:      text,
		Timestamp: s.now(),
		Hash:      hash,
	}, nil)
}

// InsertImage appends an image record
func (s *BoltStorage) InsertImage(ctx context.Context, in ImageInput) (int64, error) {
	if err := validateImage(in); err != nil {
		return 0, err
	}
	return s.insert(types.Record{
		Type:      types.TypeImage,
		Format:    in.Format,
		Thumbnail: in.Thumbnail,
		Width:     in.Width,
		Height:    in.Height,
		Timestamp: s.now(),
		Hash:      in.Hash,
	}, in.Encoded)
}

// getRecord reads record metadata; nil means absent
func getRecord(tx *bbolt.Tx, id int64) (*types.Record, error) {
	v := tx.Bucket([]byte(recordsBucket)).Get(idKey(id))
	if v == nil {
		return nil, nil
	}
	var rec types.Record
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %d: %w", id, err)
	}
	return &rec, nil
}

// UpdateText overwrites the text of an existing text record
func (s *BoltStorage) UpdateText(ctx context.Context, id int64, text string) error {
	var missing, notText bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			missing = true
			return nil
		}
		if rec.Type != types.TypeText {
			notText = true
			return nil
		}
		rec.Text = text
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return tx.Bucket([]byte(recordsBucket)).Put(idKey(id), encoded)
	})
	switch {
	case err != nil:
		return kerrors.NewStorage("update text", err)
	case missing:
		return kerrors.NewNotFound(id)
	case notText:
		return kerrors.NewInvalidInput(fmt.Sprintf("record %d is not a text record", id))
	}
	return nil
}

// deleteRecord removes a record and its index entries inside tx
func deleteRecord(tx *bbolt.Tx, rec *types.Record) error {
	if err := tx.Bucket([]byte(recordsBucket)).Delete(idKey(rec.ID)); err != nil {
		return err
	}
	if err := tx.Bucket([]byte(blobsBucket)).Delete(idKey(rec.ID)); err != nil {
		return err
	}
	if err := tx.Bucket([]byte(timeBucket)).Delete(timeKey(rec.Timestamp, rec.ID)); err != nil {
		return err
	}
	if rec.Hash != "" {
		return tx.Bucket([]byte(hashBucket)).Delete(hashKey(rec.Hash, rec.ID))
	}
	return nil
}

// Delete removes one record; deleting an absent id is a no-op
func (s *BoltStorage) Delete(ctx context.Context, id int64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, id)
		if err != nil || rec == nil {
			return err
		}
		return deleteRecord(tx, rec)
	})
	if err != nil {
		return kerrors.NewStorage("delete", err)
	}
	return nil
}

// ClearAll removes every record. Ids keep increasing afterwards.
func (s *BoltStorage) ClearAll(ctx context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		seq := tx.Bucket([]byte(recordsBucket)).Sequence()
		for _, name := range allBuckets {
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(recordsBucket)).SetSequence(seq)
	})
	if err != nil {
		return kerrors.NewStorage("clear all", err)
	}
	s.logger.Debug("All records cleared")
	return nil
}

// Count returns the number of stored records
func (s *BoltStorage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(recordsBucket)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, kerrors.NewStorage("count", err)
	}
	return n, nil
}

// TrimToLimit deletes everything outside the max newest records
func (s *BoltStorage) TrimToLimit(ctx context.Context, max int) (int, error) {
	if err := validateLimit(max); err != nil {
		return 0, err
	}

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(timeBucket)).Cursor()

		var stale []int64
		seen := 0
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			seen++
			if seen > max {
				stale = append(stale, int64(binary.BigEndian.Uint64(k[8:])))
			}
		}

		for _, id := range stale {
			rec, err := getRecord(tx, id)
			if err != nil {
				return err
			}
			if rec == nil {
				continue
			}
			if err := deleteRecord(tx, rec); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, kerrors.NewStorage("trim", err)
	}

	if removed > 0 {
		s.logger.Debug("History trimmed", zap.Int("removed", removed), zap.Int("limit", max))
	}
	return removed, nil
}

// HasHash reports whether any record carries hash. The empty hash never matches.
func (s *BoltStorage) HasHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		prefix := hashPrefix(hash)
		k, _ := tx.Bucket([]byte(hashBucket)).Cursor().Seek(prefix)
		found = k != nil && bytes.HasPrefix(k, prefix)
		return nil
	})
	if err != nil {
		return false, kerrors.NewStorage("has hash", err)
	}
	return found, nil
}

// LoadSummaries returns up to limit records, newest first. limit <= 0 means all.
func (s *BoltStorage) LoadSummaries(ctx context.Context, limit int) ([]types.RecordSummary, error) {
	summaries := []types.RecordSummary{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(timeBucket)).Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if limit > 0 && len(summaries) >= limit {
				break
			}
			id := int64(binary.BigEndian.Uint64(k[8:]))
			rec, err := getRecord(tx, id)
			if err != nil {
				s.logger.Warn("Skipping unreadable record", zap.Int64("id", id), zap.Error(err))
				continue
			}
			if rec == nil {
				continue
			}
			summaries = append(summaries, rec.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, kerrors.NewStorage("load summaries", err)
	}
	return summaries, nil
}

// LoadDetail returns the full record, decoding image bytes
func (s *BoltStorage) LoadDetail(ctx context.Context, id int64) (*types.RecordDetail, error) {
	var rec *types.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = getRecord(tx, id)
		if err != nil || rec == nil {
			return err
		}
		if blob := tx.Bucket([]byte(blobsBucket)).Get(idKey(id)); blob != nil {
			// blob is only valid inside the transaction
			rec.Image = append([]byte(nil), blob...)
		}
		return nil
	})
	if err != nil {
		return nil, kerrors.NewStorage("load detail", err)
	}
	if rec == nil {
		return nil, kerrors.NewNotFound(id)
	}
	return decodeDetail(*rec)
}
