// ABOUTME: Badger key-value storage implementation for position history
// ABOUTME: Keys are time-ordered so history scans are prefix iterations

package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/harper/shichen/internal/logger"
	"github.com/harper/shichen/internal/models"
)

var (
	positionPrefix = []byte("pos/")
	idPrefix       = []byte("id/")
)

// BadgerDB implements Repository on an embedded Badger store.
type BadgerDB struct {
	db *badger.DB
}

var _ Repository = (*BadgerDB)(nil)

// NewBadgerDB opens (or creates) a Badger store in dir. An empty dir opens
// an in-memory store.
func NewBadgerDB(dir string, l *log.Logger) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger.Or(l)})
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0750); err != nil { //nolint:gosec // 0750 is appropriate for user data directory
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerDB{db: db}, nil
}

func (b *BadgerDB) Close() error {
	return b.db.Close()
}

func (b *BadgerDB) Reset() error {
	return b.db.DropAll()
}

// positionKey orders records by recording time, then ID.
func positionKey(rec *models.PositionRecord) []byte {
	key := make([]byte, 0, len(positionPrefix)+8+16)
	key = append(key, positionPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(rec.RecordedAt.UnixNano()))
	return append(key, rec.ID[:]...)
}

func idKey(id uuid.UUID) []byte {
	return append(append([]byte{}, idPrefix...), id[:]...)
}

func timeBound(t time.Time) []byte {
	key := append([]byte{}, positionPrefix...)
	return binary.BigEndian.AppendUint64(key, uint64(t.UnixNano()))
}

func (b *BadgerDB) SavePosition(rec *models.PositionRecord) (bool, error) {
	saved := false
	err := b.db.Update(func(txn *badger.Txn) error {
		latest, err := latestInTxn(txn)
		if err == nil && coordsEqual(latest.Latitude, latest.Longitude, rec.Latitude, rec.Longitude) {
			return nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := putPosition(txn, rec); err != nil {
			return err
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("save position: %w", err)
	}
	return saved, nil
}

func (b *BadgerDB) ImportPosition(rec *models.PositionRecord) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return putPosition(txn, rec)
	})
	if err != nil {
		return fmt.Errorf("import position: %w", err)
	}
	return nil
}

func putPosition(txn *badger.Txn, rec *models.PositionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	key := positionKey(rec)
	if err := txn.Set(key, data); err != nil {
		return err
	}
	return txn.Set(idKey(rec.ID), key)
}

func (b *BadgerDB) GetPosition(id uuid.UUID) (*models.PositionRecord, error) {
	var rec *models.PositionRecord
	err := b.db.View(func(txn *badger.Txn) error {
		key, err := lookupKey(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		rec, err = decodeItem(item)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (b *BadgerDB) LatestPosition() (*models.PositionRecord, error) {
	var rec *models.PositionRecord
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = latestInTxn(txn)
		return err
	})
	return rec, err
}

func latestInTxn(txn *badger.Txn) (*models.PositionRecord, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.Prefix = positionPrefix
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append(append([]byte{}, positionPrefix...), 0xFF))
	if !it.ValidForPrefix(positionPrefix) {
		return nil, ErrNotFound
	}
	return decodeItem(it.Item())
}

func (b *BadgerDB) ListPositions(since time.Time) ([]*models.PositionRecord, error) {
	return b.scan(func(rec *models.PositionRecord) bool {
		return since.IsZero() || rec.RecordedAt.After(since)
	})
}

func (b *BadgerDB) ListPositionsInRange(from, to time.Time) ([]*models.PositionRecord, error) {
	return b.scan(func(rec *models.PositionRecord) bool {
		return !rec.RecordedAt.Before(from) && !rec.RecordedAt.After(to)
	})
}

// scan walks newest first and keeps records accepted by keep.
func (b *BadgerDB) scan(keep func(*models.PositionRecord) bool) ([]*models.PositionRecord, error) {
	var out []*models.PositionRecord
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = positionPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte{}, positionPrefix...), 0xFF)); it.ValidForPrefix(positionPrefix); it.Next() {
			rec, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			if keep(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan positions: %w", err)
	}
	return out, nil
}

func (b *BadgerDB) DeletePosition(id uuid.UUID) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		key, err := lookupKey(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(idKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func (b *BadgerDB) DeletePositionsBefore(t time.Time) (int, error) {
	var doomed []*models.PositionRecord
	bound := timeBound(t)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = positionPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(positionPrefix); it.ValidForPrefix(positionPrefix); it.Next() {
			if string(it.Item().Key()) >= string(bound) {
				break
			}
			rec, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			doomed = append(doomed, rec)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune positions: %w", err)
	}

	wb := b.db.NewWriteBatch()
	for _, rec := range doomed {
		err := wb.Delete(positionKey(rec))
		if err == nil {
			err = wb.Delete(idKey(rec.ID))
		}
		if err != nil {
			wb.Cancel()
			return 0, fmt.Errorf("prune positions: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("prune positions: %w", err)
	}
	return len(doomed), nil
}

func lookupKey(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(idKey(id))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func decodeItem(item *badger.Item) (*models.PositionRecord, error) {
	var rec models.PositionRecord
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	return &rec, nil
}

// badgerLogger routes Badger's internal logging through charm log.
// Badger's info output is logged at debug.
type badgerLogger struct {
	l *log.Logger
}

func (b badgerLogger) Errorf(format string, args ...any)   { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...any) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...any)    { b.l.Debugf(format, args...) }
func (b badgerLogger) Debugf(format string, args ...any)   { b.l.Debugf(format, args...) }
