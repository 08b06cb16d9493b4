// Package badger implements the snapshot store on BadgerDB (LSM tree).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
)

// Store implements storage.Store using BadgerDB.
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to store database files.
	Path string

	// InMemory mode (for testing).
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = conservative
	// default). Snapshot payloads are small, so the defaults stay low.
	MaxMemoryMB int64
}

// New opens a BadgerDB-backed snapshot store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	// The workload is hourly batches of small JSON values; tune for a small
	// LSM with bounded caches rather than Badger's server-sized defaults.
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumCompactors(2). // badger refuses to open with fewer than 2
		WithValueThreshold(1024).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db}, nil
}

// GetRawSnapshot returns the snapshot for (hour, provider) or
// storage.ErrNotFound.
func (s *Store) GetRawSnapshot(ctx context.Context, hour string, provider occupancy.Provider) (*storage.RawProviderSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(storage.RawSnapshotKey(hour, provider))
	var snap *storage.RawProviderSnapshot

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snap, err = storage.DecodeRawSnapshot(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read raw snapshot %s/%s: %w", hour, provider, err)
	}
	return snap, nil
}

// PutRawSnapshot stores a raw snapshot under its (hour, provider) key.
func (s *Store) PutRawSnapshot(ctx context.Context, snap *storage.RawProviderSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := storage.EncodeRawSnapshot(snap)
	if err != nil {
		return err
	}
	key := []byte(storage.RawSnapshotKey(snap.Hour, snap.Provider))

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return fmt.Errorf("failed to write raw snapshot %s/%s: %w", snap.Hour, snap.Provider, err)
	}
	return nil
}

// ListRawSnapshots scans the raw/{date}/ prefix. Badger iterates keys in
// byte order, which for hour stamps is chronological order, so the result
// comes back already sorted for replay.
func (s *Store) ListRawSnapshots(ctx context.Context, date string) ([]storage.RawSnapshotRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(storage.RawDatePrefix(date))
	var refs []storage.RawSnapshotRef

	type listResult struct {
		refs []storage.RawSnapshotRef
		err  error
	}
	done := make(chan listResult, 1)

	go func() {
		var res listResult
		res.err = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			var iterCount int
			for it.Rewind(); it.Valid(); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				ref, err := storage.ParseRawSnapshotKey(string(it.Item().Key()))
				if err != nil {
					// Foreign keys under the prefix are skipped, not fatal.
					log.Printf("Skipping unparseable raw snapshot key: %v", err)
					continue
				}
				refs = append(refs, ref)
			}
			return nil
		})
		res.refs = refs
		done <- res
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to list raw snapshots for %s: %w", date, res.err)
		}
		return res.refs, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("list operation cancelled: %w", ctx.Err())
	}
}

// GetDayDocument returns the (date, scheme) document; absence yields an
// empty document.
func (s *Store) GetDayDocument(ctx context.Context, date, scheme string) (occupancy.DayDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := []byte(storage.DayDocumentKey(date, scheme))
	var doc occupancy.DayDocument

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			doc, err = storage.DecodeDayDocument(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return occupancy.DayDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read day document %s/%s: %w", date, scheme, err)
	}
	return doc, nil
}

// PutDayDocument replaces the (date, scheme) document. An unchanged
// document (same content fingerprint) is not rewritten.
func (s *Store) PutDayDocument(ctx context.Context, date, scheme string, doc occupancy.DayDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := storage.EncodeDayDocument(doc)
	if err != nil {
		return err
	}
	key := []byte(storage.DayDocumentKey(date, scheme))

	err = s.db.Update(func(txn *badger.Txn) error {
		if item, err := txn.Get(key); err == nil {
			var same bool
			if verr := item.Value(func(val []byte) error {
				same = storage.Fingerprint(val) == storage.Fingerprint(value)
				return nil
			}); verr == nil && same {
				return nil
			}
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to write day document %s/%s: %w", date, scheme, err)
	}
	return nil
}

// DeleteRawSnapshots removes every raw snapshot under a date. Keys are
// collected in a read pass first; the deletes then go through WriteBatch
// so a day larger than one transaction still prunes completely.
func (s *Store) DeleteRawSnapshots(ctx context.Context, date string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := []byte(storage.RawDatePrefix(date))
	var keys [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to collect raw snapshots for %s: %w", date, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("failed to delete raw snapshots for %s: %w", date, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to delete raw snapshots for %s: %w", date, err)
	}
	return len(keys), nil
}

// Stats counts stored raw snapshots and day documents.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &storage.Stats{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			key := string(it.Item().Key())
			if ref, err := storage.ParseRawSnapshotKey(key); err == nil {
				stats.RawSnapshots++
				if stats.OldestHour == "" || ref.Hour < stats.OldestHour {
					stats.OldestHour = ref.Hour
				}
				if ref.Hour > stats.NewestHour {
					stats.NewestHour = ref.Hour
				}
				continue
			}
			stats.DayDocuments++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to gather storage stats: %w", err)
	}
	return stats, nil
}

// Close shuts down BadgerDB cleanly.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection to reclaim disk space
// from overwritten documents. Returns badger's error when no rewrite was
// needed.
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}
