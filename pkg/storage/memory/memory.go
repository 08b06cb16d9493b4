// Package memory implements the snapshot store in process memory. Data is
// lost on restart; useful for testing and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
)

// Store keeps encoded snapshots and documents in maps keyed exactly like
// the badger backend, so key semantics are shared and testable.
type Store struct {
	mu   sync.RWMutex
	raw  map[string][]byte
	docs map[string][]byte
}

// New creates an in-memory snapshot store.
func New() *Store {
	return &Store{
		raw:  make(map[string][]byte),
		docs: make(map[string][]byte),
	}
}

// GetRawSnapshot returns the snapshot for (hour, provider) or
// storage.ErrNotFound.
func (s *Store) GetRawSnapshot(ctx context.Context, hour string, provider occupancy.Provider) (*storage.RawProviderSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.raw[storage.RawSnapshotKey(hour, provider)]
	s.mu.RUnlock()

	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.DecodeRawSnapshot(data)
}

// PutRawSnapshot stores a raw snapshot.
func (s *Store) PutRawSnapshot(ctx context.Context, snap *storage.RawProviderSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := storage.EncodeRawSnapshot(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.raw[storage.RawSnapshotKey(snap.Hour, snap.Provider)] = data
	s.mu.Unlock()
	return nil
}

// ListRawSnapshots returns refs for a date, sorted by key (hour, then
// provider).
func (s *Store) ListRawSnapshots(ctx context.Context, date string) ([]storage.RawSnapshotRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := storage.RawDatePrefix(date)

	s.mu.RLock()
	keys := make([]string, 0, len(s.raw))
	for key := range s.raw {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()

	sort.Strings(keys)

	refs := make([]storage.RawSnapshotRef, 0, len(keys))
	for _, key := range keys {
		ref, err := storage.ParseRawSnapshotKey(key)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// GetDayDocument returns the (date, scheme) document; absence yields an
// empty document.
func (s *Store) GetDayDocument(ctx context.Context, date, scheme string) (occupancy.DayDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.docs[storage.DayDocumentKey(date, scheme)]
	s.mu.RUnlock()

	if !ok {
		return occupancy.DayDocument{}, nil
	}
	return storage.DecodeDayDocument(data)
}

// PutDayDocument replaces the (date, scheme) document.
func (s *Store) PutDayDocument(ctx context.Context, date, scheme string, doc occupancy.DayDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := storage.EncodeDayDocument(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.docs[storage.DayDocumentKey(date, scheme)] = data
	s.mu.Unlock()
	return nil
}

// DeleteRawSnapshots removes every raw snapshot under a date.
func (s *Store) DeleteRawSnapshots(ctx context.Context, date string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := storage.RawDatePrefix(date)

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key := range s.raw {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.raw, key)
			deleted++
		}
	}
	return deleted, nil
}

// RawDocumentBytes exposes the encoded day document for byte-level
// idempotence assertions in tests.
func (s *Store) RawDocumentBytes(date, scheme string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[storage.DayDocumentKey(date, scheme)]
	return data, ok
}

// Stats counts stored raw snapshots and day documents.
func (s *Store) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		RawSnapshots: uint64(len(s.raw)),
		DayDocuments: uint64(len(s.docs)),
	}
	for key := range s.raw {
		if ref, err := storage.ParseRawSnapshotKey(key); err == nil {
			if stats.OldestHour == "" || ref.Hour < stats.OldestHour {
				stats.OldestHour = ref.Hour
			}
			if ref.Hour > stats.NewestHour {
				stats.NewestHour = ref.Hour
			}
		}
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
