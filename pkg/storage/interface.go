package storage

import (
	"context"
	"errors"

	"zonesnap/pkg/feed"
	"zonesnap/pkg/occupancy"
)

// ErrNotFound marks the expected-absence case: a missing baseline snapshot
// or day document. Callers must distinguish it (errors.Is) from every other
// storage error, which is fatal for the running aggregation.
var ErrNotFound = errors.New("not found")

// RawProviderSnapshot is one provider's vehicle list as fetched at a given
// hour, persisted verbatim. It is written once, then read as the next
// hour's baseline and replayed by backfills.
type RawProviderSnapshot struct {
	Provider occupancy.Provider   `json:"provider"`
	Hour     string               `json:"hour"`
	Vehicles []feed.VehicleRecord `json:"vehicles"`
}

// RawSnapshotRef identifies one stored raw snapshot.
type RawSnapshotRef struct {
	Hour     string
	Provider occupancy.Provider
}

// Store persists raw provider snapshots and per-day documents.
// Implementations: badger (production), memory (testing).
//
// Day-document writes are full-document read-modify-write with no
// optimistic concurrency; runs for the same (date, scheme) are expected to
// be serialized by the external scheduler.
type Store interface {
	// GetRawSnapshot returns the snapshot for (hour, provider) or
	// ErrNotFound.
	GetRawSnapshot(ctx context.Context, hour string, provider occupancy.Provider) (*RawProviderSnapshot, error)

	// PutRawSnapshot stores a snapshot. Write-once per key; overwrite is
	// tolerated but not relied upon.
	PutRawSnapshot(ctx context.Context, snap *RawProviderSnapshot) error

	// ListRawSnapshots returns refs for every raw snapshot stored under a
	// date, sorted ascending by hour then provider.
	ListRawSnapshots(ctx context.Context, date string) ([]RawSnapshotRef, error)

	// GetDayDocument returns the document for (date, scheme). Absence is a
	// normal outcome and yields an empty document, not an error.
	GetDayDocument(ctx context.Context, date, scheme string) (occupancy.DayDocument, error)

	// PutDayDocument replaces the document for (date, scheme) wholesale.
	PutDayDocument(ctx context.Context, date, scheme string, doc occupancy.DayDocument) error

	// DeleteRawSnapshots removes every raw snapshot stored under a date
	// and returns how many were deleted. Day documents are untouched.
	DeleteRawSnapshots(ctx context.Context, date string) (int, error)

	// Stats returns storage statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close cleanly shuts down the store.
	Close() error
}

// Stats provides storage usage info.
type Stats struct {
	// Raw provider snapshots stored.
	RawSnapshots uint64

	// Day documents stored.
	DayDocuments uint64

	// Oldest and newest raw snapshot hours present, empty when none.
	OldestHour string
	NewestHour string
}
