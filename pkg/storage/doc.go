/*
Package storage provides the pluggable snapshot store for the aggregation
engine.

# Store Interface

Two kinds of data are persisted:

  - Raw provider snapshots: the vehicle list fetched for one provider at
    one hour, written once and then read as the next hour's baseline and
    replayed by backfills.
  - Day documents: the cumulative per-day, per-zone-scheme record mapping
    hour stamps to provider/zone metrics.

Both backends implement the Store interface:

	type Store interface {
	    GetRawSnapshot(ctx context.Context, hour string, provider occupancy.Provider) (*RawProviderSnapshot, error)
	    PutRawSnapshot(ctx context.Context, snap *RawProviderSnapshot) error
	    ListRawSnapshots(ctx context.Context, date string) ([]RawSnapshotRef, error)
	    GetDayDocument(ctx context.Context, date, scheme string) (occupancy.DayDocument, error)
	    PutDayDocument(ctx context.Context, date, scheme string, doc occupancy.DayDocument) error
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

# Not-found Semantics

Absence is a normal outcome, not a failure: a missing baseline snapshot
returns ErrNotFound (check with errors.Is) and a missing day document
returns an empty document. Every other error is fatal for the running
aggregation and must abort it before any partial write.

# Key Layout

	raw/{date}/{hour}-{PROVIDER}.json
	doc/{date}/{scheme}.json

Hour stamps sort lexicographically in chronological order, so a prefix
scan over raw/{date}/ yields snapshots already in replay order.

# Backends

  - memory: in-memory maps for testing and development
  - badger: BadgerDB (LSM tree + Snappy compression) for production

# Concurrency

Day-document writes are full-document read-modify-write without optimistic
concurrency. Two concurrent runs for the same (date, scheme) race with
last-writer-wins; the deployment relies on the external scheduler running
at most one such run at a time.
*/
package storage
