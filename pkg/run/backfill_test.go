package run

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
	"zonesnap/pkg/storage/memory"
)

func seedDay(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()

	// VEO (churn-capable) across three hours in zone z1:
	//   00:00 {a,b}  first hour of the day
	//   01:00 {b,c}  one left, one arrived
	//   02:00 {b,c,d}
	snaps := []*storage.RawProviderSnapshot{
		{Provider: occupancy.ProviderVeo, Hour: "2025-04-15T00:00", Vehicles: vehiclesInZone1("a", "b")},
		{Provider: occupancy.ProviderVeo, Hour: "2025-04-15T01:00", Vehicles: vehiclesInZone1("b", "c")},
		{Provider: occupancy.ProviderVeo, Hour: "2025-04-15T02:00", Vehicles: vehiclesInZone1("b", "c", "d")},
		// LIME only reported at 01:00.
		{Provider: occupancy.ProviderLime, Hour: "2025-04-15T01:00", Vehicles: vehiclesInZone1("p")},
	}
	for _, s := range snaps {
		require.NoError(t, store.PutRawSnapshot(ctx, s))
	}
}

func TestBackfill_RebuildsDayDocument(t *testing.T) {
	store := memory.New()
	seedDay(t, store)
	runner := newTestRunner(store, nil)

	res, err := runner.Backfill(context.Background(), BackfillRequest{Date: "2025-04-15"}, stubMapper{"grid"})
	require.NoError(t, err)
	require.Equal(t, 3, res.Hours)
	require.Equal(t, 2, res.Providers)

	doc, err := store.GetDayDocument(context.Background(), "2025-04-15", "grid")
	require.NoError(t, err)
	require.Len(t, doc, 3)

	// First hour: baseline skipped, delta and churn forced to zero.
	require.Equal(t, occupancy.ZoneMetrics{Density: 2, Delta: 0, Churn: 0},
		doc["2025-04-15T00:00"][occupancy.ProviderVeo]["z1"])

	// 01:00 diffs against 00:00: equal in, equal out.
	require.Equal(t, occupancy.ZoneMetrics{Density: 2, Delta: 0, Churn: 2},
		doc["2025-04-15T01:00"][occupancy.ProviderVeo]["z1"])

	// 02:00 diffs against 01:00.
	require.Equal(t, occupancy.ZoneMetrics{Density: 3, Delta: 1, Churn: 1},
		doc["2025-04-15T02:00"][occupancy.ProviderVeo]["z1"])

	// LIME has no baseline at its only hour: delta 0.
	require.Equal(t, occupancy.ZoneMetrics{Density: 1, Delta: 0, Churn: 0},
		doc["2025-04-15T01:00"][occupancy.ProviderLime]["z1"])

	// TOTAL at 01:00 sums VEO and LIME.
	require.Equal(t, occupancy.ZoneMetrics{Density: 3, Delta: 0, Churn: 2},
		doc["2025-04-15T01:00"][occupancy.ProviderTotal]["z1"])
}

func TestBackfill_Idempotent(t *testing.T) {
	store := memory.New()
	seedDay(t, store)
	runner := newTestRunner(store, nil)
	ctx := context.Background()

	_, err := runner.Backfill(ctx, BackfillRequest{Date: "2025-04-15"}, stubMapper{"grid"})
	require.NoError(t, err)
	first, ok := store.RawDocumentBytes("2025-04-15", "grid")
	require.True(t, ok)

	_, err = runner.Backfill(ctx, BackfillRequest{Date: "2025-04-15"}, stubMapper{"grid"})
	require.NoError(t, err)
	second, ok := store.RawDocumentBytes("2025-04-15", "grid")
	require.True(t, ok)

	require.Equal(t, first, second, "replaying unchanged raw data must yield identical bytes")
}

func TestBackfill_ReplacesStaleDocument(t *testing.T) {
	store := memory.New()
	seedDay(t, store)
	ctx := context.Background()

	// A stale document with an hour that has no raw snapshot behind it.
	stale := occupancy.DayDocument{
		"2025-04-15T22:00": {occupancy.ProviderTotal: {"z9": {Density: 99}}},
	}
	require.NoError(t, store.PutDayDocument(ctx, "2025-04-15", "grid", stale))

	runner := newTestRunner(store, nil)
	_, err := runner.Backfill(ctx, BackfillRequest{Date: "2025-04-15"}, stubMapper{"grid"})
	require.NoError(t, err)

	doc, err := store.GetDayDocument(ctx, "2025-04-15", "grid")
	require.NoError(t, err)
	_, hasStale := doc["2025-04-15T22:00"]
	require.False(t, hasStale, "backfill replaces the document, never merges into it")
}

func TestBackfill_ExplicitKeys(t *testing.T) {
	store := memory.New()
	seedDay(t, store)
	runner := newTestRunner(store, nil)

	res, err := runner.Backfill(context.Background(), BackfillRequest{
		Date: "2025-04-15",
		Keys: []string{
			storage.RawSnapshotKey("2025-04-15T00:00", occupancy.ProviderVeo),
			storage.RawSnapshotKey("2025-04-15T01:00", occupancy.ProviderVeo),
		},
	}, stubMapper{"grid"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Hours)
	require.Equal(t, 1, res.Providers)

	doc, err := store.GetDayDocument(context.Background(), "2025-04-15", "grid")
	require.NoError(t, err)
	require.Len(t, doc, 2)
	_, hasLime := doc["2025-04-15T01:00"][occupancy.ProviderLime]
	require.False(t, hasLime)
}

func TestBackfill_RejectsForeignKeys(t *testing.T) {
	store := memory.New()
	runner := newTestRunner(store, nil)

	_, err := runner.Backfill(context.Background(), BackfillRequest{
		Date: "2025-04-15",
		Keys: []string{storage.RawSnapshotKey("2025-04-16T00:00", occupancy.ProviderVeo)},
	}, stubMapper{"grid"})
	require.Error(t, err)
}

func TestBackfill_EmptyDayWritesEmptyDocument(t *testing.T) {
	store := memory.New()
	runner := newTestRunner(store, nil)

	res, err := runner.Backfill(context.Background(), BackfillRequest{Date: "2025-04-15"}, stubMapper{"grid"})
	require.NoError(t, err)
	require.Zero(t, res.Hours)

	doc, err := store.GetDayDocument(context.Background(), "2025-04-15", "grid")
	require.NoError(t, err)
	require.Empty(t, doc)
}

func TestBackfill_GapHourDiffsAgainstLastSeenSnapshot(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	// VEO reported at 03:00 and 05:00 but not 04:00: the 05:00 diff uses
	// the immediately preceding stored snapshot (03:00).
	require.NoError(t, store.PutRawSnapshot(ctx, &storage.RawProviderSnapshot{
		Provider: occupancy.ProviderVeo, Hour: "2025-04-15T03:00", Vehicles: vehiclesInZone1("a", "b"),
	}))
	require.NoError(t, store.PutRawSnapshot(ctx, &storage.RawProviderSnapshot{
		Provider: occupancy.ProviderVeo, Hour: "2025-04-15T05:00", Vehicles: vehiclesInZone1("b"),
	}))

	runner := newTestRunner(store, nil)
	_, err := runner.Backfill(ctx, BackfillRequest{Date: "2025-04-15"}, stubMapper{"grid"})
	require.NoError(t, err)

	doc, err := store.GetDayDocument(ctx, "2025-04-15", "grid")
	require.NoError(t, err)
	require.Equal(t, occupancy.ZoneMetrics{Density: 1, Delta: -1, Churn: 1},
		doc["2025-04-15T05:00"][occupancy.ProviderVeo]["z1"])
}
