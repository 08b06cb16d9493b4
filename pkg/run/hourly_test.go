package run

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zonesnap/pkg/feed"
	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
	"zonesnap/pkg/storage/memory"
	"zonesnap/pkg/zone"
)

// stubMapper bins vehicles by integer latitude: lat 1.x lands in "z1",
// lat 2.x in "z2". Negative latitudes map to no zone.
type stubMapper struct{ scheme string }

func (m stubMapper) Scheme() string { return m.scheme }

func (m stubMapper) Map(lat, _ float64) (string, bool) {
	if lat < 0 {
		return "", false
	}
	return "z" + strconv.Itoa(int(lat)), true
}

// fetcherFunc adapts a function to feed.Fetcher.
type fetcherFunc func(ctx context.Context) (map[occupancy.Provider][]feed.VehicleRecord, error)

func (f fetcherFunc) FetchAll(ctx context.Context) (map[occupancy.Provider][]feed.VehicleRecord, error) {
	return f(ctx)
}

func staticFeeds(feeds map[occupancy.Provider][]feed.VehicleRecord) fetcherFunc {
	return func(context.Context) (map[occupancy.Provider][]feed.VehicleRecord, error) {
		return feeds, nil
	}
}

var testProviders = []feed.ProviderSpec{
	{Name: occupancy.ProviderLime, Churn: false},
	{Name: occupancy.ProviderVeo, Churn: true},
	{Name: occupancy.ProviderHopp, Churn: true},
}

func vehiclesInZone1(ids ...string) []feed.VehicleRecord {
	out := make([]feed.VehicleRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, feed.VehicleRecord{ID: id, Lat: 1.5, Lon: 10})
	}
	return out
}

func newTestRunner(store storage.Store, fetcher feed.Fetcher) *Runner {
	return New(store, fetcher, testProviders, time.UTC, 0, nil)
}

// runHour runs a single-scheme hourly aggregation under the stub grid.
func runHour(ctx context.Context, runner *Runner, now time.Time) (*Result, error) {
	results, err := runner.RunHourly(ctx, now, []zone.Mapper{stubMapper{"grid"}})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func TestRunHourly_FirstHourForcesZeroDeltaChurn(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	// A previous-day snapshot exists but must be ignored on the day's
	// first hour.
	require.NoError(t, store.PutRawSnapshot(ctx, &storage.RawProviderSnapshot{
		Provider: occupancy.ProviderVeo,
		Hour:     "2025-04-14T23:00",
		Vehicles: vehiclesInZone1("x", "y", "z"),
	}))

	runner := newTestRunner(store, staticFeeds(map[occupancy.Provider][]feed.VehicleRecord{
		occupancy.ProviderVeo: vehiclesInZone1("a", "b"),
	}))

	now := time.Date(2025, 4, 15, 0, 12, 0, 0, time.UTC)
	res, err := runHour(ctx, runner, now)
	require.NoError(t, err)
	require.Equal(t, "2025-04-15T00:00", res.Hour)

	doc, err := store.GetDayDocument(ctx, "2025-04-15", "grid")
	require.NoError(t, err)
	m := doc["2025-04-15T00:00"][occupancy.ProviderVeo]["z1"]
	require.Equal(t, occupancy.ZoneMetrics{Density: 2, Delta: 0, Churn: 0}, m)
}

func TestRunHourly_DiffsAgainstPreviousHour(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	require.NoError(t, store.PutRawSnapshot(ctx, &storage.RawProviderSnapshot{
		Provider: occupancy.ProviderVeo,
		Hour:     "2025-04-15T11:00",
		Vehicles: vehiclesInZone1("a", "b"),
	}))
	require.NoError(t, store.PutRawSnapshot(ctx, &storage.RawProviderSnapshot{
		Provider: occupancy.ProviderLime,
		Hour:     "2025-04-15T11:00",
		Vehicles: vehiclesInZone1("p", "q"),
	}))

	runner := newTestRunner(store, staticFeeds(map[occupancy.Provider][]feed.VehicleRecord{
		occupancy.ProviderVeo:  vehiclesInZone1("b", "c"),
		occupancy.ProviderLime: vehiclesInZone1("p", "r"),
	}))

	now := time.Date(2025, 4, 15, 12, 2, 0, 0, time.UTC)
	_, err := runHour(ctx, runner, now)
	require.NoError(t, err)

	doc, err := store.GetDayDocument(ctx, "2025-04-15", "grid")
	require.NoError(t, err)
	hour := doc["2025-04-15T12:00"]

	// VEO is churn-capable: {a,b} -> {b,c} is delta 0, churn 2.
	require.Equal(t, occupancy.ZoneMetrics{Density: 2, Delta: 0, Churn: 2}, hour[occupancy.ProviderVeo]["z1"])
	// LIME is not churn-capable: churn stays 0 even though ids changed.
	require.Equal(t, occupancy.ZoneMetrics{Density: 2, Delta: 0, Churn: 0}, hour[occupancy.ProviderLime]["z1"])
	// TOTAL sums both.
	require.Equal(t, occupancy.ZoneMetrics{Density: 4, Delta: 0, Churn: 2}, hour[occupancy.ProviderTotal]["z1"])
}

func TestRunHourly_MissingBaselineIsNotAnError(t *testing.T) {
	store := memory.New()
	runner := newTestRunner(store, staticFeeds(map[occupancy.Provider][]feed.VehicleRecord{
		occupancy.ProviderHopp: vehiclesInZone1("a"),
	}))

	// Mid-day hour with no prior snapshot at all: delta forced to 0.
	now := time.Date(2025, 4, 15, 15, 30, 0, 0, time.UTC)
	_, err := runHour(context.Background(), runner, now)
	require.NoError(t, err)

	doc, err := store.GetDayDocument(context.Background(), "2025-04-15", "grid")
	require.NoError(t, err)
	m := doc["2025-04-15T15:00"][occupancy.ProviderHopp]["z1"]
	require.Equal(t, occupancy.ZoneMetrics{Density: 1, Delta: 0, Churn: 0}, m)
}

func TestRunHourly_AllProvidersFailedWritesNothing(t *testing.T) {
	store := memory.New()
	runner := newTestRunner(store, fetcherFunc(func(context.Context) (map[occupancy.Provider][]feed.VehicleRecord, error) {
		return nil, feed.ErrAllProvidersFailed
	}))

	_, err := runHour(context.Background(), runner, time.Now())
	require.ErrorIs(t, err, feed.ErrAllProvidersFailed)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.RawSnapshots)
	require.Zero(t, stats.DayDocuments)
}

func TestRunHourly_PartialFailurePersistsOnlySurvivors(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	// HOPP's feed is down this hour: it appears in neither the raw
	// snapshots nor the TOTAL sum.
	runner := newTestRunner(store, staticFeeds(map[occupancy.Provider][]feed.VehicleRecord{
		occupancy.ProviderLime: vehiclesInZone1("a", "b"),
		occupancy.ProviderVeo:  vehiclesInZone1("c"),
	}))

	now := time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC)
	res, err := runHour(ctx, runner, now)
	require.NoError(t, err)
	require.Equal(t, 2, res.Providers)

	_, err = store.GetRawSnapshot(ctx, "2025-04-15T09:00", occupancy.ProviderHopp)
	require.ErrorIs(t, err, storage.ErrNotFound)

	doc, err := store.GetDayDocument(ctx, "2025-04-15", "grid")
	require.NoError(t, err)
	hour := doc["2025-04-15T09:00"]
	_, hasHopp := hour[occupancy.ProviderHopp]
	require.False(t, hasHopp)
	require.Equal(t, uint(3), hour[occupancy.ProviderTotal]["z1"].Density)
}

func TestRunHourly_UnmappedVehiclesContributeToNoZone(t *testing.T) {
	store := memory.New()

	vehicles := append(vehiclesInZone1("a", "b"), feed.VehicleRecord{ID: "offgrid", Lat: -5, Lon: 0})
	runner := newTestRunner(store, staticFeeds(map[occupancy.Provider][]feed.VehicleRecord{
		occupancy.ProviderLime: vehicles,
	}))

	now := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)
	_, err := runHour(context.Background(), runner, now)
	require.NoError(t, err)

	doc, err := store.GetDayDocument(context.Background(), "2025-04-15", "grid")
	require.NoError(t, err)

	var sum uint
	for _, m := range doc["2025-04-15T10:00"][occupancy.ProviderTotal] {
		sum += m.Density
	}
	require.Equal(t, uint(2), sum, "unmapped vehicle must be excluded from every zone")
}

func TestRunHourly_SharedFetchAcrossSchemes(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	fetches := 0
	fetcher := fetcherFunc(func(context.Context) (map[occupancy.Provider][]feed.VehicleRecord, error) {
		fetches++
		return map[occupancy.Provider][]feed.VehicleRecord{
			occupancy.ProviderLime: vehiclesInZone1("a", "b"),
		}, nil
	})
	runner := newTestRunner(store, fetcher)

	now := time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC)
	mappers := []zone.Mapper{stubMapper{"coarse"}, stubMapper{"fine"}}
	results, err := runner.RunHourly(ctx, now, mappers)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Both schemes aggregate the same single fetch, and the hour's raw
	// snapshot is written once rather than once per scheme.
	require.Equal(t, 1, fetches)

	snap, err := store.GetRawSnapshot(ctx, "2025-04-15T09:00", occupancy.ProviderLime)
	require.NoError(t, err)
	require.Len(t, snap.Vehicles, 2)

	for _, scheme := range []string{"coarse", "fine"} {
		doc, err := store.GetDayDocument(ctx, "2025-04-15", scheme)
		require.NoError(t, err)
		require.Equal(t, uint(2), doc["2025-04-15T09:00"][occupancy.ProviderLime]["z1"].Density)
	}
}

func TestRunHourly_HalfHourOffsetTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	store := memory.New()
	ctx := context.Background()

	// Baseline at the previous wall-clock hour; 05:00 UTC is 10:30 IST.
	require.NoError(t, store.PutRawSnapshot(ctx, &storage.RawProviderSnapshot{
		Provider: occupancy.ProviderVeo,
		Hour:     "2025-04-15T10:00",
		Vehicles: vehiclesInZone1("a"),
	}))

	runner := New(store, staticFeeds(map[occupancy.Provider][]feed.VehicleRecord{
		occupancy.ProviderVeo: vehiclesInZone1("a", "b"),
	}), testProviders, loc, 0, nil)

	now := time.Date(2025, 4, 15, 6, 0, 0, 0, time.UTC)
	results, err := runner.RunHourly(ctx, now, []zone.Mapper{stubMapper{"grid"}})
	require.NoError(t, err)
	require.Equal(t, "2025-04-15T11:00", results[0].Hour)

	doc, err := store.GetDayDocument(ctx, "2025-04-15", "grid")
	require.NoError(t, err)
	m := doc["2025-04-15T11:00"][occupancy.ProviderVeo]["z1"]
	require.Equal(t, occupancy.ZoneMetrics{Density: 2, Delta: 1, Churn: 1}, m)
}

func TestRunHourly_AppendsToExistingDocument(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	runner := newTestRunner(store, staticFeeds(map[occupancy.Provider][]feed.VehicleRecord{
		occupancy.ProviderLime: vehiclesInZone1("a"),
	}))

	for h := 6; h <= 8; h++ {
		now := time.Date(2025, 4, 15, h, 0, 0, 0, time.UTC)
		_, err := runHour(ctx, runner, now)
		require.NoError(t, err)
	}

	doc, err := store.GetDayDocument(ctx, "2025-04-15", "grid")
	require.NoError(t, err)
	require.Len(t, doc, 3, "document grows by hour across the day")
}
