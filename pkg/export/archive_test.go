package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"zonesnap/pkg/feed"
	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
	"zonesnap/pkg/storage/memory"
)

func seedDay(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()
	snaps := []*storage.RawProviderSnapshot{
		{Provider: occupancy.ProviderVeo, Hour: "2026-03-14T09:00", Vehicles: []feed.VehicleRecord{
			{ID: "v1", Lat: 38.9, Lon: -77.0},
		}},
		{Provider: occupancy.ProviderLime, Hour: "2026-03-14T10:00", Vehicles: []feed.VehicleRecord{
			{ID: "l1", Lat: 38.91, Lon: -77.01},
			{ID: "l2", Lat: 38.92, Lon: -77.02},
		}},
	}
	for _, snap := range snaps {
		require.NoError(t, store.PutRawSnapshot(ctx, snap))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := memory.New()
	seedDay(t, src)

	var buf bytes.Buffer
	result, err := NewExporter(src).ExportDay(context.Background(), &buf, "2026-03-14")
	require.NoError(t, err)
	require.Equal(t, 2, result.Snapshots)

	dst := memory.New()
	imported, err := NewImporter(dst).ImportDay(context.Background(), &buf)
	require.NoError(t, err)
	require.Equal(t, 2, imported.Snapshots)
	require.Empty(t, imported.Errors)

	snap, err := dst.GetRawSnapshot(context.Background(), "2026-03-14T10:00", occupancy.ProviderLime)
	require.NoError(t, err)
	require.Len(t, snap.Vehicles, 2)
}

func TestExportEmptyDay(t *testing.T) {
	var buf bytes.Buffer
	result, err := NewExporter(memory.New()).ExportDay(context.Background(), &buf, "2026-03-14")
	require.NoError(t, err)
	require.Zero(t, result.Snapshots)

	var archive DayArchive
	require.NoError(t, json.Unmarshal(buf.Bytes(), &archive))
	require.Equal(t, ArchiveVersion, archive.Version)
	require.Equal(t, "2026-03-14", archive.Date)
	require.Empty(t, archive.Snapshots)
}

func TestImportRejectsInvalidSnapshots(t *testing.T) {
	archive := DayArchive{
		Version:    ArchiveVersion,
		Date:       "2026-03-14",
		ExportedAt: time.Now().UTC(),
		Snapshots: []*storage.RawProviderSnapshot{
			// Wrong date
			{Provider: occupancy.ProviderVeo, Hour: "2026-03-15T09:00"},
			// Pseudo-provider
			{Provider: occupancy.ProviderTotal, Hour: "2026-03-14T09:00"},
			// Valid
			{Provider: occupancy.ProviderVeo, Hour: "2026-03-14T09:00", Vehicles: []feed.VehicleRecord{
				{ID: "v1", Lat: 38.9, Lon: -77.0},
			}},
		},
	}
	data, err := json.Marshal(archive)
	require.NoError(t, err)

	store := memory.New()
	result, err := NewImporter(store).ImportDay(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 1, result.Snapshots)
	require.Len(t, result.Errors, 2)

	refs, err := store.ListRawSnapshots(context.Background(), "2026-03-14")
	require.NoError(t, err)
	require.Len(t, refs, 1)
}

func TestImportRejectsWrongVersion(t *testing.T) {
	data := []byte(`{"version":99,"date":"2026-03-14","snapshots":[]}`)
	_, err := NewImporter(memory.New()).ImportDay(context.Background(), bytes.NewReader(data))
	require.Error(t, err)
}
