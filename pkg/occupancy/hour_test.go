package occupancy

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHourStamp_TruncatesToHour(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ts := time.Date(2025, 4, 15, 12, 47, 31, 0, loc)
	require.Equal(t, "2025-04-15T12:00", HourStamp(ts, loc))
}

func TestHourStamp_ConvertsTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 16:05 UTC on an EDT day is 12:05 local.
	ts := time.Date(2025, 4, 15, 16, 5, 0, 0, time.UTC)
	require.Equal(t, "2025-04-15T12:00", HourStamp(ts, loc))
}

func TestHourStamp_ZeroesMinutesInHalfHourOffsetZones(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 06:00 UTC is 11:30 IST (UTC+5:30); the stamp must still land on the
	// wall-clock hour and round-trip through ParseHourStamp.
	ts := time.Date(2025, 4, 15, 6, 0, 0, 0, time.UTC)
	stamp := HourStamp(ts, loc)
	require.Equal(t, "2025-04-15T11:00", stamp)

	parsed, err := ParseHourStamp(stamp, loc)
	require.NoError(t, err)
	require.Equal(t, 11, parsed.Hour())
}

func TestParseHourStamp_RejectsMinutes(t *testing.T) {
	_, err := ParseHourStamp("2025-04-15T12:30", time.UTC)
	require.Error(t, err)

	_, err = ParseHourStamp("not-a-stamp", time.UTC)
	require.Error(t, err)

	ts, err := ParseHourStamp("2025-04-15T12:00", time.UTC)
	require.NoError(t, err)
	require.Equal(t, 12, ts.Hour())
}

func TestHourStamp_LexicographicOrderIsChronological(t *testing.T) {
	base := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)

	stamps := make([]string, 0, 24)
	for h := 0; h < 24; h++ {
		stamps = append(stamps, HourStamp(base.Add(time.Duration(h)*time.Hour), time.UTC))
	}

	require.True(t, sort.StringsAreSorted(stamps))
	require.Equal(t, "2025-04-15T00:00", stamps[0])
	require.Equal(t, "2025-04-15T23:00", stamps[23])
}

func TestDateOf(t *testing.T) {
	require.Equal(t, "2025-04-15", DateOf("2025-04-15T12:00"))
}

func TestIsFirstHour(t *testing.T) {
	require.True(t, IsFirstHour("2025-04-15T00:00", time.UTC, 0))
	require.False(t, IsFirstHour("2025-04-15T01:00", time.UTC, 0))
	require.True(t, IsFirstHour("2025-04-15T05:00", time.UTC, 5))
	require.False(t, IsFirstHour("garbage", time.UTC, 0))
}
