package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zonesnap/pkg/occupancy"
)

const limePayload = `{
	"last_updated": 1744723200,
	"data": {"bikes": [
		{"bike_id": "a", "lat": 38.90, "lon": -77.03, "is_reserved": 0, "is_disabled": 0},
		{"bike_id": "b", "lat": 38.91, "lon": -77.04, "is_reserved": 0, "is_disabled": 0}
	]}
}`

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetch_Normalizes(t *testing.T) {
	srv := feedServer(t, http.StatusOK, limePayload)
	client := NewClient(2 * time.Second)

	vehicles, err := client.Fetch(context.Background(), ProviderSpec{Name: occupancy.ProviderLime, URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	require.Equal(t, VehicleRecord{ID: "a", Lat: 38.90, Lon: -77.03}, vehicles[0])
}

func TestClientFetch_RejectsMalformedRecords(t *testing.T) {
	// Missing id and out-of-range coordinates are dropped per record.
	body := `{"data": {"bikes": [
		{"bike_id": "", "lat": 38.9, "lon": -77.0},
		{"bike_id": "bad-lat", "lat": 99.0, "lon": -77.0},
		{"bike_id": "bad-lon", "lat": 38.9, "lon": -200.0},
		{"bike_id": "ok", "lat": 38.9, "lon": -77.0}
	]}}`
	srv := feedServer(t, http.StatusOK, body)
	client := NewClient(2 * time.Second)

	vehicles, err := client.Fetch(context.Background(), ProviderSpec{Name: occupancy.ProviderVeo, URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	require.Equal(t, "ok", vehicles[0].ID)
}

func TestClientFetch_HTTPError(t *testing.T) {
	srv := feedServer(t, http.StatusBadGateway, "upstream down")
	client := NewClient(2 * time.Second)

	_, err := client.Fetch(context.Background(), ProviderSpec{Name: occupancy.ProviderLime, URL: srv.URL})
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 502")
}

func TestFetchAll_PartialFailureTolerated(t *testing.T) {
	good := feedServer(t, http.StatusOK, limePayload)
	bad := feedServer(t, http.StatusInternalServerError, "boom")

	fetcher := NewMultiFetcher(NewClient(2*time.Second), []ProviderSpec{
		{Name: occupancy.ProviderLime, URL: good.URL},
		{Name: occupancy.ProviderVeo, URL: bad.URL},
	})

	fetched, err := fetcher.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	require.Contains(t, fetched, occupancy.ProviderLime)
	require.NotContains(t, fetched, occupancy.ProviderVeo)
}

func TestFetchAll_AllFailedIsFatal(t *testing.T) {
	bad := feedServer(t, http.StatusInternalServerError, "boom")

	fetcher := NewMultiFetcher(NewClient(2*time.Second), []ProviderSpec{
		{Name: occupancy.ProviderLime, URL: bad.URL},
		{Name: occupancy.ProviderVeo, URL: bad.URL},
	})

	_, err := fetcher.FetchAll(context.Background())
	require.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestFetchAll_TimeoutIsProviderFailure(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte(limePayload))
	}))
	t.Cleanup(slow.Close)
	good := feedServer(t, http.StatusOK, limePayload)

	fetcher := NewMultiFetcher(NewClient(50*time.Millisecond), []ProviderSpec{
		{Name: occupancy.ProviderLime, URL: slow.URL},
		{Name: occupancy.ProviderHopp, URL: good.URL},
	})

	fetched, err := fetcher.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	require.Contains(t, fetched, occupancy.ProviderHopp)
}
