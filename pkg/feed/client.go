package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"zonesnap/pkg/occupancy"
)

// Client fetches GBFS free_bike_status feeds.
type Client struct {
	httpClient *http.Client
	validate   *validator.Validate
}

// NewClient creates a feed client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
	}
}

// Fetch retrieves and normalizes one provider's vehicle list. Malformed
// records are rejected individually; the feed itself fails only on
// transport, status or decode errors.
func (c *Client) Fetch(ctx context.Context, spec ProviderSpec) ([]VehicleRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL for %s: %w", spec.Name, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s feed: %w", spec.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s feed", resp.StatusCode, spec.Name)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s feed body: %w", spec.Name, err)
	}

	var payload gbfsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s feed: %w", spec.Name, err)
	}

	return c.normalize(spec.Name, payload.Data.Bikes), nil
}

// normalize converts wire records into validated VehicleRecords, dropping
// malformed entries rather than failing the whole feed.
func (c *Client) normalize(provider occupancy.Provider, bikes []gbfsVehicle) []VehicleRecord {
	vehicles := make([]VehicleRecord, 0, len(bikes))
	dropped := 0

	for _, b := range bikes {
		v := VehicleRecord{ID: b.BikeID, Lat: b.Lat, Lon: b.Lon}
		if err := c.validate.Struct(v); err != nil {
			dropped++
			continue
		}
		vehicles = append(vehicles, v)
	}

	if dropped > 0 {
		log.Printf("Dropped %d malformed records from %s feed (%d kept)", dropped, provider, len(vehicles))
	}
	return vehicles
}
