package feed

import (
	"context"
	"log"
	"sync"

	"zonesnap/pkg/occupancy"
)

// Fetcher is the run-facing contract for obtaining vehicle feeds.
type Fetcher interface {
	// FetchAll fetches every configured provider concurrently and returns
	// the successful subset. Failed providers are logged and omitted from
	// the map. ErrAllProvidersFailed is returned when the map would be
	// empty.
	FetchAll(ctx context.Context) (map[occupancy.Provider][]VehicleRecord, error)
}

// MultiFetcher fans out one fetch per configured provider and fans the
// results back in.
type MultiFetcher struct {
	client    *Client
	providers []ProviderSpec
}

// NewMultiFetcher creates a fetcher over the configured provider roster.
func NewMultiFetcher(client *Client, providers []ProviderSpec) *MultiFetcher {
	return &MultiFetcher{client: client, providers: providers}
}

// Providers returns the configured roster.
func (f *MultiFetcher) Providers() []ProviderSpec { return f.providers }

// FetchAll implements Fetcher. A provider that times out or errors is
// treated as missing data this hour, not retried; retries belong to the
// external scheduler.
func (f *MultiFetcher) FetchAll(ctx context.Context) (map[occupancy.Provider][]VehicleRecord, error) {
	results := make(chan Result, len(f.providers))

	var wg sync.WaitGroup
	for _, spec := range f.providers {
		wg.Add(1)
		go func(spec ProviderSpec) {
			defer wg.Done()
			vehicles, err := f.client.Fetch(ctx, spec)
			results <- Result{Provider: spec.Name, Vehicles: vehicles, Err: err}
		}(spec)
	}
	wg.Wait()
	close(results)

	fetched := make(map[occupancy.Provider][]VehicleRecord, len(f.providers))
	for res := range results {
		if res.Err != nil {
			log.Printf("Provider %s feed failed: %v", res.Provider, res.Err)
			continue
		}
		fetched[res.Provider] = res.Vehicles
	}

	if len(fetched) == 0 {
		return nil, ErrAllProvidersFailed
	}
	return fetched, nil
}
