// Package feed fetches per-provider GBFS vehicle feeds and normalizes them
// into validated vehicle records. Providers are fetched concurrently; one
// provider's failure never aborts the others.
package feed

import (
	"errors"

	"zonesnap/pkg/occupancy"
)

// ErrAllProvidersFailed is returned by FetchAll when no configured provider
// produced a usable feed. An hourly run treats this as fatal and writes
// nothing.
var ErrAllProvidersFailed = errors.New("all provider feeds failed")

// VehicleRecord is one vehicle's point location as reported by a feed.
// Records are ephemeral: they only persist as part of a raw provider
// snapshot.
type VehicleRecord struct {
	ID  string  `json:"id" validate:"required"`
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// ProviderSpec configures one feed provider. Churn capability is
// configuration, not compiled-in state.
type ProviderSpec struct {
	Name  occupancy.Provider `yaml:"name"`
	URL   string             `yaml:"url"`
	Churn bool               `yaml:"churn"`
}

// gbfsVehicle is the wire shape of one entry in a GBFS free_bike_status
// feed. Only id and coordinates are carried forward.
type gbfsVehicle struct {
	BikeID     string  `json:"bike_id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	IsReserved int     `json:"is_reserved"`
	IsDisabled int     `json:"is_disabled"`
}

// gbfsResponse is the wire shape of a GBFS free_bike_status feed.
type gbfsResponse struct {
	LastUpdated int64 `json:"last_updated"`
	Data        struct {
		Bikes []gbfsVehicle `json:"bikes"`
	} `json:"data"`
}

// Result pairs a provider with its fetch outcome. Exactly one of Vehicles
// or Err is meaningful.
type Result struct {
	Provider occupancy.Provider
	Vehicles []VehicleRecord
	Err      error
}
