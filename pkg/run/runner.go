// Package run orchestrates aggregation runs: the live hourly path
// (fetch -> map -> diff -> merge -> persist) and the backfill replay that
// rebuilds a day document from stored raw snapshots.
package run

import (
	"time"

	"zonesnap/pkg/feed"
	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
	"zonesnap/pkg/zone"
)

// Phase names the stages of an aggregation run. A run fails out of
// FETCHING only when every provider fails, and out of PERSISTING on any
// storage error other than not-found.
type Phase string

const (
	PhaseFetching   Phase = "FETCHING"
	PhaseMapping    Phase = "MAPPING"
	PhaseDiffing    Phase = "DIFFING"
	PhaseMerging    Phase = "MERGING"
	PhasePersisting Phase = "PERSISTING"
	PhaseDone       Phase = "DONE"
	PhaseFailed     Phase = "FAILED"
)

// Result summarizes a completed run. API consumers see only this; detailed
// failure causes stay in the operational logs.
type Result struct {
	Hour      string `json:"hour,omitempty"`
	Date      string `json:"date"`
	Scheme    string `json:"scheme"`
	Providers int    `json:"providers"`
	Hours     int    `json:"hours"`
	Vehicles  int    `json:"vehicles"`
}

// Runner executes aggregation runs against a snapshot store. All
// computation outside the store is pure and stateless per run; the store
// is the only shared mutable resource.
type Runner struct {
	store   storage.Store
	fetcher feed.Fetcher
	churn   map[occupancy.Provider]bool

	loc       *time.Location
	startHour int

	metrics *Metrics
}

// New creates a Runner. providers supplies the churn-capability flags;
// loc and startHour define the day boundary used for the first-hour
// variant.
func New(store storage.Store, fetcher feed.Fetcher, providers []feed.ProviderSpec, loc *time.Location, startHour int, metrics *Metrics) *Runner {
	churn := make(map[occupancy.Provider]bool, len(providers))
	for _, p := range providers {
		churn[p.Name] = p.Churn
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Runner{
		store:     store,
		fetcher:   fetcher,
		churn:     churn,
		loc:       loc,
		startHour: startHour,
		metrics:   metrics,
	}
}

// groupByZone bins vehicles into per-zone id sets. Vehicles whose
// coordinates match no zone are dropped silently; the count is returned
// for metrics only.
func groupByZone(m zone.Mapper, vehicles []feed.VehicleRecord) (occupancy.ZoneIDs, int) {
	zones := make(occupancy.ZoneIDs)
	dropped := 0
	for _, v := range vehicles {
		zoneID, ok := m.Map(v.Lat, v.Lon)
		if !ok {
			dropped++
			continue
		}
		zones.Add(zoneID, v.ID)
	}
	return zones, dropped
}
