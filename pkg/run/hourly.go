package run

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
	"zonesnap/pkg/zone"
)

// RunHourly executes one live aggregation run for "now" across every given
// zone scheme: FETCHING -> PERSISTING raw -> per scheme MAPPING -> DIFFING
// -> MERGING -> PERSISTING.
//
// Feeds are fetched once and shared: every scheme aggregates the same
// vehicle positions, and the hour's raw snapshots are written exactly once
// regardless of how many schemes run. Partial provider failures are
// tolerated; only a total fetch failure or a storage error aborts the run.
// On the day's first hour the baseline lookup is skipped entirely so delta
// and churn are zero for every provider, even when a previous-day snapshot
// exists.
func (r *Runner) RunHourly(ctx context.Context, now time.Time, mappers []zone.Mapper) ([]*Result, error) {
	hour := occupancy.HourStamp(now, r.loc)
	date := occupancy.DateOf(hour)

	fail := func(err error) ([]*Result, error) {
		r.metrics.RunsTotal.WithLabelValues("hourly", "failed").Inc()
		return nil, fmt.Errorf("%s: %w", PhaseFailed, err)
	}

	log.Printf("Hourly run %s: %s", hour, PhaseFetching)
	fetched, err := r.fetcher.FetchAll(ctx)
	if err != nil {
		return fail(err)
	}
	missing := len(r.churn) - len(fetched)
	if missing > 0 {
		r.metrics.ProviderFails.Add(float64(missing))
	}
	vehicles := 0
	for _, list := range fetched {
		vehicles += len(list)
	}

	// Raw snapshots go first, before any per-scheme aggregation: the hour's
	// snapshot must not depend on which scheme runs, and if a document write
	// fails the snapshots still serve as the next hour's baseline and as
	// backfill input.
	log.Printf("Hourly run %s: %s raw (%d providers)", hour, PhasePersisting, len(fetched))
	for provider, list := range fetched {
		snap := &storage.RawProviderSnapshot{
			Provider: provider,
			Hour:     hour,
			Vehicles: list,
		}
		if err := r.store.PutRawSnapshot(ctx, snap); err != nil {
			return fail(err)
		}
	}

	firstHour := occupancy.IsFirstHour(hour, r.loc, r.startHour)
	results := make([]*Result, 0, len(mappers))
	for _, mapper := range mappers {
		scheme := mapper.Scheme()

		log.Printf("Hourly run %s (%s): %s", hour, scheme, PhaseMapping)
		current := make(map[occupancy.Provider]occupancy.ZoneIDs, len(fetched))
		for provider, list := range fetched {
			zones, dropped := groupByZone(mapper, list)
			current[provider] = zones
			r.metrics.VehiclesMapped.Add(float64(len(list) - dropped))
			r.metrics.VehiclesDropped.Add(float64(dropped))
		}

		log.Printf("Hourly run %s (%s): %s", hour, scheme, PhaseDiffing)
		perProvider := make(map[occupancy.Provider]occupancy.ZoneMap, len(current))
		for provider, zones := range current {
			previous, err := r.loadBaseline(ctx, hour, provider, mapper, firstHour)
			if err != nil {
				return fail(err)
			}
			perProvider[provider] = occupancy.ComputeZoneMetrics(zones, previous, r.churn[provider])
		}

		log.Printf("Hourly run %s (%s): %s", hour, scheme, PhaseMerging)
		snapshot := occupancy.MergeHour(perProvider)

		log.Printf("Hourly run %s (%s): %s", hour, scheme, PhasePersisting)
		if err := r.appendHour(ctx, date, scheme, hour, snapshot); err != nil {
			return fail(err)
		}

		results = append(results, &Result{
			Hour:      hour,
			Date:      date,
			Scheme:    scheme,
			Providers: len(fetched),
			Hours:     1,
			Vehicles:  vehicles,
		})
	}

	r.metrics.RunsTotal.WithLabelValues("hourly", "ok").Inc()
	log.Printf("Hourly run %s: %s (%d schemes, %d providers, %d vehicles)", hour, PhaseDone, len(mappers), len(fetched), vehicles)
	return results, nil
}

// loadBaseline maps the previous hour's raw snapshot for a provider into
// zone id sets. A nil return with nil error means no baseline: either this
// is the day's first hour, or last hour's snapshot is absent. Both are
// normal; any other storage error is fatal.
func (r *Runner) loadBaseline(ctx context.Context, hour string, provider occupancy.Provider, mapper zone.Mapper, firstHour bool) (occupancy.ZoneIDs, error) {
	if firstHour {
		return nil, nil
	}

	t, err := occupancy.ParseHourStamp(hour, r.loc)
	if err != nil {
		return nil, err
	}
	prevHour := occupancy.HourStamp(t.Add(-time.Hour), r.loc)

	snap, err := r.store.GetRawSnapshot(ctx, prevHour, provider)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	zones, _ := groupByZone(mapper, snap.Vehicles)
	return zones, nil
}

// appendHour merges the hour's snapshot into the scheme's day document.
func (r *Runner) appendHour(ctx context.Context, date, scheme, hour string, snapshot occupancy.HourSnapshot) error {
	doc, err := r.store.GetDayDocument(ctx, date, scheme)
	if err != nil {
		return err
	}
	doc[hour] = snapshot
	return r.store.PutDayDocument(ctx, date, scheme, doc)
}
