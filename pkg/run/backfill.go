package run

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
	"zonesnap/pkg/zone"
)

// BackfillRequest describes one backfill: rebuild the (date, scheme) day
// document from stored raw snapshots. Keys optionally restricts the replay
// to an explicit list of raw snapshot keys instead of listing the whole
// day.
type BackfillRequest struct {
	Date string
	Keys []string
}

// Backfill rebuilds a day document by replaying stored raw snapshots
// through the same calculator and merger as the live path. Snapshots are
// replayed in strict chronological order; each provider's snapshot becomes
// that provider's baseline for the next hour. The rebuilt document fully
// replaces the stored one.
//
// Backfill is idempotent: replaying unchanged raw data yields a
// byte-identical document.
func (r *Runner) Backfill(ctx context.Context, req BackfillRequest, mapper zone.Mapper) (*Result, error) {
	scheme := mapper.Scheme()

	refs, err := r.resolveRefs(ctx, req)
	if err != nil {
		r.metrics.RunsTotal.WithLabelValues("backfill", "failed").Inc()
		return nil, fmt.Errorf("%s: %w", PhaseFailed, err)
	}

	// Chronological replay order is correctness-critical: diffing against
	// anything but the immediately preceding snapshot corrupts deltas.
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Hour != refs[j].Hour {
			return refs[i].Hour < refs[j].Hour
		}
		return refs[i].Provider < refs[j].Provider
	})

	hours, byHour := groupRefsByHour(refs)

	doc := make(occupancy.DayDocument, len(hours))
	baselines := make(map[occupancy.Provider]occupancy.ZoneIDs)
	vehicles := 0
	providers := make(map[occupancy.Provider]struct{})

	for _, hour := range hours {
		perProvider := make(map[occupancy.Provider]occupancy.ZoneMap)
		firstHour := occupancy.IsFirstHour(hour, r.loc, r.startHour)

		for _, ref := range byHour[hour] {
			snap, err := r.store.GetRawSnapshot(ctx, ref.Hour, ref.Provider)
			if errors.Is(err, storage.ErrNotFound) {
				// Listed a moment ago but gone now; skip rather than abort.
				log.Printf("Backfill %s (%s): snapshot %s/%s vanished, skipping", req.Date, scheme, ref.Hour, ref.Provider)
				continue
			}
			if err != nil {
				r.metrics.RunsTotal.WithLabelValues("backfill", "failed").Inc()
				return nil, fmt.Errorf("%s: %w", PhaseFailed, err)
			}

			current, dropped := groupByZone(mapper, snap.Vehicles)
			vehicles += len(snap.Vehicles)
			providers[ref.Provider] = struct{}{}
			r.metrics.VehiclesMapped.Add(float64(len(snap.Vehicles) - dropped))
			r.metrics.VehiclesDropped.Add(float64(dropped))

			var previous occupancy.ZoneIDs
			if !firstHour {
				previous = baselines[ref.Provider]
			}
			perProvider[ref.Provider] = occupancy.ComputeZoneMetrics(current, previous, r.churn[ref.Provider])
			baselines[ref.Provider] = current
		}

		if len(perProvider) == 0 {
			continue
		}
		doc[hour] = occupancy.MergeHour(perProvider)
	}

	if err := r.store.PutDayDocument(ctx, req.Date, scheme, doc); err != nil {
		r.metrics.RunsTotal.WithLabelValues("backfill", "failed").Inc()
		return nil, fmt.Errorf("%s: %w", PhaseFailed, err)
	}

	r.metrics.RunsTotal.WithLabelValues("backfill", "ok").Inc()
	log.Printf("Backfill %s (%s): %s (%d hours, %d providers)", req.Date, scheme, PhaseDone, len(doc), len(providers))
	return &Result{
		Date:      req.Date,
		Scheme:    scheme,
		Providers: len(providers),
		Hours:     len(doc),
		Vehicles:  vehicles,
	}, nil
}

// resolveRefs turns a backfill request into raw snapshot refs, either by
// parsing the explicit key list or by listing the date's stored snapshots.
func (r *Runner) resolveRefs(ctx context.Context, req BackfillRequest) ([]storage.RawSnapshotRef, error) {
	if len(req.Keys) == 0 {
		return r.store.ListRawSnapshots(ctx, req.Date)
	}

	refs := make([]storage.RawSnapshotRef, 0, len(req.Keys))
	for _, key := range req.Keys {
		ref, err := storage.ParseRawSnapshotKey(key)
		if err != nil {
			return nil, err
		}
		if occupancy.DateOf(ref.Hour) != req.Date {
			return nil, fmt.Errorf("key %q is not in date %s", key, req.Date)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// groupRefsByHour splits sorted refs into ordered hours.
func groupRefsByHour(refs []storage.RawSnapshotRef) ([]string, map[string][]storage.RawSnapshotRef) {
	byHour := make(map[string][]storage.RawSnapshotRef)
	var hours []string
	for _, ref := range refs {
		if _, ok := byHour[ref.Hour]; !ok {
			hours = append(hours, ref.Hour)
		}
		byHour[ref.Hour] = append(byHour[ref.Hour], ref)
	}
	return hours, byHour
}
