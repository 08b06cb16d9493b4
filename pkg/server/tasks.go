package server

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"zonesnap/pkg/config"
	"zonesnap/pkg/retention"
	"zonesnap/pkg/run"
	"zonesnap/pkg/server/monitor"
	"zonesnap/pkg/storage"
	"zonesnap/pkg/storage/badger"
	"zonesnap/pkg/zone"
)

// RunHourlySchedule fires an aggregation run for every scheme at the top
// of each hour. A failed run is retried with exponential backoff inside
// the same hour; after the retries are spent the hour is abandoned and
// left for backfill.
func RunHourlySchedule(ctx context.Context, runner *run.Runner, mappers map[string]zone.Mapper, hub *SnapshotHub, mon *monitor.RunMonitor, wg *sync.WaitGroup) {
	defer wg.Done()

	// One run covers every scheme off a single feed fetch: the hour's raw
	// snapshots are written once, never per scheme.
	schemes := make([]string, 0, len(mappers))
	for name := range mappers {
		schemes = append(schemes, name)
	}
	sort.Strings(schemes)
	ordered := make([]zone.Mapper, 0, len(schemes))
	for _, name := range schemes {
		ordered = append(ordered, mappers[name])
	}

	runWithRetry := func(ctx context.Context, now time.Time) {
		maxRetries := 3
		baseDelay := 30 * time.Second

		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := baseDelay * time.Duration(1<<(attempt-1)) // 30s, 60s, 120s
				log.Printf("Retrying hourly run in %v (attempt %d/%d)...", delay, attempt+1, maxRetries+1)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}

			start := time.Now()
			runCtx, cancel := context.WithTimeout(ctx, config.RunTimeout)
			results, err := runner.RunHourly(runCtx, now, ordered)
			cancel()

			if err == nil {
				mon.RecordSuccess()
				log.Printf("Scheduled run completed in %v (%d schemes)", time.Since(start).Round(time.Millisecond), len(results))
				hub.BroadcastRuns("run_complete", results)
				return
			}

			mon.RecordFailure(err)
			log.Printf("Scheduled run failed (attempt %d/%d): %v", attempt+1, maxRetries+1, err)

			if status := mon.Status(); status.ConsecutiveErrors > 3 {
				log.Printf("ALERT: Scheduled runs have been failing! Consecutive errors: %d", status.ConsecutiveErrors)
			}
		}

		log.Printf("Scheduled run abandoned after %d attempts; hour recoverable via backfill", maxRetries+1)
	}

	log.Printf("Hourly scheduler started (%d schemes, next run at top of hour)", len(mappers))

	for {
		now := time.Now()
		next := now.Truncate(time.Hour).Add(time.Hour)

		select {
		case <-ctx.Done():
			log.Println("Stopping hourly scheduler")
			return
		case <-time.After(next.Sub(now)):
		}

		fireTime := time.Now()
		log.Printf("Scheduled hourly run started (%s)", fireTime.Format("15:04"))
		runWithRetry(ctx, fireTime)
	}
}

// RunRetention prunes expired raw snapshots once a day, with one prune
// shortly after startup to catch up after downtime.
func RunRetention(ctx context.Context, pruner *retention.Pruner, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.RetentionInterval)
	defer ticker.Stop()

	prune := func() {
		start := time.Now()
		deleted, err := pruner.PruneOnce(ctx, time.Now())
		if err != nil {
			log.Printf("Retention prune failed: %v", err)
			return
		}
		if deleted > 0 {
			log.Printf("Retention prune completed in %v (%d raw snapshots deleted)", time.Since(start).Round(time.Millisecond), deleted)
		}
	}

	log.Printf("Retention scheduler started (runs every %v)", config.RetentionInterval)
	prune()

	for {
		select {
		case <-ticker.C:
			prune()
		case <-ctx.Done():
			log.Println("Stopping retention scheduler")
			return
		}
	}
}

// RunBadgerGC runs BadgerDB garbage collection periodically to reclaim
// disk space. BadgerDB's value log accumulates superseded day-document
// versions; without GC disk usage grows without bound.
func RunBadgerGC(store storage.Store, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	// Type assert to get underlying BadgerDB
	badgerStore, ok := store.(*badger.Store)
	if !ok {
		log.Println("Storage is not BadgerDB, skipping GC")
		return
	}

	log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			// 0.5 discard ratio: rewrite a value log file once half of it is garbage
			log.Println("Running BadgerDB garbage collection...")
			start := time.Now()

			// RunValueLogGC is limited to one iteration per tick to avoid blocking
			err := badgerStore.RunGC(0.5)
			if err != nil {
				// Not an error if no GC was needed
				log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
			} else {
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			}
		case <-stop:
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}
