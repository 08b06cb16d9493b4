// Package retention prunes raw provider snapshots past their retention
// window. Day documents are never pruned: they are the served product,
// while raw snapshots only exist to diff against and to replay.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
)

// Pruner deletes raw snapshots older than the retention window.
type Pruner struct {
	store storage.Store
	days  int
	loc   *time.Location
}

// New creates a pruner keeping raw snapshots for the given number of
// days. Days of zero or less disables pruning.
func New(store storage.Store, days int, loc *time.Location) *Pruner {
	return &Pruner{store: store, days: days, loc: loc}
}

// PruneOnce deletes every raw snapshot whose date falls strictly before
// the retention cutoff and returns how many were deleted. A backfill for
// a pruned date still works against whatever raw snapshots survive; a
// fully pruned date backfills to an empty document, so the stored day
// documents are left alone.
func (p *Pruner) PruneOnce(ctx context.Context, now time.Time) (int, error) {
	if p.days <= 0 {
		return 0, nil
	}

	stats, err := p.store.Stats(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read stats before prune: %w", err)
	}
	if stats.OldestHour == "" {
		return 0, nil
	}

	cutoff := now.In(p.loc).AddDate(0, 0, -p.days).Format(occupancy.DateLayout)
	oldest := occupancy.DateOf(stats.OldestHour)
	if oldest >= cutoff {
		return 0, nil
	}

	start, err := time.ParseInLocation(occupancy.DateLayout, oldest, p.loc)
	if err != nil {
		return 0, fmt.Errorf("malformed oldest hour %q: %w", stats.OldestHour, err)
	}

	deleted := 0
	for d := start; d.Format(occupancy.DateLayout) < cutoff; d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		date := d.Format(occupancy.DateLayout)
		n, err := p.store.DeleteRawSnapshots(ctx, date)
		if err != nil {
			return deleted, fmt.Errorf("failed to prune %s: %w", date, err)
		}
		if n > 0 {
			log.Printf("Retention: pruned %d raw snapshots for %s", n, date)
		}
		deleted += n
	}
	return deleted, nil
}
