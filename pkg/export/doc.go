// Package export provides day-archive backup and restore.
//
// # Overview
//
// The export package moves one day of raw provider snapshots in and out
// of the store as a single JSON archive. This is useful for:
//   - Backing up raw snapshots before retention prunes them
//   - Migrating data between instances
//   - Seeding a fresh instance with historical data for backfill
//
// Day documents are deliberately not part of the archive: they are
// derived data, rebuilt deterministically from raw snapshots with a
// backfill after import.
//
// # HTTP API
//
// Export endpoint: GET /v1/export/{date}
//
//	curl "http://localhost:8080/v1/export/2026-03-14" -o 2026-03-14.json
//
// Import endpoint: POST /v1/import
//
//	curl -X POST "http://localhost:8080/v1/import" \
//	  -H "Content-Type: application/json" \
//	  --data-binary @2026-03-14.json
//
// Then rebuild the day documents:
//
//	curl -X POST "http://localhost:8080/v1/backfill" \
//	  -d '{"date":"2026-03-14","scheme":"h3-9"}'
package export
