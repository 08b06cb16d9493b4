package config

import "time"

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultDataDir     = "./data/zonesnap"
	DefaultMaxMemoryMB = 48

	// DefaultMaxStorageGB is a conservative ceiling for self-hosted
	// deployments; raw snapshots dominate usage and retention pruning
	// keeps them bounded.
	DefaultMaxStorageGB = 1
)

// Aggregation defaults
const (
	// DefaultTimezone anchors hour stamps and the day boundary.
	DefaultTimezone = "America/New_York"

	// DefaultStartOfDayHour is the day's designated first hour; delta and
	// churn are forced to zero there.
	DefaultStartOfDayHour = 0
)

// Timeouts and intervals
const (
	FeedFetchTimeout   = 20 * time.Second
	RunTimeout         = 2 * time.Minute
	BackfillTimeout    = 10 * time.Minute
	StatsTimeout       = 5 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 30 * time.Second
	ShutdownTimeout    = 30 * time.Second
	BadgerGCInterval   = 10 * time.Minute
)

// Backfill limits
const (
	// MaxBackfillKeys bounds an explicit key list in a backfill request.
	MaxBackfillKeys = 24 * 4
)

// Retention
const (
	// DefaultRetentionDays is how long raw provider snapshots are kept.
	// Day documents are never pruned; they are the product, raw snapshots
	// are the replayable input.
	DefaultRetentionDays = 30

	RetentionInterval = 24 * time.Hour
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 64
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
