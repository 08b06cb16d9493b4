package server

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"zonesnap/pkg/config"
	"zonesnap/pkg/feed"
	"zonesnap/pkg/run"
	"zonesnap/pkg/storage"
	"zonesnap/pkg/storage/badger"
	"zonesnap/pkg/zone"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds server configuration.
type Config struct {
	MaxMemoryMB   int64
	MaxStorageGB  int64
	RetentionDays int
	DataDir       string
	ConfigFile    string
	Port          string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() Config {
	maxMemoryMB := getEnvInt64("ZONESNAP_MAX_MEMORY_MB", config.DefaultMaxMemoryMB)
	maxStorageGB := getEnvInt64("ZONESNAP_MAX_STORAGE_GB", config.DefaultMaxStorageGB)
	retentionDays := getEnvInt64("ZONESNAP_RETENTION_DAYS", config.DefaultRetentionDays)
	port := getPort()

	dataDir := os.Getenv("ZONESNAP_DATA_DIR")
	if dataDir == "" {
		dataDir = config.DefaultDataDir
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	return Config{
		MaxMemoryMB:   maxMemoryMB,
		MaxStorageGB:  maxStorageGB,
		RetentionDays: int(retentionDays),
		DataDir:       dataDir,
		ConfigFile:    os.Getenv("ZONESNAP_CONFIG"),
		Port:          port,
	}
}

// InitializeStorage initializes BadgerDB storage with the given configuration.
func InitializeStorage(cfg Config) (storage.Store, error) {
	log.Println("Initializing BadgerDB storage with Snappy compression...")
	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Println("BadgerDB storage initialized successfully")
	return store, nil
}

// InitializeRunner builds the feed fetcher, zone mappers, and the run
// orchestrator from the roster file.
func InitializeRunner(roster *config.File, store storage.Store, reg prometheus.Registerer) (*run.Runner, map[string]zone.Mapper, *time.Location, error) {
	loc, err := time.LoadLocation(roster.Timezone)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load timezone %q: %w", roster.Timezone, err)
	}

	mappers := make(map[string]zone.Mapper, len(roster.Schemes))
	for _, spec := range roster.Schemes {
		m, err := zone.NewMapper(spec)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("scheme %q: %w", spec.Name, err)
		}
		mappers[m.Scheme()] = m
	}
	log.Printf("Zone mappers ready (%d schemes)", len(mappers))

	client := feed.NewClient(config.FeedFetchTimeout)
	fetcher := feed.NewMultiFetcher(client, roster.Providers)
	log.Printf("Feed fetcher created (%d providers)", len(roster.Providers))

	metrics := run.NewMetrics(reg)
	runner := run.New(store, fetcher, roster.Providers, loc, roster.StartOfDayHour, metrics)
	return runner, mappers, loc, nil
}

// getEnvInt64 gets an int64 from environment variable or returns default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

// getPort gets the server port from PORT environment variable or returns default.
func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return config.DefaultPort
}
