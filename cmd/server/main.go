package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"zonesnap/pkg/config"
	"zonesnap/pkg/export"
	"zonesnap/pkg/retention"
	"zonesnap/pkg/server"
	"zonesnap/pkg/server/monitor"
)

func main() {
	log.Println("Starting zonesnap server...")

	cfg := server.LoadConfig()
	log.Printf("Data directory: %s", cfg.DataDir)

	roster, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := roster.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	log.Printf("Roster loaded: %d providers, %d schemes, timezone %s",
		len(roster.Providers), len(roster.Schemes), roster.Timezone)

	store, err := server.InitializeStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	runner, mappers, loc, err := server.InitializeRunner(roster, store, reg)
	if err != nil {
		log.Fatalf("Failed to initialize runner: %v", err)
	}

	runMonitor := &monitor.RunMonitor{}
	storageMonitor := monitor.NewStorageMonitor(cfg.DataDir, cfg.MaxStorageGB*1024*1024*1024)
	log.Printf("Storage monitor enabled: %d GB max", cfg.MaxStorageGB)

	hub := server.NewSnapshotHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	log.Println("WebSocket hub started for run updates")

	// Hourly aggregation scheduler
	wg.Add(1)
	go server.RunHourlySchedule(ctx, runner, mappers, hub, runMonitor, &wg)

	// Raw snapshot retention pruning
	pruner := retention.New(store, cfg.RetentionDays, loc)
	wg.Add(1)
	go server.RunRetention(ctx, pruner, &wg)

	// BadgerDB garbage collection (reclaims disk space)
	stopGC := make(chan bool)
	wg.Add(1)
	go server.RunBadgerGC(store, stopGC, &wg)

	router := mux.NewRouter()
	handler := server.NewHandler(store, runner, mappers, hub, loc, runMonitor, storageMonitor)
	exportHandler := export.NewHandler(store, loc)
	server.SetupRoutes(router, handler, exportHandler, hub, reg, cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.Port)
		log.Println("API endpoints:")
		log.Println("   POST /v1/runs                      - Trigger an hourly aggregation run")
		log.Println("   POST /v1/backfill                  - Rebuild a day document from raw snapshots")
		log.Println("   GET  /v1/snapshots/{date}/{scheme} - Read a day document")
		log.Println("   GET  /v1/stats                     - Storage statistics")
		log.Println("   GET  /metrics                      - Prometheus endpoint")
		log.Println("Server ready to accept requests")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received...")

	// Cancel context before wg.Wait() so hub and scheduler goroutines exit
	log.Println("Stopping background tasks...")
	cancel()
	close(stopGC)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	log.Println("Gracefully shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown warning: %v", err)
	}

	log.Println("Waiting for background tasks to complete...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("zonesnap server exited cleanly")
}
