// Command feedsim serves fake GBFS free_bike_status feeds for local
// development. Point a zonesnap roster at it:
//
//	providers:
//	  - name: LIME
//	    url: http://localhost:3001/lime
//	  - name: VEO
//	    url: http://localhost:3001/veo
//	    churn: true
//	  - name: HOPP
//	    url: http://localhost:3001/hopp
//	    churn: true
//
// Each fleet drifts around downtown DC between requests, and a slice of
// every fleet is swapped out over time so diffs show nonzero delta and
// churn.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

const (
	defaultPort = "3001"

	// Downtown DC, roughly the White House
	centerLat = 38.8977
	centerLon = -77.0365

	// Fleet spread in degrees (~2km)
	spread = 0.02

	// How far a vehicle moves per tick
	driftStep = 0.0005

	tickInterval = 30 * time.Second
)

type gbfsVehicle struct {
	BikeID     string  `json:"bike_id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	IsReserved int     `json:"is_reserved"`
	IsDisabled int     `json:"is_disabled"`
}

type gbfsResponse struct {
	LastUpdated int64 `json:"last_updated"`
	Data        struct {
		Bikes []gbfsVehicle `json:"bikes"`
	} `json:"data"`
}

// fleet is one provider's simulated vehicle population.
type fleet struct {
	prefix string
	size   int

	mu       sync.Mutex
	vehicles []gbfsVehicle
	nextID   int
	rng      *rand.Rand
}

func newFleet(prefix string, size int, seed int64) *fleet {
	f := &fleet{
		prefix: prefix,
		size:   size,
		rng:    rand.New(rand.NewSource(seed)),
	}
	for i := 0; i < size; i++ {
		f.vehicles = append(f.vehicles, f.spawn())
	}
	return f
}

func (f *fleet) spawn() gbfsVehicle {
	f.nextID++
	return gbfsVehicle{
		BikeID: fmt.Sprintf("%s-%04d", f.prefix, f.nextID),
		Lat:    centerLat + (f.rng.Float64()-0.5)*spread,
		Lon:    centerLon + (f.rng.Float64()-0.5)*spread,
	}
}

// tick drifts every vehicle a little and swaps out a handful, so
// consecutive snapshots differ in both position and membership.
func (f *fleet) tick() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.vehicles {
		f.vehicles[i].Lat += (f.rng.Float64() - 0.5) * driftStep
		f.vehicles[i].Lon += (f.rng.Float64() - 0.5) * driftStep
	}

	swaps := f.size / 20
	for i := 0; i < swaps; i++ {
		f.vehicles[f.rng.Intn(len(f.vehicles))] = f.spawn()
	}
}

func (f *fleet) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	resp := gbfsResponse{LastUpdated: time.Now().Unix()}
	resp.Data.Bikes = append(resp.Data.Bikes, f.vehicles...)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to encode %s feed: %v", f.prefix, err)
	}
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	fleets := map[string]*fleet{
		"lime": newFleet("lime", 200, 1),
		"veo":  newFleet("veo", 120, 2),
		"hopp": newFleet("hopp", 60, 3),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, f := range fleets {
					f.tick()
				}
			}
		}
	}()

	router := mux.NewRouter()
	for name, f := range fleets {
		router.HandleFunc("/"+name, f.handler).Methods("GET")
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("feedsim serving fake GBFS feeds on http://localhost:%s/{lime,veo,hopp}", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("feedsim failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("feedsim shutdown warning: %v", err)
	}
	log.Println("feedsim exited")
}
