package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zonesnap/pkg/config"
	"zonesnap/pkg/export"
	"zonesnap/pkg/httpx"
	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/run"
	"zonesnap/pkg/server/monitor"
	"zonesnap/pkg/storage"
	"zonesnap/pkg/zone"
)

var startTime = time.Now()

// Handler serves the aggregation API: triggering runs and backfills,
// reading day documents, and exposing stats.
type Handler struct {
	store   storage.Store
	runner  *run.Runner
	mappers map[string]zone.Mapper
	hub     *SnapshotHub
	loc     *time.Location

	runMonitor     *monitor.RunMonitor
	storageMonitor *monitor.StorageMonitor
}

// NewHandler creates the API handler. The monitors are optional; absent
// monitors leave health unconditionally healthy and disk usage at zero.
func NewHandler(store storage.Store, runner *run.Runner, mappers map[string]zone.Mapper, hub *SnapshotHub, loc *time.Location, runMon *monitor.RunMonitor, storageMon *monitor.StorageMonitor) *Handler {
	return &Handler{
		store:          store,
		runner:         runner,
		mappers:        mappers,
		hub:            hub,
		loc:            loc,
		runMonitor:     runMon,
		storageMonitor: storageMon,
	}
}

// RunRequest optionally restricts a triggered run to one zone scheme.
type RunRequest struct {
	Scheme string `json:"scheme,omitempty"`
}

// BackfillRequest asks for a day document rebuild from stored raw
// snapshots. Keys, when present, limits the replay to those snapshots.
type BackfillRequest struct {
	Date   string   `json:"date"`
	Scheme string   `json:"scheme"`
	Keys   []string `json:"keys,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string             `json:"status"`
	Version string             `json:"version"`
	Uptime  string             `json:"uptime"`
	Runs    *monitor.RunStatus `json:"runs,omitempty"`
}

// StatsResponse reports storage contents.
type StatsResponse struct {
	RawSnapshots uint64   `json:"raw_snapshots"`
	DayDocuments uint64   `json:"day_documents"`
	OldestHour   string   `json:"oldest_hour,omitempty"`
	NewestHour   string   `json:"newest_hour,omitempty"`
	Schemes      []string `json:"schemes"`
	UsedBytes    int64    `json:"used_bytes,omitempty"`
	MaxBytes     int64    `json:"max_bytes,omitempty"`
}

// HandleRun triggers an hourly aggregation run for one scheme, or for
// every configured scheme when the body names none.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}
	}

	mappers, err := h.selectMappers(req.Scheme)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.RunTimeout)
	defer cancel()

	// One call for every selected scheme: feeds are fetched once and the
	// hour's raw snapshots written once, shared across schemes.
	results, err := h.runner.RunHourly(ctx, time.Now(), mappers)
	if err != nil {
		httpx.RespondError(w, http.StatusBadGateway, err)
		return
	}

	h.hub.BroadcastRuns("run_complete", results)
	httpx.RespondJSON(w, http.StatusOK, results)
}

// HandleBackfill rebuilds a day document from stored raw snapshots.
func (h *Handler) HandleBackfill(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := time.ParseInLocation(occupancy.DateLayout, req.Date, h.loc); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if len(req.Keys) > config.MaxBackfillKeys {
		httpx.RespondErrorString(w, http.StatusBadRequest, "too many keys")
		return
	}

	mapper, ok := h.mappers[req.Scheme]
	if !ok {
		httpx.RespondErrorString(w, http.StatusBadRequest, "unknown scheme")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.BackfillTimeout)
	defer cancel()

	result, err := h.runner.Backfill(ctx, run.BackfillRequest{Date: req.Date, Keys: req.Keys}, mapper)
	if err != nil {
		httpx.RespondError(w, http.StatusBadGateway, err)
		return
	}

	h.hub.BroadcastRuns("backfill_complete", []*run.Result{result})
	httpx.RespondJSON(w, http.StatusOK, result)
}

// HandleSnapshot serves a stored day document verbatim. An absent
// document serves as an empty object rather than 404: a day with no runs
// yet is a normal state, not an error.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date, scheme := vars["date"], vars["scheme"]

	if _, err := time.ParseInLocation(occupancy.DateLayout, date, h.loc); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if _, ok := h.mappers[scheme]; !ok {
		httpx.RespondErrorString(w, http.StatusNotFound, "unknown scheme")
		return
	}

	doc, err := h.store.GetDayDocument(r.Context(), date, scheme)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, doc)
}

// HandleStats returns storage statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.StatsTimeout)
	defer cancel()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	resp := StatsResponse{
		RawSnapshots: stats.RawSnapshots,
		DayDocuments: stats.DayDocuments,
		OldestHour:   stats.OldestHour,
		NewestHour:   stats.NewestHour,
		Schemes:      h.schemeNames(),
	}
	if h.storageMonitor != nil {
		if used, err := h.storageMonitor.GetUsage(); err == nil {
			resp.UsedBytes = used
			resp.MaxBytes = h.storageMonitor.GetLimit()
		}
	}

	httpx.RespondJSON(w, http.StatusOK, resp)
}

// HandleHealth returns service health status. The scheduler failing for
// long enough degrades the service: documents go stale even though reads
// still work.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: "1.0.0",
		Uptime:  time.Since(startTime).String(),
	}
	statusCode := http.StatusOK

	if h.runMonitor != nil {
		status := h.runMonitor.Status()
		resp.Runs = &status
		if !status.Healthy {
			resp.Status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}

	httpx.RespondJSON(w, statusCode, resp)
}

// selectMappers resolves a scheme name to its mapper, or returns every
// configured mapper in stable name order for an unscoped run.
func (h *Handler) selectMappers(scheme string) ([]zone.Mapper, error) {
	if scheme != "" {
		m, ok := h.mappers[scheme]
		if !ok {
			return nil, &unknownSchemeError{scheme}
		}
		return []zone.Mapper{m}, nil
	}

	mappers := make([]zone.Mapper, 0, len(h.mappers))
	for _, name := range h.schemeNames() {
		mappers = append(mappers, h.mappers[name])
	}
	return mappers, nil
}

func (h *Handler) schemeNames() []string {
	names := make([]string, 0, len(h.mappers))
	for name := range h.mappers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type unknownSchemeError struct {
	scheme string
}

func (e *unknownSchemeError) Error() string {
	return "unknown scheme " + e.scheme
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(router *mux.Router, handler *Handler, exportHandler *export.Handler, hub *SnapshotHub, reg *prometheus.Registry, port string) {
	// CORS middleware for API access
	router.Use(corsMiddleware(port))
	router.Use(requestLogMiddleware())

	// API routes
	api := router.PathPrefix("/v1").Subrouter()

	// Run triggers
	api.HandleFunc("/runs", handler.HandleRun).Methods("POST")
	api.HandleFunc("/backfill", handler.HandleBackfill).Methods("POST")

	// Day documents and stats
	api.HandleFunc("/snapshots/{date}/{scheme}", handler.HandleSnapshot).Methods("GET")
	api.HandleFunc("/stats", handler.HandleStats).Methods("GET")
	api.HandleFunc("/health", handler.HandleHealth).Methods("GET")

	// Archive backup and restore
	api.HandleFunc("/export/{date}", exportHandler.HandleExport).Methods("GET")
	api.HandleFunc("/import", exportHandler.HandleImport).Methods("POST")

	// WebSocket for real-time run updates
	api.HandleFunc("/ws", hub.HandleWebSocket).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowedOrigins := []string{
				"http://localhost:" + port,
				"http://127.0.0.1:" + port,
			}

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if origin == allowedOrigin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
