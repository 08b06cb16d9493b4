package export

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"zonesnap/pkg/httpx"
	"zonesnap/pkg/occupancy"
	"zonesnap/pkg/storage"
)

// MaxImportBytes bounds an uploaded archive. A day of raw snapshots is a
// few MB at most; anything bigger is a mistake.
const MaxImportBytes = 64 << 20

// Handler handles archive export/import HTTP endpoints.
type Handler struct {
	exporter *Exporter
	importer *Importer
	loc      *time.Location
}

// NewHandler creates a new export/import handler.
func NewHandler(store storage.Store, loc *time.Location) *Handler {
	return &Handler{
		exporter: NewExporter(store),
		importer: NewImporter(store),
		loc:      loc,
	}
}

// HandleExport handles GET /v1/export/{date}: streams the date's raw
// snapshots as a JSON archive download.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := time.ParseInLocation(occupancy.DateLayout, date, h.loc); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=zonesnap-%s.json", date))

	result, err := h.exporter.ExportDay(r.Context(), w, date)
	if err != nil {
		// Headers are out already; all we can do is log and cut the stream.
		log.Printf("Export %s failed: %v", date, err)
		return
	}
	log.Printf("Exported %d raw snapshots for %s", result.Snapshots, result.Date)
}

// HandleImport handles POST /v1/import: restores a JSON day archive into
// the store. Rebuild the day documents afterwards with a backfill.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes)

	result, err := h.importer.ImportDay(r.Context(), r.Body)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	log.Printf("Imported %d raw snapshots for %s (%d rejected)", result.Snapshots, result.Date, len(result.Errors))
	httpx.RespondJSON(w, http.StatusOK, result)
}
