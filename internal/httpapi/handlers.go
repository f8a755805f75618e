package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"gatehouse.io/internal/attachment"
	"gatehouse.io/internal/auth"
	"gatehouse.io/internal/cache"
	"gatehouse.io/internal/directory"
	"gatehouse.io/internal/export"
	"gatehouse.io/internal/obs"
	"gatehouse.io/internal/policy"
	"gatehouse.io/internal/stream"
	"gatehouse.io/internal/visit"
	"gatehouse.io/internal/visitor"
)

// ReadyProbe pings the backing database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// ExportSource produces the joined report projection. The Postgres store
// implements it with one query; nil falls back to composing from the other
// stores.
type ExportSource interface {
	ExportRows(ctx context.Context, organizationID string) ([]export.Row, error)
}

// Deps carries every collaborator the HTTP layer needs. All stores are
// explicit; handlers never reach for ambient state.
type Deps struct {
	Visits      visit.Service
	Visitors    visitor.Registry
	Directory   directory.Store
	Policy      policy.Store
	Attachments attachment.Store
	Blobs       attachment.BlobStorage
	Admins      auth.AdminStore
	Views       *cache.VisitViews
	Stream      *stream.Stream
	Exporter    ExportSource
	Ready       ReadyProbe
	Version     string
}

// API is the HTTP layer.
type API struct {
	mux  *http.ServeMux
	deps Deps
}

func New(deps Deps) *API {
	a := &API{
		mux:  http.NewServeMux(),
		deps: deps,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	a.mux.HandleFunc("/v1/visits", a.handleVisitsCollection)
	a.mux.HandleFunc("/v1/visits/", a.handleVisitResource)
	a.mux.HandleFunc("/v1/admin/visits", a.handleAdminVisits)
	a.mux.HandleFunc("/v1/attachments", a.handleAttachmentUpload)
	a.mux.HandleFunc("/v1/attachments/", a.handleAttachmentDownload)
	a.mux.HandleFunc("/v1/public/visits/", a.handlePublicVisit)
	a.mux.HandleFunc("/v1/events", a.StreamEvents)

	a.mux.HandleFunc("/v1/reports/visits.csv", a.handleExportCSV)
	a.mux.HandleFunc("/v1/reports/visits.xlsx", a.handleExportXLSX)

	a.mux.HandleFunc("/v1/employees", a.handleEmployeesCollection)
	a.mux.HandleFunc("/v1/employees/", a.handleEmployeeResource)
	a.mux.HandleFunc("/v1/branches", a.handleBranchesCollection)
	a.mux.HandleFunc("/v1/branches/", a.handleBranchResource)

	a.mux.HandleFunc("/v1/config", a.handleConfig)
	a.mux.HandleFunc("/v1/config/fields", a.handleFieldConfig)
	a.mux.HandleFunc("/v1/kiosk/form", a.handleKioskForm)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux. Only the
// unauthenticated surface is rate limited; authenticated traffic is gated by
// its tokens.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	limited := RateLimit(h, 20, 10)
	inner := h
	h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRequest(r) {
			limited.ServeHTTP(w, r)
			return
		}
		inner.ServeHTTP(w, r)
	})
	h = MaxBodyBytes(h, 10<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gatehouse-api",
		"version": a.deps.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "gatehouse-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.deps.Version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
