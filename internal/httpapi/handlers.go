// Package httpapi is the HTTP surface of the approval service: the
// registration intake endpoint and the approve/deny links embedded in
// the admin notification email.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"ccaccess.org/internal/audit"
	"ccaccess.org/internal/obs"
	"ccaccess.org/internal/registration"
)

// ReadyProbe checks downstream readiness (the consumed-token store
// when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the registration service.
type API struct {
	mux        *http.ServeMux
	svc        *registration.Service
	readyProbe ReadyProbe
	version    string

	// baseURL overrides request-derived action link addresses.
	baseURL string

	rateBurst  int
	ratePerSec int
}

func New(svc *registration.Service, rp ReadyProbe, version, baseURL string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		readyProbe: rp,
		version:    version,
		baseURL:    strings.TrimRight(baseURL, "/"),
		rateBurst:  20,
		ratePerSec: 10,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	a.mux.HandleFunc("/register", a.handleRegister)
	a.mux.HandleFunc("/approve", a.handleApprove)
	a.mux.HandleFunc("/deny", a.handleDeny)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// The original deployment exposed registration at the function
	// root; keep POST / as an alias.
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodPost {
			a.handleRegister(w, r)
			return
		}
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := obs.Instrument(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = Logging(h)
	h = RequestID(h)
	return h
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "cca-approvald",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) audit(ctx context.Context, event string, meta map[string]any) {
	if err := audit.LogEvent(ctx, event, meta); err != nil {
		obs.Logger().Printf(`{"level":"error","msg":"audit log failed","error":%q}`, err.Error())
	}
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
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
