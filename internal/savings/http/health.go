// Package http carries the service's operational HTTP surface: the
// liveness and readiness probes. The customer-facing API is served by
// a separate edge and is not part of this process.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/acornbank/acorn/internal/savings/store"
	"github.com/acornbank/acorn/pkg/idx"
	"github.com/acornbank/acorn/pkg/slogx"
)

type HealthChecks struct {
	Database string `json:"database"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// LivezHandler reports that the process is up. It never fails while
// the server is serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports whether the service can do useful work, which
// comes down to the database answering.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{Database: "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			slogx.FromContext(r.Context()).Error("readiness probe failed", "error", err)
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}

// NewMux mounts the probes with a request-scoped logger attached. Each
// request gets a request id, taken from X-Request-ID when the caller
// sent one, and the id is echoed back on the response.
func NewMux(startTime time.Time, version string, st store.Store, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /livez", LivezHandler(startTime, version))
	mux.Handle("GET /readyz", ReadyzHandler(startTime, version, st))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = idx.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := slogx.WithRequestID(slogx.WithContext(r.Context(), logger), reqID)
		mux.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
