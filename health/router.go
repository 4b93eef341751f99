// Package health serves the provider-agent's liveness and readiness
// probes over HTTP, grounded on the teacher's chi-routed gateway
// (gateway/routes/router.go).
package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Checker reports whether a single dependency is ready to serve
// traffic. A non-nil error is surfaced in the /readyz response body
// under the checker's name.
type Checker func() error

// NewRouter builds the health/readiness router. /healthz always
// answers 200 once the process is up; /readyz runs every checker and
// answers 200 only if all of them pass, matching the teacher's plain
// "ok" liveness handler plus an aggregate readiness gate.
func NewRouter(checks map[string]Checker) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		failures := make(map[string]string)
		for name, check := range checks {
			if err := check(); err != nil {
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			for name, msg := range failures {
				_, _ = w.Write([]byte(name + ": " + msg + "\n"))
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	return r
}
