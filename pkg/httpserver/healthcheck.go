package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

// Healthz returns a readiness handler running the named probes. Any
// probe failure yields 503 with a per-probe status body; probes share a
// one second budget.
func Healthz(probes map[string]Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(probes))
		for name, probe := range probes {
			if err := probe(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	}
}
