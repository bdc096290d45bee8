package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
)

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthChecks maps a dependency name to its ping.
type healthChecks map[string]func(ctx context.Context) error

// healthHandler reports every configured dependency. Any failure turns the
// response into a 503 with status "degraded".
func healthHandler(checks healthChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string, len(checks)),
		}

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if err := checks[name](r.Context()); err != nil {
				resp.Status = "degraded"
				resp.Services[name] = "unhealthy: " + err.Error()
			} else {
				resp.Services[name] = "healthy"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
