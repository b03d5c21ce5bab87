package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"donormatch/internal/matching/handler"
	"donormatch/internal/platform/metrics"
	"donormatch/internal/platform/middleware"
	"donormatch/pkg/platform/httputil"
)

type healthCheck struct {
	name  string
	check func(context.Context) error
}

func newRouter(log *slog.Logger, m *metrics.Metrics, matching *handler.Handler, checks []healthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(m))

	r.Get("/health", healthHandler(checks))
	r.Method(http.MethodGet, "/metrics", m.Handler())
	matching.Register(r)
	return r
}

// healthHandler reports 503 when any dependency check fails.
func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[c.name] = "unavailable"
				continue
			}
			body[c.name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
