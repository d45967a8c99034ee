package http

import (
	"context"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the store and reports rate freshness and middleware counters.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]any)

	if s.opts.Store == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.opts.Store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	// Stale or missing rates degrade conversion but do not make the API unready.
	if s.opts.Reports != nil {
		tbl := s.opts.Reports.Rates(ctx)
		rates := map[string]any{"currencies": len(tbl.Rates), "source": tbl.Source}
		if !tbl.FetchedAt.IsZero() {
			rates["age"] = tbl.Age(s.now()).Round(time.Second).String()
		}
		if s.opts.Rates != nil {
			if at, err := s.opts.Rates.LastError(); err != nil {
				rates["last_error"] = err.Error()
				rates["last_error_at"] = at.Format(time.RFC3339)
			}
		}
		checks["rates"] = rates
	}

	checks["rate_limiter"] = s.limiter.GetMetrics()
	checks["requests"] = s.tracer.GetMetrics()
	checks["client_ip"] = s.clientIP.GetMetrics()

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}
