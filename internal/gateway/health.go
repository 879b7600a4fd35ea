package gateway

import (
	"context"
	"encoding/json"
	"net/http"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Error  string `json:"error,omitempty"`
}

// health checks the provider, when one is bound. The bool is false when the
// provider failed its check.
func (g *Gateway) health(ctx context.Context) (HealthResponse, bool) {
	resp := HealthResponse{Status: "ok", Model: g.model}
	if g.checker == nil {
		return resp, true
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.HealthTimeout)
	defer cancel()
	if err := g.checker.HealthCheck(ctx); err != nil {
		resp.Status = "degraded"
		resp.Error = err.Error()
		return resp, false
	}
	return resp, true
}

// serveHealth answers 200 when healthy and 503 otherwise.
func (g *Gateway) serveHealth(w http.ResponseWriter, r *http.Request) {
	resp, ok := g.health(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
