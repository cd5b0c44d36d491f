package api

import (
	"net/http"
	"time"

	respond "github.com/plantpal/plantpal/internal/api/respond"
	"github.com/plantpal/plantpal/internal/health"
)

// HealthSource is the cached view the handler reports; *health.Monitor
// satisfies it.
type HealthSource interface {
	IsHealthy() bool
	Components() map[string]health.Status
}

// HealthHandler reports service health without probing on the request path.
type HealthHandler struct {
	src HealthSource
}

// NewHealthHandler creates a health handler. A nil source reports unhealthy
// with no components.
func NewHealthHandler(src HealthSource) *HealthHandler {
	return &HealthHandler{src: src}
}

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	components := map[string]health.Status{}
	if h.src != nil {
		if h.src.IsHealthy() {
			status = "healthy"
		}
		components = h.src.Components()
	}
	response := map[string]interface{}{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	respond.WriteJSON(w, http.StatusOK, response)
}
