// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	name     string
	version  string
	sessions func() int
}

// NewHealthHandler creates a new health handler. sessions may be nil.
func NewHealthHandler(name, version string, sessions func() int) HealthHandler {
	return &HealthHandlerImpl{
		name:     name,
		version:  version,
		sessions: sessions,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"name":    h.name,
		"version": h.version,
	}
	if h.sessions != nil {
		resp["sessions"] = h.sessions()
	}
	return c.JSON(http.StatusOK, resp)
}
