// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// UploadHandler handles the intake of one file per page session
type UploadHandler interface {
	HandleUpload(c echo.Context) error
	HandleGetState(c echo.Context) error
	HandleGetStateMsgpack(c echo.Context) error
	HandleStateStream(c echo.Context) error
	HandleClearState(c echo.Context) error
	HandleGetConfig(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// StreamHandler handles the live intake channel
type StreamHandler interface {
	HandleWebSocket(c echo.Context) error
}
