// handlers_upload.go - File intake handlers
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/whenitworks/backend/internal/config"
	"github.com/whenitworks/backend/internal/intake"
	"github.com/whenitworks/backend/internal/session"
	"github.com/whenitworks/backend/internal/upload"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	sessions   *session.Manager
	cookieName string
	app        config.AppInfo
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(sessions *session.Manager, cookieName string, app config.AppInfo) UploadHandler {
	return &UploadHandlerImpl{
		sessions:   sessions,
		cookieName: cookieName,
		app:        app,
	}
}

// StateResponse is the wire form of an upload state
type StateResponse struct {
	upload.State
	Output string `json:"output" msgpack:"output"`
	Busy   bool   `json:"busy" msgpack:"busy"`
}

func newStateResponse(st upload.State) StateResponse {
	return StateResponse{State: st, Output: st.Output(), Busy: st.Busy()}
}

// ConfigResponse describes what the intake accepts
type ConfigResponse struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	Tagline           string   `json:"tagline,omitempty"`
	AcceptedFileTypes []string `json:"acceptedFileTypes"`
	Accept            string   `json:"accept"`
	MaxFileSize       int64    `json:"maxFileSize"`
	MaxFileSizeLabel  string   `json:"maxFileSizeLabel"`
}

// HandleUpload runs one selection for the caller's session and waits for
// the attempt to finish. Validation and read failures answer 422; an attempt
// replaced by a newer selection or a clear answers 409.
func (h *UploadHandlerImpl) HandleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return NewValidationError("file")
		}
		return NewBadRequestError("invalid multipart form", err)
	}

	sess := session.Resolve(c, h.sessions, h.cookieName)
	st, err := sess.Upload.SelectAndWait(c.Request().Context(), intake.FromHeader(fh))
	if errors.Is(err, upload.ErrSuperseded) {
		return NewSupersededError(st)
	}
	if st.Phase == upload.PhaseFailed {
		return NewIntakeError(st)
	}

	return c.JSON(http.StatusOK, newStateResponse(st))
}

// HandleGetState returns the caller's current upload state
func (h *UploadHandlerImpl) HandleGetState(c echo.Context) error {
	sess := session.Resolve(c, h.sessions, h.cookieName)
	return c.JSON(http.StatusOK, newStateResponse(sess.Upload.State()))
}

// HandleGetStateMsgpack returns the current state encoded with msgpack
func (h *UploadHandlerImpl) HandleGetStateMsgpack(c echo.Context) error {
	sess := session.Resolve(c, h.sessions, h.cookieName)

	data, err := msgpack.Marshal(newStateResponse(sess.Upload.State()))
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleStateStream streams every state transition via Server-Sent Events
// until the client goes away.
func (h *UploadHandlerImpl) HandleStateStream(c echo.Context) error {
	sess := session.Resolve(c, h.sessions, h.cookieName)
	updates, cancel := sess.Upload.Subscribe()
	defer cancel()

	// The server write timeout would otherwise end the stream.
	rc := http.NewResponseController(c.Response().Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Debugf("[SSE] Could not clear write deadline: %v", err)
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	send := func(st upload.State) error {
		data, err := json.Marshal(newStateResponse(st))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Response(), "event: state\ndata: %s\n\n", data); err != nil {
			return err
		}
		c.Response().Flush()
		return nil
	}

	if err := send(sess.Upload.State()); err != nil {
		return nil
	}

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			h.sessions.Touch(sess.ID)
			if err := send(st); err != nil {
				return nil
			}
		}
	}
}

// HandleClearState resets the caller's upload slot
func (h *UploadHandlerImpl) HandleClearState(c echo.Context) error {
	sess := session.Resolve(c, h.sessions, h.cookieName)
	return c.JSON(http.StatusOK, newStateResponse(sess.Upload.Clear()))
}

// HandleGetConfig returns the public intake configuration
func (h *UploadHandlerImpl) HandleGetConfig(c echo.Context) error {
	policy := h.sessions.Policy()

	accepted := make([]string, 0, len(policy.AcceptedExtensions))
	for _, ext := range policy.AcceptedExtensions {
		accepted = append(accepted, "."+ext)
	}

	return c.JSON(http.StatusOK, ConfigResponse{
		Name:              h.app.Name,
		Version:           h.app.Version,
		Tagline:           h.app.Tagline,
		AcceptedFileTypes: accepted,
		Accept:            policy.AcceptAttr(),
		MaxFileSize:       policy.MaxSizeBytes,
		MaxFileSizeLabel:  intake.FormatFileSize(policy.MaxSizeBytes),
	})
}
