package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/whenitworks/backend/internal/config"
	"github.com/whenitworks/backend/internal/intake"
	"github.com/whenitworks/backend/internal/session"
	"github.com/whenitworks/backend/internal/upload"
)

// PageHandler serves the single intake page. Each POST runs one selection
// event and redirects back to GET /, which renders the resulting state.
type PageHandler struct {
	sessions   *session.Manager
	cookieName string
	app        config.AppInfo
}

// NewPageHandler creates the page handler.
func NewPageHandler(sessions *session.Manager, cookieName string, app config.AppInfo) *PageHandler {
	return &PageHandler{
		sessions:   sessions,
		cookieName: cookieName,
		app:        app,
	}
}

// Register adds the page routes.
func (h *PageHandler) Register(e *echo.Echo) {
	e.GET("/", h.HandleIndex)
	e.POST("/upload", h.HandleUpload)
	e.POST("/clear", h.HandleClear)
}

type pageView struct {
	AppName       string
	Tagline       string
	Version       string
	Accept        string
	AcceptedTypes string
	MaxSize       string
	Phase         string
	Busy          bool
	FileName      string
	FileSize      string
	Error         string
	Output        string
	HasOutput     bool
}

func (h *PageHandler) view(st upload.State) pageView {
	policy := h.sessions.Policy()
	accept := policy.AcceptAttr()

	v := pageView{
		AppName:       h.app.Name,
		Tagline:       h.app.Tagline,
		Version:       h.app.Version,
		Accept:        accept,
		AcceptedTypes: strings.ReplaceAll(accept, ",", ", "),
		MaxSize:       intake.FormatFileSize(policy.MaxSizeBytes),
		Phase:         string(st.Phase),
		Busy:          st.Busy(),
		Output:        st.Output(),
		HasOutput:     st.Content != "",
	}
	if v.AcceptedTypes == "" {
		v.AcceptedTypes = "any"
	}
	if st.File != nil {
		v.FileName = st.File.Name
		v.FileSize = st.File.SizeLabel
	}
	if st.Phase == upload.PhaseFailed {
		v.Error = st.Error
	}
	return v
}

// HandleIndex renders the page for the caller's session.
func (h *PageHandler) HandleIndex(c echo.Context) error {
	sess := session.Resolve(c, h.sessions, h.cookieName)
	return c.Render(http.StatusOK, "index.html", h.view(sess.Upload.State()))
}

// HandleUpload runs the selection carried by the form. An empty form is a
// no-op.
func (h *PageHandler) HandleUpload(c echo.Context) error {
	sess := session.Resolve(c, h.sessions, h.cookieName)

	fh, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return c.Redirect(http.StatusSeeOther, "/")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid upload form")
	}

	st, err := sess.Upload.SelectAndWait(c.Request().Context(), intake.FromHeader(fh))
	switch {
	case errors.Is(err, upload.ErrSuperseded):
		log.Debugf("[Page] %s: replaced before it was displayed", fh.Filename)
	case st.Phase == upload.PhaseFailed:
		log.Debugf("[Page] %s: %s", fh.Filename, st.Error)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// HandleClear resets the caller's upload slot.
func (h *PageHandler) HandleClear(c echo.Context) error {
	sess := session.Resolve(c, h.sessions, h.cookieName)
	sess.Upload.Clear()
	return c.Redirect(http.StatusSeeOther, "/")
}
