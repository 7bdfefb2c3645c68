package session

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// DefaultCookieName identifies the page session when none is configured.
const DefaultCookieName = "wiw_session"

// Resolve returns the session named by the request cookie, creating one and
// setting the cookie when the request has none or it is unknown.
func Resolve(c echo.Context, m *Manager, cookieName string) *Session {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	var id string
	if cookie, err := c.Cookie(cookieName); err == nil {
		id = cookie.Value
	}

	sess, created := m.GetOrCreate(id)
	if created {
		c.SetCookie(&http.Cookie{
			Name:     cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(24 * time.Hour),
		})
	}
	return sess
}
