package tokencodec

import (
	"net/http"
	"time"
)

// CookieSetter writes and clears cookies with a fixed attribute policy, so
// the codec's transports never choose security attributes per call site.
type CookieSetter interface {
	SetCookie(w http.ResponseWriter, name, value string, expire time.Time)

	// ClearCookie expires the cookie immediately.
	ClearCookie(w http.ResponseWriter, name string)
}

// BaseCookieSetter is the standard CookieSetter. A zero Expires on
// SetCookie yields a session cookie.
type BaseCookieSetter struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

func (c *BaseCookieSetter) SetCookie(w http.ResponseWriter, name, value string, expire time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     c.Path,
		Value:    value,
		Expires:  expire,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c *BaseCookieSetter) ClearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// NewCookieSetter creates a Lax-mode cookie setter scoped to the given path.
func NewCookieSetter(path string, httpOnly, secure bool) CookieSetter {
	return &BaseCookieSetter{
		Path:     path,
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
