package authapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tendant/simple-auth/pkg/authinfo"
	"github.com/tendant/simple-auth/pkg/tokencodec"
)

// Cookie names.
const (
	// AuthCookieName carries the protected credential; HttpOnly.
	AuthCookieName = "auth"
	// LongTermCookieName carries the clear-JSON remember-me hint.
	LongTermCookieName = "LT"
)

// Cookie modes.
const (
	// CookieModeRoot scopes the auth cookie to the site root.
	CookieModeRoot = "root"
	// CookieModeEntrypoint scopes the auth cookie to the protocol entry
	// path.
	CookieModeEntrypoint = "entrypoint"
	// CookieModeNone disables both cookies and remember-me entirely.
	CookieModeNone = "none"
)

// DefaultLongTermMaxAge is the lifetime of the long-term hint cookie.
const DefaultLongTermMaxAge = 365 * 24 * time.Hour

// CookieManager writes and reads the credential cookies. The short-lived
// auth cookie carries the protected credential and is HttpOnly; the
// long-term cookie carries only the clear-JSON hint and stays readable by
// the client.
type CookieManager struct {
	mode           string
	codecs         *tokencodec.CodecService
	auth           tokencodec.CookieSetter
	longTerm       tokencodec.CookieSetter
	longTermMaxAge time.Duration
}

// CookieOption configures a CookieManager.
type CookieOption func(*CookieManager)

// WithLongTermMaxAge overrides the long-term hint cookie lifetime.
func WithLongTermMaxAge(maxAge time.Duration) CookieOption {
	return func(m *CookieManager) {
		m.longTermMaxAge = maxAge
	}
}

// NewCookieManager creates a cookie manager for the given mode. entryPath
// scopes the auth cookie in entrypoint mode (for example "/c"); secure sets
// the Secure attribute on both cookies.
func NewCookieManager(mode, entryPath string, secure bool, codecs *tokencodec.CodecService, opts ...CookieOption) *CookieManager {
	authPath := "/"
	if mode == CookieModeEntrypoint && entryPath != "" {
		authPath = entryPath
	}
	m := &CookieManager{
		mode:           mode,
		codecs:         codecs,
		auth:           tokencodec.NewCookieSetter(authPath, true, secure),
		longTerm:       tokencodec.NewCookieSetter("/", false, secure),
		longTermMaxAge: DefaultLongTermMaxAge,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether cookies are in use at all.
func (m *CookieManager) Enabled() bool {
	return m != nil && m.mode != CookieModeNone
}

// Write re-issues the cookies for the given credential: the protected auth
// cookie, and the long-term hint with identity fields only when remember-me
// is on. Disabled mode writes nothing.
func (m *CookieManager) Write(w http.ResponseWriter, front authinfo.FrontAuthenticationInfo, now time.Time) {
	if !m.Enabled() {
		return
	}

	protected, err := m.codecs.Protect(tokencodec.PurposeCookie, front)
	if err != nil {
		slog.Error("Failed to protect auth cookie", "err", err)
		m.auth.ClearCookie(w, AuthCookieName)
	} else {
		var expire time.Time
		if front.RememberMe {
			expire = front.Info.Expires()
		}
		m.auth.SetCookie(w, AuthCookieName, protected, expire)
	}

	hint := tokencodec.RememberMeHint{DeviceID: front.Info.DeviceID()}
	if front.RememberMe {
		user := front.Info.UnsafeActualUser()
		hint.UserID = user.ID
		hint.UserName = user.Name
	}
	m.WriteHint(w, hint, now)
}

// WriteHint writes the long-term hint cookie.
func (m *CookieManager) WriteHint(w http.ResponseWriter, hint tokencodec.RememberMeHint, now time.Time) {
	if !m.Enabled() {
		return
	}
	data, err := json.Marshal(hint)
	if err != nil {
		slog.Error("Failed to encode remember-me hint", "err", err)
		return
	}
	m.longTerm.SetCookie(w, LongTermCookieName, url.QueryEscape(string(data)), now.Add(m.longTermMaxAge))
}

// ClearAuth removes the short-lived auth cookie.
func (m *CookieManager) ClearAuth(w http.ResponseWriter) {
	if !m.Enabled() {
		return
	}
	m.auth.ClearCookie(w, AuthCookieName)
}

// ClearLongTerm removes the long-term hint cookie.
func (m *CookieManager) ClearLongTerm(w http.ResponseWriter) {
	if !m.Enabled() {
		return
	}
	m.longTerm.ClearCookie(w, LongTermCookieName)
}

// ReadAuth decodes the protected credential from the auth cookie. A
// missing or undecodable cookie reads as absent.
func (m *CookieManager) ReadAuth(r *http.Request) (authinfo.FrontAuthenticationInfo, bool) {
	if !m.Enabled() {
		return authinfo.FrontAuthenticationInfo{}, false
	}
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil || cookie.Value == "" {
		return authinfo.FrontAuthenticationInfo{}, false
	}
	var front authinfo.FrontAuthenticationInfo
	if err := m.codecs.Unprotect(tokencodec.PurposeCookie, cookie.Value, &front); err != nil {
		slog.Debug("Auth cookie failed to unprotect, treating as absent", "err", err)
		return authinfo.FrontAuthenticationInfo{}, false
	}
	return front, true
}

// ReadHint decodes the long-term hint cookie. A missing or malformed
// cookie reads as absent.
func (m *CookieManager) ReadHint(r *http.Request) (tokencodec.RememberMeHint, bool) {
	if !m.Enabled() {
		return tokencodec.RememberMeHint{}, false
	}
	cookie, err := r.Cookie(LongTermCookieName)
	if err != nil || cookie.Value == "" {
		return tokencodec.RememberMeHint{}, false
	}
	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return tokencodec.RememberMeHint{}, false
	}
	var hint tokencodec.RememberMeHint
	if err := json.Unmarshal([]byte(raw), &hint); err != nil {
		return tokencodec.RememberMeHint{}, false
	}
	return hint, true
}
