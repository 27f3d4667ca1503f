package tokencodec

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieSetterAttributes(t *testing.T) {
	setter := NewCookieSetter("/c", true, true)

	rec := httptest.NewRecorder()
	setter.SetCookie(rec, "auth", "value", time.Time{})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "auth", c.Name)
	assert.Equal(t, "/c", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	// Zero expire means a session cookie.
	assert.True(t, c.Expires.IsZero())
	assert.Equal(t, 0, c.MaxAge)
}

func TestCookieSetterClear(t *testing.T) {
	setter := NewCookieSetter("/", false, false)

	rec := httptest.NewRecorder()
	setter.ClearCookie(rec, "LT")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "LT", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
