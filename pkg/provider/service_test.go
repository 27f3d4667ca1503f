package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(authURL, tokenURL, userInfoURL string) *Provider {
	return &Provider{
		Name:         "google",
		DisplayName:  "Google",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      authURL,
		TokenURL:     tokenURL,
		UserInfoURL:  userInfoURL,
		Enabled:      true,
	}
}

func TestProvider_ValidateConfig(t *testing.T) {
	p := testProvider("https://p/auth", "https://p/token", "https://p/userinfo")
	require.NoError(t, p.ValidateConfig())

	missing := *p
	missing.ClientSecret = ""
	assert.Error(t, missing.ValidateConfig())

	unnamed := *p
	unnamed.Name = ""
	assert.Error(t, unnamed.ValidateConfig())
}

func TestProvider_OAuth2Config_Scopes(t *testing.T) {
	p := testProvider("https://p/auth", "https://p/token", "https://p/userinfo")

	conf := p.OAuth2Config("https://app/cb", nil)
	assert.Equal(t, []string{"openid", "profile", "email"}, conf.Scopes)

	// Extra scopes from the dynamic-scope hook are appended, deduplicated.
	conf = p.OAuth2Config("https://app/cb", []string{"email", "calendar"})
	assert.Equal(t, []string{"openid", "profile", "email", "calendar"}, conf.Scopes)

	p.Scopes = []string{"custom"}
	conf = p.OAuth2Config("https://app/cb", nil)
	assert.Equal(t, []string{"custom"}, conf.Scopes)
}

func TestRepository(t *testing.T) {
	repo := NewInMemRepository()

	p := testProvider("https://p/auth", "https://p/token", "https://p/userinfo")
	require.NoError(t, repo.AddProvider(p))

	got, err := repo.GetProvider("google")
	require.NoError(t, err)
	assert.Equal(t, "Google", got.DisplayName)

	_, err = repo.GetProvider("missing")
	assert.ErrorIs(t, err, ErrProviderNotFound)

	invalid := &Provider{Name: "broken"}
	assert.Error(t, repo.AddProvider(invalid))

	providers, err := repo.ListProviders()
	require.NoError(t, err)
	assert.Len(t, providers, 1)
}

func TestService_ChallengeURL(t *testing.T) {
	repo := NewInMemRepository()
	require.NoError(t, repo.AddProvider(testProvider("https://p/auth", "https://p/token", "https://p/userinfo")))
	service := NewService(repo, "https://app/c/callback")

	challengeURL, err := service.ChallengeURL("google", "protected-state", []string{"extra"})
	require.NoError(t, err)

	parsed, err := url.Parse(challengeURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "protected-state", q.Get("state"))
	assert.Equal(t, "https://app/c/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "extra")
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestService_ChallengeURL_DisabledProvider(t *testing.T) {
	repo := NewInMemRepository()
	p := testProvider("https://p/auth", "https://p/token", "https://p/userinfo")
	p.Enabled = false
	require.NoError(t, repo.AddProvider(p))
	service := NewService(repo, "https://app/c/callback")

	_, err := service.ChallengeURL("google", "state", nil)
	assert.Error(t, err)
}

func TestService_Exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"sub":   "ext-42",
			"email": "albert@example.com",
			"name":  "Albert",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	repo := NewInMemRepository()
	require.NoError(t, repo.AddProvider(testProvider(
		server.URL+"/auth", server.URL+"/token", server.URL+"/userinfo",
	)))
	service := NewService(repo, "https://app/c/callback", WithHTTPClient(server.Client()))

	identity, err := service.Exchange(context.Background(), "google", "the-code")
	require.NoError(t, err)
	assert.Equal(t, "google", identity.Scheme)
	assert.Equal(t, "ext-42", identity.ExternalID)
	assert.Equal(t, "albert@example.com", identity.Email)
	assert.Equal(t, "Albert", identity.Name)
}

func TestService_Exchange_UserInfoRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "token_type": "Bearer"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	repo := NewInMemRepository()
	require.NoError(t, repo.AddProvider(testProvider(
		server.URL+"/auth", server.URL+"/token", server.URL+"/userinfo",
	)))
	service := NewService(repo, "https://app/c/callback", WithHTTPClient(server.Client()))

	_, err := service.Exchange(context.Background(), "google", "code")
	assert.Error(t, err)
}
