package provider

import (
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// Provider represents a remote OAuth2/OIDC identity provider configuration.
// Its Name doubles as the login scheme name.
type Provider struct {
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURL      string   `json:"auth_url"`
	TokenURL     string   `json:"token_url"`
	UserInfoURL  string   `json:"user_info_url"`
	Scopes       []string `json:"scopes"`
	Enabled      bool     `json:"enabled"`
	IconURL      string   `json:"icon_url,omitempty"`
}

// ValidateConfig validates the provider configuration
func (p *Provider) ValidateConfig() error {
	if p.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if p.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if p.AuthURL == "" {
		return fmt.Errorf("authorization URL is required")
	}
	if p.TokenURL == "" {
		return fmt.Errorf("token URL is required")
	}
	if p.UserInfoURL == "" {
		return fmt.Errorf("user info URL is required")
	}

	if _, err := url.Parse(p.AuthURL); err != nil {
		return fmt.Errorf("invalid authorization URL: %w", err)
	}
	if _, err := url.Parse(p.TokenURL); err != nil {
		return fmt.Errorf("invalid token URL: %w", err)
	}
	if _, err := url.Parse(p.UserInfoURL); err != nil {
		return fmt.Errorf("invalid user info URL: %w", err)
	}

	return nil
}

// OAuth2Config assembles the oauth2 client configuration for this provider.
// Extra scopes from the dynamic-scope hook are appended after the
// configured defaults.
func (p *Provider) OAuth2Config(redirectURL string, extraScopes []string) *oauth2.Config {
	scopes := p.DefaultScopes()
	for _, scope := range extraScopes {
		if !containsScope(scopes, scope) {
			scopes = append(scopes, scope)
		}
	}
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthURL,
			TokenURL: p.TokenURL,
		},
	}
}

// DefaultScopes returns the configured scopes, or the usual OIDC triple.
func (p *Provider) DefaultScopes() []string {
	if len(p.Scopes) > 0 {
		scopes := make([]string, len(p.Scopes))
		copy(scopes, p.Scopes)
		return scopes
	}
	return []string{"openid", "profile", "email"}
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// UserInfoPayload is the raw identity payload fetched from the provider's
// user-info endpoint, before normalization.
type UserInfoPayload struct {
	Sub           string `json:"sub"`
	ID            string `json:"id,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
}

// ExternalID returns the provider-scoped stable identifier.
func (p UserInfoPayload) ExternalID() string {
	if p.Sub != "" {
		return p.Sub
	}
	return p.ID
}
