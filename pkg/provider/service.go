package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/tendant/simple-auth/pkg/login"
)

// Service drives the OAuth2 round-trip with remote identity providers. The
// challenge state protected by the caller rides in the state parameter.
type Service struct {
	repository  Repository
	callbackURL string
	httpClient  *http.Client
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client for provider API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.httpClient = client
	}
}

// NewService creates a provider service. callbackURL is the absolute URL of
// the remote-callback endpoint registered with every provider.
func NewService(repository Repository, callbackURL string, opts ...Option) *Service {
	s := &Service{
		repository:  repository,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns an enabled provider by scheme name.
func (s *Service) Get(scheme string) (*Provider, error) {
	provider, err := s.repository.GetProvider(scheme)
	if err != nil {
		return nil, err
	}
	if !provider.Enabled {
		return nil, fmt.Errorf("provider is disabled: %s", scheme)
	}
	return provider, nil
}

// List returns all enabled providers.
func (s *Service) List() ([]*Provider, error) {
	providers, err := s.repository.ListProviders()
	if err != nil {
		return nil, err
	}
	enabled := make([]*Provider, 0, len(providers))
	for _, provider := range providers {
		if provider.Enabled {
			enabled = append(enabled, provider)
		}
	}
	return enabled, nil
}

// ChallengeURL builds the provider's authorization URL carrying the
// protected challenge state and any extra scopes.
func (s *Service) ChallengeURL(scheme, protectedState string, extraScopes []string) (string, error) {
	provider, err := s.Get(scheme)
	if err != nil {
		return "", err
	}

	conf := provider.OAuth2Config(s.callbackURL, extraScopes)
	authURL := conf.AuthCodeURL(protectedState)
	slog.Debug("Built provider challenge URL", "scheme", scheme, "scopes", conf.Scopes)
	return authURL, nil
}

// Exchange swaps an authorization code for the provider's token and fetches
// the normalized external identity.
func (s *Service) Exchange(ctx context.Context, scheme, code string) (login.ExternalIdentity, error) {
	provider, err := s.Get(scheme)
	if err != nil {
		return login.ExternalIdentity{}, err
	}

	conf := provider.OAuth2Config(s.callbackURL, nil)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Error("Token exchange failed", "scheme", scheme, "err", err)
		return login.ExternalIdentity{}, fmt.Errorf("token exchange failed: %w", err)
	}

	payload, err := s.fetchUserInfo(ctx, provider, conf, token)
	if err != nil {
		return login.ExternalIdentity{}, err
	}

	if payload.ExternalID() == "" {
		return login.ExternalIdentity{}, fmt.Errorf("provider returned no stable user id")
	}

	return login.ExternalIdentity{
		Scheme:     scheme,
		ExternalID: payload.ExternalID(),
		Email:      payload.Email,
		Name:       payload.Name,
	}, nil
}

func (s *Service) fetchUserInfo(ctx context.Context, provider *Provider, conf *oauth2.Config, token *oauth2.Token) (UserInfoPayload, error) {
	client := conf.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, provider.UserInfoURL, nil)
	if err != nil {
		return UserInfoPayload{}, fmt.Errorf("failed to build user info request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Error("User info request failed", "scheme", provider.Name, "err", err)
		return UserInfoPayload{}, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("User info request rejected", "scheme", provider.Name, "status", resp.StatusCode, "body", string(body))
		return UserInfoPayload{}, fmt.Errorf("user info request returned status %d", resp.StatusCode)
	}

	var payload UserInfoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return UserInfoPayload{}, fmt.Errorf("failed to decode user info: %w", err)
	}
	return payload, nil
}
