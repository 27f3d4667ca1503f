package login

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-auth/pkg/authinfo"
)

// Account is a fixture identity held by InMemLoginService.
type Account struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash []byte
	Disabled     bool
	ExternalIDs  map[string]string // scheme -> external id
	Schemes      []authinfo.SchemeUse
}

// InMemLoginService is an in-memory LoginService for tests and demos.
// Passwords are stored bcrypt-hashed.
type InMemLoginService struct {
	mu       sync.Mutex
	accounts map[string]*Account
	schemes  []SchemeInfo
	nextID   int64
}

// NewInMemLoginService creates an empty in-memory login service.
func NewInMemLoginService() *InMemLoginService {
	return &InMemLoginService{
		accounts: make(map[string]*Account),
		schemes:  []SchemeInfo{{Name: SchemeBasic, DisplayName: "Password"}},
		nextID:   1,
	}
}

// AddScheme registers a scheme in the inventory, replacing any existing
// entry with the same name.
func (s *InMemLoginService) AddScheme(info SchemeInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.schemes {
		if existing.Name == info.Name {
			s.schemes[i] = info
			return
		}
	}
	s.schemes = append(s.schemes, info)
}

// AddAccount registers a fixture account and returns its id.
func (s *InMemLoginService) AddAccount(username, password, displayName string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if displayName == "" {
		displayName = username
	}
	s.accounts[username] = &Account{
		ID:           id,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: hash,
		ExternalIDs:  make(map[string]string),
	}
	return id, nil
}

// BindExternalID links an external identity to an existing account.
func (s *InMemLoginService) BindExternalID(username, scheme, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[username]
	if !ok {
		return ErrUserNotFound
	}
	account.ExternalIDs[scheme] = externalID
	return nil
}

// SetDisabled toggles an account's disabled flag.
func (s *InMemLoginService) SetDisabled(username string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[username]
	if !ok {
		return ErrUserNotFound
	}
	account.Disabled = disabled
	return nil
}

// Rename changes an account's display name, visible via RefreshUser.
func (s *InMemLoginService) Rename(username, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[username]
	if !ok {
		return ErrUserNotFound
	}
	account.DisplayName = displayName
	return nil
}

func (a *Account) userInfo() authinfo.UserInfo {
	schemes := make([]authinfo.SchemeUse, len(a.Schemes))
	copy(schemes, a.Schemes)
	return authinfo.UserInfo{ID: a.ID, Name: a.DisplayName, Schemes: schemes}
}

func (a *Account) recordScheme(scheme string, now time.Time) {
	for i := range a.Schemes {
		if a.Schemes[i].Name == scheme {
			a.Schemes[i].LastUsed = now
			return
		}
	}
	a.Schemes = append(a.Schemes, authinfo.SchemeUse{Name: scheme, LastUsed: now})
}

// LoginBasic verifies a username/password pair.
func (s *InMemLoginService) LoginBasic(ctx context.Context, scheme, username, password string) (LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scheme != SchemeBasic {
		return Failure(FailureUnknownScheme), nil
	}

	account, ok := s.accounts[username]
	if !ok {
		slog.Debug("Login failed, unknown user", "username", username)
		return Failure(FailureUnknownUser), nil
	}
	if account.Disabled {
		return Failure(FailureDisabledAccount), nil
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		slog.Debug("Login failed, password mismatch", "username", username)
		return Failure(FailureWrongPassword), nil
	}

	account.recordScheme(scheme, time.Now().UTC())
	return LoginResult{User: account.userInfo()}, nil
}

// LoginScheme verifies an arbitrary scheme payload. The in-memory service
// understands payloads with username and password fields.
func (s *InMemLoginService) LoginScheme(ctx context.Context, scheme string, payload map[string]any) (LoginResult, error) {
	username, _ := payload["username"].(string)
	password, _ := payload["password"].(string)
	if username == "" {
		return Failure(FailureUnknownUser), nil
	}
	return s.LoginBasic(ctx, SchemeBasic, username, password)
}

// LoginExternal resolves a verified external identity to an account.
func (s *InMemLoginService) LoginExternal(ctx context.Context, identity ExternalIdentity) (LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.ExternalIDs[identity.Scheme] == identity.ExternalID {
			if account.Disabled {
				return Failure(FailureDisabledAccount), nil
			}
			account.recordScheme(identity.Scheme, time.Now().UTC())
			return LoginResult{User: account.userInfo()}, nil
		}
	}
	slog.Debug("External identity not registered", "scheme", identity.Scheme)
	return Failure(FailureUnregisteredUser), nil
}

// RefreshUser re-reads a user by id.
func (s *InMemLoginService) RefreshUser(ctx context.Context, userID int64) (authinfo.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.ID == userID {
			if account.Disabled {
				return authinfo.Anonymous, ErrUserNotFound
			}
			return account.userInfo(), nil
		}
	}
	return authinfo.Anonymous, ErrUserNotFound
}

// Schemes lists the scheme inventory.
func (s *InMemLoginService) Schemes(ctx context.Context) ([]SchemeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schemes := make([]SchemeInfo, len(s.schemes))
	copy(schemes, s.schemes)
	return schemes, nil
}
