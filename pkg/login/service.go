package login

import (
	"context"

	"github.com/tendant/simple-auth/pkg/authinfo"
)

// SchemeBasic is the built-in password scheme name.
const SchemeBasic = "Basic"

// SchemeInfo describes an available login scheme.
type SchemeInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Remote      bool   `json:"remote,omitempty"`
}

// LoginResult is the outcome of a credential verification. A failed
// verification carries a non-zero failure code; it is not an error.
type LoginResult struct {
	User          authinfo.UserInfo
	FailureCode   int
	FailureReason string
}

// Succeeded reports whether the verification yielded a user.
func (r LoginResult) Succeeded() bool {
	return r.FailureCode == FailureNone && !r.User.IsAnonymous()
}

// ExternalIdentity is the normalized identity returned by a remote
// provider, handed to the LoginService or to the binding hooks.
type ExternalIdentity struct {
	Scheme     string `json:"scheme"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
}

// LoginService is the external collaborator that verifies identities. It is
// the only shared resource the protocol engine talks to; implementations
// must be safe for concurrent use.
type LoginService interface {
	// LoginBasic verifies a username/password pair for the given scheme
	LoginBasic(ctx context.Context, scheme, username, password string) (LoginResult, error)

	// LoginScheme verifies an arbitrary scheme payload
	LoginScheme(ctx context.Context, scheme string, payload map[string]any) (LoginResult, error)

	// LoginExternal resolves an externally verified identity to a user
	LoginExternal(ctx context.Context, identity ExternalIdentity) (LoginResult, error)

	// RefreshUser re-reads a user by id to pick up identity changes
	RefreshUser(ctx context.Context, userID int64) (authinfo.UserInfo, error)

	// Schemes lists the schemes this service can verify
	Schemes(ctx context.Context) ([]SchemeInfo, error)
}
