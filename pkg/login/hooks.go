package login

import (
	"context"

	"github.com/tendant/simple-auth/pkg/authinfo"
)

// LoginValidator can veto a login after the underlying identity check
// passed, for example to enforce account state or tenant rules.
type LoginValidator interface {
	// ValidateLogin returns an error to cancel the login
	ValidateLogin(ctx context.Context, user authinfo.UserInfo, scheme string) error
}

// AutoBinder binds an external identity to an already-authenticated
// account when the external identity is not yet registered.
//
// Security sensitive: enabling it automates account linkage. It is only
// consulted when the current credential is at least Normal, and the bind
// always completes a real login for the bound account.
type AutoBinder interface {
	BindExternal(ctx context.Context, current authinfo.AuthenticationInfo, identity ExternalIdentity) (authinfo.UserInfo, error)
}

// AutoCreator creates a new account for an unregistered external identity.
//
// Security sensitive: enabling it turns any verified external identity
// into an account. Off by default.
type AutoCreator interface {
	CreateAccount(ctx context.Context, identity ExternalIdentity) (authinfo.UserInfo, error)
}

// ScopeProvider augments the OAuth scope request for a remote challenge.
type ScopeProvider interface {
	AdditionalScopes(ctx context.Context, scheme string) []string
}

// ImpersonationResolver resolves an impersonation target to a user. A nil
// resolver means impersonation targets other than the caller are not found;
// a resolver error means the target is forbidden.
type ImpersonationResolver interface {
	ResolveImpersonation(ctx context.Context, actual authinfo.UserInfo, targetName string, targetID int64) (authinfo.UserInfo, error)
}

// UnsafeLoginGate approves an unsafeDirectLogin (scheme, payload) pair.
// Deny by default: without a gate, unsafeDirectLogin is refused outright.
type UnsafeLoginGate interface {
	AllowUnsafeLogin(ctx context.Context, scheme string, payload map[string]any) bool
}

// Hooks is the registry of optional collaborators. Every field may be nil;
// callers nil-check before use.
type Hooks struct {
	Validator     LoginValidator
	AutoBinder    AutoBinder
	AutoCreator   AutoCreator
	ScopeProvider ScopeProvider
	Impersonation ImpersonationResolver
	UnsafeGate    UnsafeLoginGate
}

// Func adapters so simple hooks can be registered without a named type.

type LoginValidatorFunc func(ctx context.Context, user authinfo.UserInfo, scheme string) error

func (f LoginValidatorFunc) ValidateLogin(ctx context.Context, user authinfo.UserInfo, scheme string) error {
	return f(ctx, user, scheme)
}

type ScopeProviderFunc func(ctx context.Context, scheme string) []string

func (f ScopeProviderFunc) AdditionalScopes(ctx context.Context, scheme string) []string {
	return f(ctx, scheme)
}

type UnsafeLoginGateFunc func(ctx context.Context, scheme string, payload map[string]any) bool

func (f UnsafeLoginGateFunc) AllowUnsafeLogin(ctx context.Context, scheme string, payload map[string]any) bool {
	return f(ctx, scheme, payload)
}

type ImpersonationResolverFunc func(ctx context.Context, actual authinfo.UserInfo, targetName string, targetID int64) (authinfo.UserInfo, error)

func (f ImpersonationResolverFunc) ResolveImpersonation(ctx context.Context, actual authinfo.UserInfo, targetName string, targetID int64) (authinfo.UserInfo, error) {
	return f(ctx, actual, targetName, targetID)
}
