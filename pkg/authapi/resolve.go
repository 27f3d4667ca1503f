package authapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/tendant/simple-auth/pkg/authinfo"
	"github.com/tendant/simple-auth/pkg/tokencodec"
)

// Credential sources, in resolution order.
const (
	SourceToken  = "token"
	SourceCookie = "cookie"
	SourceHint   = "hint"
	SourceNone   = "none"
)

// ResolvedCredential is the per-request classification result: whatever
// credential the request carried, and where it came from.
type ResolvedCredential struct {
	Front  authinfo.FrontAuthenticationInfo
	Source string
}

type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "authapi context value " + k.name
}

var credentialKey = &contextKey{"resolvedCredential"}

// CredentialFromContext returns the credential resolved earlier in this
// request, if the resolver middleware ran.
func CredentialFromContext(ctx context.Context) (ResolvedCredential, bool) {
	cred, ok := ctx.Value(credentialKey).(ResolvedCredential)
	return cred, ok
}

// Resolver classifies the request's credential exactly once and stores the
// result in the request context for the rest of the request's processing.
func (h *Handle) Resolver() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			cred := h.resolveCredential(r)
			ctx := context.WithValue(r.Context(), credentialKey, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// credential returns the request's resolved credential, resolving on the
// spot when the middleware did not run.
func (h *Handle) credential(r *http.Request) ResolvedCredential {
	if cred, ok := CredentialFromContext(r.Context()); ok {
		return cred
	}
	return h.resolveCredential(r)
}

// resolveCredential classifies a request: a valid bearer token wins, then
// the protected auth cookie, then the long-term hint which yields only an
// Unsafe reconstruction. Decode failures read as absent, never as errors.
func (h *Handle) resolveCredential(r *http.Request) ResolvedCredential {
	now := h.now()

	if raw := jwtauth.TokenFromHeader(r); raw != "" {
		var front authinfo.FrontAuthenticationInfo
		if err := h.codecs.Unprotect(tokencodec.PurposeToken, raw, &front); err == nil {
			return ResolvedCredential{Front: front, Source: SourceToken}
		} else {
			slog.Debug("Bearer token failed to unprotect, treating as absent", "err", err)
		}
	}

	if front, ok := h.cookies.ReadAuth(r); ok {
		return ResolvedCredential{Front: front, Source: SourceCookie}
	}

	if hint, ok := h.cookies.ReadHint(r); ok {
		return ResolvedCredential{Front: hintCredential(hint, now), Source: SourceHint}
	}

	return ResolvedCredential{
		Front:  authinfo.FrontAuthenticationInfo{Info: authinfo.NewAnonymous("")},
		Source: SourceNone,
	}
}

// hintCredential reconstructs an Unsafe-level credential from the
// long-term hint: identity without trust, device id preserved.
func hintCredential(hint tokencodec.RememberMeHint, now time.Time) authinfo.FrontAuthenticationInfo {
	user := authinfo.UserInfo{ID: hint.UserID, Name: hint.UserName}
	return authinfo.FrontAuthenticationInfo{
		Info:       authinfo.New(user, user, time.Time{}, time.Time{}, hint.DeviceID, now),
		RememberMe: hint.UserID != 0,
	}
}
