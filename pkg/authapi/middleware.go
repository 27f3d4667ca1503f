package authapi

import (
	"net/http"

	"github.com/tendant/simple-auth/pkg/authinfo"
)

// RequireLevel gates a route group on a minimum trust level. It must run
// after the resolver middleware; an unresolved request reads as None.
func (h *Handle) RequireLevel(level authinfo.Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			cred := h.credential(r)
			if cred.Front.Info.Level(h.now()) < level {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "insufficient trust level")
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// RequireUser gates a route group on a trusted non-anonymous acting user.
func (h *Handle) RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			cred := h.credential(r)
			if cred.Front.Info.User(h.now()).IsAnonymous() {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
