package authapi

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tendant/simple-auth/pkg/authflow"
	"github.com/tendant/simple-auth/pkg/authinfo"
)

// StartLogin begins a remote provider flow. The pre-challenge context is
// protected into the provider's state parameter because the provider
// cannot be trusted to preserve it. Inline redirects require the return
// URL to pass the allow-list; no allow-list means popup mode only.
func (h *Handle) StartLogin(w http.ResponseWriter, r *http.Request) {
	if h.providerService == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "remote login is not enabled")
		return
	}

	scheme := r.FormValue("scheme")
	if scheme == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "scheme is required")
		return
	}
	if _, err := h.providerService.Get(scheme); err != nil {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown scheme")
		return
	}

	returnURL := r.FormValue("returnUrl")
	if returnURL != "" && !h.returnURLAllowed(returnURL) {
		slog.Warn("Return URL rejected", "return_url", returnURL)
		writeError(w, r, http.StatusForbidden, "not_allowed", "return URL is not allowed")
		return
	}

	var userData map[string]any
	if raw := r.FormValue("userData"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &userData); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_request", "userData must be a JSON object")
			return
		}
	}

	cred := h.credential(r)
	rememberMe := cred.Front.RememberMe
	if raw := r.FormValue("rememberMe"); raw != "" {
		rememberMe, _ = strconv.ParseBool(raw)
	}
	impersonateActualUser, _ := strconv.ParseBool(r.FormValue("impersonateActualUser"))

	state := authflow.ChallengeState{
		Scheme:                scheme,
		Prior:                 cred.Front,
		ReturnURL:             returnURL,
		CallerOrigin:          r.FormValue("callerOrigin"),
		RememberMe:            rememberMe,
		ImpersonateActualUser: impersonateActualUser,
		UserData:              userData,
	}

	codec := h.codecs.GetCodec(authflow.PurposeChallenge)
	if codec == nil {
		slog.Error("No challenge codec configured")
		writeError(w, r, http.StatusNotFound, "not_found", "remote login is not enabled")
		return
	}
	protected, err := authflow.ProtectChallengeState(codec, state)
	if err != nil {
		slog.Error("Failed to protect challenge state", "scheme", scheme, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to start login")
		return
	}

	var extraScopes []string
	if provider := h.flowService.Hooks().ScopeProvider; provider != nil {
		extraScopes = provider.AdditionalScopes(r.Context(), scheme)
	}

	challengeURL, err := h.providerService.ChallengeURL(scheme, protected, extraScopes)
	if err != nil {
		slog.Error("Failed to build challenge URL", "scheme", scheme, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to start login")
		return
	}
	http.Redirect(w, r, challengeURL, http.StatusFound)
}

// Callback finishes a remote provider flow: decode the challenge state,
// re-hydrate the login context and funnel into the shared pipeline, then
// shape the response for inline-redirect or popup mode.
func (h *Handle) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rawState := q.Get("state")
	if rawState == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "state is required")
		return
	}
	codec := h.codecs.GetCodec(authflow.PurposeChallenge)
	if codec == nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid state")
		return
	}
	state, err := authflow.UnprotectChallengeState(codec, rawState)
	if err != nil {
		slog.Warn("Challenge state failed to unprotect", "err", err)
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid state")
		return
	}

	flow := authflow.ContextFromChallenge(state)

	var res authflow.Result
	if providerErr := q.Get("error"); providerErr != "" {
		message := q.Get("error_description")
		if message == "" {
			message = providerErr
		}
		res = h.flowService.Abort(flow, &providerError{code: providerErr, message: message})
	} else if code := q.Get("code"); code == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "code is required")
		return
	} else {
		identity, err := h.providerService.Exchange(r.Context(), state.Scheme, code)
		if err != nil {
			res = h.flowService.Abort(flow, err)
		} else {
			flow.External = &identity
			result, err := h.flowService.LoginService().LoginExternal(r.Context(), identity)
			if err != nil {
				res = h.flowService.Abort(flow, err)
			} else {
				res = h.flowService.Complete(r.Context(), flow, result)
			}
		}
	}

	front := authinfo.FrontAuthenticationInfo{
		Info:       h.ensureDevice(r, res.Info, h.now()),
		RememberMe: res.RememberMe,
	}
	h.cookies.Write(w, front, h.now())

	if state.ReturnURL != "" && h.returnURLAllowed(state.ReturnURL) {
		http.Redirect(w, r, state.ReturnURL, http.StatusFound)
		return
	}

	resp := h.envelope(r, front, respondOpts{userData: res.UserData, errorRes: res.ErrorResponse})
	h.writePopup(w, state.CallerOrigin, resp)
}

// providerError carries a remote provider's error response through the
// pipeline's error path.
type providerError struct {
	code    string
	message string
}

func (e *providerError) Error() string {
	return e.message
}

// returnURLAllowed checks the return URL against the allow-list. Deny by
// default: with no configured base every URL is rejected.
func (h *Handle) returnURLAllowed(returnURL string) bool {
	parsed, err := url.Parse(returnURL)
	if err != nil || !parsed.IsAbs() {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	for _, base := range h.returnURLBases {
		if strings.HasPrefix(returnURL, base) {
			return true
		}
	}
	return false
}

var popupTemplate = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Login</title></head>
<body>
<script>
(function () {
	var payload = {{.Payload}};
	var origin = {{.Origin}};
	if (window.opener && origin) {
		window.opener.postMessage(payload, origin);
	}
	window.close();
})();
</script>
</body>
</html>
`))

// writePopup emits the cross-window handoff page. The payload is posted
// only to the caller origin captured before the challenge; without one the
// page just closes itself.
func (h *Handle) writePopup(w http.ResponseWriter, callerOrigin string, resp AuthResponse) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := popupTemplate.Execute(w, struct {
		Payload AuthResponse
		Origin  string
	}{Payload: resp, Origin: callerOrigin})
	if err != nil {
		slog.Error("Failed to render popup page", "err", err)
	}
}
