package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-auth/pkg/authflow"
	"github.com/tendant/simple-auth/pkg/authinfo"
	"github.com/tendant/simple-auth/pkg/device"
	"github.com/tendant/simple-auth/pkg/login"
	"github.com/tendant/simple-auth/pkg/provider"
	"github.com/tendant/simple-auth/pkg/tokencodec"
)

// Handle serves the authentication protocol endpoints.
type Handle struct {
	flowService     *authflow.Service
	providerService *provider.Service
	deviceService   *device.DeviceService
	codecs          *tokencodec.CodecService
	cookies         *CookieManager
	slidingWindow   time.Duration
	returnURLBases  []string
	version         string
	loginLimiter    func(http.Handler) http.Handler
	now             func() time.Time
}

// Option configures a Handle.
type Option func(*Handle)

// WithProviderService enables remote provider login.
func WithProviderService(providerService *provider.Service) Option {
	return func(h *Handle) {
		h.providerService = providerService
	}
}

// WithDeviceService enables device id allocation and tracking.
func WithDeviceService(deviceService *device.DeviceService) Option {
	return func(h *Handle) {
		h.deviceService = deviceService
	}
}

// WithSlidingWindow enables sliding expiration: refresh extends a Normal
// credential to now+window whenever that is later than its current expiry.
func WithSlidingWindow(window time.Duration) Option {
	return func(h *Handle) {
		h.slidingWindow = window
	}
}

// WithReturnURLBases sets the inline-redirect allow-list. Deny by default:
// without any base, no return URL is accepted.
func WithReturnURLBases(bases ...string) Option {
	return func(h *Handle) {
		h.returnURLBases = append(h.returnURLBases, bases...)
	}
}

// WithLoginLimiter throttles the credential-carrying login endpoints with
// the given middleware, typically a ratelimit.Middleware keyed by client IP.
func WithLoginLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handle) {
		h.loginLimiter = mw
	}
}

// WithVersion sets the build version reported by refresh.
func WithVersion(version string) Option {
	return func(h *Handle) {
		h.version = version
	}
}

// WithHandleClock overrides the clock, for tests.
func WithHandleClock(now func() time.Time) Option {
	return func(h *Handle) {
		h.now = now
	}
}

// NewHandle creates the protocol handler.
func NewHandle(flowService *authflow.Service, codecs *tokencodec.CodecService, cookies *CookieManager, opts ...Option) *Handle {
	h := &Handle{
		flowService: flowService,
		codecs:      codecs,
		cookies:     cookies,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the protocol endpoints on the given router. The
// credential is resolved once per request by the resolver middleware.
func (h *Handle) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Resolver())
		r.Get("/c/refresh", h.Refresh)
		if h.loginLimiter != nil {
			r.With(h.loginLimiter).Post("/c/basicLogin", h.BasicLogin)
			r.With(h.loginLimiter).Post("/c/unsafeDirectLogin", h.UnsafeDirectLogin)
		} else {
			r.Post("/c/basicLogin", h.BasicLogin)
			r.Post("/c/unsafeDirectLogin", h.UnsafeDirectLogin)
		}
		r.Get("/c/startLogin", h.StartLogin)
		r.Post("/c/startLogin", h.StartLogin)
		r.Get("/c/callback", h.Callback)
		r.Post("/c/impersonate", h.Impersonate)
		r.Get("/c/logout", h.Logout)
		r.Get("/token", h.Token)
	})
}

// Refresh re-issues the resolved credential, optionally re-validated
// against the login service, with sliding expiration applied.
func (h *Handle) Refresh(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	cred := h.credential(r)
	info := cred.Front.Info
	q := r.URL.Query()

	if q.Has("full") {
		info = h.refreshFromBackend(r, info, now)
	}

	if h.slidingWindow > 0 && info.Level(now) >= authinfo.LevelNormal {
		info = info.ExtendedTo(now.Add(h.slidingWindow), now)
	}
	info = h.ensureDevice(r, info, now)

	front := authinfo.FrontAuthenticationInfo{Info: info, RememberMe: cred.Front.RememberMe}
	h.writeAuth(w, r, front, respondOpts{
		schemes: q.Has("schemes"),
		version: q.Has("version"),
	})
}

// refreshFromBackend re-reads the actual user from the login service to
// pick up renames and revoked schemes. A vanished user collapses the
// credential; a backend fault keeps the current one.
func (h *Handle) refreshFromBackend(r *http.Request, info authinfo.AuthenticationInfo, now time.Time) authinfo.AuthenticationInfo {
	actual := info.UnsafeActualUser()
	if actual.IsAnonymous() {
		return info
	}

	user, err := h.flowService.LoginService().RefreshUser(r.Context(), actual.ID)
	if errors.Is(err, login.ErrUserNotFound) {
		slog.Info("User no longer resolves, collapsing credential", "user_id", actual.ID)
		return authinfo.NewAnonymous(info.DeviceID())
	}
	if err != nil {
		slog.Warn("Backend refresh failed, keeping current credential", "user_id", actual.ID, "err", err)
		return info
	}

	acting := user
	if info.IsImpersonated() {
		acting = info.UnsafeUser()
	}
	return authinfo.New(user, acting, info.Expires(), info.CriticalExpires(), info.DeviceID(), now)
}

// BasicLoginRequest is the basicLogin body.
type BasicLoginRequest struct {
	Scheme                string         `json:"scheme,omitempty"`
	Username              string         `json:"username"`
	Password              string         `json:"password"`
	RememberMe            *bool          `json:"rememberMe,omitempty"`
	ImpersonateActualUser bool           `json:"impersonateActualUser,omitempty"`
	UserData              map[string]any `json:"userData,omitempty"`
}

// BasicLogin verifies a username/password pair. Failures come back as HTTP
// 200 with the failure fields populated and a non-escalated credential.
func (h *Handle) BasicLogin(w http.ResponseWriter, r *http.Request) {
	var req BasicLoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "username is required")
		return
	}
	scheme := req.Scheme
	if scheme == "" {
		scheme = login.SchemeBasic
	}

	cred := h.credential(r)
	flow := authflow.NewContext(authflow.OriginDirect, scheme, cred.Front)
	if req.RememberMe != nil {
		flow.RememberMe = *req.RememberMe
	}
	flow.ImpersonateActualUser = req.ImpersonateActualUser
	flow.UserData = req.UserData

	result, err := h.flowService.LoginService().LoginBasic(r.Context(), scheme, req.Username, req.Password)
	var res authflow.Result
	if err != nil {
		res = h.flowService.Abort(flow, err)
	} else {
		res = h.flowService.Complete(r.Context(), flow, result)
	}
	h.writeResult(w, r, res)
}

// UnsafeDirectLoginRequest is the unsafeDirectLogin body.
type UnsafeDirectLoginRequest struct {
	Scheme                string         `json:"scheme"`
	Payload               map[string]any `json:"payload"`
	RememberMe            *bool          `json:"rememberMe,omitempty"`
	ImpersonateActualUser bool           `json:"impersonateActualUser,omitempty"`
	UserData              map[string]any `json:"userData,omitempty"`
}

// UnsafeDirectLogin verifies an arbitrary scheme payload. Deny by default:
// the attempt is refused unless the unsafe-login gate approves the
// (scheme, payload) pair.
func (h *Handle) UnsafeDirectLogin(w http.ResponseWriter, r *http.Request) {
	var req UnsafeDirectLoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Scheme == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "scheme is required")
		return
	}

	gate := h.flowService.Hooks().UnsafeGate
	if gate == nil || !gate.AllowUnsafeLogin(r.Context(), req.Scheme, req.Payload) {
		writeError(w, r, http.StatusForbidden, "not_allowed", "direct login is not allowed for this scheme")
		return
	}

	cred := h.credential(r)
	flow := authflow.NewContext(authflow.OriginDirect, req.Scheme, cred.Front)
	if req.RememberMe != nil {
		flow.RememberMe = *req.RememberMe
	}
	flow.ImpersonateActualUser = req.ImpersonateActualUser
	flow.UserData = req.UserData

	result, err := h.flowService.LoginService().LoginScheme(r.Context(), req.Scheme, req.Payload)
	var res authflow.Result
	if err != nil {
		res = h.flowService.Abort(flow, err)
	} else {
		res = h.flowService.Complete(r.Context(), flow, result)
	}
	h.writeResult(w, r, res)
}

// ImpersonateRequest names the impersonation target by name or id.
type ImpersonateRequest struct {
	UserName string `json:"userName,omitempty"`
	UserID   int64  `json:"userId,omitempty"`
}

// Impersonate switches the acting user. Targeting the caller's own actual
// user clears impersonation; any other target goes through the resolver
// hook. Only the acting user changes, never the actual user.
func (h *Handle) Impersonate(w http.ResponseWriter, r *http.Request) {
	var req ImpersonateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.UserName == "" && req.UserID == 0 {
		writeError(w, r, http.StatusBadRequest, "bad_request", "userName or userId is required")
		return
	}

	now := h.now()
	cred := h.credential(r)
	info := cred.Front.Info

	actual := info.ActualUser(now)
	if actual.IsAnonymous() {
		writeError(w, r, http.StatusForbidden, "not_allowed", "impersonation requires an authenticated user")
		return
	}

	if (req.UserID != 0 && req.UserID == actual.ID) || (req.UserName != "" && req.UserName == actual.Name) {
		info = info.WithoutImpersonation(now)
	} else {
		resolver := h.flowService.Hooks().Impersonation
		if resolver == nil {
			writeError(w, r, http.StatusNotFound, "not_found", "impersonation target not found")
			return
		}
		target, err := resolver.ResolveImpersonation(r.Context(), actual, req.UserName, req.UserID)
		if err != nil {
			slog.Info("Impersonation refused", "actual_user_id", actual.ID, "target", req.UserName, "err", err)
			writeError(w, r, http.StatusForbidden, "not_allowed", "impersonation target is not allowed")
			return
		}
		info = info.WithImpersonation(target, now)
	}

	front := authinfo.FrontAuthenticationInfo{Info: info, RememberMe: cred.Front.RememberMe}
	h.writeAuth(w, r, front, respondOpts{})
}

// Logout clears the auth cookie. Without the full flag the long-term hint
// survives, leaving the client with an Unsafe soft-logout state; with it
// both cookies go.
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearAuth(w)
	if r.URL.Query().Has("full") {
		h.cookies.ClearLongTerm(w)
	}
	w.WriteHeader(http.StatusOK)
}

// Token returns the resolved credential without side effects.
func (h *Handle) Token(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	cred := h.credential(r)
	render.JSON(w, r, TokenResponse{
		Info:       NewInfoView(cred.Front.Info, now),
		RememberMe: cred.Front.RememberMe,
	})
}

type respondOpts struct {
	schemes  bool
	version  bool
	userData map[string]any
	errorRes *authflow.Error
}

// writeResult shapes a pipeline result into the uniform envelope.
func (h *Handle) writeResult(w http.ResponseWriter, r *http.Request, res authflow.Result) {
	front := authinfo.FrontAuthenticationInfo{
		Info:       h.ensureDevice(r, res.Info, h.now()),
		RememberMe: res.RememberMe,
	}
	h.writeAuth(w, r, front, respondOpts{userData: res.UserData, errorRes: res.ErrorResponse})
}

// writeAuth re-issues cookies for the credential and writes the envelope.
func (h *Handle) writeAuth(w http.ResponseWriter, r *http.Request, front authinfo.FrontAuthenticationInfo, opts respondOpts) {
	resp := h.envelope(r, front, opts)
	h.cookies.Write(w, front, h.now())
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// envelope builds the response body without touching the response writer.
func (h *Handle) envelope(r *http.Request, front authinfo.FrontAuthenticationInfo, opts respondOpts) AuthResponse {
	now := h.now()
	rememberMe := front.RememberMe && h.cookies.Enabled()

	resp := AuthResponse{
		Info:        NewInfoView(front.Info, now),
		RememberMe:  rememberMe,
		Refreshable: h.slidingWindow > 0 && front.Info.Level(now) >= authinfo.LevelNormal,
		UserData:    opts.userData,
	}
	resp.setError(opts.errorRes)

	token, err := h.codecs.Protect(tokencodec.PurposeToken, front)
	if err != nil {
		slog.Error("Failed to protect bearer token", "err", err)
	} else {
		resp.Token = token
	}

	if opts.schemes {
		schemes, err := h.flowService.LoginService().Schemes(r.Context())
		if err != nil {
			slog.Warn("Failed to list schemes", "err", err)
		} else {
			resp.Schemes = schemes
		}
	}
	if opts.version {
		resp.Version = h.version
	}
	return resp
}

// ensureDevice keeps the device id stable across authentication changes,
// allocating one when the client presented none.
func (h *Handle) ensureDevice(r *http.Request, info authinfo.AuthenticationInfo, now time.Time) authinfo.AuthenticationInfo {
	if h.deviceService == nil {
		if info.DeviceID() == "" {
			return info.WithDeviceID(device.NewDeviceID(), now)
		}
		return info
	}
	deviceID, err := h.deviceService.EnsureDeviceID(r.Context(), info.DeviceID(), r.UserAgent())
	if err != nil {
		slog.Warn("Device tracking failed", "device_id", info.DeviceID(), "err", err)
		return info
	}
	if deviceID != info.DeviceID() {
		return info.WithDeviceID(deviceID, now)
	}
	return info
}
