package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-auth/pkg/authinfo"
	"github.com/tendant/simple-auth/pkg/login"
)

// DefaultExpiration is the general credential lifetime when none is
// configured.
const DefaultExpiration = 30 * time.Minute

// Result contains the outcome of a completed login attempt. On error the
// Info field carries the Unsafe projection of the prior credential, never
// an escalated one.
type Result struct {
	Info          authinfo.AuthenticationInfo
	RememberMe    bool
	UserData      map[string]any
	ErrorResponse *Error
}

// Service runs the unified login pipeline shared by direct and remote
// entry points.
type Service struct {
	loginService      login.LoginService
	hooks             login.Hooks
	expiration        time.Duration
	criticalDurations map[string]time.Duration
	now               func() time.Time
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithHooks sets the optional collaborator registry.
func WithHooks(hooks login.Hooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithExpiration sets the general credential lifetime.
func WithExpiration(expiration time.Duration) Option {
	return func(s *Service) {
		s.expiration = expiration
	}
}

// WithCriticalDuration configures a critical-trust duration for a scheme.
// A login through that scheme yields a Critical credential for the given
// duration when it is shorter than the general expiration.
func WithCriticalDuration(scheme string, d time.Duration) Option {
	return func(s *Service) {
		if s.criticalDurations == nil {
			s.criticalDurations = make(map[string]time.Duration)
		}
		s.criticalDurations[scheme] = d
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a login pipeline service.
func NewService(loginService login.LoginService, opts ...Option) *Service {
	s := &Service{
		loginService: loginService,
		expiration:   DefaultExpiration,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hooks exposes the collaborator registry to the protocol layer.
func (s *Service) Hooks() login.Hooks {
	return s.hooks
}

// LoginService exposes the identity boundary to the protocol layer.
func (s *Service) LoginService() login.LoginService {
	return s.loginService
}

// Expiration returns the configured general credential lifetime.
func (s *Service) Expiration() time.Duration {
	return s.expiration
}

// Complete funnels a verification result through the shared success/failure
// pipeline and seals the context. A panicking hook is caught here and
// converted to a structured internal error; it never propagates.
func (s *Service) Complete(ctx context.Context, flow *Context, result login.LoginResult) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Login hook panicked", "scheme", flow.Scheme, "panic", r)
			flow.SetError(ErrorTypeInternalError, fmt.Sprintf("%v", r))
			res = s.seal(flow)
		}
	}()

	s.complete(ctx, flow, result)
	return s.seal(flow)
}

func (s *Service) seal(flow *Context) Result {
	if err := flow.Finalize(); err != nil {
		slog.Error("Login context finalized twice", "scheme", flow.Scheme, "err", err)
	}
	return s.resultFrom(flow)
}

// Abort seals the context with an error from a backend fault. The fault
// surfaces as a structured login error, never as an unhandled failure
// reaching the client.
func (s *Service) Abort(flow *Context, err error) Result {
	slog.Error("Login attempt aborted", "scheme", flow.Scheme, "err", err)
	flow.SetErrorFromErr(err)
	return s.seal(flow)
}

func (s *Service) complete(ctx context.Context, flow *Context, result login.LoginResult) {
	now := s.now()

	if !result.Succeeded() {
		// An unregistered external user may still be bound or created by
		// the opt-in hooks; both complete a real login for the resolved
		// account.
		if result.FailureCode == login.FailureUnregisteredUser && flow.External != nil {
			if user, ok := s.tryAutoLink(ctx, flow, now); ok {
				result = login.LoginResult{User: user}
			}
		}
		if !result.Succeeded() {
			flow.SetFailure(result)
			return
		}
	}

	user := result.User

	if s.hooks.Validator != nil {
		if err := s.hooks.Validator.ValidateLogin(ctx, user, flow.Scheme); err != nil {
			slog.Info("Login rejected by validation hook", "scheme", flow.Scheme, "user_id", user.ID, "err", err)
			flow.SetError(ErrorTypeValidation, err.Error())
			return
		}
	}

	expires := now.Add(s.expiration)
	var criticalExpires time.Time
	if d, ok := s.criticalDurations[flow.Scheme]; ok && d > 0 {
		criticalExpires = now.Add(d)
	}

	// The acting user survives a re-login of the actual user when the
	// attempt asked for it and the prior context was impersonating.
	acting := user
	if flow.ImpersonateActualUser {
		priorActing := flow.Prior.Info.UnsafeUser()
		if !priorActing.IsAnonymous() && priorActing.ID != user.ID {
			acting = priorActing
		}
	}

	info := authinfo.New(user, acting, expires, criticalExpires, flow.Prior.Info.DeviceID(), now)
	flow.SetSuccess(info)
}

// tryAutoLink consults the auto-binding and auto-creation hooks, in that
// order. Binding requires a currently trusted credential to bind to.
func (s *Service) tryAutoLink(ctx context.Context, flow *Context, now time.Time) (authinfo.UserInfo, bool) {
	identity := *flow.External

	if s.hooks.AutoBinder != nil && flow.Prior.Info.Level(now) >= authinfo.LevelNormal {
		user, err := s.hooks.AutoBinder.BindExternal(ctx, flow.Prior.Info, identity)
		if err != nil {
			slog.Warn("Auto-binding failed", "scheme", identity.Scheme, "err", err)
		} else if !user.IsAnonymous() {
			slog.Info("External identity auto-bound", "scheme", identity.Scheme, "user_id", user.ID)
			return user, true
		}
	}

	if s.hooks.AutoCreator != nil {
		user, err := s.hooks.AutoCreator.CreateAccount(ctx, identity)
		if err != nil {
			slog.Warn("Auto-creation failed", "scheme", identity.Scheme, "err", err)
		} else if !user.IsAnonymous() {
			slog.Info("Account auto-created for external identity", "scheme", identity.Scheme, "user_id", user.ID)
			return user, true
		}
	}

	return authinfo.Anonymous, false
}

func (s *Service) resultFrom(flow *Context) Result {
	now := s.now()

	if err := flow.Err(); err != nil {
		return Result{
			Info:          flow.Prior.Info.Downgraded(now),
			RememberMe:    flow.Prior.RememberMe,
			UserData:      flow.UserData,
			ErrorResponse: err,
		}
	}
	if info, ok := flow.Success(); ok {
		return Result{
			Info:       info,
			RememberMe: flow.RememberMe,
			UserData:   flow.UserData,
		}
	}

	slog.Error("Login context reached the boundary without a terminal state", "scheme", flow.Scheme)
	return Result{
		Info:          flow.Prior.Info.Downgraded(now),
		RememberMe:    flow.Prior.RememberMe,
		UserData:      flow.UserData,
		ErrorResponse: &Error{Type: ErrorTypeInternalError, Message: "login attempt was not handled"},
	}
}
