package authflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-auth/pkg/authinfo"
	"github.com/tendant/simple-auth/pkg/login"
	"github.com/tendant/simple-auth/pkg/tokencodec"
)

func fixedClock(t *testing.T) (time.Time, func() time.Time) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	return now, func() time.Time { return now }
}

func setupFlowService(t *testing.T, opts ...Option) (*Service, *login.InMemLoginService, time.Time) {
	t.Helper()
	now, clock := fixedClock(t)
	loginService := login.NewInMemLoginService()
	_, err := loginService.AddAccount("Albert", "success", "Albert")
	require.NoError(t, err)
	opts = append([]Option{WithClock(clock)}, opts...)
	return NewService(loginService, opts...), loginService, now
}

func anonymousPrior(deviceID string) authinfo.FrontAuthenticationInfo {
	return authinfo.FrontAuthenticationInfo{Info: authinfo.NewAnonymous(deviceID)}
}

func TestComplete_Success(t *testing.T) {
	service, loginService, now := setupFlowService(t)
	ctx := context.Background()

	verified, err := loginService.LoginBasic(ctx, login.SchemeBasic, "Albert", "success")
	require.NoError(t, err)

	flow := NewContext(OriginDirect, login.SchemeBasic, anonymousPrior("dev-1"))
	result := service.Complete(ctx, flow, verified)

	require.Nil(t, result.ErrorResponse)
	assert.Equal(t, authinfo.LevelNormal, result.Info.Level(now))
	assert.Equal(t, "Albert", result.Info.User(now).Name)
	assert.Equal(t, "dev-1", result.Info.DeviceID())
	assert.Equal(t, now.Add(DefaultExpiration), result.Info.Expires())
}

func TestComplete_CriticalDuration(t *testing.T) {
	service, loginService, now := setupFlowService(t,
		WithExpiration(time.Hour),
		WithCriticalDuration(login.SchemeBasic, 5*time.Minute),
	)
	ctx := context.Background()

	verified, err := loginService.LoginBasic(ctx, login.SchemeBasic, "Albert", "success")
	require.NoError(t, err)

	flow := NewContext(OriginDirect, login.SchemeBasic, anonymousPrior(""))
	result := service.Complete(ctx, flow, verified)

	require.Nil(t, result.ErrorResponse)
	assert.Equal(t, authinfo.LevelCritical, result.Info.Level(now))
	assert.Equal(t, now.Add(5*time.Minute), result.Info.CriticalExpires())
}

func TestComplete_FailureNeverEscalates(t *testing.T) {
	service, loginService, now := setupFlowService(t)
	ctx := context.Background()

	// Prior credential is a Normal login for Albert.
	albert := authinfo.UserInfo{ID: 1, Name: "Albert"}
	prior := authinfo.FrontAuthenticationInfo{
		Info:       authinfo.New(albert, albert, now.Add(time.Hour), time.Time{}, "dev-1", now),
		RememberMe: true,
	}

	verified, err := loginService.LoginBasic(ctx, login.SchemeBasic, "Albert", "wrong")
	require.NoError(t, err)

	flow := NewContext(OriginDirect, login.SchemeBasic, prior)
	result := service.Complete(ctx, flow, verified)

	require.NotNil(t, result.ErrorResponse)
	assert.Equal(t, ErrorTypeInvalidCredentials, result.ErrorResponse.Type)
	assert.Equal(t, login.FailureWrongPassword, result.ErrorResponse.FailureCode)
	assert.NotEmpty(t, result.ErrorResponse.FailureReason)

	// The prior credential is downgraded to Unsafe, not dropped, and the
	// identity stays visible only through the unsafe accessors.
	assert.Equal(t, authinfo.LevelUnsafe, result.Info.Level(now))
	assert.Equal(t, "Albert", result.Info.UnsafeUser().Name)
	assert.Equal(t, authinfo.Anonymous, result.Info.User(now))
	assert.True(t, result.RememberMe)
	assert.Equal(t, "dev-1", result.Info.DeviceID())
}

func TestComplete_ValidationHookRejects(t *testing.T) {
	hooks := login.Hooks{
		Validator: login.LoginValidatorFunc(func(ctx context.Context, user authinfo.UserInfo, scheme string) error {
			return errors.New("tenant suspended")
		}),
	}
	service, loginService, now := setupFlowService(t, WithHooks(hooks))
	ctx := context.Background()

	verified, err := loginService.LoginBasic(ctx, login.SchemeBasic, "Albert", "success")
	require.NoError(t, err)
	require.True(t, verified.Succeeded())

	flow := NewContext(OriginDirect, login.SchemeBasic, anonymousPrior(""))
	result := service.Complete(ctx, flow, verified)

	require.NotNil(t, result.ErrorResponse)
	assert.Equal(t, ErrorTypeValidation, result.ErrorResponse.Type)
	assert.Equal(t, "tenant suspended", result.ErrorResponse.Message)
	assert.Equal(t, authinfo.LevelNone, result.Info.Level(now))
}

type bindingHook struct {
	bound authinfo.UserInfo
	calls int
}

func (h *bindingHook) BindExternal(ctx context.Context, current authinfo.AuthenticationInfo, identity login.ExternalIdentity) (authinfo.UserInfo, error) {
	h.calls++
	return h.bound, nil
}

type creatorHook struct {
	created authinfo.UserInfo
	calls   int
}

func (h *creatorHook) CreateAccount(ctx context.Context, identity login.ExternalIdentity) (authinfo.UserInfo, error) {
	h.calls++
	return h.created, nil
}

func TestComplete_AutoBindRequiresTrustedPrior(t *testing.T) {
	now, clock := fixedClock(t)
	binder := &bindingHook{bound: authinfo.UserInfo{ID: 7, Name: "Bound"}}
	loginService := login.NewInMemLoginService()
	service := NewService(loginService, WithClock(clock), WithHooks(login.Hooks{AutoBinder: binder}))

	identity := &login.ExternalIdentity{Scheme: "google", ExternalID: "ext-1"}

	// Anonymous prior: the binder must not be consulted.
	flow := NewContext(OriginRemote, "google", anonymousPrior(""))
	flow.External = identity
	result := service.Complete(context.Background(), flow, login.Failure(login.FailureUnregisteredUser))
	require.NotNil(t, result.ErrorResponse)
	assert.Zero(t, binder.calls)

	// Trusted prior: the binder resolves the account and a real login
	// completes for it.
	albert := authinfo.UserInfo{ID: 1, Name: "Albert"}
	prior := authinfo.FrontAuthenticationInfo{
		Info: authinfo.New(albert, albert, now.Add(time.Hour), time.Time{}, "dev-1", now),
	}
	flow = NewContext(OriginRemote, "google", prior)
	flow.External = identity
	result = service.Complete(context.Background(), flow, login.Failure(login.FailureUnregisteredUser))
	require.Nil(t, result.ErrorResponse)
	assert.Equal(t, 1, binder.calls)
	assert.Equal(t, "Bound", result.Info.User(now).Name)
}

func TestComplete_AutoCreate(t *testing.T) {
	_, clock := fixedClock(t)
	creator := &creatorHook{created: authinfo.UserInfo{ID: 9, Name: "Fresh"}}
	loginService := login.NewInMemLoginService()
	service := NewService(loginService, WithClock(clock), WithHooks(login.Hooks{AutoCreator: creator}))

	flow := NewContext(OriginRemote, "google", anonymousPrior(""))
	flow.External = &login.ExternalIdentity{Scheme: "google", ExternalID: "ext-2"}
	result := service.Complete(context.Background(), flow, login.Failure(login.FailureUnregisteredUser))

	require.Nil(t, result.ErrorResponse)
	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, int64(9), result.Info.UnsafeActualUser().ID)
}

func TestComplete_HooksOffByDefault(t *testing.T) {
	service, _, _ := setupFlowService(t)

	flow := NewContext(OriginRemote, "google", anonymousPrior(""))
	flow.External = &login.ExternalIdentity{Scheme: "google", ExternalID: "ext-3"}
	result := service.Complete(context.Background(), flow, login.Failure(login.FailureUnregisteredUser))

	require.NotNil(t, result.ErrorResponse)
	assert.Equal(t, login.FailureUnregisteredUser, result.ErrorResponse.FailureCode)
}

func TestComplete_PanickingHookIsContained(t *testing.T) {
	hooks := login.Hooks{
		Validator: login.LoginValidatorFunc(func(ctx context.Context, user authinfo.UserInfo, scheme string) error {
			panic("boom")
		}),
	}
	service, loginService, _ := setupFlowService(t, WithHooks(hooks))
	ctx := context.Background()

	verified, err := loginService.LoginBasic(ctx, login.SchemeBasic, "Albert", "success")
	require.NoError(t, err)

	flow := NewContext(OriginDirect, login.SchemeBasic, anonymousPrior(""))
	result := service.Complete(ctx, flow, verified)

	require.NotNil(t, result.ErrorResponse)
	assert.Equal(t, ErrorTypeInternalError, result.ErrorResponse.Type)
}

func TestComplete_ImpersonationSurvivesRelogin(t *testing.T) {
	service, loginService, now := setupFlowService(t)
	ctx := context.Background()

	// Albert was impersonating Robert before the re-login.
	albert := authinfo.UserInfo{ID: 1, Name: "Albert"}
	robert := authinfo.UserInfo{ID: 2, Name: "Robert"}
	prior := authinfo.FrontAuthenticationInfo{
		Info: authinfo.New(albert, robert, now.Add(time.Minute), time.Time{}, "dev-1", now),
	}

	verified, err := loginService.LoginBasic(ctx, login.SchemeBasic, "Albert", "success")
	require.NoError(t, err)

	flow := NewContext(OriginDirect, login.SchemeBasic, prior)
	flow.ImpersonateActualUser = true
	result := service.Complete(ctx, flow, verified)

	require.Nil(t, result.ErrorResponse)
	assert.True(t, result.Info.IsImpersonated())
	assert.Equal(t, "Robert", result.Info.User(now).Name)
	assert.Equal(t, "Albert", result.Info.UnsafeActualUser().Name)
}

func TestContext_TerminalSemantics(t *testing.T) {
	flow := NewContext(OriginDirect, login.SchemeBasic, anonymousPrior(""))
	assert.False(t, flow.Handled())

	flow.SetError(ErrorTypeValidation, "first")
	flow.SetError(ErrorTypeValidation, "second")
	require.NotNil(t, flow.Err())
	assert.Equal(t, "second", flow.Err().Message, "last write wins")

	// Success displaces a previous error.
	flow.SetSuccess(authinfo.NewAnonymous("dev"))
	assert.Nil(t, flow.Err())
	_, ok := flow.Success()
	assert.True(t, ok)

	require.NoError(t, flow.Finalize())
	assert.Error(t, flow.Finalize(), "second finalize is rejected at the boundary")
}

func TestContext_SetErrorFromErr(t *testing.T) {
	flow := NewContext(OriginDirect, login.SchemeBasic, anonymousPrior(""))
	flow.SetErrorFromErr(fmt.Errorf("backend unavailable"))

	require.NotNil(t, flow.Err())
	assert.Equal(t, "*errors.errorString", flow.Err().Type)
	assert.Equal(t, "backend unavailable", flow.Err().Message)
}

func TestChallengeState_RoundTrip(t *testing.T) {
	now := time.Now().UTC()
	codec := tokencodec.NewJwtCodec("challenge-secret", "simple-auth", PurposeChallenge)

	albert := authinfo.UserInfo{ID: 1, Name: "Albert"}
	state := ChallengeState{
		Scheme: "google",
		Prior: authinfo.FrontAuthenticationInfo{
			Info:       authinfo.New(albert, albert, now.Add(time.Hour), time.Time{}, "dev-1", now),
			RememberMe: true,
		},
		ReturnURL:             "https://app.example.com/done",
		CallerOrigin:          "https://app.example.com",
		RememberMe:            true,
		ImpersonateActualUser: false,
		UserData:              map[string]any{"k": "v"},
	}

	protected, err := ProtectChallengeState(codec, state)
	require.NoError(t, err)

	decoded, err := UnprotectChallengeState(codec, protected)
	require.NoError(t, err)
	assert.Equal(t, "google", decoded.Scheme)
	assert.Equal(t, state.ReturnURL, decoded.ReturnURL)
	assert.Equal(t, "v", decoded.UserData["k"])
	assert.True(t, decoded.Prior.RememberMe)
	assert.Equal(t, int64(1), decoded.Prior.Info.UnsafeActualUser().ID)

	flow := ContextFromChallenge(decoded)
	assert.Equal(t, OriginRemote, flow.Origin)
	assert.Equal(t, "google", flow.Scheme)
	assert.True(t, flow.RememberMe)

	_, err = UnprotectChallengeState(codec, protected+"tampered")
	assert.Error(t, err)
}
