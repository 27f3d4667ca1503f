package login

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLoginService(t *testing.T) *InMemLoginService {
	t.Helper()
	service := NewInMemLoginService()
	_, err := service.AddAccount("Albert", "success", "Albert")
	require.NoError(t, err)
	return service
}

func TestLoginBasic_Success(t *testing.T) {
	service := setupLoginService(t)
	ctx := context.Background()

	result, err := service.LoginBasic(ctx, SchemeBasic, "Albert", "success")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "Albert", result.User.Name)
	require.Len(t, result.User.Schemes, 1)
	assert.Equal(t, SchemeBasic, result.User.Schemes[0].Name)
}

func TestLoginBasic_Failures(t *testing.T) {
	service := setupLoginService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		scheme   string
		username string
		password string
		code     int
	}{
		{"wrong password", SchemeBasic, "Albert", "wrong", FailureWrongPassword},
		{"unknown user", SchemeBasic, "Nobody", "success", FailureUnknownUser},
		{"unknown scheme", "saml", "Albert", "success", FailureUnknownScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.LoginBasic(ctx, tt.scheme, tt.username, tt.password)
			require.NoError(t, err, "login failures are data, not errors")
			assert.False(t, result.Succeeded())
			assert.Equal(t, tt.code, result.FailureCode)
			assert.NotEmpty(t, result.FailureReason)
			assert.True(t, result.User.IsAnonymous())
		})
	}
}

func TestLoginBasic_DisabledAccount(t *testing.T) {
	service := setupLoginService(t)
	ctx := context.Background()

	require.NoError(t, service.SetDisabled("Albert", true))

	result, err := service.LoginBasic(ctx, SchemeBasic, "Albert", "success")
	require.NoError(t, err)
	assert.Equal(t, FailureDisabledAccount, result.FailureCode)
}

func TestLoginExternal(t *testing.T) {
	service := setupLoginService(t)
	ctx := context.Background()

	identity := ExternalIdentity{Scheme: "google", ExternalID: "ext-123"}

	result, err := service.LoginExternal(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, FailureUnregisteredUser, result.FailureCode)

	require.NoError(t, service.BindExternalID("Albert", "google", "ext-123"))

	result, err = service.LoginExternal(ctx, identity)
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "Albert", result.User.Name)
}

func TestRefreshUser(t *testing.T) {
	service := setupLoginService(t)
	ctx := context.Background()

	result, err := service.LoginBasic(ctx, SchemeBasic, "Albert", "success")
	require.NoError(t, err)

	// Rename shows up on refresh, simulating identity changes upstream.
	require.NoError(t, service.Rename("Albert", "Albert II"))

	user, err := service.RefreshUser(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Albert II", user.Name)

	_, err = service.RefreshUser(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSchemes(t *testing.T) {
	service := setupLoginService(t)
	service.AddScheme(SchemeInfo{Name: "google", DisplayName: "Google", Remote: true})

	schemes, err := service.Schemes(context.Background())
	require.NoError(t, err)
	require.Len(t, schemes, 2)
	assert.Equal(t, SchemeBasic, schemes[0].Name)
	assert.True(t, schemes[1].Remote)
}

func TestAddSchemeReplacesByName(t *testing.T) {
	service := setupLoginService(t)
	service.AddScheme(SchemeInfo{Name: SchemeBasic, DisplayName: "Username and password"})

	schemes, err := service.Schemes(context.Background())
	require.NoError(t, err)
	require.Len(t, schemes, 1)
	assert.Equal(t, SchemeBasic, schemes[0].Name)
	assert.Equal(t, "Username and password", schemes[0].DisplayName)
}
