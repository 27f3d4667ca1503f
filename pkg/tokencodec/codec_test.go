package tokencodec

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-auth/pkg/authinfo"
)

const (
	testSecret = "test-secret-key"
	testIssuer = "simple-auth"
)

func testInfo(t *testing.T) authinfo.AuthenticationInfo {
	t.Helper()
	now := time.Now().UTC()
	albert := authinfo.UserInfo{ID: 1, Name: "Albert"}
	return authinfo.New(albert, albert, now.Add(time.Hour), now.Add(time.Minute), "dev-1", now)
}

func TestJwtCodec_RoundTrip(t *testing.T) {
	now := time.Now().UTC()

	for _, purpose := range []string{PurposeToken, PurposeCookie} {
		t.Run(purpose, func(t *testing.T) {
			codec := NewJwtCodec(testSecret, testIssuer, purpose)

			info := testInfo(t)
			protected, err := codec.Protect(info)
			require.NoError(t, err)
			require.NotEmpty(t, protected)

			var decoded authinfo.AuthenticationInfo
			require.NoError(t, codec.Unprotect(protected, &decoded))
			assert.Equal(t, int64(1), decoded.UnsafeActualUser().ID)
			assert.Equal(t, "dev-1", decoded.DeviceID())
			assert.Equal(t, authinfo.LevelCritical, decoded.Level(now))
		})
	}
}

func TestJwtCodec_PurposesAreIndependent(t *testing.T) {
	tokenCodec := NewJwtCodec(testSecret, testIssuer, PurposeToken)
	cookieCodec := NewJwtCodec(testSecret, testIssuer, PurposeCookie)

	protected, err := tokenCodec.Protect(testInfo(t))
	require.NoError(t, err)

	var decoded authinfo.AuthenticationInfo
	// Same secret, different purpose: must fail.
	assert.Error(t, cookieCodec.Unprotect(protected, &decoded))
}

func TestJwtCodec_WrongSecret(t *testing.T) {
	codec := NewJwtCodec(testSecret, testIssuer, PurposeToken)
	other := NewJwtCodec("other-secret", testIssuer, PurposeToken)

	protected, err := codec.Protect(testInfo(t))
	require.NoError(t, err)

	var decoded authinfo.AuthenticationInfo
	assert.Error(t, other.Unprotect(protected, &decoded))
}

func TestJwtCodec_TamperedInputNeverPanics(t *testing.T) {
	codec := NewJwtCodec(testSecret, testIssuer, PurposeToken)

	protected, err := codec.Protect(testInfo(t))
	require.NoError(t, err)

	inputs := []string{
		"",
		"garbage",
		"a.b.c",
		protected[:len(protected)-4] + "XXXX",
		strings.Repeat("A", 2048),
	}
	for _, input := range inputs {
		var decoded authinfo.AuthenticationInfo
		assert.Error(t, codec.Unprotect(input, &decoded))
	}
}

func TestJwtCodec_ChannelBinding(t *testing.T) {
	bound := NewJwtCodec(testSecret, testIssuer, PurposeToken, WithBindingID("channel-a"))
	otherChannel := NewJwtCodec(testSecret, testIssuer, PurposeToken, WithBindingID("channel-b"))
	unbound := NewJwtCodec(testSecret, testIssuer, PurposeToken)

	protected, err := bound.Protect(testInfo(t))
	require.NoError(t, err)

	var decoded authinfo.AuthenticationInfo
	require.NoError(t, bound.Unprotect(protected, &decoded))
	assert.Error(t, otherChannel.Unprotect(protected, &decoded), "bound value must not replay on another channel")
	assert.Error(t, unbound.Unprotect(protected, &decoded), "bound value must not replay without the channel")

	// An unbound value is accepted on any channel.
	plain, err := unbound.Protect(testInfo(t))
	require.NoError(t, err)
	require.NoError(t, bound.Unprotect(plain, &decoded))
}

func TestJwtCodec_MaxAge(t *testing.T) {
	codec := NewJwtCodec(testSecret, testIssuer, PurposeCookie, WithMaxAge(-time.Minute))

	protected, err := codec.Protect(testInfo(t))
	require.NoError(t, err)

	var decoded authinfo.AuthenticationInfo
	assert.Error(t, codec.Unprotect(protected, &decoded), "expired envelope must fail to unprotect")
}

func TestCodecService_PerPurposeLookup(t *testing.T) {
	cs := NewCodecService(
		WithCodec(PurposeToken, NewJwtCodec("token-secret", testIssuer, PurposeToken)),
		WithCodec(PurposeCookie, NewJwtCodec("cookie-secret", testIssuer, PurposeCookie)),
	)

	info := testInfo(t)
	asToken, err := cs.Protect(PurposeToken, info)
	require.NoError(t, err)
	asCookie, err := cs.Protect(PurposeCookie, info)
	require.NoError(t, err)
	assert.NotEqual(t, asToken, asCookie)

	var decoded authinfo.AuthenticationInfo
	require.NoError(t, cs.Unprotect(PurposeToken, asToken, &decoded))
	require.NoError(t, cs.Unprotect(PurposeCookie, asCookie, &decoded))

	// Cross-purpose unprotect fails on either key or audience.
	assert.Error(t, cs.Unprotect(PurposeCookie, asToken, &decoded))
}

func TestCodecService_MissingCodec(t *testing.T) {
	cs := NewCodecService()

	_, err := cs.Protect(PurposeToken, testInfo(t))
	assert.Error(t, err)

	var decoded authinfo.AuthenticationInfo
	assert.Error(t, cs.Unprotect(PurposeToken, "whatever", &decoded))
}
