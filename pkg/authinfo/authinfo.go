package authinfo

import (
	"encoding/json"
	"log/slog"
	"time"
)

// AuthenticationInfo is the immutable authentication credential. Build it
// with New; the zero value is the anonymous credential.
type AuthenticationInfo struct {
	actualUser      UserInfo
	user            UserInfo
	expires         time.Time
	criticalExpires time.Time
	deviceID        string
}

// New constructs a normalized AuthenticationInfo.
//
// Normalization rules, applied in order against now:
//   - An anonymous actual user forces user to Anonymous and drops both
//     expirations.
//   - A user with the same id as the actual user collapses to the actual
//     user (no self-impersonation).
//   - An expiration at or before now is treated as absent, which also drops
//     the critical expiration.
//   - A critical expiration at or before now is treated as absent; one past
//     the expiration is clamped to the expiration.
func New(actualUser, user UserInfo, expires, criticalExpires time.Time, deviceID string, now time.Time) AuthenticationInfo {
	actualUser = actualUser.normalize()
	user = user.normalize()

	if actualUser.IsAnonymous() {
		return AuthenticationInfo{deviceID: deviceID}
	}
	if user.IsAnonymous() || user.ID == actualUser.ID {
		user = actualUser
	}
	if !expires.IsZero() && !expires.After(now) {
		expires = time.Time{}
	}
	if expires.IsZero() {
		criticalExpires = time.Time{}
	}
	if !criticalExpires.IsZero() {
		if !criticalExpires.After(now) {
			criticalExpires = time.Time{}
		} else if criticalExpires.After(expires) {
			criticalExpires = expires
		}
	}
	return AuthenticationInfo{
		actualUser:      actualUser,
		user:            user,
		expires:         expires,
		criticalExpires: criticalExpires,
		deviceID:        deviceID,
	}
}

// NewAnonymous returns the anonymous credential carrying only the device id.
func NewAnonymous(deviceID string) AuthenticationInfo {
	return AuthenticationInfo{deviceID: deviceID}
}

// Level derives the trust tier at the given instant.
func (i AuthenticationInfo) Level(now time.Time) Level {
	if i.actualUser.IsAnonymous() {
		return LevelNone
	}
	if i.expires.IsZero() || !i.expires.After(now) {
		return LevelUnsafe
	}
	if !i.criticalExpires.IsZero() && i.criticalExpires.After(now) {
		return LevelCritical
	}
	return LevelNormal
}

// User returns the acting user for the safe view: Anonymous unless the
// credential is at least Normal at now.
func (i AuthenticationInfo) User(now time.Time) UserInfo {
	if i.Level(now) < LevelNormal {
		return Anonymous
	}
	return i.user
}

// ActualUser returns the actual user for the safe view: Anonymous unless the
// credential is at least Normal at now.
func (i AuthenticationInfo) ActualUser(now time.Time) UserInfo {
	if i.Level(now) < LevelNormal {
		return Anonymous
	}
	return i.actualUser
}

// UnsafeUser returns the acting user even at Unsafe level. The identity must
// not be trusted for sensitive actions.
func (i AuthenticationInfo) UnsafeUser() UserInfo {
	return i.user
}

// UnsafeActualUser returns the actual user even at Unsafe level.
func (i AuthenticationInfo) UnsafeActualUser() UserInfo {
	return i.actualUser
}

// IsImpersonated reports whether the acting user differs from the actual
// user.
func (i AuthenticationInfo) IsImpersonated() bool {
	return i.user.ID != i.actualUser.ID
}

// Expires returns the expiration, zero when absent.
func (i AuthenticationInfo) Expires() time.Time {
	return i.expires
}

// CriticalExpires returns the critical expiration, zero when absent.
func (i AuthenticationInfo) CriticalExpires() time.Time {
	return i.criticalExpires
}

// DeviceID returns the device id the credential was issued on.
func (i AuthenticationInfo) DeviceID() string {
	return i.deviceID
}

// WithExpires returns a credential with the given expirations, renormalized.
func (i AuthenticationInfo) WithExpires(expires, criticalExpires time.Time, now time.Time) AuthenticationInfo {
	return New(i.actualUser, i.user, expires, criticalExpires, i.deviceID, now)
}

// ExtendedTo returns a credential whose expiration is extended to expires if
// that is later than the current value. Extension is monotonic: it never
// shortens. The critical expiration is re-clamped by construction.
func (i AuthenticationInfo) ExtendedTo(expires time.Time, now time.Time) AuthenticationInfo {
	if !expires.After(i.expires) {
		return i
	}
	return New(i.actualUser, i.user, expires, i.criticalExpires, i.deviceID, now)
}

// WithImpersonation returns a credential acting as user while keeping the
// actual user. Targeting the actual user itself clears impersonation.
func (i AuthenticationInfo) WithImpersonation(user UserInfo, now time.Time) AuthenticationInfo {
	return New(i.actualUser, user, i.expires, i.criticalExpires, i.deviceID, now)
}

// WithoutImpersonation returns a credential acting as its actual user.
func (i AuthenticationInfo) WithoutImpersonation(now time.Time) AuthenticationInfo {
	return New(i.actualUser, i.actualUser, i.expires, i.criticalExpires, i.deviceID, now)
}

// Downgraded returns the Unsafe projection: identity retained, expirations
// dropped. Used for soft logout and for the prior credential on a failed
// login attempt.
func (i AuthenticationInfo) Downgraded(now time.Time) AuthenticationInfo {
	return New(i.actualUser, i.user, time.Time{}, time.Time{}, i.deviceID, now)
}

// WithDeviceID returns a credential bound to the given device id.
func (i AuthenticationInfo) WithDeviceID(deviceID string, now time.Time) AuthenticationInfo {
	return New(i.actualUser, i.user, i.expires, i.criticalExpires, deviceID, now)
}

// LogValue keeps credentials out of logs: only ids and the device id are
// emitted.
func (i AuthenticationInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("user_id", i.user.ID),
		slog.Int64("actual_user_id", i.actualUser.ID),
		slog.String("device_id", i.deviceID),
	)
}

// wireInfo is the JSON projection of AuthenticationInfo.
type wireInfo struct {
	User       UserInfo   `json:"user"`
	ActualUser UserInfo   `json:"actualUser"`
	Exp        *time.Time `json:"exp,omitempty"`
	Cexp       *time.Time `json:"cexp,omitempty"`
	DeviceID   string     `json:"deviceId,omitempty"`
}

// MarshalJSON serializes the credential in the wire shape
// {user, actualUser, exp, cexp, deviceId}.
func (i AuthenticationInfo) MarshalJSON() ([]byte, error) {
	w := wireInfo{
		User:       i.user,
		ActualUser: i.actualUser,
		DeviceID:   i.deviceID,
	}
	if !i.expires.IsZero() {
		exp := i.expires
		w.Exp = &exp
	}
	if !i.criticalExpires.IsZero() {
		cexp := i.criticalExpires
		w.Cexp = &cexp
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes and renormalizes against the current clock, so
// expirations that lapsed in transit collapse on decode.
func (i *AuthenticationInfo) UnmarshalJSON(data []byte) error {
	var w wireInfo
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var exp, cexp time.Time
	if w.Exp != nil {
		exp = *w.Exp
	}
	if w.Cexp != nil {
		cexp = *w.Cexp
	}
	*i = New(w.ActualUser, w.User, exp, cexp, w.DeviceID, time.Now().UTC())
	return nil
}
