package login

import "errors"

// Login failure codes. Zero means no failure.
const (
	FailureNone             = 0
	FailureUnknownUser      = 1
	FailureWrongPassword    = 2
	FailureDisabledAccount  = 3
	FailureUnregisteredUser = 4
	FailureUnknownScheme    = 5
)

// FailureReason returns the canonical reason text for a failure code.
func FailureReason(code int) string {
	switch code {
	case FailureNone:
		return ""
	case FailureUnknownUser:
		return "unknown user"
	case FailureWrongPassword:
		return "wrong password"
	case FailureDisabledAccount:
		return "account disabled"
	case FailureUnregisteredUser:
		return "unregistered user"
	case FailureUnknownScheme:
		return "unknown scheme"
	default:
		return "login failed"
	}
}

// Failure builds a LoginResult for a failure code.
func Failure(code int) LoginResult {
	return LoginResult{FailureCode: code, FailureReason: FailureReason(code)}
}

// ErrUserNotFound is returned by RefreshUser when the user id no longer
// resolves.
var ErrUserNotFound = errors.New("user not found")
