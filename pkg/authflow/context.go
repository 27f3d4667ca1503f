package authflow

import (
	"fmt"

	"github.com/tendant/simple-auth/pkg/authinfo"
	"github.com/tendant/simple-auth/pkg/login"
)

// Attempt origins.
const (
	OriginDirect = "direct"
	OriginRemote = "remote"
)

// Error type constants
const (
	ErrorTypeInvalidCredentials = "invalid_credentials"
	ErrorTypeValidation         = "validation"
	ErrorTypeNotAllowed         = "not_allowed"
	ErrorTypeInternalError      = "internal_error"
)

// Error represents a structured error from the login pipeline. For login
// failures it also carries the failure code and reason from the login
// service.
type Error struct {
	Type          string
	Message       string
	FailureCode   int
	FailureReason string
}

func (e *Error) Error() string {
	return e.Message
}

// Context is the per-attempt mutable login context. It travels with one
// login attempt from entry point to response shaping and accepts exactly
// one terminal outcome.
type Context struct {
	// Attempt inputs
	Origin                string
	Scheme                string
	Prior                 authinfo.FrontAuthenticationInfo
	RememberMe            bool
	ImpersonateActualUser bool
	ReturnURL             string
	CallerOrigin          string
	UserData              map[string]any
	External              *login.ExternalIdentity

	// Terminal state
	success   *authinfo.AuthenticationInfo
	err       *Error
	finalized bool
}

// NewContext creates a login context for an attempt against the given
// scheme, carrying the credential that existed before the attempt.
func NewContext(origin, scheme string, prior authinfo.FrontAuthenticationInfo) *Context {
	return &Context{
		Origin:     origin,
		Scheme:     scheme,
		Prior:      prior,
		RememberMe: prior.RememberMe,
	}
}

// SetError records a terminal error. Calling a terminal setter again
// replaces the previous terminal state (last write wins); success and error
// displace each other.
func (c *Context) SetError(errType, message string) {
	c.err = &Error{Type: errType, Message: message}
	c.success = nil
}

// SetErrorFromErr records a terminal error from a Go error. The error id is
// the dynamic type name, the text its message; stack traces never leak.
func (c *Context) SetErrorFromErr(err error) {
	c.err = &Error{Type: fmt.Sprintf("%T", err), Message: err.Error()}
	c.success = nil
}

// SetFailure records a terminal login failure from a LoginResult.
func (c *Context) SetFailure(result login.LoginResult) {
	c.err = &Error{
		Type:          ErrorTypeInvalidCredentials,
		Message:       result.FailureReason,
		FailureCode:   result.FailureCode,
		FailureReason: result.FailureReason,
	}
	c.success = nil
}

// SetSuccess records a terminal successful login.
func (c *Context) SetSuccess(info authinfo.AuthenticationInfo) {
	c.success = &info
	c.err = nil
}

// Handled reports whether a terminal outcome has been recorded.
func (c *Context) Handled() bool {
	return c.success != nil || c.err != nil
}

// Finalize seals the context at the pipeline boundary. It fails only when
// called a second time; mid-flow rewrites of the terminal state are legal.
func (c *Context) Finalize() error {
	if c.finalized {
		return fmt.Errorf("login context already finalized")
	}
	c.finalized = true
	return nil
}

// Err returns the terminal error, if any.
func (c *Context) Err() *Error {
	return c.err
}

// Success returns the terminal credential and whether one was recorded.
func (c *Context) Success() (authinfo.AuthenticationInfo, bool) {
	if c.success == nil {
		return authinfo.AuthenticationInfo{}, false
	}
	return *c.success, true
}
