// Package login defines the boundary to the external identity store.
//
// The protocol engine never verifies credentials itself; it delegates to a
// LoginService for a named scheme and turns the result into an
// authentication credential. Login failures are data (a failure code plus
// reason), not errors: the error return of LoginService methods is reserved
// for I/O faults talking to the backing store.
//
// The package also defines the optional extensibility hooks the protocol
// consults around a login attempt (validation, auto-binding, auto-creation,
// dynamic scopes, impersonation resolution, unsafe-login gating). All hooks
// are nil by default and nil-checked at the call site; the security
// sensitive ones are documented on their interfaces.
//
// InMemLoginService is a bcrypt-backed fixture implementation for tests and
// the demo binary.
package login
