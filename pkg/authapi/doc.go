// Package authapi exposes the authentication protocol over HTTP: refresh,
// basic and gated direct logins, remote provider challenge and callback,
// impersonation, logout and token introspection. No protocol state is kept
// server-side; every request is classified from its bearer header and
// cookies, and every response re-issues the credential it settled on.
package authapi
