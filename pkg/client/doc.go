// Package client mirrors the server's authentication state machine on the
// caller's side. It holds the current credential, schedules expiration
// timers, persists snapshots for reconnect, and exposes the protocol
// operations. The last completed operation wins: a slow refresh resolving
// after a logout cannot resurrect the cleared state.
package client
