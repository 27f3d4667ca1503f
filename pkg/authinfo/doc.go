// Package authinfo defines the authentication credential value model.
//
// The central type is AuthenticationInfo, an immutable value describing who
// is authenticated (the actual user), who they are acting as (the user),
// until when the credential is trusted, and on which device it was issued.
// All invariants are applied at construction; every "mutation" returns a new
// value built through the same constructor, so an AuthenticationInfo can be
// shared freely between goroutines.
//
// # Trust levels
//
// A credential derives an ordered trust Level:
//
//	None < Unsafe < Normal < Critical
//
//   - None: no actual user (anonymous).
//   - Unsafe: the identity is known, for example reconstructed from a
//     long-term hint cookie, but has not been re-verified. The safe
//     accessors (User, ActualUser) report Anonymous at this level; the
//     Unsafe* accessors expose the claimed identity.
//   - Normal: a non-expired expiration is present.
//   - Critical: a non-expired critical expiration is present as well.
//
// The level is never stored; it is recomputed from the expiration fields and
// the caller's clock on every read.
//
// # Impersonation
//
// A credential whose user differs from its actual user is impersonated. Only
// the acting user ever changes during impersonation; the actual user is
// retained for audit and reversal. Constructing with user equal to the
// actual user (by id) collapses to the non-impersonated form.
package authinfo
