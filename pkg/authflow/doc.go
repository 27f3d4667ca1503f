// Package authflow implements the unified login pipeline.
//
// Every login attempt, whether direct (basic, unsafe-direct) or remote
// (provider callback), is accompanied by a single mutable Context and ends
// in the same success/failure pipeline run by the Service. The pipeline
// applies the optional validation hook, the remember-me and
// impersonate-actual-user flags, per-scheme critical-trust durations, and
// the auto-binding/auto-creation hooks for unregistered external users,
// then constructs the new credential through the authinfo rules.
//
// A Context accepts exactly one terminal outcome. Terminal setters are
// idempotent-last-write mid-flow; only the pipeline boundary (Finalize)
// rejects a second finalization.
//
// Remote flows carry their pre-challenge context through the provider
// round-trip as a protected ChallengeState, because the provider cannot be
// trusted to preserve server-side state.
package authflow
