package authflow

import (
	"fmt"

	"github.com/tendant/simple-auth/pkg/authinfo"
	"github.com/tendant/simple-auth/pkg/tokencodec"
)

// PurposeChallenge keys the codec used for challenge state.
const PurposeChallenge = "challenge"

// ChallengeState is the pre-challenge context carried through a remote
// provider's redirect round-trip, protected end to end because the
// provider cannot be trusted with it.
type ChallengeState struct {
	Scheme                string                           `json:"scheme"`
	Prior                 authinfo.FrontAuthenticationInfo `json:"prior"`
	ReturnURL             string                           `json:"returnUrl,omitempty"`
	CallerOrigin          string                           `json:"callerOrigin,omitempty"`
	RememberMe            bool                             `json:"rememberMe"`
	ImpersonateActualUser bool                             `json:"impersonateActualUser"`
	UserData              map[string]any                   `json:"userData,omitempty"`
}

// ProtectChallengeState serializes and protects the state for the
// provider's state parameter.
func ProtectChallengeState(codec tokencodec.Codec, state ChallengeState) (string, error) {
	protected, err := codec.Protect(state)
	if err != nil {
		return "", fmt.Errorf("failed to protect challenge state: %w", err)
	}
	return protected, nil
}

// UnprotectChallengeState verifies and decodes a returned state parameter.
func UnprotectChallengeState(codec tokencodec.Codec, protected string) (ChallengeState, error) {
	var state ChallengeState
	if err := codec.Unprotect(protected, &state); err != nil {
		return ChallengeState{}, fmt.Errorf("failed to unprotect challenge state: %w", err)
	}
	return state, nil
}

// ContextFromChallenge re-hydrates a login context from decoded challenge
// state, so the remote callback funnels into the same pipeline as direct
// logins.
func ContextFromChallenge(state ChallengeState) *Context {
	flow := NewContext(OriginRemote, state.Scheme, state.Prior)
	flow.RememberMe = state.RememberMe
	flow.ImpersonateActualUser = state.ImpersonateActualUser
	flow.ReturnURL = state.ReturnURL
	flow.CallerOrigin = state.CallerOrigin
	flow.UserData = state.UserData
	return flow
}
