package authapi

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-auth/pkg/authflow"
	"github.com/tendant/simple-auth/pkg/login"
)

// AuthResponse is the uniform response envelope shared by refresh, login
// and impersonation endpoints. Login failures use the same envelope with
// the failure fields populated; they are not HTTP errors.
type AuthResponse struct {
	Info        InfoView           `json:"info"`
	Token       string             `json:"token,omitempty"`
	Refreshable bool               `json:"refreshable"`
	RememberMe  bool               `json:"rememberMe"`
	Schemes     []login.SchemeInfo `json:"schemes,omitempty"`
	Version     string             `json:"version,omitempty"`
	UserData    map[string]any     `json:"userData,omitempty"`

	ErrorID            string `json:"errorId,omitempty"`
	ErrorText          string `json:"errorText,omitempty"`
	LoginFailureCode   int    `json:"loginFailureCode,omitempty"`
	LoginFailureReason string `json:"loginFailureReason,omitempty"`
}

// TokenResponse is the introspection body: the resolved credential as-is,
// no side effects.
type TokenResponse struct {
	Info       InfoView `json:"info"`
	RememberMe bool     `json:"rememberMe"`
}

// ErrorResponse is the body of a non-2xx protocol error.
type ErrorResponse struct {
	ErrorID   string `json:"errorId"`
	ErrorText string `json:"errorText"`
}

func (resp *AuthResponse) setError(e *authflow.Error) {
	if e == nil {
		return
	}
	resp.ErrorID = e.Type
	resp.ErrorText = e.Message
	resp.LoginFailureCode = e.FailureCode
	resp.LoginFailureReason = e.FailureReason
}

func writeError(w http.ResponseWriter, r *http.Request, status int, errorID, errorText string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{ErrorID: errorID, ErrorText: errorText})
}
