package authapi

import (
	"log/slog"
	"time"

	"github.com/jinzhu/copier"

	"github.com/tendant/simple-auth/pkg/authinfo"
)

// SchemeUseView is the wire projection of a recorded scheme usage.
type SchemeUseView struct {
	Name     string    `json:"name"`
	LastUsed time.Time `json:"lastUsed"`
}

// UserView is the wire projection of a user identity.
type UserView struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Schemes []SchemeUseView `json:"schemes,omitempty"`
}

// InfoView is the wire projection of a credential. It carries the raw
// stored identities together with the derived level; consumers gate on the
// level before trusting the identities, mirroring the unsafe accessors.
type InfoView struct {
	User           UserView   `json:"user"`
	ActualUser     UserView   `json:"actualUser"`
	Exp            *time.Time `json:"exp,omitempty"`
	Cexp           *time.Time `json:"cexp,omitempty"`
	DeviceID       string     `json:"deviceId,omitempty"`
	Level          string     `json:"level"`
	IsImpersonated bool       `json:"isImpersonated,omitempty"`
}

// NewUserView maps a user identity to its wire projection.
func NewUserView(user authinfo.UserInfo) UserView {
	var view UserView
	if err := copier.Copy(&view, &user); err != nil {
		slog.Error("Failed to map user to view", "user_id", user.ID, "err", err)
	}
	return view
}

// NewInfoView maps a credential to its wire projection against the given
// clock.
func NewInfoView(info authinfo.AuthenticationInfo, now time.Time) InfoView {
	view := InfoView{
		User:           NewUserView(info.UnsafeUser()),
		ActualUser:     NewUserView(info.UnsafeActualUser()),
		DeviceID:       info.DeviceID(),
		Level:          info.Level(now).String(),
		IsImpersonated: info.IsImpersonated(),
	}
	if exp := info.Expires(); !exp.IsZero() {
		view.Exp = &exp
	}
	if cexp := info.CriticalExpires(); !cexp.IsZero() {
		view.Cexp = &cexp
	}
	return view
}
