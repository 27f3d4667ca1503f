package authinfo

import "time"

// SchemeUse records that a named login scheme was used by a user and when.
type SchemeUse struct {
	Name     string    `json:"name"`
	LastUsed time.Time `json:"lastUsed"`
}

// UserInfo identifies a user. The zero value is the anonymous user: id 0,
// empty name, no schemes. ID is 0 if and only if Name is empty.
type UserInfo struct {
	ID      int64       `json:"id"`
	Name    string      `json:"name"`
	Schemes []SchemeUse `json:"schemes,omitempty"`
}

// Anonymous is the unique zero-identity sentinel.
var Anonymous = UserInfo{}

// IsAnonymous reports whether u is the anonymous user.
func (u UserInfo) IsAnonymous() bool {
	return u.ID == 0
}

// WithScheme returns a copy of u with the scheme usage recorded. An existing
// entry for the same scheme is updated in place, otherwise one is appended.
func (u UserInfo) WithScheme(name string, usedAt time.Time) UserInfo {
	if u.IsAnonymous() {
		return Anonymous
	}
	schemes := make([]SchemeUse, len(u.Schemes))
	copy(schemes, u.Schemes)
	u.Schemes = schemes
	for i := range u.Schemes {
		if u.Schemes[i].Name == name {
			u.Schemes[i].LastUsed = usedAt
			return u
		}
	}
	u.Schemes = append(u.Schemes, SchemeUse{Name: name, LastUsed: usedAt})
	return u
}

// normalize collapses any id-0 identity to the Anonymous sentinel so the
// "id 0 iff empty name" invariant holds for values built from the wire.
func (u UserInfo) normalize() UserInfo {
	if u.ID == 0 {
		return Anonymous
	}
	return u
}
