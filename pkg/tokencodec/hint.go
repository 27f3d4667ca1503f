package tokencodec

// RememberMeHint is the lighter projection carried by the long-term cookie.
// It is clear JSON, not a protected credential: decoding it yields at most
// an Unsafe-level identity hint, never trust.
type RememberMeHint struct {
	DeviceID string `json:"deviceId"`
	UserID   int64  `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}
