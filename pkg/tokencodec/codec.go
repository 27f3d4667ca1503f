package tokencodec

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Codec purpose constants. Token and Cookie are independently keyed so a
// value protected for one transport cannot be replayed on the other.
const (
	PurposeToken  = "token"
	PurposeCookie = "cookie"
)

// Codec protects a value into an opaque string and back. Unprotect on
// tampered, expired or malformed input returns an error value; it never
// panics and the error carries no secret material.
type Codec interface {
	// Protect serializes and protects a value into an opaque string
	Protect(v any) (string, error)

	// Unprotect verifies an opaque string and deserializes it into v
	Unprotect(s string, v any) error
}

// codecClaims is the JWT envelope around a protected payload.
type codecClaims struct {
	Payload json.RawMessage `json:"payload"`
	Binding string          `json:"cb,omitempty"`
	jwt.RegisteredClaims
}

// JwtCodec implements Codec over an HS256 JWT envelope. The purpose is
// bound into the audience so tokens cannot cross purposes even when the
// same secret is misconfigured for both.
type JwtCodec struct {
	Secret    string
	Issuer    string
	Purpose   string
	BindingID string
	MaxAge    time.Duration
}

// JwtCodecOption configures a JwtCodec.
type JwtCodecOption func(*JwtCodec)

// WithBindingID mixes a transport-channel binding id into the protection
// context. A stolen value cannot be replayed over a channel with a
// different binding id. Values protected without a binding stay unbound and
// are accepted everywhere.
func WithBindingID(bindingID string) JwtCodecOption {
	return func(c *JwtCodec) {
		c.BindingID = bindingID
	}
}

// WithMaxAge sets an envelope lifetime independent of the protected
// value's own expiration semantics.
func WithMaxAge(maxAge time.Duration) JwtCodecOption {
	return func(c *JwtCodec) {
		c.MaxAge = maxAge
	}
}

// NewJwtCodec creates a new JwtCodec for the given purpose.
func NewJwtCodec(secret, issuer, purpose string, opts ...JwtCodecOption) *JwtCodec {
	c := &JwtCodec{
		Secret:  secret,
		Issuer:  issuer,
		Purpose: purpose,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Protect serializes v and signs it into the opaque envelope.
func (c *JwtCodec) Protect(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to serialize payload for protection", "purpose", c.Purpose, "err", err)
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	now := time.Now().UTC()
	claims := codecClaims{
		Payload: payload,
		Binding: c.BindingID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    c.Issuer,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{c.Purpose},
		},
	}
	// Zero means no envelope lifetime; a negative MaxAge yields an
	// already-expired envelope rather than an unlimited one.
	if c.MaxAge != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.MaxAge))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(c.Secret))
	if err != nil {
		slog.Error("Failed to sign protected payload", "purpose", c.Purpose, "err", err)
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	return ss, nil
}

// Unprotect verifies the envelope and deserializes the payload into v.
func (c *JwtCodec) Unprotect(s string, v any) error {
	claims := codecClaims{}
	token, err := jwt.ParseWithClaims(s, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(c.Secret), nil
	},
		jwt.WithAudience(c.Purpose),
		jwt.WithIssuer(c.Issuer),
	)
	if err != nil {
		slog.Debug("Failed to unprotect value", "purpose", c.Purpose, "err", err)
		return fmt.Errorf("failed to unprotect value: %w", err)
	}
	if !token.Valid {
		slog.Debug("Unprotected token is invalid", "purpose", c.Purpose)
		return fmt.Errorf("invalid protected value")
	}

	// A bound value must present the same binding id. An unbound value is
	// accepted regardless of the current channel.
	if claims.Binding != "" && claims.Binding != c.BindingID {
		slog.Debug("Channel binding mismatch", "purpose", c.Purpose)
		return fmt.Errorf("channel binding mismatch")
	}

	if err := json.Unmarshal(claims.Payload, v); err != nil {
		slog.Debug("Failed to deserialize protected payload", "purpose", c.Purpose, "err", err)
		return fmt.Errorf("failed to deserialize payload: %w", err)
	}
	return nil
}
