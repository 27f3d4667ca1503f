package config

import (
	"fmt"
	"strings"
	"time"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `env:"HOST" env-default:"localhost"`
	Port uint16 `env:"PORT" env-default:"4000"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CodecConfig holds the secrets keying the credential codecs. Token,
// cookie and challenge purposes are independently keyed, so a value
// protected for one purpose never verifies under another.
type CodecConfig struct {
	TokenSecret     string `env:"TOKEN_SECRET" env-default:"dev-token-secret-change-in-production"`
	CookieSecret    string `env:"COOKIE_SECRET" env-default:"dev-cookie-secret-change-in-production"`
	ChallengeSecret string `env:"CHALLENGE_SECRET" env-default:"dev-challenge-secret-change-in-production"`
	Issuer          string `env:"CODEC_ISSUER" env-default:"simple-auth"`
	ChallengeMaxAge string `env:"CHALLENGE_MAX_AGE" env-default:"15m"`
}

// ParseChallengeMaxAge parses the challenge state lifetime.
func (c CodecConfig) ParseChallengeMaxAge() (time.Duration, error) {
	return time.ParseDuration(c.ChallengeMaxAge)
}

// CookieConfig holds the cookie mode and attributes. Mode "none" disables
// cookies and remember-me entirely.
type CookieConfig struct {
	Mode      string `env:"COOKIE_MODE" env-default:"root"`
	EntryPath string `env:"COOKIE_ENTRY_PATH" env-default:"/c"`
	Secure    bool   `env:"COOKIE_SECURE" env-default:"true"`
}

// LoginConfig holds the credential lifetime settings and the inline
// redirect allow-list.
type LoginConfig struct {
	Expiration        string `env:"LOGIN_EXPIRATION" env-default:"30m"`
	SlidingWindow     string `env:"SLIDING_WINDOW" env-default:"15m"`
	CriticalDurations string `env:"CRITICAL_DURATIONS" env-default:""`
	ReturnURLBases    string `env:"RETURN_URL_BASES" env-default:""`
}

// ParseExpiration parses the general credential lifetime.
func (l LoginConfig) ParseExpiration() (time.Duration, error) {
	return time.ParseDuration(l.Expiration)
}

// ParseSlidingWindow parses the sliding expiration window. Zero disables
// sliding expiration.
func (l LoginConfig) ParseSlidingWindow() (time.Duration, error) {
	if l.SlidingWindow == "" {
		return 0, nil
	}
	return time.ParseDuration(l.SlidingWindow)
}

// ParseCriticalDurations parses the per-scheme critical-trust durations
// from "scheme=duration" pairs separated by commas.
func (l LoginConfig) ParseCriticalDurations() (map[string]time.Duration, error) {
	durations := make(map[string]time.Duration)
	for _, pair := range splitList(l.CriticalDurations) {
		scheme, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid critical duration entry: %s", pair)
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid critical duration for scheme %s: %w", scheme, err)
		}
		durations[strings.TrimSpace(scheme)] = d
	}
	return durations, nil
}

// ParseReturnURLBases returns the inline redirect allow-list. An empty
// list means no inline redirects are permitted.
func (l LoginConfig) ParseReturnURLBases() []string {
	return splitList(l.ReturnURLBases)
}

// DeviceConfig selects the device repository backing.
type DeviceConfig struct {
	Repository  string `env:"DEVICE_REPOSITORY" env-default:"inmem"`
	DatabaseURL string `env:"DEVICE_DATABASE_URL" env-default:""`
}

// ProviderConfig holds the remote provider settings. Without a providers
// file, remote login stays disabled.
type ProviderConfig struct {
	File        string `env:"PROVIDERS_FILE" env-default:""`
	CallbackURL string `env:"PROVIDER_CALLBACK_URL" env-default:""`
}

// RateLimitConfig throttles the direct login endpoints per client IP.
// Zero burst disables the limiter.
type RateLimitConfig struct {
	LoginBurst      int     `env:"LOGIN_RATE_BURST" env-default:"10"`
	LoginRefillRate float64 `env:"LOGIN_RATE_REFILL" env-default:"0.2"`
	BucketTTL       string  `env:"LOGIN_RATE_TTL" env-default:"10m"`
}

// ParseBucketTTL parses the idle-bucket retention period.
func (r RateLimitConfig) ParseBucketTTL() (time.Duration, error) {
	return time.ParseDuration(r.BucketTTL)
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig
	Codec     CodecConfig
	Cookie    CookieConfig
	Login     LoginConfig
	Device    DeviceConfig
	Provider  ProviderConfig
	RateLimit RateLimitConfig
	Version   string `env:"BUILD_VERSION" env-default:""`
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
