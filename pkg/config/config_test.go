package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCriticalDurations(t *testing.T) {
	cfg := LoginConfig{CriticalDurations: "Basic=5m, google=90s"}
	durations, err := cfg.ParseCriticalDurations()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, durations["Basic"])
	assert.Equal(t, 90*time.Second, durations["google"])

	cfg = LoginConfig{CriticalDurations: ""}
	durations, err = cfg.ParseCriticalDurations()
	require.NoError(t, err)
	assert.Empty(t, durations)

	cfg = LoginConfig{CriticalDurations: "Basic"}
	_, err = cfg.ParseCriticalDurations()
	assert.Error(t, err)

	cfg = LoginConfig{CriticalDurations: "Basic=soon"}
	_, err = cfg.ParseCriticalDurations()
	assert.Error(t, err)
}

func TestParseReturnURLBases(t *testing.T) {
	cfg := LoginConfig{ReturnURLBases: "https://app.example.com, https://admin.example.com/"}
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com/"}, cfg.ParseReturnURLBases())

	assert.Nil(t, LoginConfig{}.ParseReturnURLBases())
}

func TestSlidingWindowDefaultsToDisabled(t *testing.T) {
	window, err := LoginConfig{}.ParseSlidingWindow()
	require.NoError(t, err)
	assert.Zero(t, window)
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, "localhost:4000", ServerConfig{Host: "localhost", Port: 4000}.Addr())
}
