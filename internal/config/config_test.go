package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "nonexistent")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, "release", cfg.Mode)
	require.Equal(t, int64(32768), cfg.ReadLimit)
	require.Equal(t, 54*time.Second, cfg.PingPeriod)
	require.Equal(t, 60*time.Second, cfg.PongWait)
	require.Equal(t, 32, cfg.SendBuffer)
	require.Equal(t, 10, cfg.ChatBurst)
	require.Equal(t, 10*time.Second, cfg.ChatWindow)
}

func TestPortEnvOverride(t *testing.T) {
	t.Setenv("CONFIG_ENV", "nonexistent")
	t.Setenv("PORT", "4555")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 4555, cfg.Port)
}
