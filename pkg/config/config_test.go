package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BRIDGE_PORT", "")
	t.Setenv("BRIDGE_USE_HTTPS", "")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Server.Port)
	assert.False(t, cfg.Server.UseHTTPS)
	assert.Equal(t, 30*time.Second, cfg.Queue.LeaseTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Queue.SweepInterval)
	assert.Equal(t, 5, cfg.Queue.MaxAttempts)
	assert.Equal(t, 250, cfg.Scheduler.CadenceMs)
	assert.True(t, cfg.Router.LegacyFastPath)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("BRIDGE_PORT", "9999")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "3")
	t.Setenv("ROUTER_LEGACY_FASTPATH", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.False(t, cfg.Router.LegacyFastPath)
}

func TestValidateHTTPSRequiresCerts(t *testing.T) {
	cfg := &Config{
		Server:    ServerConfig{UseHTTPS: true},
		Queue:     QueueConfig{MaxAttempts: 1},
		Scheduler: DefaultSchedulerConfig(),
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestValidateRejectsZeroMaxAttempts(t *testing.T) {
	cfg := &Config{
		Queue:     QueueConfig{MaxAttempts: 0},
		Scheduler: DefaultSchedulerConfig(),
	}
	err := cfg.Validate()
	require.Error(t, err)
}
