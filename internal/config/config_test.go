package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 6, cfg.Flow.MaxSeats)
	assert.Equal(t, 300*time.Second, cfg.Flow.Timer.ExtendIncrement)
	assert.Equal(t, 5*time.Second, cfg.Flow.Ledger.ErrorTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.True(t, cfg.NATS.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MAX_SEATS", "8")
	t.Setenv("TIMER_EXTEND_COOLDOWN", "90")
	t.Setenv("EVENTS_CACHE_TTL", "2m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("NATS_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, 8, cfg.Flow.MaxSeats)
	assert.Equal(t, 90*time.Second, cfg.Flow.Timer.ExtendCooldown)
	assert.Equal(t, 2*time.Minute, cfg.Cache.EventsTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.NATS.Enabled)
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Second, getEnvDuration("SOME_TIMEOUT", time.Second))
}
