package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "emergency-service", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)

	assert.Equal(t, time.Hour, cfg.Policy.RateLimitWindow)
	assert.Equal(t, 3, cfg.Policy.RateLimitCeiling)
	assert.Equal(t, 5, cfg.Policy.MaxDeliveryAttempts)
	assert.Equal(t, 30*time.Second, cfg.Policy.RetryBackoffBase)
	assert.Equal(t, 10, cfg.Policy.MinDescriptionLen)

	assert.Equal(t, "115", cfg.Policy.ResponderNumbers["medical"])
	assert.Equal(t, "114", cfg.Policy.ResponderNumbers["fire"])
	assert.Equal(t, "113", cfg.Policy.ResponderNumbers["police"])

	assert.Contains(t, cfg.Policy.EmergencyKeywords, "chest pain")
	assert.Contains(t, cfg.Policy.SuspiciousKeywords, "prank")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("EMERGENCY_PORT", "9090")
	t.Setenv("EMERGENCY_POLICY_RATE_LIMIT_CEILING", "10")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 10, cfg.Policy.RateLimitCeiling)
}
