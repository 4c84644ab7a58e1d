package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(8192), cfg.MaxMessageSize)
	assert.Equal(t, 100, cfg.RoomCapacity)
	assert.Equal(t, 2000, cfg.MaxMessageLength)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
}

func TestSetConfig_SanitizesInvalidValues(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{
		Port:             "",
		MaxMessageSize:   -1,
		RoomCapacity:     0,
		MaxMessageLength: -5,
		RateLimit:        RateLimitConfig{Burst: 0, Window: -time.Second},
	})

	cfg := currentConfig()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(8192), cfg.MaxMessageSize)
	assert.Equal(t, 100, cfg.RoomCapacity)
	assert.Equal(t, 2000, cfg.MaxMessageLength)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example.com, http://b.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "4096")
	t.Setenv("ROOM_CAPACITY", "25")
	t.Setenv("MAX_MESSAGE_LENGTH", "500")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "2500")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9999", cfg.Port)
	assert.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 25, cfg.RoomCapacity)
	assert.Equal(t, 500, cfg.MaxMessageLength)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, 2500*time.Millisecond, cfg.RateLimit.Window)
}

func TestNewConfigFromEnv_IgnoresGarbage(t *testing.T) {
	t.Setenv("ROOM_CAPACITY", "lots")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "-3")

	cfg := NewConfigFromEnv()

	assert.Equal(t, 100, cfg.RoomCapacity)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
}
