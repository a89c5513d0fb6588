package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	req := require.New(t)

	config := NewConfig()

	req.Equal(3000, config.Port)
	req.Equal([]string{"http://localhost:3000"}, config.AllowedOrigins)
	req.EqualValues(4096, config.MaxMessageSize)
	req.Equal(5, config.RateLimit.Burst)
	req.Equal(time.Second, config.RateLimit.RefillInterval)
	req.Equal(256, config.SendBufferSize)
	req.Equal(":3000", config.Addr())
}

func TestLoadConfig_From_Environment(t *testing.T) {
	req := require.New(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, https://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("SEND_BUFFER_SIZE", "32")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "DEBUG")

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal("127.0.0.1:9090", config.Addr())
	req.Equal([]string{"http://a.example", "https://b.example"}, config.AllowedOrigins)
	req.EqualValues(2048, config.MaxMessageSize)
	req.Equal(RateLimitConfig{Burst: 10, RefillInterval: 2 * time.Second}, config.RateLimit)
	req.Equal(32, config.SendBufferSize)
	req.Equal(3*time.Second, config.ShutdownTimeout)
	req.Equal("DEBUG", config.LogLevel)
}

func TestSanitizeConfig(t *testing.T) {
	cfg := sanitizeConfig(Config{
		Port:           -1,
		MaxMessageSize: 0,
		RateLimit:      RateLimitConfig{Burst: -3},
		SendBufferSize: 0,
	})

	assert.Equal(t, 3000, cfg.Port)
	assert.EqualValues(t, 4096, cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 256, cfg.SendBufferSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins("  "))
	assert.Equal(t, []string{"*"}, parseOrigins("*"))
	assert.Equal(t, []string{"http://a", "http://b"}, parseOrigins("http://a ,http://b"))
}
