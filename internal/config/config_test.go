package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasRohde/ariadne/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "MAX_EVENTS", "SSE_QUEUE_SIZE", "CORS_ORIGIN", "NATS_URL", "VAULT_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.DefaultHost, cfg.Host)
	assert.Equal(t, config.DefaultPort, cfg.Port)
	assert.Equal(t, config.DefaultMaxEvents, cfg.MaxEvents)
	assert.Equal(t, config.DefaultQueueSize, cfg.QueueSize)
	assert.Equal(t, config.DefaultCORSOrigin, cfg.CORSOrigin)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, "127.0.0.1:5175", cfg.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9999")
	t.Setenv("MAX_EVENTS", "250")
	t.Setenv("SSE_QUEUE_SIZE", "16")
	t.Setenv("CORS_ORIGIN", "http://localhost:3000")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9999", cfg.Addr())
	assert.Equal(t, 250, cfg.MaxEvents)
	assert.Equal(t, 16, cfg.QueueSize)
	assert.Equal(t, "http://localhost:3000", cfg.CORSOrigin)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestLoad_RejectsBadMaxEvents(t *testing.T) {
	tests := []string{"zero", "0", "-5", "1.5"}
	for _, v := range tests {
		t.Run(v, func(t *testing.T) {
			t.Setenv("MAX_EVENTS", v)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestAllowedOrigins_Aliases(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   []string
	}{
		{
			name:   "localhost gains 127.0.0.1 alias",
			origin: "http://localhost:5173",
			want:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		},
		{
			name:   "127.0.0.1 gains localhost alias",
			origin: "http://127.0.0.1:5173",
			want:   []string{"http://127.0.0.1:5173", "http://localhost:5173"},
		},
		{
			name:   "other origins stand alone",
			origin: "https://viewer.example.com",
			want:   []string{"https://viewer.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{CORSOrigin: tt.origin}
			assert.Equal(t, tt.want, cfg.AllowedOrigins())
		})
	}
}
