// Package config resolves the service configuration from environment
// variables, with an optional Vault KV-v2 secret overlay for deployments that
// keep broker credentials out of the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/vault/api"
)

// Defaults. The service binds loopback — it is a local-first tool, not a
// network service.
const (
	DefaultHost       = "127.0.0.1"
	DefaultPort       = "5175"
	DefaultMaxEvents  = 10000
	DefaultQueueSize  = 5000
	DefaultCORSOrigin = "http://localhost:5173"

	defaultVaultSecretPath = "secret/data/ariadne/server"
)

// Config is the resolved service configuration.
type Config struct {
	Host       string
	Port       string
	MaxEvents  int
	QueueSize  int
	CORSOrigin string

	// NATSURL enables the JetStream relay when non-empty.
	NATSURL string
}

// Load resolves the configuration from the environment. When VAULT_ADDR is
// set, secrets at VAULT_SECRET_PATH overlay the corresponding env values.
func Load() (*Config, error) {
	cfg := &Config{
		Host:       getenv("HOST", DefaultHost),
		Port:       getenv("PORT", DefaultPort),
		CORSOrigin: getenv("CORS_ORIGIN", DefaultCORSOrigin),
		NATSURL:    os.Getenv("NATS_URL"),
	}

	var err error
	if cfg.MaxEvents, err = getenvInt("MAX_EVENTS", DefaultMaxEvents); err != nil {
		return nil, err
	}
	if cfg.QueueSize, err = getenvInt("SSE_QUEUE_SIZE", DefaultQueueSize); err != nil {
		return nil, err
	}

	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		if err := cfg.applyVault(addr); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// AllowedOrigins returns the configured CORS origin plus its
// localhost/127.0.0.1 alias, so browser viewers work under either spelling
// without configuration churn.
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.CORSOrigin}
	switch {
	case strings.Contains(c.CORSOrigin, "localhost"):
		origins = append(origins, strings.Replace(c.CORSOrigin, "localhost", "127.0.0.1", 1))
	case strings.Contains(c.CORSOrigin, "127.0.0.1"):
		origins = append(origins, strings.Replace(c.CORSOrigin, "127.0.0.1", "localhost", 1))
	}
	return origins
}

// applyVault overlays broker and CORS settings from a Vault KV-v2 secret.
// Only the keys the service actually understands are read; anything missing
// from the secret keeps its environment value.
func (c *Config) applyVault(addr string) error {
	vcfg := api.DefaultConfig()
	vcfg.Address = addr

	client, err := api.NewClient(vcfg)
	if err != nil {
		return fmt.Errorf("vault client: %w", err)
	}
	client.SetToken(getenv("VAULT_TOKEN", "root"))

	path := getenv("VAULT_SECRET_PATH", defaultVaultSecretPath)
	secret, err := client.Logical().Read(path)
	if err != nil {
		return fmt.Errorf("read vault secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return fmt.Errorf("vault secret %s is empty", path)
	}

	// KV v2 wraps the payload in a nested "data" object.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("vault secret %s is not a KV v2 payload", path)
	}

	if v, ok := data["NATS_URL"].(string); ok && v != "" {
		c.NATSURL = v
	}
	if v, ok := data["CORS_ORIGIN"].(string); ok && v != "" {
		c.CORSOrigin = v
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}
