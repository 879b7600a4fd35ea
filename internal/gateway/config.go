package gateway

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Config is the gateway.http module configuration.
type Config struct {
	// Bind is the listen address, host:port.
	Bind string `yaml:"bind"`
	// Webhooks holds per-source settings for /webhooks/{source}.
	Webhooks     map[string]WebhookSource `yaml:"webhooks"`
	MaxBodyBytes int64                    `yaml:"max_body_bytes"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// HealthTimeout bounds the provider check behind GET /health.
	HealthTimeout time.Duration `yaml:"health_timeout"`
}

// WebhookSource configures one webhook source.
type WebhookSource struct {
	// Secret enables X-Signature-256 verification for the source.
	Secret string `yaml:"secret"`
}

func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBody
	}
	setDuration(&c.ReadTimeout, 10*time.Second)
	setDuration(&c.WriteTimeout, 30*time.Second)
	setDuration(&c.ShutdownTimeout, 5*time.Second)
	setDuration(&c.HealthTimeout, 5*time.Second)
}

func setDuration(d *time.Duration, fallback time.Duration) {
	if *d <= 0 {
		*d = fallback
	}
}

func (c *Config) validate() error {
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", c.Bind, err)
	}
	for source := range c.Webhooks {
		if source == "" {
			return errors.New("gateway: webhook source name must not be empty")
		}
	}
	return nil
}

// secrets returns the non-empty configured secrets keyed by source.
func (c *Config) secrets() map[string]string {
	out := make(map[string]string, len(c.Webhooks))
	for source, wh := range c.Webhooks {
		if wh.Secret != "" {
			out[source] = wh.Secret
		}
	}
	return out
}
