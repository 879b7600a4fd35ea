// Package openai implements the provider.openai module, streaming replies
// from any API that speaks the OpenAI Chat Completions protocol.
package openai

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/parrot/internal/core"
	"github.com/flemzord/parrot/internal/provider"
	"github.com/flemzord/parrot/internal/security"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// Provider streams chat completions from an OpenAI-compatible endpoint.
type Provider struct {
	config Config
	apiKey string
	logger *slog.Logger
	client *http.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return fmt.Errorf("provider.openai: decode config: %w", err)
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger

	p.apiKey = p.config.APIKey
	if p.apiKey == "" && p.config.APIKeyEnv != "" {
		p.apiKey = os.Getenv(p.config.APIKeyEnv)
	}
	security.RegisterSecrets(ctx.GetService, p.apiKey)

	// http.Client.Timeout would cut long SSE streams; the timeout only
	// bounds the wait for response headers and the stream is cancelled
	// through the request context.
	p.client = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: p.config.Timeout,
		},
	}
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	if err := p.config.validate(); err != nil {
		return err
	}
	if p.apiKey == "" {
		if p.config.APIKeyEnv != "" {
			return fmt.Errorf("provider.openai: environment variable %s is empty", p.config.APIKeyEnv)
		}
		return errors.New("provider.openai: api_key or api_key_env is required")
	}
	return nil
}

// ModelName implements provider.Provider.
func (p *Provider) ModelName() string {
	return p.config.Model
}
