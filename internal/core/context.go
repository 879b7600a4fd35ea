// Package core is parrot's module system: a registry of module types, the
// lifecycle they go through, and the AppContext they share.
package core

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// AppContext is what a module sees during Provision: a logger scoped to the
// module, the data directory and the shared service registry.
type AppContext struct {
	Logger  *slog.Logger
	DataDir string

	root     *slog.Logger
	configs  map[string]yaml.Node
	services *services
}

// services is shared by every AppContext derived from one root.
type services struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewAppContext returns a root context. A nil logger means slog.Default().
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:   logger,
		DataDir:  dataDir,
		root:     logger,
		services: &services{m: map[string]any{}},
	}
}

// WithModuleConfigs returns a copy of ctx holding the raw configuration of
// each module, keyed by module ID.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.configs = configs
	return &cp
}

// ForModule returns a copy of ctx whose logger carries module=id.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.root.With("module", string(id))
	return &cp
}

// RegisterService publishes svc under name, replacing any earlier value.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	ctx.services.m[name] = svc
	ctx.services.mu.Unlock()
}

func (ctx *AppContext) GetService(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.m[name]
	return svc, ok
}

// LoadModule creates the module registered under id and runs it through
// Configure (only when a config block exists), Provision and Validate.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}
	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, found := ctx.configs[id]; found {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}
	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}
	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}
	return mod, nil
}
