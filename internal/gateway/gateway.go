// Package gateway is parrot's HTTP surface. It serves GET /health,
// GET /metrics and POST /webhooks/{source}, through which the Telegram
// channel receives updates in webhook mode.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/parrot/internal/core"
	"github.com/flemzord/parrot/internal/provider"
	"github.com/flemzord/parrot/internal/telemetry"
)

// Service registry names the gateway publishes or consumes.
const (
	ServiceDispatcher = "gateway.webhook_dispatcher"
	ServiceProvider   = "provider"
	ServiceMetrics    = "telemetry.metrics"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the gateway.http module.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     *slog.Logger
	dispatcher *WebhookDispatcher

	server *http.Server
	addr   net.Addr

	// Bound at Start; each may stay unset.
	model   string
	checker provider.HealthChecker
	metrics *telemetry.Metrics
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The dispatcher is published before
// any Start so the channel can register its webhook handler.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.dispatcher = NewWebhookDispatcher(g.logger, g.config.secrets())
	g.dispatcher.maxBody = g.config.MaxBodyBytes
	ctx.RegisterService(ServiceDispatcher, g.dispatcher)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. The listener is bound synchronously so an
// address in use fails Start instead of the serve goroutine.
func (g *Gateway) Start() error {
	g.bind()

	ln, err := new(net.ListenConfig).Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen on %s: %w", g.config.Bind, err)
	}
	g.addr = ln.Addr()
	g.server = &http.Server{
		Handler:      g.routes(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	g.logger.Info("gateway listening", "addr", g.addr.String())
	go func() {
		if err := g.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway stopped serving", "error", err)
		}
	}()
	return nil
}

// bind picks up the optional provider and metrics services.
func (g *Gateway) bind() {
	if svc, ok := g.appCtx.GetService(ServiceProvider); ok {
		if p, ok := svc.(provider.Provider); ok {
			g.model = p.ModelName()
		}
		g.checker, _ = svc.(provider.HealthChecker)
	}
	if svc, ok := g.appCtx.GetService(ServiceMetrics); ok {
		g.metrics, _ = svc.(*telemetry.Metrics)
	}
}

func (g *Gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", g.serveHealth)
	r.Method(http.MethodGet, "/metrics", g.metricsHandler())
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)
	return r
}

// Addr is the bound listen address, nil before Start.
func (g *Gateway) Addr() net.Addr {
	return g.addr
}

// Stop implements core.Stopper.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(ctx)
}

var (
	_ core.Module       = (*Gateway)(nil)
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)
