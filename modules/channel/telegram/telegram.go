package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/parrot/internal/channel"
	"github.com/flemzord/parrot/internal/core"
	"github.com/flemzord/parrot/internal/gateway"
	"github.com/flemzord/parrot/internal/security"
	"github.com/flemzord/parrot/pkg/message"
)

func init() {
	core.RegisterModule(&Telegram{})
}

var (
	_ channel.Channel   = (*Telegram)(nil)
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
)

// Telegram is the channel.telegram module.
type Telegram struct {
	config Config
	client *Client
	allow  *channel.AllowList
	logger *slog.Logger
	appCtx *core.AppContext

	mu    sync.Mutex
	inbox func(message.InboundMessage) error
	me    *User

	// One of these is set by Start, depending on the mode.
	poller     *poller
	dispatcher *gateway.WebhookDispatcher
}

func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.appCtx = ctx
	t.logger = ctx.Logger
	t.client = NewClient(t.config.Token, t.config.APIURL)
	t.allow = channel.NewAllowList(t.config.AllowUsers, t.config.AllowGroups)
	security.RegisterSecrets(ctx.GetService, t.config.Token, t.config.WebhookSecret)
	return nil
}

func (t *Telegram) Validate() error {
	return t.config.validate()
}

// Start checks the token with getMe, then begins receiving updates by long
// polling or through the gateway webhook.
func (t *Telegram) Start() error {
	t.mu.Lock()
	inbox := t.inbox
	t.mu.Unlock()
	if inbox == nil {
		return fmt.Errorf("telegram: %w, call SetInbox before Start", channel.ErrNoInbox)
	}

	ctx := context.Background()
	me, err := t.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.mu.Lock()
	t.me = me
	t.mu.Unlock()
	t.logger.Info("telegram bot authenticated", "id", me.ID, "username", me.Username)
	if t.allow.Open() {
		t.logger.Info("telegram allow list empty, bot is open to everyone")
	}

	in := &intake{
		inbox:   inbox,
		allow:   t.allow,
		botName: me.Username,
		channel: t.name(),
		logger:  t.logger,
	}
	if t.config.Mode == ModeWebhook {
		return t.startWebhook(ctx, in)
	}
	return t.startPolling(ctx, in)
}

func (t *Telegram) startPolling(ctx context.Context, in *intake) error {
	// getUpdates is refused while a webhook is set.
	if err := t.client.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("telegram: deleteWebhook failed: %w", err)
	}
	t.poller = newPoller(t.client, in, t.config.PollingTimeout, t.config.AllowedUpdates)
	t.poller.start()
	t.logger.Info("telegram polling started", "timeout", t.config.PollingTimeout)
	return nil
}

func (t *Telegram) startWebhook(ctx context.Context, in *intake) error {
	svc, ok := t.appCtx.GetService(gateway.ServiceDispatcher)
	if !ok {
		return errors.New("telegram: webhook dispatcher not found (is the gateway.http module loaded?)")
	}
	d, ok := svc.(*gateway.WebhookDispatcher)
	if !ok {
		return fmt.Errorf("telegram: %s is not a *gateway.WebhookDispatcher", gateway.ServiceDispatcher)
	}
	if t.config.WebhookSecret == "" {
		t.logger.Warn("telegram webhook has no webhook_secret, deliveries are not authenticated")
	}

	// Telegram sends no HMAC; the receiver checks its secret token header.
	d.RegisterUnsigned(t.name(), newWebhookReceiver(in, t.config.WebhookSecret))
	err := t.client.SetWebhook(ctx, SetWebhookRequest{
		URL:            t.config.WebhookURL,
		SecretToken:    t.config.WebhookSecret,
		AllowedUpdates: t.config.AllowedUpdates,
	})
	if err != nil {
		d.Unregister(t.name())
		return fmt.Errorf("telegram: setWebhook failed: %w", err)
	}
	t.dispatcher = d
	t.logger.Info("telegram webhook configured", "url", t.config.WebhookURL)
	return nil
}

func (t *Telegram) Stop(ctx context.Context) error {
	if t.poller != nil {
		t.poller.stop()
	}
	if t.dispatcher != nil {
		t.dispatcher.Unregister(t.name())
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("telegram: deleting webhook on shutdown failed", "error", err)
		}
	}
	if t.logger != nil {
		t.logger.Info("telegram channel stopped")
	}
	return nil
}

// SetInbox implements channel.Channel.
func (t *Telegram) SetInbox(fn func(msg message.InboundMessage) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inbox = fn
}

// BotUsername returns the bot's username once Start has run.
func (t *Telegram) BotUsername() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.me == nil {
		return ""
	}
	return t.me.Username
}

// name is the channel name carried by inbound messages and used as the
// webhook source.
func (t *Telegram) name() string {
	return t.ModuleInfo().ID.Name()
}
