package telegram

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

// Update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// maxTextLength is the Bot API limit for a message text, in UTF-16 code units.
const maxTextLength = 4096

// maxPollingTimeout is the longest long poll the Bot API accepts, in seconds.
const maxPollingTimeout = 50

// A bot token is <bot id>:<secret>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config is the channel.telegram configuration block.
type Config struct {
	Token  string `yaml:"token"`
	Mode   string `yaml:"mode"`
	APIURL string `yaml:"api_url"`

	// Polling mode.
	PollingTimeout int `yaml:"polling_timeout"`

	// Webhook mode. The gateway.http module must be loaded.
	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`

	AllowedUpdates   []string `yaml:"allowed_updates"`
	AllowUsers       []string `yaml:"allow_users"`
	AllowGroups      []string `yaml:"allow_groups"`
	MaxMessageLength int      `yaml:"max_message_length"`
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = ModePolling
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.AllowedUpdates == nil {
		c.AllowedUpdates = []string{"message"}
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = maxTextLength
	}
}

// validate runs after defaults.
func (c *Config) validate() error {
	switch {
	case c.Token == "":
		return errors.New("telegram: token is required")
	case !tokenPattern.MatchString(c.Token):
		return errors.New("telegram: token format invalid (expected <bot_id>:<hash>)")
	}

	switch c.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.WebhookURL == "" {
			return errors.New("telegram: webhook_url is required when mode is \"webhook\"")
		}
	default:
		return fmt.Errorf("telegram: invalid mode %q (must be %q or %q)", c.Mode, ModePolling, ModeWebhook)
	}

	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
	}
	if c.WebhookURL != "" {
		if u, err := url.Parse(c.WebhookURL); err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("telegram: webhook_url must be an https URL, got %q", c.WebhookURL)
		}
	}
	if c.PollingTimeout < 0 || c.PollingTimeout > maxPollingTimeout {
		return fmt.Errorf("telegram: polling_timeout must be 0-%d, got %d", maxPollingTimeout, c.PollingTimeout)
	}
	if c.MaxMessageLength < 1 || c.MaxMessageLength > maxTextLength {
		return fmt.Errorf("telegram: max_message_length must be 1-%d, got %d", maxTextLength, c.MaxMessageLength)
	}
	return nil
}
