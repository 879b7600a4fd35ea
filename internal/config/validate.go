package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/parrot/internal/core"
)

// Namespaces that must be represented by at least one configured module.
var requiredNamespaces = []string{"channel", "provider"}

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and that a channel and a
// provider are configured. All problems are reported at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	if len(cfg.Modules) > 0 {
		for _, ns := range requiredNamespaces {
			if !hasNamespace(cfg, ns) {
				errs = append(errs, fmt.Errorf("config: a %s.* module is required", ns))
			}
		}
	}

	errs = append(errs, validateBot(cfg.Bot)...)

	return errors.Join(errs...)
}

func hasNamespace(cfg *Config, ns string) bool {
	for id := range cfg.Modules {
		if strings.HasPrefix(id, ns+".") {
			return true
		}
	}
	return false
}

func validateBot(b BotConfig) []error {
	var errs []error

	if b.ThrottleInterval < 0 {
		errs = append(errs, fmt.Errorf("config: bot.throttle_interval must not be negative, got %s", b.ThrottleInterval))
	} else if b.ThrottleInterval > 0 && b.ThrottleInterval < 50*time.Millisecond {
		errs = append(errs, fmt.Errorf("config: bot.throttle_interval must be at least 50ms, got %s", b.ThrottleInterval))
	}
	if b.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("config: bot.max_tokens must not be negative, got %d", b.MaxTokens))
	}
	if b.Workers < 0 {
		errs = append(errs, fmt.Errorf("config: bot.workers must not be negative, got %d", b.Workers))
	}
	if b.InboxSize < 0 {
		errs = append(errs, fmt.Errorf("config: bot.inbox_size must not be negative, got %d", b.InboxSize))
	}
	if b.ReplyTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: bot.reply_timeout must not be negative, got %s", b.ReplyTimeout))
	}

	return errs
}
