package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/parrot/internal/config"
	"github.com/flemzord/parrot/pkg/app"
)

// initAnswers holds the choices made in the init wizard.
type initAnswers struct {
	Mode           string
	WebhookURL     string
	Gateway        bool
	Bind           string
	BaseURL        string
	Model          string
	RequirePersona bool
	Persist        bool
	Retention      string
	Tracing        bool
	OTLPEndpoint   string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Mode:           "polling",
		Bind:           "127.0.0.1:8080",
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-3.5-turbo",
		RequirePersona: true,
		Persist:        true,
		OTLPEndpoint:   "localhost:4318",
	}
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = app.DefaultConfigPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			answers := defaultAnswers()
			if err := askInit(&answers); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}

			raw, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := writeConfigFile(output, raw); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration written to %s\n\n", output)
			fmt.Fprintln(out, "Set the secrets in the environment, then start the bot:")
			fmt.Fprintln(out, "  export BOT_TOKEN=<telegram bot token>")
			fmt.Fprintln(out, "  export OPENAI_API_KEY=<api key>")
			fmt.Fprintf(out, "  parrot start --config %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// askInit runs the interactive form, filling a.
func askInit(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How should parrot receive Telegram updates?").
				Options(
					huh.NewOption("Long polling (development)", "polling"),
					huh.NewOption("Webhook (production)", "webhook"),
				).
				Value(&a.Mode),
			huh.NewConfirm().
				Title("Require /imitate before chatting?").
				Value(&a.RequirePersona),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Public webhook URL").
				Placeholder("https://bot.example.com/webhooks/telegram").
				Value(&a.WebhookURL).
				Validate(validateWebhookURL),
		).WithHideFunc(func() bool { return a.Mode != "webhook" }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Expose /health and /metrics over HTTP?").
				Value(&a.Gateway),
		).WithHideFunc(func() bool { return a.Mode == "webhook" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway listen address").
				Value(&a.Bind),
		).WithHideFunc(func() bool { return a.Mode != "webhook" && !a.Gateway }),
		huh.NewGroup(
			huh.NewInput().
				Title("Completion API base URL").
				Value(&a.BaseURL),
			huh.NewInput().
				Title("Model").
				Value(&a.Model),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Keep conversations across restarts (SQLite)?").
				Value(&a.Persist),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Forget conversations idle for (empty keeps them)").
				Placeholder("720h").
				Value(&a.Retention).
				Validate(validateRetention),
		).WithHideFunc(func() bool { return !a.Persist }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Export traces over OTLP?").
				Value(&a.Tracing),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("OTLP/HTTP endpoint").
				Value(&a.OTLPEndpoint),
		).WithHideFunc(func() bool { return !a.Tracing }),
	)
	return form.Run()
}

func validateWebhookURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return errors.New("must be an https URL")
	}
	return nil
}

func validateRetention(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return errors.New("must be a duration such as 720h")
	}
	return nil
}

// The file layout written by init. Field order is the output order.
type initFile struct {
	Version string      `yaml:"version"`
	Bot     initBot     `yaml:"bot"`
	Modules initModules `yaml:"modules"`
}

type initBot struct {
	RequirePersona   bool   `yaml:"require_persona"`
	ThrottleInterval string `yaml:"throttle_interval"`
	MaxTokens        int    `yaml:"max_tokens"`
}

type initModules struct {
	Telegram initTelegram `yaml:"channel.telegram"`
	Gateway  *initGateway `yaml:"gateway.http,omitempty"`
	OpenAI   initOpenAI   `yaml:"provider.openai"`
	Store    *initStore   `yaml:"store.sqlite,omitempty"`
	Tracing  *initTracing `yaml:"telemetry.otel,omitempty"`
}

type initTelegram struct {
	Token         string `yaml:"token"`
	Mode          string `yaml:"mode"`
	WebhookURL    string `yaml:"webhook_url,omitempty"`
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
}

type initGateway struct {
	Bind string `yaml:"bind"`
}

type initOpenAI struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

type initStore struct {
	Retention string `yaml:"retention,omitempty"`
}

type initTracing struct {
	Endpoint string `yaml:"endpoint"`
}

// renderConfig turns wizard answers into a configuration file. Secrets are
// referenced through environment variables and never written out.
func renderConfig(a initAnswers) ([]byte, error) {
	if a.Mode != "polling" && a.Mode != "webhook" {
		return nil, fmt.Errorf("init: unknown mode %q", a.Mode)
	}

	file := initFile{
		Version: "1",
		Bot: initBot{
			RequirePersona:   a.RequirePersona,
			ThrottleInterval: config.DefaultThrottleInterval.String(),
			MaxTokens:        config.DefaultMaxTokens,
		},
		Modules: initModules{
			Telegram: initTelegram{
				Token: "${BOT_TOKEN}",
				Mode:  "${TELEGRAM_MODE:-" + a.Mode + "}",
			},
			OpenAI: initOpenAI{
				BaseURL:   a.BaseURL,
				APIKeyEnv: "OPENAI_API_KEY",
				Model:     a.Model,
			},
		},
	}

	if a.Mode == "webhook" {
		if err := validateWebhookURL(a.WebhookURL); err != nil {
			return nil, fmt.Errorf("init: webhook url: %w", err)
		}
		file.Modules.Telegram.WebhookURL = a.WebhookURL
		file.Modules.Telegram.WebhookSecret = "${TELEGRAM_WEBHOOK_SECRET:-}"
	}
	if a.Mode == "webhook" || a.Gateway {
		file.Modules.Gateway = &initGateway{Bind: a.Bind}
	}
	if a.Persist {
		if err := validateRetention(a.Retention); err != nil {
			return nil, fmt.Errorf("init: retention: %w", err)
		}
		file.Modules.Store = &initStore{Retention: a.Retention}
	}
	if a.Tracing {
		file.Modules.Tracing = &initTracing{Endpoint: a.OTLPEndpoint}
	}

	var buf bytes.Buffer
	buf.WriteString("# Generated by parrot init.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return nil, fmt.Errorf("init: encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("init: encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

func writeConfigFile(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("init: creating config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("init: writing %s: %w", path, err)
	}
	return nil
}
