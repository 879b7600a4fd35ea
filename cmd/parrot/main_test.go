package main

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kardianos/service"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/parrot/internal/config"
	"github.com/flemzord/parrot/pkg/app"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// setSecrets provides the environment the generated config refers to.
func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123456:ABC-DEF_ghijk")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("XDG_DATA_HOME", t.TempDir())
}

func writeRendered(t *testing.T, a initAnswers) string {
	t.Helper()
	raw, err := renderConfig(a)
	if err != nil {
		t.Fatalf("renderConfig() error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "parrot.yaml")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestVersionCmd_ListsCompiledModules(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(out, "parrot dev") {
		t.Errorf("output should start with the version line, got %q", out)
	}
	for _, id := range []string{"channel.telegram", "gateway.http", "provider.openai", "store.sqlite", "telemetry.otel"} {
		if !strings.Contains(out, id) {
			t.Errorf("output missing module %s:\n%s", id, out)
		}
	}
}

func TestRenderConfig_Defaults(t *testing.T) {
	setSecrets(t)
	path := writeRendered(t, defaultAnswers())

	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "${BOT_TOKEN}") {
		t.Errorf("token should come from the environment:\n%s", raw)
	}
	if strings.Contains(string(raw), "sk-test") {
		t.Error("secret written to the config file")
	}

	cfg, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	want := []string{"channel.telegram", "provider.openai", "store.sqlite"}
	if got := config.Resolve(cfg); !slices.Equal(got, want) {
		t.Errorf("modules = %v, want %v", got, want)
	}
	if !cfg.Bot.PersonaRequired() {
		t.Error("require_persona should default to true")
	}
	if cfg.Bot.ThrottleInterval != config.DefaultThrottleInterval {
		t.Errorf("throttle_interval = %s", cfg.Bot.ThrottleInterval)
	}
}

func TestRenderConfig_Webhook(t *testing.T) {
	setSecrets(t)
	a := defaultAnswers()
	a.Mode = "webhook"
	a.WebhookURL = "https://bot.example.com/webhooks/telegram"
	a.Persist = false
	a.Tracing = true

	cfg, err := app.LoadConfig(writeRendered(t, a))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	want := []string{"channel.telegram", "gateway.http", "provider.openai", "telemetry.otel"}
	if got := config.Resolve(cfg); !slices.Equal(got, want) {
		t.Errorf("modules = %v, want %v", got, want)
	}

	node := cfg.Modules["channel.telegram"]
	var tg struct {
		Mode          string `yaml:"mode"`
		WebhookURL    string `yaml:"webhook_url"`
		WebhookSecret string `yaml:"webhook_secret"`
	}
	if err := node.Decode(&tg); err != nil {
		t.Fatalf("decode telegram: %v", err)
	}
	if tg.Mode != "webhook" {
		t.Errorf("mode = %q, want webhook", tg.Mode)
	}
	if tg.WebhookURL != a.WebhookURL {
		t.Errorf("webhook_url = %q", tg.WebhookURL)
	}
	if tg.WebhookSecret != "" {
		t.Errorf("webhook_secret = %q, want empty when unset", tg.WebhookSecret)
	}
}

func TestRenderConfig_ModeFromEnvironment(t *testing.T) {
	setSecrets(t)
	t.Setenv("TELEGRAM_MODE", "webhook")

	cfg, err := config.Load(writeRendered(t, defaultAnswers()))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	node := cfg.Modules["channel.telegram"]
	var tg struct {
		Mode string `yaml:"mode"`
	}
	if err := node.Decode(&tg); err != nil {
		t.Fatalf("decode telegram: %v", err)
	}
	if tg.Mode != "webhook" {
		t.Errorf("mode = %q, want the TELEGRAM_MODE override", tg.Mode)
	}
}

func TestRenderConfig_Retention(t *testing.T) {
	a := defaultAnswers()
	a.Retention = "720h"
	raw, err := renderConfig(a)
	if err != nil {
		t.Fatalf("renderConfig() error: %v", err)
	}

	var file struct {
		Modules map[string]map[string]any `yaml:"modules"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := file.Modules["store.sqlite"]["retention"]; got != "720h" {
		t.Errorf("retention = %v, want 720h", got)
	}
}

func TestRenderConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*initAnswers)
	}{
		{"unknown mode", func(a *initAnswers) { a.Mode = "push" }},
		{"webhook without url", func(a *initAnswers) { a.Mode = "webhook" }},
		{"webhook over http", func(a *initAnswers) {
			a.Mode = "webhook"
			a.WebhookURL = "http://bot.example.com/hook"
		}},
		{"bad retention", func(a *initAnswers) { a.Retention = "a month" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := defaultAnswers()
			tt.mutate(&a)
			if _, err := renderConfig(a); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestConfigCheck(t *testing.T) {
	setSecrets(t)
	path := writeRendered(t, defaultAnswers())

	out, err := execute(t, "config", "check", path)
	if err != nil {
		t.Fatalf("config check error: %v", err)
	}
	if !strings.Contains(out, "Configuration OK (3 modules)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestConfigCheck_ModuleValidationFails(t *testing.T) {
	setSecrets(t)
	t.Setenv("BOT_TOKEN", "not-a-token")
	path := writeRendered(t, defaultAnswers())

	if _, err := execute(t, "config", "check", path); err == nil {
		t.Error("expected an invalid token to fail the check")
	}
}

func TestInitCmd_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parrot.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := execute(t, "init", "--output", path)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected an overwrite error, got %v", err)
	}
}

func TestWriteConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "parrot.yaml")
	if err := writeConfigFile(path, []byte("version: \"1\"\n")); err != nil {
		t.Fatalf("writeConfigFile() error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
}

func TestStartCmd_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, "start", "--log-level", "loud")
	if err == nil || !strings.Contains(err.Error(), "--log-level") {
		t.Errorf("expected a log level error, got %v", err)
	}
}

func TestServiceConfig(t *testing.T) {
	cfg := serviceConfig("/etc/parrot/parrot.yaml", "debug")
	if cfg.Name != "parrot" {
		t.Errorf("Name = %q", cfg.Name)
	}
	want := []string{"service", "run", "--config", "/etc/parrot/parrot.yaml", "--log-level", "debug"}
	if !slices.Equal(cfg.Arguments, want) {
		t.Errorf("Arguments = %v, want %v", cfg.Arguments, want)
	}
}

func TestServiceCmd_Subcommands(t *testing.T) {
	cmd := serviceCmd()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, want := range []string{"install", "uninstall", "start", "stop", "restart", "status", "run"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing subcommand %q in %v", want, names)
		}
	}
}

func TestStatusName(t *testing.T) {
	tests := map[service.Status]string{
		service.StatusRunning: "running",
		service.StatusStopped: "stopped",
		service.StatusUnknown: "in an unknown state",
	}
	for st, want := range tests {
		if got := statusName(st); got != want {
			t.Errorf("statusName(%v) = %q, want %q", st, got, want)
		}
	}
}
