package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
telegram:
  token: "tg-token"
  owner_user_id: 42
discord:
  token: "dc-token"
github:
  token: "gh-token"
storage:
  path: "./issuecast.db"
pipeline:
  poll_every: "15m"
  min_interval: "1h"
  telegram:
    batch_limit: 15
    send_delay: "200ms"
  discord:
    batch_limit: 2
    send_delay: "2s"
logging:
  level: "debug"
  console: true
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.OwnerUserID != 42 {
		t.Fatalf("owner = %d", cfg.Telegram.OwnerUserID)
	}
	if cfg.Pipeline.Telegram.BatchLimit != 15 || cfg.Pipeline.Discord.BatchLimit != 2 {
		t.Fatalf("batch limits = %d / %d", cfg.Pipeline.Telegram.BatchLimit, cfg.Pipeline.Discord.BatchLimit)
	}
	d, err := ParseDurationField("pipeline.telegram.send_delay", cfg.Pipeline.Telegram.SendDelay)
	if err != nil || d != 200*time.Millisecond {
		t.Fatalf("send delay = %v (%v)", d, err)
	}
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+"\nextra_section:\n  x: 1\n"))
	if err == nil {
		t.Fatalf("unknown keys must be rejected")
	}
}

func TestLoadMissingToken(t *testing.T) {
	body := strings.Replace(validConfig, `token: "dc-token"`, `token: ""`, 1)
	_, err := Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "discord.token") {
		t.Fatalf("expected discord token error, got %v", err)
	}
}

func TestLoadBadDuration(t *testing.T) {
	body := strings.Replace(validConfig, `poll_every: "15m"`, `poll_every: "15 minutes"`, 1)
	_, err := Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "pipeline.poll_every") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", 5*time.Second)
	if err != nil || d != 5*time.Second {
		t.Fatalf("empty field: %v (%v)", d, err)
	}
	d, err = ParseDurationOrDefault("x", "250ms", 5*time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("set field: %v (%v)", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "nope", 5*time.Second); err == nil {
		t.Fatalf("invalid duration accepted")
	}
}
