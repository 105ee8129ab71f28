package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
api:
  base_url: https://quiz.example.uz/api
  timeout: 5s
journal:
  driver: sqlite
sqlite:
  dsn: "file:proctor.db"
proctor:
  max_leave_attempts: 3
  dedup_window: 500ms
telegram:
  token: "123:abc"
  admin_chat_id: -1001
cors:
  origins: ["https://web.telegram.org"]
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.API.BaseURL != "https://quiz.example.uz/api" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Journal.Driver != "sqlite" || cfg.Proctor.MaxLeaveAttempts != 3 {
		t.Fatalf("unexpected proctor config: %+v", cfg)
	}
	if cfg.Telegram.AdminChatID != -1001 || len(cfg.CORS.Origins) != 1 {
		t.Fatalf("unexpected telegram/cors config: %+v", cfg)
	}
	if got := TTLDuration(cfg.Proctor.DedupWindow, 0); got != 500*time.Millisecond {
		t.Fatalf("unexpected dedup window %s", got)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %s", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for garbage, got %s", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected parsed value, got %s", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
