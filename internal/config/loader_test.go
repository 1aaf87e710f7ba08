package config

import (
	"strings"
	"testing"
	"time"
)

const minimalConfig = `{
	"platform": {
		"verify_token": "dummy_verify_token",
		"page_token": "dummy_page_token"
	}
}`

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.Port != 8000 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Send.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Send.MaxAttempts)
	}
	if cfg.Attachments.Policy != "ttl" || cfg.Attachments.TTL() != 5*time.Minute {
		t.Errorf("attachment defaults = %+v", cfg.Attachments)
	}
	if cfg.Server.ShutdownGrace() != 10*time.Second {
		t.Errorf("shutdown grace = %v", cfg.Server.ShutdownGrace())
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`{
		"server": {"port": 9000, "base_url": "https://bot.example.com"},
		"platform": {"verify_token": "v", "page_token": "p", "app_secret": "s"},
		"send": {"max_attempts": 5, "backoff_base_ms": 100},
		"attachments": {"policy": "serve_once", "ttl_seconds": 60}
	}`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Send.MaxAttempts != 5 || cfg.Send.BackoffBase() != 100*time.Millisecond {
		t.Errorf("send = %+v", cfg.Send)
	}
	if cfg.Attachments.Policy != "serve_once" || cfg.Attachments.TTL() != time.Minute {
		t.Errorf("attachments = %+v", cfg.Attachments)
	}
	// Unset fields keep their defaults.
	if cfg.Attachments.SweepSchedule != "@every 30s" {
		t.Errorf("sweep schedule = %q", cfg.Attachments.SweepSchedule)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOOMERANG_PAGE_TOKEN", "env-page-token")
	t.Setenv("BOOMERANG_APP_SECRET", "env-secret")

	cfg, err := LoadFromReader(strings.NewReader(minimalConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Platform.PageToken != "env-page-token" {
		t.Errorf("page token = %q", cfg.Platform.PageToken)
	}
	if cfg.Platform.AppSecret != "env-secret" {
		t.Errorf("app secret = %q", cfg.Platform.AppSecret)
	}
	// File value survives when the env var is unset.
	if cfg.Platform.VerifyToken != "dummy_verify_token" {
		t.Errorf("verify token = %q", cfg.Platform.VerifyToken)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing verify token", `{"platform": {"page_token": "p"}}`},
		{"missing page token", `{"platform": {"verify_token": "v"}}`},
		{"bad policy", `{"platform": {"verify_token": "v", "page_token": "p"}, "attachments": {"policy": "sometimes"}}`},
		{"zero attempts", `{"platform": {"verify_token": "v", "page_token": "p"}, "send": {"max_attempts": -1}}`},
		{"not json", `also not json`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadFromReader(strings.NewReader(tc.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile("/no/such/config.json"); err == nil {
		t.Error("expected error for missing file")
	}
}
