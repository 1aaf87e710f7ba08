package config

import "time"

// Config is the top-level configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Platform    PlatformConfig    `json:"platform"`
	Send        SendConfig        `json:"send"`
	Attachments AttachmentsConfig `json:"attachments"`
}

// ServerConfig holds the webhook HTTP listener settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// BaseURL is the public URL the platform can reach this server at,
	// used to build attachment links (e.g. an ngrok tunnel URL).
	BaseURL string `json:"base_url"`
	// ShutdownGraceSeconds bounds how long in-flight conversations may
	// finish after a stop signal.
	ShutdownGraceSeconds int `json:"shutdown_grace_seconds"`
}

// PlatformConfig holds credentials for the Messenger Platform.
type PlatformConfig struct {
	VerifyToken string `json:"verify_token"`
	PageToken   string `json:"page_token"`
	// AppSecret enables webhook signature validation when non-empty.
	AppSecret string `json:"app_secret"`
	// APIBaseURL overrides the Graph API endpoint, mainly for tests.
	APIBaseURL string `json:"api_base_url"`
}

// SendConfig tunes the outbound client's retry behaviour.
type SendConfig struct {
	MaxAttempts    int `json:"max_attempts"`
	BackoffBaseMS  int `json:"backoff_base_ms"`
	BackoffCapMS   int `json:"backoff_cap_ms"`
	TimeoutSeconds int `json:"timeout_seconds"`
}

// AttachmentsConfig controls the attachment cache.
type AttachmentsConfig struct {
	// Policy is "ttl" (serve until expiry) or "serve_once".
	Policy        string `json:"policy"`
	TTLSeconds    int    `json:"ttl_seconds"`
	SweepSchedule string `json:"sweep_schedule"` // cron spec, e.g. "@every 30s"
}

// ShutdownGrace returns the configured grace period as a duration.
func (c ServerConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}

// TTL returns the configured attachment lifetime as a duration.
func (c AttachmentsConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// BackoffBase returns the base retry delay as a duration.
func (c SendConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

// BackoffCap returns the maximum retry delay as a duration.
func (c SendConfig) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapMS) * time.Millisecond
}

// Timeout returns the per-request send timeout as a duration.
func (c SendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                 "0.0.0.0",
			Port:                 8000,
			ShutdownGraceSeconds: 10,
		},
		Send: SendConfig{
			MaxAttempts:    3,
			BackoffBaseMS:  500,
			BackoffCapMS:   10000,
			TimeoutSeconds: 15,
		},
		Attachments: AttachmentsConfig{
			Policy:        "ttl",
			TTLSeconds:    300,
			SweepSchedule: "@every 30s",
		},
	}
}
