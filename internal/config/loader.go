package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadFromFile loads config from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader loads config from an io.Reader, applying defaults and env overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Platform.VerifyToken == "" {
		return fmt.Errorf("config: platform.verify_token is required")
	}
	if c.Platform.PageToken == "" {
		return fmt.Errorf("config: platform.page_token is required")
	}
	switch c.Attachments.Policy {
	case "", "ttl", "serve_once":
	default:
		return fmt.Errorf("config: unknown attachments.policy %q", c.Attachments.Policy)
	}
	if c.Send.MaxAttempts < 1 {
		return fmt.Errorf("config: send.max_attempts must be at least 1")
	}
	return nil
}

// applyEnvOverrides applies BOOMERANG_-prefixed environment variable overrides.
// Secrets are the usual candidates so they can stay out of the config file.
func applyEnvOverrides(cfg *Config) {
	envMap := map[string]*string{
		"BOOMERANG_VERIFY_TOKEN": &cfg.Platform.VerifyToken,
		"BOOMERANG_PAGE_TOKEN":   &cfg.Platform.PageToken,
		"BOOMERANG_APP_SECRET":   &cfg.Platform.AppSecret,
		"BOOMERANG_BASE_URL":     &cfg.Server.BaseURL,
	}

	for env, ptr := range envMap {
		if val := os.Getenv(env); val != "" {
			*ptr = val
		}
	}
}
