// Package config loads grokcode configuration: defaults, then
// .grok/config.toml, then environment variables (env wins).
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full application configuration.
type Config struct {
	LLM     LLMConfig     `toml:"llm"`
	Shell   ShellConfig   `toml:"shell"`
	History HistoryConfig `toml:"history"`
	Perms   PermsConfig   `toml:"permissions"`
	Tracing TracingConfig `toml:"tracing"`
}

// LLMConfig configures the chat transport.
type LLMConfig struct {
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Temperature float64 `toml:"temperature"`
	MaxRetries  int     `toml:"max_retries"`
	RPM         int     `toml:"rpm"` // 0 = unlimited
}

// ShellConfig configures the bash tool.
type ShellConfig struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	SandboxImage   string `toml:"sandbox_image"` // non-empty = run bash in Docker
}

// HistoryConfig configures session journaling.
type HistoryConfig struct {
	Backend string `toml:"backend"` // "", "sqlite", "postgres"
	Path    string `toml:"path"`    // sqlite file path
	DSN     string `toml:"dsn"`     // postgres connection string
}

// PermsConfig configures the permission gate default.
type PermsConfig struct {
	DefaultMode string `toml:"default_mode"` // auto | approve | manual
}

// TracingConfig toggles OTEL tracing.
type TracingConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Model:       "grok-3-latest",
			BaseURL:     "https://api.x.ai/v1",
			Temperature: 0.7,
			MaxRetries:  2,
		},
		Shell: ShellConfig{TimeoutSeconds: 120},
		History: HistoryConfig{
			Backend: "sqlite",
			Path:    filepath.Join(".grok", "grok.db"),
		},
		Perms: PermsConfig{DefaultMode: "approve"},
	}
}

// Load reads config for the project at cwd: defaults → TOML file → env
// vars (env wins). The API key env var name follows the original
// product: XAI_API_KEY.
func Load(cwd string) Config {
	cfg := Default()

	path := filepath.Join(cwd, ".grok", "config.toml")
	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("XAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("GROK_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("GROK_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("GROK_HISTORY_DSN"); v != "" {
		cfg.History.Backend = "postgres"
		cfg.History.DSN = v
	}
	return cfg
}
