package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.LLM.Model != "grok-3-latest" || cfg.LLM.BaseURL != "https://api.x.ai/v1" {
		t.Errorf("LLM defaults wrong: %+v", cfg.LLM)
	}
	if cfg.Shell.TimeoutSeconds != 120 {
		t.Errorf("shell default wrong: %+v", cfg.Shell)
	}
	if cfg.Perms.DefaultMode != "approve" {
		t.Errorf("perms default wrong: %+v", cfg.Perms)
	}
}

func TestLoadTOMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, ".grok", "config.toml")
	if err := os.MkdirAll(filepath.Dir(tomlPath), 0o755); err != nil {
		t.Fatal(err)
	}
	content := `
[llm]
model = "grok-4"
temperature = 0.2
rpm = 30

[shell]
sandbox_image = "alpine:3.20"

[permissions]
default_mode = "auto"
`
	if err := os.WriteFile(tomlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(dir)
	if cfg.LLM.Model != "grok-4" || cfg.LLM.Temperature != 0.2 || cfg.LLM.RPM != 30 {
		t.Errorf("TOML not applied: %+v", cfg.LLM)
	}
	if cfg.Shell.SandboxImage != "alpine:3.20" {
		t.Errorf("shell TOML not applied: %+v", cfg.Shell)
	}
	if cfg.Perms.DefaultMode != "auto" {
		t.Errorf("perms TOML not applied: %+v", cfg.Perms)
	}
	// Unset keys keep their defaults.
	if cfg.LLM.BaseURL != "https://api.x.ai/v1" {
		t.Errorf("default lost: %+v", cfg.LLM)
	}
}

func TestEnvWinsOverTOML(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, ".grok", "config.toml")
	os.MkdirAll(filepath.Dir(tomlPath), 0o755)
	os.WriteFile(tomlPath, []byte("[llm]\napi_key = \"from-toml\"\nmodel = \"toml-model\"\n"), 0o644)

	t.Setenv("XAI_API_KEY", "from-env")
	t.Setenv("GROK_MODEL", "env-model")

	cfg := Load(dir)
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("env key must win: %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("env model must win: %q", cfg.LLM.Model)
	}
}
