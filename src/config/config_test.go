package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, NewValidator().Validate(cfg))

	assert.Equal(t, "deepseek", cfg.Reply.ActiveProvider)
	assert.Contains(t, cfg.Providers, "deepseek")
	assert.Contains(t, cfg.Providers, "kimi")
	assert.Contains(t, cfg.Providers, "qwen")
	assert.Contains(t, cfg.Providers, "gemini")
	assert.NotEmpty(t, cfg.Personas)
}

func TestLoadDefaultsWhenNoFilesExist(t *testing.T) {
	loader := NewLoader(ConfigPrecedence{
		ProjectConfig: filepath.Join(t.TempDir(), "missing.json"),
	})

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "deepseek", cfg.Reply.ActiveProvider)
	assert.Equal(t, ":8787", cfg.Server.Addr)
}

func TestLoadMergePrecedence(t *testing.T) {
	dir := t.TempDir()
	user := writeConfigFile(t, dir, "user.json", `{
		"reply": {"active_provider": "kimi", "history_limit": 10},
		"server": {"addr": ":9000"}
	}`)
	project := writeConfigFile(t, dir, "project.json", `{
		"reply": {"active_provider": "gemini"}
	}`)

	loader := NewLoader(ConfigPrecedence{
		UserConfig:    user,
		ProjectConfig: project,
	})

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Project overrides user; untouched user values survive.
	assert.Equal(t, "gemini", cfg.Reply.ActiveProvider)
	assert.Equal(t, 10, cfg.Reply.HistoryLimit)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	// Defaults survive under both.
	assert.Equal(t, 2000, cfg.Reply.PeerDelay.MinMs)
}

func TestLoadProviderOverrideReplacesEntry(t *testing.T) {
	dir := t.TempDir()
	project := writeConfigFile(t, dir, "project.json", `{
		"providers": {
			"deepseek": {"kind": "openaichat", "base_url": "https://proxy.internal/v1", "model": "deepseek-chat"}
		}
	}`)

	loader := NewLoader(ConfigPrecedence{ProjectConfig: project})
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://proxy.internal/v1", cfg.Providers["deepseek"].BaseURL)
	// Other default providers are untouched.
	assert.Contains(t, cfg.Providers, "kimi")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("AUTOREPLY_PROVIDER", "qwen")
	t.Setenv("AUTOREPLY_ADDR", ":7000")

	loader := NewLoader(ConfigPrecedence{EnvironmentPrefix: "AUTOREPLY"})
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "qwen", cfg.Reply.ActiveProvider)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoadResolvesCredentialsFromEnv(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-from-env")

	loader := NewLoader(ConfigPrecedence{})
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Providers["deepseek"].APIKey)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	project := writeConfigFile(t, dir, "broken.json", `{not json`)

	loader := NewLoader(ConfigPrecedence{ProjectConfig: project})
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestValidateUnknownActiveProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reply.ActiveProvider = "nonexistent"

	err := NewValidator().Validate(cfg)
	require.Error(t, err)

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ActiveProvider", verr.Field)
}

func TestValidateUnknownProviderKind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["weird"] = ProviderConfig{Kind: "smoke-signals", Model: "m"}

	err := NewValidator().Validate(cfg)
	assert.Error(t, err)
}

func TestValidateInvertedDelayRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reply.AgentDelay = DelayRangeConfig{MinMs: 2000, MaxMs: 800}

	err := NewValidator().Validate(cfg)
	require.Error(t, err)

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "DelayRange", verr.Field)
}

func TestSaveFileRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":9999"

	loader := NewLoader(ConfigPrecedence{})
	require.NoError(t, loader.SaveFile(cfg, path))

	reloaded := NewLoader(ConfigPrecedence{ProjectConfig: path})
	got, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", got.Server.Addr)
}
