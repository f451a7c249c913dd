package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range append(keys, "CONFIG_FILE") {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
	assert.NotEmpty(t, cfg.DBDsn)
	assert.Empty(t, cfg.DiscordToken)
	assert.Error(t, cfg.Validate(), "a token is required")
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "Bot abc.def")
	t.Setenv("BOT_OPERATOR_ID", "175928847299117063")
	t.Setenv("DB_MAX_OPEN_CONNS", "3")
	t.Setenv("LOG_FORMAT", "JSON")
	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", cfg.DiscordToken)
	assert.Equal(t, 3, cfg.DBMaxOpenConns)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DISCORD_TOKEN=from-file\nHTTP_ADDR=:9090\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.DiscordToken)
	assert.Equal(t, ":7070", cfg.HTTPAddr, "environment wins over .env")

	_, err = LoadFrom(filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("discord_token: yaml-token\ndocumentation_url: https://wiki.example/bot\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, "yaml-token", cfg.DiscordToken)
	assert.Equal(t, "https://wiki.example/bot", cfg.DocsURL)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err = LoadFrom("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{DiscordToken: "t", DBDsn: "postgres://x", LogLevel: "info", LogFormat: "text"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no token", func(c *Config) { c.DiscordToken = "" }},
		{"no dsn", func(c *Config) { c.DBDsn = "" }},
		{"operator not an id", func(c *Config) { c.OperatorID = "someone" }},
		{"negative pool", func(c *Config) { c.DBMaxIdleConns = -1 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
