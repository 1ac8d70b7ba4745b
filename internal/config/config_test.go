package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.WebSocket.Address)
	assert.Equal(t, "/ws", cfg.Server.WebSocket.Path)
	assert.Equal(t, ":9090", cfg.Server.GRPC.Address)
	assert.Equal(t, "classic", cfg.Game.Variant)
	assert.Equal(t, 60*time.Second, cfg.Game.TurnTimeout)
	assert.True(t, cfg.Game.EnforceCountess)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Game.ReplayDir)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  websocket:
    address: ":7000"
game:
  variant: assassin
  max_players: 6
  turn_timeout: 15s
  replay_dir: /var/lib/letterbox/replays
logging:
  level: debug
  format: json
`), 0o600))

	t.Setenv("LETTERBOX_GAME_TOKENS_TO_WIN", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.WebSocket.Address)
	assert.Equal(t, "assassin", cfg.Game.Variant)
	assert.Equal(t, 6, cfg.Game.MaxPlayers)
	assert.Equal(t, 15*time.Second, cfg.Game.TurnTimeout)
	assert.Equal(t, 2, cfg.Game.TokensToWin)
	assert.Equal(t, "/var/lib/letterbox/replays", cfg.Game.ReplayDir)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Game.MaxPlayers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown variant", func(c *Config) { c.Game.Variant = "expansion" }},
		{"too few players", func(c *Config) { c.Game.MinPlayers = 1 }},
		{"too many players", func(c *Config) { c.Game.MaxPlayers = 7 }},
		{"min above max", func(c *Config) { c.Game.MinPlayers = 5; c.Game.MaxPlayers = 3 }},
		{"negative timeout", func(c *Config) { c.Game.TurnTimeout = -time.Second }},
		{"negative tokens", func(c *Config) { c.Game.TokensToWin = -1 }},
		{"empty send queue", func(c *Config) { c.Server.WebSocket.SendQueueSize = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
