package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/spf13/viper"
)

// Config is the server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Game    GameConfig    `mapstructure:"game"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	// ShutdownTimeout bounds graceful shutdown of both listeners.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WebSocketConfig configures the player-facing endpoint.
type WebSocketConfig struct {
	Address         string        `mapstructure:"address"`
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	SendQueueSize   int           `mapstructure:"send_queue_size"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
}

// GRPCConfig configures the health endpoint.
type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds table rules.
type GameConfig struct {
	Variant         string        `mapstructure:"variant"`
	MinPlayers      int           `mapstructure:"min_players"`
	MaxPlayers      int           `mapstructure:"max_players"`
	TurnTimeout     time.Duration `mapstructure:"turn_timeout"`
	RoundDelay      time.Duration `mapstructure:"round_delay"`
	TokensToWin     int           `mapstructure:"tokens_to_win"`
	EnforceCountess bool          `mapstructure:"enforce_countess"`
	// Seed makes shuffles reproducible when non-zero.
	Seed uint64 `mapstructure:"seed"`
	// ReplayDir receives one replay file per finished round when set.
	ReplayDir string `mapstructure:"replay_dir"`
}

// EnvPrefix is the prefix for environment overrides, e.g. LETTERBOX_GAME_VARIANT.
const EnvPrefix = "LETTERBOX"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.send_queue_size", 64)
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.websocket.ping_interval", 30*time.Second)
	v.SetDefault("server.websocket.max_message_size", 4096)
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("game.variant", string(cards.VariantClassic))
	v.SetDefault("game.min_players", 2)
	v.SetDefault("game.max_players", 4)
	v.SetDefault("game.turn_timeout", 60*time.Second)
	v.SetDefault("game.round_delay", 5*time.Second)
	v.SetDefault("game.tokens_to_win", 0)
	v.SetDefault("game.enforce_countess", true)
	v.SetDefault("game.seed", 0)
	v.SetDefault("game.replay_dir", "")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults are static; failing here is a programming error.
		panic(err)
	}
	return cfg
}

// Load reads configuration from path (YAML), then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no table could run with.
func (c *Config) Validate() error {
	if _, err := cards.ParseVariant(c.Game.Variant); err != nil {
		return fmt.Errorf("game.variant: %w", err)
	}
	if c.Game.MinPlayers < 2 || c.Game.MinPlayers > 6 {
		return fmt.Errorf("game.min_players must be between 2 and 6, got %d", c.Game.MinPlayers)
	}
	if c.Game.MaxPlayers < 2 || c.Game.MaxPlayers > 6 {
		return fmt.Errorf("game.max_players must be between 2 and 6, got %d", c.Game.MaxPlayers)
	}
	if c.Game.MinPlayers > c.Game.MaxPlayers {
		return fmt.Errorf("game.min_players (%d) exceeds game.max_players (%d)", c.Game.MinPlayers, c.Game.MaxPlayers)
	}
	if c.Game.TurnTimeout < 0 || c.Game.RoundDelay < 0 {
		return fmt.Errorf("game timeouts must not be negative")
	}
	if c.Game.TokensToWin < 0 {
		return fmt.Errorf("game.tokens_to_win must not be negative")
	}
	if c.Server.WebSocket.SendQueueSize <= 0 {
		return fmt.Errorf("server.websocket.send_queue_size must be positive")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
