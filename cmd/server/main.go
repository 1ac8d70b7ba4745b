package main

import (
	"strings"

	"github.com/alecthomas/kong"
	"github.com/letterbox/letterbox-server/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev" // set via ldflags during build

// CLI is the command line of the letterbox binary.
type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Serve    ServeCmd         `cmd:"" default:"withargs" help:"Run the game server"`
	Simulate SimulateCmd      `cmd:"" help:"Play seeded rounds with the auto-play policy and print the results"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("letterbox"),
		kong.Description("Card game server for small tables"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
