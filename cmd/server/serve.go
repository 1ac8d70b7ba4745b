package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/letterbox/letterbox-server/internal/config"
	"github.com/letterbox/letterbox-server/internal/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ServeCmd runs the websocket and health servers.
type ServeCmd struct {
	Config string `short:"c" default:"config/config.yaml" help:"Path to configuration file" type:"path"`
}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting letterbox server",
		zap.String("version", version),
		zap.String("config", c.Config),
		zap.String("variant", cfg.Game.Variant),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve runs the websocket and health listeners until ctx is cancelled or
// either listener fails.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	wsListener, err := net.Listen("tcp", cfg.Server.WebSocket.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.WebSocket.Address, err)
	}
	grpcListener, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		_ = wsListener.Close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPC.Address, err)
	}

	wsServer := server.NewServer(cfg, quartz.NewReal(), logger)
	health := server.NewHealthServer(logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return wsServer.Serve(wsListener)
	})
	g.Go(func() error {
		return health.Serve(grpcListener)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down gracefully...")

		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		health.Stop()
		return wsServer.Shutdown(shutdownCtx)
	})

	health.MarkServing()
	logger.Info("letterbox server initialized",
		zap.String("version", version),
		zap.String("websocket_address", wsListener.Addr().String()),
		zap.String("grpc_address", grpcListener.Addr().String()),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("letterbox server stopped")
	return nil
}
