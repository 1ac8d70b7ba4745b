package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/letterbox/letterbox-server/internal/config"
	"github.com/letterbox/letterbox-server/internal/game/rules"
	"github.com/letterbox/letterbox-server/internal/table"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 5 * time.Second

// Server is the player-facing websocket endpoint.
type Server struct {
	cfg            config.WebSocketConfig
	upgrader       websocket.Upgrader
	registry       *Registry
	tables         *table.Manager
	logger         *zap.Logger
	httpServer     *http.Server
	requestTimeout time.Duration

	// sessions counts connection handlers and their cleanup goroutines.
	sessions sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// NewServer creates the websocket server and the table manager behind it.
func NewServer(cfg *config.Config, clock quartz.Clock, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws := cfg.Server.WebSocket
	if ws.Path == "" {
		ws.Path = "/ws"
	}
	if ws.SendQueueSize <= 0 {
		ws.SendQueueSize = 64
	}
	if ws.PingInterval <= 0 {
		ws.PingInterval = 30 * time.Second
	}
	if ws.WriteTimeout <= 0 {
		ws.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		cfg: ws,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  ws.ReadBufferSize,
			WriteBufferSize: ws.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		registry:       NewRegistry(),
		logger:         logger.Named("ws"),
		requestTimeout: defaultRequestTimeout,
	}
	s.tables = table.NewManager(table.OptionsFromConfig(cfg.Game), func(tableID string) rules.Sink {
		return s.registry.TableSink(tableID, s.logger)
	}, clock, logger)
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Tables exposes the table manager.
func (s *Server) Tables() *table.Manager {
	return s.tables
}

// Registry exposes the connection registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Handler returns the HTTP routes: the websocket path and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	s.sessions.Add(1)
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		s.sessions.Done()
		return
	}

	c := newConnection(conn, uuid.NewString(), s)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = c.Close()
		s.sessions.Done()
		return
	}
	s.registry.Register(c)
	s.mu.Unlock()
	s.logger.Info("client connected",
		zap.String("player_id", c.PlayerID()),
		zap.String("remote", r.RemoteAddr),
		zap.Int("connections", s.registry.Count()),
	)
	c.Start()

	if err := c.reply(MessageTypeWelcome, WelcomeData{PlayerID: c.PlayerID()}); err != nil {
		s.logger.Warn("failed to send welcome", zap.Error(err))
	}

	go func() {
		defer s.sessions.Done()
		<-c.Done()
		c.Wait()
		c.disconnect()
		s.registry.Unregister(c)
		s.logger.Info("client disconnected",
			zap.String("player_id", c.PlayerID()),
			zap.Int("connections", s.registry.Count()),
		)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ok tables=%d connections=%d", s.tables.ActiveCount(), s.registry.Count())
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("websocket server listening", zap.String("address", l.Addr().String()), zap.String("path", s.cfg.Path))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting connections, closes live sockets, waits for their
// players to leave their tables and then stops every table.
func (s *Server) Shutdown(ctx context.Context) error {
	errs := []error{s.httpServer.Shutdown(ctx)}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.registry.CloseAll()

	drained := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for connections: %w", ctx.Err()))
	}

	errs = append(errs, s.tables.Close())
	s.logger.Info("websocket server stopped")
	return errors.Join(errs...)
}
