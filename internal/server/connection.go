package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrConnectionClosed is returned when sending on a closed or saturated connection.
var ErrConnectionClosed = errors.New("connection closed")

// Connection is one player's websocket. A player ID is assigned on connect
// and lasts for the life of the socket.
type Connection struct {
	conn     *websocket.Conn
	send     chan *Message
	playerID string
	tableID  string
	name     string
	srv      *Server
	logger   *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	pumps     sync.WaitGroup
}

func newConnection(conn *websocket.Conn, playerID string, srv *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:     conn,
		send:     make(chan *Message, srv.cfg.SendQueueSize),
		playerID: playerID,
		srv:      srv,
		logger:   srv.logger.With(zap.String("player_id", playerID)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the read and write pumps.
func (c *Connection) Start() {
	c.pumps.Add(2)
	go func() {
		defer c.pumps.Done()
		c.writePump()
	}()
	go func() {
		defer c.pumps.Done()
		c.readPump()
	}()
}

// Wait blocks until both pumps have returned.
func (c *Connection) Wait() {
	c.pumps.Wait()
}

// Done is closed once the connection is shutting down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close stops both pumps and closes the socket.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues msg without blocking. A connection whose queue is full
// is too slow to keep up and is closed.
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("send queue full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// PlayerID is the ID assigned when the socket connected.
func (c *Connection) PlayerID() string {
	return c.playerID
}

// TableID is the table the player is seated at, or empty.
func (c *Connection) TableID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableID
}

func (c *Connection) setTable(tableID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableID = tableID
	if name != "" {
		c.name = name
	}
}

// Name is the display name given when joining a table.
func (c *Connection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Connection) pongWait() time.Duration {
	return c.srv.cfg.PingInterval * 10 / 9
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	if c.srv.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.srv.cfg.MaxMessageSize)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.srv.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}
