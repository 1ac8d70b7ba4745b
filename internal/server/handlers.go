package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/letterbox/letterbox-server/internal/game/cards"
	"github.com/letterbox/letterbox-server/internal/game/targeting"
	"github.com/letterbox/letterbox-server/internal/table"
	"go.uber.org/zap"
)

var (
	errNotAtTable     = errors.New("not at a table")
	errAlreadyAtTable = errors.New("already at a table")
	errUnknownTable   = errors.New("unknown table")
)

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", zap.String("type", string(msg.Type)))

	var err error
	switch msg.Type {
	case MessageTypeCreateTable:
		var data CreateTableData
		if err = decode(msg, &data); err == nil {
			err = c.handleCreateTable(data)
		}
	case MessageTypeJoinTable:
		var data JoinTableData
		if err = decode(msg, &data); err == nil {
			err = c.handleJoinTable(data)
		}
	case MessageTypeLeaveTable:
		err = c.handleLeaveTable()
	case MessageTypeStartGame:
		err = c.handleStartGame()
	case MessageTypePlayCard:
		var data PlayCardData
		if err = decode(msg, &data); err == nil {
			c.handlePlayCard(data)
		}
	case MessageTypeListTables:
		err = c.handleListTables()
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}

	if err != nil {
		c.logger.Warn("request failed", zap.String("type", string(msg.Type)), zap.Error(err))
		c.sendError(err)
	}
}

func decode(msg *Message, v any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%s: missing data", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%s: invalid data: %w", msg.Type, err)
	}
	return nil
}

func (c *Connection) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, c.srv.requestTimeout)
}

func (c *Connection) currentTable() (*table.Table, error) {
	tableID := c.TableID()
	if tableID == "" {
		return nil, errNotAtTable
	}
	t, ok := c.srv.tables.GetTable(tableID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownTable, tableID)
	}
	return t, nil
}

func (c *Connection) handleCreateTable(data CreateTableData) error {
	if c.TableID() != "" {
		return errAlreadyAtTable
	}
	opts := table.Options{Name: data.Name, MaxPlayers: data.MaxPlayers}
	if data.Variant != "" {
		variant, err := cards.ParseVariant(data.Variant)
		if err != nil {
			return err
		}
		opts.Variant = variant
	}
	t := c.srv.tables.CreateTable(opts)
	if err := c.reply(MessageTypeTableCreated, tableData(t.Info())); err != nil {
		return err
	}
	return c.handleJoinTable(JoinTableData{TableID: t.ID, Name: data.PlayerName})
}

func (c *Connection) handleJoinTable(data JoinTableData) error {
	if c.TableID() != "" {
		return errAlreadyAtTable
	}
	t, ok := c.srv.tables.GetTable(data.TableID)
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownTable, data.TableID)
	}
	// Bind first so the join broadcast reaches this connection too.
	c.setTable(t.ID, data.Name)

	ctx, cancel := c.requestContext()
	defer cancel()
	if err := t.Join(ctx, c.playerID, data.Name); err != nil {
		c.setTable("", "")
		return err
	}
	c.logger.Info("joined table", zap.String("table_id", t.ID))
	return c.reply(MessageTypeTableJoined, tableData(t.Info()))
}

func (c *Connection) handleLeaveTable() error {
	t, err := c.currentTable()
	if err != nil {
		return err
	}
	ctx, cancel := c.requestContext()
	defer cancel()
	if err := t.Leave(ctx, c.playerID); err != nil && !errors.Is(err, table.ErrNotSeated) {
		return err
	}
	c.setTable("", "")
	c.logger.Info("left table", zap.String("table_id", t.ID))
	return c.reply(MessageTypeTableLeft, tableData(t.Info()))
}

func (c *Connection) handleStartGame() error {
	t, err := c.currentTable()
	if err != nil {
		return err
	}
	ctx, cancel := c.requestContext()
	defer cancel()
	return t.Start(ctx)
}

// handlePlayCard forwards a play. Rejections reach the player as error
// events from the table itself.
func (c *Connection) handlePlayCard(data PlayCardData) {
	t, err := c.currentTable()
	if err != nil {
		c.sendError(err)
		return
	}
	spec := targeting.TargetSpec{TargetPlayerID: data.TargetPlayerID, GuessedRank: data.GuessedRank}

	ctx, cancel := c.requestContext()
	defer cancel()
	result, err := t.PlayCard(ctx, c.playerID, data.HandIndex, spec)
	if err != nil {
		c.logger.Debug("play rejected", zap.Error(err))
		return
	}
	c.logger.Debug("card played",
		zap.String("card", result.Card.Name),
		zap.Stringer("outcome", result.Outcome),
	)
}

func (c *Connection) handleListTables() error {
	infos := c.srv.tables.ListTables()
	list := TableListData{Tables: make([]TableData, 0, len(infos))}
	for _, info := range infos {
		list.Tables = append(list.Tables, tableData(info))
	}
	return c.reply(MessageTypeTableList, list)
}

// disconnect forfeits the player's seat, if any.
func (c *Connection) disconnect() {
	t, err := c.currentTable()
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.srv.requestTimeout)
	defer cancel()
	if err := t.Leave(ctx, c.playerID); err != nil && !errors.Is(err, table.ErrNotSeated) {
		c.logger.Warn("failed to leave table on disconnect", zap.String("table_id", t.ID), zap.Error(err))
	}
	c.setTable("", "")
}

func (c *Connection) reply(messageType MessageType, data any) error {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

func (c *Connection) sendError(err error) {
	if sendErr := c.reply(MessageTypeError, ErrorData{Message: err.Error()}); sendErr != nil {
		c.logger.Debug("failed to send error", zap.Error(sendErr))
	}
}
