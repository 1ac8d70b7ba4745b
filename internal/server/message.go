package server

import (
	"encoding/json"
	"time"

	"github.com/letterbox/letterbox-server/internal/game/rules"
	"github.com/letterbox/letterbox-server/internal/table"
)

// MessageType names a websocket message in either direction.
type MessageType string

// Client -> server.
const (
	MessageTypeCreateTable MessageType = "create_table"
	MessageTypeJoinTable   MessageType = "join_table"
	MessageTypeLeaveTable  MessageType = "leave_table"
	MessageTypeStartGame   MessageType = "start_game"
	MessageTypePlayCard    MessageType = "play_card"
	MessageTypeListTables  MessageType = "list_tables"
)

// Server -> client. Engine and table events use their own event type.
const (
	MessageTypeWelcome      MessageType = "welcome"
	MessageTypeTableCreated MessageType = "table_created"
	MessageTypeTableJoined  MessageType = "table_joined"
	MessageTypeTableLeft    MessageType = "table_left"
	MessageTypeTableList    MessageType = "table_list"
	MessageTypeError        MessageType = MessageType(rules.EventError)
)

// Message is the envelope for every websocket frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps data in an envelope stamped with the current time.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	msg := &Message{Type: messageType, Timestamp: time.Now()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// eventMessage wraps an engine event; the envelope type is the event type.
func eventMessage(ev rules.Event) (*Message, error) {
	msg, err := NewMessage(MessageType(ev.Type), ev)
	if err != nil {
		return nil, err
	}
	msg.Timestamp = ev.Timestamp
	return msg, nil
}

// CreateTableData is the payload of create_table.
type CreateTableData struct {
	Name       string `json:"name"`
	Variant    string `json:"variant,omitempty"`
	MaxPlayers int    `json:"max_players,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
}

// JoinTableData is the payload of join_table.
type JoinTableData struct {
	TableID string `json:"table_id"`
	Name    string `json:"name,omitempty"`
}

// PlayCardData is the payload of play_card.
type PlayCardData struct {
	HandIndex      int    `json:"hand_index"`
	TargetPlayerID string `json:"target_player_id,omitempty"`
	GuessedRank    *int   `json:"guessed_rank,omitempty"`
}

// WelcomeData tells a new connection its player ID.
type WelcomeData struct {
	PlayerID string `json:"player_id"`
}

// TableData describes one table in replies and listings.
type TableData struct {
	TableID      string       `json:"table_id"`
	Name         string       `json:"name"`
	State        string       `json:"state"`
	Variant      string       `json:"variant"`
	Players      []PlayerData `json:"players"`
	Round        int          `json:"round,omitempty"`
	TargetTokens int          `json:"target_tokens,omitempty"`
}

// PlayerData is one seat in TableData.
type PlayerData struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Left     bool   `json:"left,omitempty"`
}

// TableListData is the payload of table_list.
type TableListData struct {
	Tables []TableData `json:"tables"`
}

// ErrorData carries a protocol failure back to the sender.
type ErrorData struct {
	Message string `json:"message"`
}

func tableData(info table.Info) TableData {
	data := TableData{
		TableID:      info.ID,
		Name:         info.Name,
		State:        info.State.String(),
		Variant:      string(info.Variant),
		Round:        info.Round,
		TargetTokens: info.TargetTokens,
		Players:      make([]PlayerData, 0, len(info.Players)),
	}
	for _, p := range info.Players {
		data.Players = append(data.Players, PlayerData{PlayerID: p.PlayerID, Name: p.Name, Score: p.Score, Left: p.Left})
	}
	return data
}
