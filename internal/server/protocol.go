package server

import (
	"encoding/json"
	"errors"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

// Client → server command types.
const (
	MsgJoin     = "join"
	MsgStart    = "start"
	MsgAction   = "action"
	MsgContinue = "continue"
	MsgReset    = "reset"
	MsgLeave    = "leave"
)

// Server → client message types.
const (
	MsgSnapshot = "snapshot"
	MsgJoined   = "joined"
	MsgError    = "error"
)

// ClientMessage is one inbound frame.
type ClientMessage struct {
	Type        string          `json:"type"`
	PlayerID    string          `json:"player_id,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Team        string          `json:"team,omitempty"`
	Role        string          `json:"role,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is one outbound frame.
type ServerMessage struct {
	Type     string     `json:"type"`
	PlayerID string     `json:"player_id,omitempty"`
	Room     *room.Room `json:"room,omitempty"`
	Code     string     `json:"code,omitempty"`    // rejection code
	Message  string     `json:"message,omitempty"` // rejection text
	Missing  []string   `json:"missing,omitempty"` // capacity rejection details
}

func snapshotMessage(r *room.Room) ServerMessage {
	return ServerMessage{Type: MsgSnapshot, Room: r}
}

func errorMessage(err error) ServerMessage {
	msg := ServerMessage{Type: MsgError, Message: err.Error()}

	var ce *apperrors.CapacityError
	if errors.As(err, &ce) {
		msg.Code = "missing_requirements"
		msg.Missing = ce.Missing
		return msg
	}

	var ge *apperrors.GameError
	if errors.As(err, &ge) {
		msg.Code = ge.Code
	}
	return msg
}
