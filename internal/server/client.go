package server

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/asafee03-dev/partyroom/internal/game/room"
	"github.com/asafee03-dev/partyroom/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

// wsClient is one websocket session bound to one room. Commands flow
// through the gateway; committed snapshots flow back on the send queue.
type wsClient struct {
	srv      *Server
	conn     *websocket.Conn
	roomCode string
	playerID string

	send   chan ServerMessage
	closed chan struct{}
}

func newWSClient(srv *Server, conn *websocket.Conn, roomCode string) *wsClient {
	return &wsClient{
		srv:      srv,
		conn:     conn,
		roomCode: roomCode,
		send:     make(chan ServerMessage, 32),
		closed:   make(chan struct{}),
	}
}

func (c *wsClient) run(ctx context.Context) {
	snapshots, cancel, err := c.srv.gateway.Subscribe(ctx, c.roomCode)
	if err != nil {
		c.reply(errorMessage(err))
		_ = c.conn.Close()
		return
	}
	defer cancel()

	go c.writePump()
	go c.forwardSnapshots(snapshots)
	c.readPump(ctx)
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
		}
		c.disconnect(ctx)
		close(c.closed)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("room %s: websocket closed: %v", c.roomCode, err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(errorMessage(err))
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *wsClient) handle(ctx context.Context, msg ClientMessage) {
	gw := c.srv.gateway

	var (
		snap *room.Room
		err  error
	)

	switch msg.Type {
	case MsgJoin:
		var playerID string
		playerID, snap, err = gw.JoinRoom(ctx, c.roomCode, msg.PlayerID, msg.DisplayName, msg.Team, msg.Role)
		if err == nil {
			c.playerID = playerID
			c.reply(ServerMessage{Type: MsgJoined, PlayerID: playerID, Room: snap})
			return
		}
	case MsgStart:
		snap, err = gw.StartGame(ctx, c.roomCode, c.commandPlayer(msg))
	case MsgAction:
		snap, err = gw.SubmitAction(ctx, c.roomCode, c.commandPlayer(msg), msg.Payload)
	case MsgContinue:
		snap, err = gw.ContinueRound(ctx, c.roomCode, c.commandPlayer(msg))
	case MsgReset:
		snap, err = gw.ResetGame(ctx, c.roomCode, c.commandPlayer(msg))
	case MsgLeave:
		snap, err = gw.LeaveRoom(ctx, c.roomCode, c.commandPlayer(msg))
	default:
		c.reply(ServerMessage{Type: MsgError, Code: "unknown_type", Message: "unknown message type"})
		return
	}

	if err != nil {
		c.reply(errorMessage(err))
		return
	}
	c.reply(snapshotMessage(snap))
}

func (c *wsClient) commandPlayer(msg ClientMessage) string {
	if msg.PlayerID != "" {
		return msg.PlayerID
	}
	return c.playerID
}

// disconnect funnels the connection drop through the same mailbox as
// every other command, flipping the player's connected flag.
func (c *wsClient) disconnect(ctx context.Context) {
	if c.playerID == "" {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := c.srv.gateway.LeaveRoom(dctx, c.roomCode, c.playerID); err != nil {
		log.Printf("room %s: disconnect for player %s: %v", c.roomCode, c.playerID, err)
	}
}

func (c *wsClient) forwardSnapshots(snapshots <-chan *room.Room) {
	for snap := range snapshots {
		c.reply(snapshotMessage(snap))
	}
}

func (c *wsClient) reply(msg ServerMessage) {
	select {
	case c.send <- msg:
	default:
		// Slow consumer: drop rather than back up the actor.
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
