// Package gateway is the thin command surface clients talk to. It
// resolves room codes to actors and wraps player intent into rule
// commands; all game semantics live below it.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/actor"
	"github.com/asafee03-dev/partyroom/internal/game/room"
	"github.com/asafee03-dev/partyroom/internal/game/rules"
	"github.com/asafee03-dev/partyroom/internal/server/storage"
)

const (
	roomCodeLength   = 6
	roomCodeChars    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no easily confused glyphs
	roomCodeAttempts = 10
)

// Gateway exposes the session command surface.
type Gateway struct {
	store    *storage.RedisStore
	registry *actor.Registry
}

func New(store *storage.RedisStore, registry *actor.Registry) *Gateway {
	return &Gateway{store: store, registry: registry}
}

// CreateRoom opens a lobby and returns its shareable code along with
// the host's player ID.
func (g *Gateway) CreateRoom(ctx context.Context, kind room.GameKind, hostName string) (string, string, error) {
	if !kind.Valid() {
		return "", "", fmt.Errorf("%w: unknown game kind %q", apperrors.ErrBadAction, kind)
	}
	if hostName == "" {
		return "", "", fmt.Errorf("%w: host name is empty", apperrors.ErrBadAction)
	}

	host := room.Player{
		ID:          uuid.NewString(),
		DisplayName: hostName,
		Connected:   true,
	}

	// The store is authoritative for code uniqueness: SetNX loses on a
	// taken code and we roll a new one.
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code := generateRoomCode()
		r := room.New(code, kind, host, time.Now())
		err := g.store.Create(ctx, r)
		if err == nil {
			return code, host.ID, nil
		}
		if errors.Is(err, storage.ErrCodeTaken) {
			continue
		}
		return "", "", fmt.Errorf("%w: %v", apperrors.ErrStoreDown, err)
	}
	return "", "", fmt.Errorf("%w: could not allocate a room code", apperrors.ErrStoreDown)
}

// JoinRoom adds a player to a lobby (or reconnects an existing one when
// playerID is supplied). Team and role double as lobby seat selection.
func (g *Gateway) JoinRoom(ctx context.Context, code, playerID, displayName, team, role string) (string, *room.Room, error) {
	if playerID == "" {
		playerID = uuid.NewString()
	}

	snap, err := g.enqueue(ctx, code, rules.Join{Player: room.Player{
		ID:          playerID,
		DisplayName: displayName,
		Team:        team,
		Role:        role,
	}})
	if err != nil {
		return "", nil, err
	}
	return playerID, snap, nil
}

// SubmitAction forwards a turn action to the room's rule module.
func (g *Gateway) SubmitAction(ctx context.Context, code, playerID string, payload json.RawMessage) (*room.Room, error) {
	return g.enqueue(ctx, code, rules.SubmitTurnAction{PlayerID: playerID, Payload: payload})
}

func (g *Gateway) StartGame(ctx context.Context, code, playerID string) (*room.Room, error) {
	return g.enqueue(ctx, code, rules.StartGame{RequesterID: playerID})
}

func (g *Gateway) ContinueRound(ctx context.Context, code, playerID string) (*room.Room, error) {
	return g.enqueue(ctx, code, rules.ContinueToNextRound{RequesterID: playerID})
}

func (g *Gateway) ResetGame(ctx context.Context, code, playerID string) (*room.Room, error) {
	return g.enqueue(ctx, code, rules.ResetToLobby{RequesterID: playerID})
}

func (g *Gateway) LeaveRoom(ctx context.Context, code, playerID string) (*room.Room, error) {
	return g.enqueue(ctx, code, rules.Leave{PlayerID: playerID})
}

// Subscribe opens a snapshot feed for one room. Subscribers only ever
// see committed states.
func (g *Gateway) Subscribe(ctx context.Context, code string) (<-chan *room.Room, func(), error) {
	a, err := g.registry.Ensure(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := a.Subscribe(16)
	return ch, cancel, nil
}

// GetRoom returns the current committed snapshot without mutating.
func (g *Gateway) GetRoom(ctx context.Context, code string) (*room.Room, error) {
	r, found, err := g.store.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreDown, err)
	}
	if !found {
		return nil, apperrors.ErrRoomNotFound
	}
	return r, nil
}

// RoomListItem is one joinable lobby in the listing.
type RoomListItem struct {
	Code        string        `json:"code"`
	Kind        room.GameKind `json:"kind"`
	PlayerCount int           `json:"player_count"`
}

// ListJoinable returns lobbies still open for players.
func (g *Gateway) ListJoinable(ctx context.Context) ([]RoomListItem, error) {
	codes, err := g.store.ListCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreDown, err)
	}

	var items []RoomListItem
	for _, code := range codes {
		r, found, err := g.store.Get(ctx, code)
		if err != nil || !found {
			continue
		}
		if r.Status != room.StatusLobby {
			continue
		}
		items = append(items, RoomListItem{Code: r.Code, Kind: r.Kind, PlayerCount: len(r.Players)})
	}
	return items, nil
}

func (g *Gateway) enqueue(ctx context.Context, code string, cmd rules.Command) (*room.Room, error) {
	return g.registry.Dispatch(ctx, code, cmd)
}

func generateRoomCode() string {
	code := make([]byte, roomCodeLength)
	for i := range code {
		code[i] = roomCodeChars[rand.IntN(len(roomCodeChars))]
	}
	return string(code)
}
