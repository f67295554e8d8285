package room

import (
	"encoding/json"
	"time"
)

// GameKind selects which rule module drives a room.
type GameKind string

const (
	KindAlias     GameKind = "alias"
	KindCodenames GameKind = "codenames"
	KindFrequency GameKind = "frequency"
	KindDraw      GameKind = "draw"
	KindSpy       GameKind = "spy"
)

// Valid reports whether k names a known game variant.
func (k GameKind) Valid() bool {
	switch k {
	case KindAlias, KindCodenames, KindFrequency, KindDraw, KindSpy:
		return true
	}
	return false
}

// Status drives which commands are legal.
type Status int

const (
	StatusLobby Status = iota
	StatusPlaying
	StatusRoundSummary
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusLobby:
		return "lobby"
	case StatusPlaying:
		return "playing"
	case StatusRoundSummary:
		return "round_summary"
	case StatusFinished:
		return "finished"
	}
	return "unknown"
}

// Player is a roster entry. Scores are float64 because Frequency awards
// half-sums; no variant ever subtracts.
type Player struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
	Role        string  `json:"role,omitempty"`
	Team        string  `json:"team,omitempty"`
	Connected   bool    `json:"connected"`
}

// Room is the aggregate root. The engine treats Round as an opaque
// payload owned by the variant's rule module. Version is the optimistic
// concurrency guard: it increases by exactly one per accepted command.
type Room struct {
	Code            string                     `json:"code"`
	Kind            GameKind                   `json:"kind"`
	Status          Status                     `json:"status"`
	Players         []Player                   `json:"players"` // insertion order defines turn rotation
	HostID          string                     `json:"host_id"`
	TurnIndex       int                        `json:"turn_index"`
	Round           json.RawMessage            `json:"round,omitempty"`
	Pending         map[string]json.RawMessage `json:"pending,omitempty"` // playerID -> submission for the in-progress turn
	TurnDeadline    *time.Time                 `json:"turn_deadline,omitempty"`
	Winner          string                     `json:"winner,omitempty"` // team name or player ID once Finished
	CreatedAt       time.Time                  `json:"created_at"`
	LastActivityAt  time.Time                  `json:"last_activity_at"`
	StatusChangedAt time.Time                  `json:"status_changed_at"`
	Version         int64                      `json:"version"`
}

// New creates a lobby room with the host as its first player.
func New(code string, kind GameKind, host Player, now time.Time) *Room {
	return &Room{
		Code:            code,
		Kind:            kind,
		Status:          StatusLobby,
		Players:         []Player{host},
		HostID:          host.ID,
		CreatedAt:       now,
		LastActivityAt:  now,
		StatusChangedAt: now,
		Version:         1,
	}
}

// Clone deep-copies the room so rule modules can stay pure.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Players = make([]Player, len(r.Players))
	copy(cp.Players, r.Players)
	if r.Round != nil {
		cp.Round = make(json.RawMessage, len(r.Round))
		copy(cp.Round, r.Round)
	}
	if r.Pending != nil {
		cp.Pending = make(map[string]json.RawMessage, len(r.Pending))
		for k, v := range r.Pending {
			raw := make(json.RawMessage, len(v))
			copy(raw, v)
			cp.Pending[k] = raw
		}
	}
	if r.TurnDeadline != nil {
		t := *r.TurnDeadline
		cp.TurnDeadline = &t
	}
	return &cp
}

// FindPlayer returns a pointer into Players, or nil.
func (r *Room) FindPlayer(id string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// CurrentPlayer returns the player TurnIndex points at. Only meaningful
// while Playing; the engine keeps TurnIndex in range then.
func (r *Room) CurrentPlayer() *Player {
	if r.TurnIndex < 0 || r.TurnIndex >= len(r.Players) {
		return nil
	}
	return &r.Players[r.TurnIndex]
}

// ConnectedCount counts players with a live session.
func (r *Room) ConnectedCount() int {
	n := 0
	for i := range r.Players {
		if r.Players[i].Connected {
			n++
		}
	}
	return n
}

// SetStatus transitions the status and stamps the change time.
func (r *Room) SetStatus(s Status, now time.Time) {
	if r.Status != s {
		r.Status = s
		r.StatusChangedAt = now
	}
}

// ClearPending drops all turn submissions. Called on every turn and
// round transition.
func (r *Room) ClearPending() {
	r.Pending = nil
}

// MarkPending records that a player has responded this turn.
func (r *Room) MarkPending(playerID string, payload json.RawMessage) {
	if r.Pending == nil {
		r.Pending = make(map[string]json.RawMessage)
	}
	r.Pending[playerID] = payload
}

// Touch bumps the activity timestamp the reaper keys off.
func (r *Room) Touch(now time.Time) {
	r.LastActivityAt = now
}
