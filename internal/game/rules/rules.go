// Package rules holds the pure game logic for every variant: a rule
// module maps (room, command) to (room', effects) or a rejection and
// performs no I/O. The actor layer owns persistence and timers; modules
// only request them through effects.
package rules

import (
	"encoding/json"
	"time"

	"github.com/asafee03-dev/partyroom/internal/config"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

// Command is a request to mutate one room.
type Command interface {
	Name() string
}

type Join struct {
	Player room.Player
}

type Leave struct {
	PlayerID string
}

type StartGame struct {
	RequesterID string
}

type SubmitTurnAction struct {
	PlayerID string
	Payload  json.RawMessage
}

// TimeUp is delivered by the turn clock. ArmedVersion is the room
// version the deadline was armed against; the actor drops the command
// if the room has moved past it.
type TimeUp struct {
	ArmedVersion int64
}

type ContinueToNextRound struct {
	RequesterID string
}

type ResetToLobby struct {
	RequesterID string
}

// DeleteRoom retires a room. An empty RequesterID marks a system
// request (reaper, empty-lobby cleanup) and bypasses the host check.
type DeleteRoom struct {
	RequesterID string
}

func (Join) Name() string                { return "join" }
func (Leave) Name() string               { return "leave" }
func (StartGame) Name() string           { return "start_game" }
func (SubmitTurnAction) Name() string    { return "submit_action" }
func (TimeUp) Name() string              { return "time_up" }
func (ContinueToNextRound) Name() string { return "continue_round" }
func (ResetToLobby) Name() string        { return "reset_to_lobby" }
func (DeleteRoom) Name() string          { return "delete_room" }

// Effect is a side request attached to an accepted transition. The
// actor executes effects after the new state is durably persisted.
type Effect interface {
	effect()
}

// ArmDeadline schedules a TimeUp delivery at the given instant,
// replacing any deadline already armed for the room.
type ArmDeadline struct {
	At time.Time
}

// CancelDeadline drops the room's armed deadline, if any.
type CancelDeadline struct{}

// RequestDelete retires the room once the transition is committed.
type RequestDelete struct {
	Reason string
}

// Analytics is an opaque event for external sinks; the engine logs it
// and moves on.
type Analytics struct {
	Event  string
	Fields map[string]any
}

func (ArmDeadline) effect()    {}
func (CancelDeadline) effect() {}
func (RequestDelete) effect()  {}
func (Analytics) effect()      {}

// Module is the variant-specific half of the rule engine. Every hook
// mutates the already-cloned room handed to it and never touches shared
// state. Hooks return rejections from the apperrors taxonomy.
type Module interface {
	Kind() room.GameKind

	// MissingStartConditions lists unmet roster requirements; an empty
	// list means StartGame may proceed.
	MissingStartConditions(r *room.Room) []string

	// InitRound seeds round state, roles and TurnIndex on game start or
	// after ContinueToNextRound decided to keep playing.
	InitRound(r *room.Room, now time.Time) ([]Effect, error)

	// ApplyAction validates and folds one player's submission into the
	// round state.
	ApplyAction(r *room.Room, playerID string, payload json.RawMessage, now time.Time) error

	// AdvanceIfReady checks the phase completion condition and, when it
	// holds, computes scores and moves the room forward. Invoked after
	// every accepted ApplyAction.
	AdvanceIfReady(r *room.Room, now time.Time) ([]Effect, error)

	// OnTimeUp forces the turn-complete transition on deadline expiry.
	OnTimeUp(r *room.Room, now time.Time) ([]Effect, error)

	// NextRound advances out of RoundSummary: either back to Playing
	// with a fresh prompt or to Finished when the win condition holds.
	NextRound(r *room.Room, now time.Time) ([]Effect, error)
}

// Set builds the module for every variant from shared configuration.
func Set(turns config.TurnConfig) map[room.GameKind]Module {
	return map[room.GameKind]Module{
		room.KindAlias:     NewAlias(turns.AliasDuration()),
		room.KindCodenames: NewCodenames(turns.CodenamesClueDuration(), turns.CodenamesGuessDuration()),
		room.KindFrequency: NewFrequency(),
		room.KindDraw:      NewDraw(turns.DrawDuration()),
		room.KindSpy:       NewSpy(),
	}
}
