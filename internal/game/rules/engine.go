package rules

import (
	"fmt"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

// Apply folds one command into a room. The input room is never mutated:
// the returned room is a fresh value on acceptance, nil on rejection.
// Version handling belongs to the caller (the actor increments it only
// once persistence is assured).
func Apply(m Module, r *room.Room, cmd Command, now time.Time) (*room.Room, []Effect, error) {
	next := r.Clone()

	var (
		effects []Effect
		err     error
	)

	switch c := cmd.(type) {
	case Join:
		effects, err = applyJoin(next, c)
	case Leave:
		effects, err = applyLeave(next, c)
	case StartGame:
		effects, err = applyStart(m, next, c, now)
	case SubmitTurnAction:
		effects, err = applySubmit(m, next, c, now)
	case TimeUp:
		effects, err = applyTimeUp(m, next, now)
	case ContinueToNextRound:
		effects, err = applyContinue(m, next, c, now)
	case ResetToLobby:
		effects, err = applyReset(next, c, now)
	case DeleteRoom:
		effects, err = applyDelete(next, c)
	default:
		err = fmt.Errorf("%w: unknown command %T", apperrors.ErrBadAction, cmd)
	}

	if err != nil {
		return nil, nil, err
	}

	next.Touch(now)
	return next, effects, nil
}

// applyJoin is idempotent: joining with an ID already on the roster
// updates the entry instead of duplicating it. Fresh joins are only
// legal in the lobby; a returning player may reconnect at any time.
func applyJoin(r *room.Room, c Join) ([]Effect, error) {
	if c.Player.ID == "" {
		return nil, fmt.Errorf("%w: player id is empty", apperrors.ErrBadAction)
	}

	if existing := r.FindPlayer(c.Player.ID); existing != nil {
		existing.Connected = true
		if r.Status == room.StatusLobby {
			// Lobby re-join doubles as seat/role selection.
			if c.Player.DisplayName != "" {
				existing.DisplayName = c.Player.DisplayName
			}
			existing.Team = c.Player.Team
			existing.Role = c.Player.Role
		}
		return nil, nil
	}

	if r.Status != room.StatusLobby {
		return nil, apperrors.ErrGameStarted
	}

	p := c.Player
	p.Connected = true
	p.Score = 0
	r.Players = append(r.Players, p)
	return nil, nil
}

// applyLeave removes the player from the roster only in the lobby.
// Mid-game the entry stays (turn rotation must keep its indices) and
// only the connected flag drops.
func applyLeave(r *room.Room, c Leave) ([]Effect, error) {
	p := r.FindPlayer(c.PlayerID)
	if p == nil {
		return nil, apperrors.ErrNotInRoom
	}

	if r.Status != room.StatusLobby {
		p.Connected = false
		return nil, nil
	}

	for i := range r.Players {
		if r.Players[i].ID == c.PlayerID {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			break
		}
	}
	if len(r.Players) == 0 {
		return []Effect{RequestDelete{Reason: "lobby emptied"}}, nil
	}
	if r.HostID == c.PlayerID {
		r.HostID = r.Players[0].ID
	}
	return nil, nil
}

func applyStart(m Module, r *room.Room, c StartGame, now time.Time) ([]Effect, error) {
	if r.Status != room.StatusLobby {
		return nil, apperrors.ErrGameStarted
	}
	if c.RequesterID != r.HostID {
		return nil, apperrors.ErrNotHost
	}
	if missing := m.MissingStartConditions(r); len(missing) > 0 {
		return nil, &apperrors.CapacityError{Missing: missing}
	}

	r.SetStatus(room.StatusPlaying, now)
	r.TurnIndex = 0
	r.Winner = ""
	r.ClearPending()
	return m.InitRound(r, now)
}

func applySubmit(m Module, r *room.Room, c SubmitTurnAction, now time.Time) ([]Effect, error) {
	if r.Status != room.StatusPlaying {
		return nil, apperrors.ErrGameNotStarted
	}
	if r.FindPlayer(c.PlayerID) == nil {
		return nil, apperrors.ErrNotInRoom
	}
	if err := m.ApplyAction(r, c.PlayerID, c.Payload, now); err != nil {
		return nil, err
	}
	return m.AdvanceIfReady(r, now)
}

func applyTimeUp(m Module, r *room.Room, now time.Time) ([]Effect, error) {
	// The version guard lives in the actor; by the time we are here the
	// deadline is known current, but a room that left Playing without
	// one is still a stale fire.
	if r.Status != room.StatusPlaying || r.TurnDeadline == nil {
		return nil, apperrors.ErrStaleCommand
	}
	r.TurnDeadline = nil
	return m.OnTimeUp(r, now)
}

func applyContinue(m Module, r *room.Room, c ContinueToNextRound, now time.Time) ([]Effect, error) {
	if r.Status != room.StatusRoundSummary {
		return nil, apperrors.ErrWrongStatus
	}
	if r.FindPlayer(c.RequesterID) == nil {
		return nil, apperrors.ErrNotInRoom
	}
	r.ClearPending()
	return m.NextRound(r, now)
}

func applyReset(r *room.Room, c ResetToLobby, now time.Time) ([]Effect, error) {
	if r.Status != room.StatusFinished && r.Status != room.StatusRoundSummary {
		return nil, apperrors.ErrWrongStatus
	}
	if c.RequesterID != r.HostID {
		return nil, apperrors.ErrNotHost
	}

	for i := range r.Players {
		r.Players[i].Score = 0
		r.Players[i].Role = ""
	}
	r.Round = nil
	r.ClearPending()
	r.Winner = ""
	r.TurnIndex = 0
	r.TurnDeadline = nil
	r.SetStatus(room.StatusLobby, now)
	return []Effect{CancelDeadline{}}, nil
}

func applyDelete(r *room.Room, c DeleteRoom) ([]Effect, error) {
	if c.RequesterID != "" && c.RequesterID != r.HostID {
		return nil, apperrors.ErrNotHost
	}
	return []Effect{CancelDeadline{}, RequestDelete{Reason: "delete requested"}}, nil
}
