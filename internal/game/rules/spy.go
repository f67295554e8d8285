package rules

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

// Spy: everyone receives the civilian word except the spy, who gets a
// similar decoy. Players take a describe round, then vote. A strict
// majority on the spy wins the game for the civilians; a majority on a
// civilian eliminates them and play continues until the spy would be
// one of the last two standing.
type spy struct{}

func NewSpy() Module {
	return spy{}
}

const (
	spyPhaseDescribe = "describe"
	spyPhaseVote     = "vote"

	spyOutcomeCivilians = "civilians"
	spyOutcomeSpy       = "spy"
	spyOutcomeContinue  = "continue"

	spyCatchReward   = 2
	spySurviveReward = 3
)

type spyRound struct {
	SpyID        string            `json:"spy_id"` // clients keep role reveals to the round summary
	Word         string            `json:"word"`
	SpyWord      string            `json:"spy_word"`
	Phase        string            `json:"phase"`
	Eliminated   map[string]bool   `json:"eliminated,omitempty"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
	Votes        map[string]string `json:"votes,omitempty"`
	Accused      string            `json:"accused,omitempty"`
	Outcome      string            `json:"outcome,omitempty"`
}

type spyAction struct {
	Description string `json:"description,omitempty"`
	Vote        string `json:"vote,omitempty"`
}

func (spy) Kind() room.GameKind { return room.KindSpy }

func (spy) MissingStartConditions(r *room.Room) []string {
	var missing []string
	if len(r.Players) < 2 {
		missing = append(missing, "at least 2 players required")
	}
	return missing
}

func (spy) InitRound(r *room.Room, now time.Time) ([]Effect, error) {
	pair := spyWordPairs[rand.IntN(len(spyWordPairs))]
	round := spyRound{
		SpyID:   r.Players[rand.IntN(len(r.Players))].ID,
		Word:    pair[0],
		SpyWord: pair[1],
		Phase:   spyPhaseDescribe,
	}
	r.ClearPending()
	r.TurnDeadline = nil
	if err := saveRound(r, &round); err != nil {
		return nil, err
	}
	return nil, nil
}

func (spy) ApplyAction(r *room.Room, playerID string, payload json.RawMessage, now time.Time) error {
	round, err := decodeRound[spyRound](r)
	if err != nil {
		return err
	}
	if round.Eliminated[playerID] {
		return fmt.Errorf("%w: eliminated players sit out", apperrors.ErrNotYourTurn)
	}
	if _, done := r.Pending[playerID]; done {
		return fmt.Errorf("%w: already responded this phase", apperrors.ErrBadAction)
	}

	var action spyAction
	if err := json.Unmarshal(payload, &action); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadAction, err)
	}

	switch round.Phase {
	case spyPhaseDescribe:
		if action.Description == "" {
			return fmt.Errorf("%w: description required", apperrors.ErrBadAction)
		}
		if round.Descriptions == nil {
			round.Descriptions = make(map[string]string)
		}
		round.Descriptions[playerID] = action.Description

	case spyPhaseVote:
		target := r.FindPlayer(action.Vote)
		if target == nil || round.Eliminated[action.Vote] {
			return fmt.Errorf("%w: vote names no active player", apperrors.ErrBadAction)
		}
		if round.Votes == nil {
			round.Votes = make(map[string]string)
		}
		round.Votes[playerID] = action.Vote

	default:
		return apperrors.ErrWrongStatus
	}

	r.MarkPending(playerID, payload)
	return saveRound(r, round)
}

func (s spy) AdvanceIfReady(r *room.Room, now time.Time) ([]Effect, error) {
	round, err := decodeRound[spyRound](r)
	if err != nil {
		return nil, err
	}

	active := spyActive(r, round)
	if len(active) == 0 || !allResponded(r, active) {
		return nil, nil
	}

	switch round.Phase {
	case spyPhaseDescribe:
		round.Phase = spyPhaseVote
		r.ClearPending()
		return nil, saveRound(r, round)

	case spyPhaseVote:
		s.tally(r, round, active)
		r.ClearPending()
		r.SetStatus(room.StatusRoundSummary, now)
		return []Effect{Analytics{Event: "spy_vote_resolved", Fields: map[string]any{
			"accused": round.Accused, "outcome": round.Outcome,
		}}}, saveRound(r, round)
	}

	return nil, nil
}

// tally resolves the vote. Only a strict majority convicts; anything
// less lets the accused — and the spy — live another round.
func (s spy) tally(r *room.Room, round *spyRound, voters []string) {
	counts := map[string]int{}
	for _, target := range round.Votes {
		counts[target]++
	}

	round.Accused = ""
	for target, n := range counts {
		if n*2 > len(voters) {
			round.Accused = target
			break
		}
	}

	switch {
	case round.Accused == round.SpyID && round.Accused != "":
		round.Outcome = spyOutcomeCivilians
		for i := range r.Players {
			p := &r.Players[i]
			if p.ID != round.SpyID && !round.Eliminated[p.ID] {
				p.Score += spyCatchReward
			}
		}

	case round.Accused != "":
		if round.Eliminated == nil {
			round.Eliminated = make(map[string]bool)
		}
		round.Eliminated[round.Accused] = true
		if len(spyActive(r, round)) <= 2 {
			round.Outcome = spyOutcomeSpy
			if p := r.FindPlayer(round.SpyID); p != nil {
				p.Score += spySurviveReward
			}
		} else {
			round.Outcome = spyOutcomeContinue
		}

	default:
		round.Outcome = spyOutcomeContinue
	}
}

// OnTimeUp has no work: Spy phases gate on submissions, not a clock.
func (spy) OnTimeUp(r *room.Room, now time.Time) ([]Effect, error) {
	return nil, apperrors.ErrStaleCommand
}

func (spy) NextRound(r *room.Room, now time.Time) ([]Effect, error) {
	round, err := decodeRound[spyRound](r)
	if err != nil {
		return nil, err
	}

	switch round.Outcome {
	case spyOutcomeCivilians:
		r.Winner = spyOutcomeCivilians
		r.SetStatus(room.StatusFinished, now)
		return nil, saveRound(r, round)
	case spyOutcomeSpy:
		r.Winner = spyOutcomeSpy
		r.SetStatus(room.StatusFinished, now)
		return nil, saveRound(r, round)
	}

	round.Phase = spyPhaseDescribe
	round.Descriptions = nil
	round.Votes = nil
	round.Accused = ""
	round.Outcome = ""
	r.ClearPending()
	r.SetStatus(room.StatusPlaying, now)
	return nil, saveRound(r, round)
}

// spyActive lists players still in the game and connected enough to owe
// a response.
func spyActive(r *room.Room, round *spyRound) []string {
	var ids []string
	for i := range r.Players {
		p := &r.Players[i]
		if p.Connected && !round.Eliminated[p.ID] {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
