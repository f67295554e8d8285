package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

// Frequency: the clue-giver sees a hidden target on a 0–180° dial and
// gives a one-line clue for a left/right spectrum; everyone else dials
// in a guess. Sector bands around the target score 2/1/0 and the
// clue-giver banks half the guessers' sum, so fractional scores are
// normal. First to 10 points wins.
type frequency struct{}

func NewFrequency() Module {
	return frequency{}
}

const (
	frequencyWinScore   = 10
	frequencyInnerBand  = 5  // degrees each side of center worth 2 points
	frequencyOuterBand  = 15 // degrees each side worth 1 point
	frequencyCenterLow  = 5
	frequencyCenterHigh = 175
)

type frequencyRound struct {
	ClueGiverID string             `json:"clue_giver_id"`
	Center      float64            `json:"center"` // clients show the dial to the clue-giver only
	PromptLeft  string             `json:"prompt_left"`
	PromptRight string             `json:"prompt_right"`
	Clue        string             `json:"clue,omitempty"`
	Guesses     map[string]float64 `json:"guesses,omitempty"`
}

type frequencyAction struct {
	Clue  string   `json:"clue,omitempty"`
	Angle *float64 `json:"angle,omitempty"`
}

func (frequency) Kind() room.GameKind { return room.KindFrequency }

func (frequency) MissingStartConditions(r *room.Room) []string {
	var missing []string
	if len(r.Players) < 2 {
		missing = append(missing, "at least 2 players required")
	}
	return missing
}

func (frequency) InitRound(r *room.Room, now time.Time) ([]Effect, error) {
	prompt := frequencyPrompts[rand.IntN(len(frequencyPrompts))]
	round := frequencyRound{
		ClueGiverID: r.Players[r.TurnIndex].ID,
		Center:      frequencyCenterLow + rand.Float64()*(frequencyCenterHigh-frequencyCenterLow),
		PromptLeft:  prompt[0],
		PromptRight: prompt[1],
	}
	r.ClearPending()
	r.TurnDeadline = nil
	if err := saveRound(r, &round); err != nil {
		return nil, err
	}
	return nil, nil
}

func (frequency) ApplyAction(r *room.Room, playerID string, payload json.RawMessage, now time.Time) error {
	round, err := decodeRound[frequencyRound](r)
	if err != nil {
		return err
	}

	var action frequencyAction
	if err := json.Unmarshal(payload, &action); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadAction, err)
	}

	if playerID == round.ClueGiverID {
		// Only the clue-giver may set the clue, and that is all they do.
		if action.Angle != nil {
			return apperrors.ErrNotYourTurn
		}
		round.Clue = action.Clue
		return saveRound(r, round)
	}

	if action.Angle == nil {
		return fmt.Errorf("%w: guess requires an angle", apperrors.ErrBadAction)
	}
	if *action.Angle < 0 || *action.Angle > 180 {
		return fmt.Errorf("%w: angle %v outside the dial", apperrors.ErrBadAction, *action.Angle)
	}
	if _, dup := r.Pending[playerID]; dup {
		return fmt.Errorf("%w: guess already submitted", apperrors.ErrBadAction)
	}

	if round.Guesses == nil {
		round.Guesses = make(map[string]float64)
	}
	round.Guesses[playerID] = *action.Angle
	r.MarkPending(playerID, payload)
	return saveRound(r, round)
}

func (f frequency) AdvanceIfReady(r *room.Room, now time.Time) ([]Effect, error) {
	round, err := decodeRound[frequencyRound](r)
	if err != nil {
		return nil, err
	}
	required := frequencyGuessers(r, round.ClueGiverID)
	if len(required) == 0 || !allResponded(r, required) {
		return nil, nil
	}
	return f.scoreRound(r, round, now)
}

func (f frequency) OnTimeUp(r *room.Room, now time.Time) ([]Effect, error) {
	// Frequency arms no deadline, but a forced close still settles the
	// round on whatever guesses are in.
	round, err := decodeRound[frequencyRound](r)
	if err != nil {
		return nil, err
	}
	return f.scoreRound(r, round, now)
}

func (frequency) scoreRound(r *room.Room, round *frequencyRound, now time.Time) ([]Effect, error) {
	sum := 0.0
	for id, angle := range round.Guesses {
		pts := frequencySectorPoints(round.Center, angle)
		sum += pts
		if p := r.FindPlayer(id); p != nil {
			p.Score += pts
		}
	}
	if giver := r.FindPlayer(round.ClueGiverID); giver != nil {
		giver.Score += sum / 2
	}

	r.ClearPending()
	r.TurnDeadline = nil
	r.SetStatus(room.StatusRoundSummary, now)
	if err := saveRound(r, round); err != nil {
		return nil, err
	}
	return []Effect{Analytics{Event: "frequency_round_scored", Fields: map[string]any{"sum": sum}}}, nil
}

func (f frequency) NextRound(r *room.Room, now time.Time) ([]Effect, error) {
	if anyScoreAtLeast(r, frequencyWinScore) {
		r.Winner = topScorer(r)
		r.Round = nil
		r.SetStatus(room.StatusFinished, now)
		return nil, nil
	}

	r.TurnIndex = nextConnectedIndex(r, r.TurnIndex)
	r.SetStatus(room.StatusPlaying, now)
	return f.InitRound(r, now)
}

// frequencySectorPoints maps a guess to its band: 2 inside the center
// sector, 1 in the flanking sectors, 0 off the card.
func frequencySectorPoints(center, guess float64) float64 {
	d := math.Abs(center - guess)
	switch {
	case d <= frequencyInnerBand:
		return 2
	case d <= frequencyOuterBand:
		return 1
	default:
		return 0
	}
}

// frequencyGuessers lists everyone required to respond this round.
func frequencyGuessers(r *room.Room, clueGiverID string) []string {
	var ids []string
	for i := range r.Players {
		p := &r.Players[i]
		if p.ID != clueGiverID && p.Connected {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
