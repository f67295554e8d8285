package rules

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

// Draw: one rotating drawer sketches a secret word, everyone else
// guesses. Strokes are opaque blobs the engine only relays. A correct
// guess pays the guesser by how fast it came and the drawer one point;
// the turn ends when every guesser has it or the clock runs out. First
// to 10 points wins.
type draw struct {
	turnTimeout time.Duration
}

func NewDraw(turnTimeout time.Duration) Module {
	return draw{turnTimeout: turnTimeout}
}

const drawWinScore = 10

type drawRound struct {
	DrawerID  string            `json:"drawer_id"`
	Word      string            `json:"word"` // clients reveal this to the drawer only
	Strokes   []json.RawMessage `json:"strokes,omitempty"`
	Deck      []string          `json:"deck"`
	StartedAt time.Time         `json:"started_at"`
}

type drawAction struct {
	Stroke json.RawMessage `json:"stroke,omitempty"`
	Clear  bool            `json:"clear,omitempty"`
	Guess  string          `json:"guess,omitempty"`
}

func (draw) Kind() room.GameKind { return room.KindDraw }

func (draw) MissingStartConditions(r *room.Room) []string {
	var missing []string
	if len(r.Players) < 2 {
		missing = append(missing, "at least 2 players required")
	}
	return missing
}

func (d draw) InitRound(r *room.Room, now time.Time) ([]Effect, error) {
	deck := shuffled(drawWords)
	round := drawRound{
		DrawerID:  r.Players[r.TurnIndex].ID,
		Word:      deck[0],
		Deck:      deck[1:],
		StartedAt: now,
	}

	r.ClearPending()
	deadline := now.Add(d.turnTimeout)
	r.TurnDeadline = &deadline
	if err := saveRound(r, &round); err != nil {
		return nil, err
	}
	return []Effect{ArmDeadline{At: deadline}}, nil
}

func (draw) ApplyAction(r *room.Room, playerID string, payload json.RawMessage, now time.Time) error {
	round, err := decodeRound[drawRound](r)
	if err != nil {
		return err
	}

	var action drawAction
	if err := json.Unmarshal(payload, &action); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadAction, err)
	}

	if playerID == round.DrawerID {
		switch {
		case action.Clear:
			round.Strokes = nil
		case len(action.Stroke) > 0:
			round.Strokes = append(round.Strokes, action.Stroke)
		default:
			return fmt.Errorf("%w: the drawer draws, not guesses", apperrors.ErrBadAction)
		}
		return saveRound(r, round)
	}

	if action.Guess == "" {
		return fmt.Errorf("%w: only the drawer may draw", apperrors.ErrNotYourTurn)
	}
	if _, done := r.Pending[playerID]; done {
		return fmt.Errorf("%w: word already guessed", apperrors.ErrBadAction)
	}

	if !strings.EqualFold(strings.TrimSpace(action.Guess), round.Word) {
		// Wrong guesses are accepted and simply score nothing.
		return nil
	}

	pts := timeBandPoints(now.Sub(round.StartedAt))
	if p := r.FindPlayer(playerID); p != nil {
		p.Score += pts
	}
	if drawer := r.FindPlayer(round.DrawerID); drawer != nil {
		drawer.Score++
	}
	r.MarkPending(playerID, payload)
	return saveRound(r, round)
}

func (draw) AdvanceIfReady(r *room.Room, now time.Time) ([]Effect, error) {
	round, err := decodeRound[drawRound](r)
	if err != nil {
		return nil, err
	}
	required := drawGuessers(r, round.DrawerID)
	if len(required) == 0 || !allResponded(r, required) {
		return nil, nil
	}

	r.ClearPending()
	r.TurnDeadline = nil
	r.SetStatus(room.StatusRoundSummary, now)
	return []Effect{CancelDeadline{}}, nil
}

func (draw) OnTimeUp(r *room.Room, now time.Time) ([]Effect, error) {
	r.ClearPending()
	r.SetStatus(room.StatusRoundSummary, now)
	return nil, nil
}

func (d draw) NextRound(r *room.Room, now time.Time) ([]Effect, error) {
	if anyScoreAtLeast(r, drawWinScore) {
		r.Winner = topScorer(r)
		r.Round = nil
		r.SetStatus(room.StatusFinished, now)
		return nil, nil
	}

	round, err := decodeRound[drawRound](r)
	if err != nil {
		return nil, err
	}

	r.TurnIndex = nextConnectedIndex(r, r.TurnIndex)
	if len(round.Deck) == 0 {
		round.Deck = shuffled(drawWords)
	}
	round.DrawerID = r.Players[r.TurnIndex].ID
	round.Word = round.Deck[0]
	round.Deck = round.Deck[1:]
	round.Strokes = nil
	round.StartedAt = now

	r.ClearPending()
	r.SetStatus(room.StatusPlaying, now)
	deadline := now.Add(d.turnTimeout)
	r.TurnDeadline = &deadline
	if err := saveRound(r, round); err != nil {
		return nil, err
	}
	return []Effect{ArmDeadline{At: deadline}}, nil
}

func drawGuessers(r *room.Room, drawerID string) []string {
	var ids []string
	for i := range r.Players {
		p := &r.Players[i]
		if p.ID != drawerID && p.Connected {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
