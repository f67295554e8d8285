package rules

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

// Alias: teams take 45-second turns in which one rotating explainer
// burns through words while teammates shout guesses off-line. The
// engine only sees the explainer's correct/skip verdicts; each correct
// word moves the team's pawn one tile, first team on the last tile of
// the board wins.
type alias struct {
	turnTimeout time.Duration
}

func NewAlias(turnTimeout time.Duration) Module {
	return alias{turnTimeout: turnTimeout}
}

const aliasBoardEnd = 30

type aliasTeamState struct {
	Name         string `json:"name"`
	Position     int    `json:"position"`
	ExplainerIdx int    `json:"explainer_idx"`
}

type aliasRound struct {
	Teams       []aliasTeamState `json:"teams"`
	TeamTurn    int              `json:"team_turn"`
	ExplainerID string           `json:"explainer_id"`
	Word        string           `json:"word"`
	Deck        []string         `json:"deck"`
	Correct     int              `json:"correct"`
	Skipped     int              `json:"skipped"`
}

type aliasAction struct {
	Result string `json:"result"` // "correct" or "skip"
}

func (alias) Kind() room.GameKind { return room.KindAlias }

func (alias) MissingStartConditions(r *room.Room) []string {
	var missing []string
	members := map[string]int{}
	for i := range r.Players {
		if r.Players[i].Team == "" {
			missing = append(missing, fmt.Sprintf("player %s has not picked a team", r.Players[i].DisplayName))
			continue
		}
		members[r.Players[i].Team]++
	}
	if len(members) < 2 {
		missing = append(missing, "at least 2 non-empty teams required")
	}
	return missing
}

func (a alias) InitRound(r *room.Room, now time.Time) ([]Effect, error) {
	var teams []aliasTeamState
	seen := map[string]bool{}
	for i := range r.Players {
		if name := r.Players[i].Team; !seen[name] {
			seen[name] = true
			teams = append(teams, aliasTeamState{Name: name})
		}
	}

	round := aliasRound{
		Teams: teams,
		Deck:  shuffled(aliasWords),
	}
	round.Word = drawAliasWord(&round)
	round.ExplainerID = aliasExplainer(r, &round)

	r.ClearPending()
	r.TurnIndex = rosterIndex(r, round.ExplainerID)
	deadline := now.Add(a.turnTimeout)
	r.TurnDeadline = &deadline
	if err := saveRound(r, &round); err != nil {
		return nil, err
	}
	return []Effect{ArmDeadline{At: deadline}}, nil
}

func (alias) ApplyAction(r *room.Room, playerID string, payload json.RawMessage, now time.Time) error {
	round, err := decodeRound[aliasRound](r)
	if err != nil {
		return err
	}
	if playerID != round.ExplainerID {
		return apperrors.ErrNotYourTurn
	}

	var action aliasAction
	if err := json.Unmarshal(payload, &action); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadAction, err)
	}

	switch action.Result {
	case "correct":
		round.Correct++
		if p := r.FindPlayer(playerID); p != nil {
			p.Score++
		}
	case "skip":
		round.Skipped++
	default:
		return fmt.Errorf("%w: result must be correct or skip", apperrors.ErrBadAction)
	}

	round.Word = drawAliasWord(round)
	return saveRound(r, round)
}

// AdvanceIfReady is a no-op for Alias: a turn only ends on the clock.
func (alias) AdvanceIfReady(r *room.Room, now time.Time) ([]Effect, error) {
	return nil, nil
}

// OnTimeUp banks the turn: the team's pawn moves one tile per correct
// word and the room shows the round summary.
func (alias) OnTimeUp(r *room.Room, now time.Time) ([]Effect, error) {
	round, err := decodeRound[aliasRound](r)
	if err != nil {
		return nil, err
	}

	team := &round.Teams[round.TeamTurn]
	team.Position += round.Correct
	if team.Position > aliasBoardEnd {
		team.Position = aliasBoardEnd
	}

	r.ClearPending()
	r.TurnDeadline = nil
	r.SetStatus(room.StatusRoundSummary, now)
	if err := saveRound(r, round); err != nil {
		return nil, err
	}
	return []Effect{Analytics{Event: "alias_turn_banked", Fields: map[string]any{
		"team": team.Name, "correct": round.Correct, "skipped": round.Skipped,
	}}}, nil
}

func (a alias) NextRound(r *room.Room, now time.Time) ([]Effect, error) {
	round, err := decodeRound[aliasRound](r)
	if err != nil {
		return nil, err
	}

	for i := range round.Teams {
		if round.Teams[i].Position >= aliasBoardEnd {
			r.Winner = round.Teams[i].Name
			r.TurnDeadline = nil
			r.SetStatus(room.StatusFinished, now)
			return []Effect{CancelDeadline{}}, saveRound(r, round)
		}
	}

	// Rotate the explainer inside the finished team, then hand the turn
	// to the next team.
	round.Teams[round.TeamTurn].ExplainerIdx++
	round.TeamTurn = (round.TeamTurn + 1) % len(round.Teams)
	round.Correct = 0
	round.Skipped = 0
	round.Word = drawAliasWord(round)
	round.ExplainerID = aliasExplainer(r, round)

	r.ClearPending()
	r.TurnIndex = rosterIndex(r, round.ExplainerID)
	r.SetStatus(room.StatusPlaying, now)
	deadline := now.Add(a.turnTimeout)
	r.TurnDeadline = &deadline
	if err := saveRound(r, round); err != nil {
		return nil, err
	}
	return []Effect{ArmDeadline{At: deadline}}, nil
}

// drawAliasWord pops the next word, reshuffling a fresh deck when the
// current one runs dry.
func drawAliasWord(round *aliasRound) string {
	if len(round.Deck) == 0 {
		round.Deck = shuffled(aliasWords)
	}
	w := round.Deck[0]
	round.Deck = round.Deck[1:]
	return w
}

// aliasExplainer picks the current team's rotating explainer, skipping
// disconnected members when possible.
func aliasExplainer(r *room.Room, round *aliasRound) string {
	team := &round.Teams[round.TeamTurn]
	var members []*room.Player
	for i := range r.Players {
		if r.Players[i].Team == team.Name {
			members = append(members, &r.Players[i])
		}
	}
	if len(members) == 0 {
		return ""
	}
	for off := 0; off < len(members); off++ {
		m := members[(team.ExplainerIdx+off)%len(members)]
		if m.Connected {
			return m.ID
		}
	}
	return members[team.ExplainerIdx%len(members)].ID
}

func rosterIndex(r *room.Room, playerID string) int {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return i
		}
	}
	return 0
}
