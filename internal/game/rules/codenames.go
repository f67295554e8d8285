package rules

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

// Codenames: two teams, each with a spymaster and guessers, race to
// reveal their 25-board words. The key assigns 9 to the starting team,
// 8 to the other, 7 neutrals and exactly 1 trap; revealing the trap
// ends the game immediately for the opposing team.
type codenames struct {
	clueTimeout  time.Duration
	guessTimeout time.Duration
}

func NewCodenames(clueTimeout, guessTimeout time.Duration) Module {
	return codenames{clueTimeout: clueTimeout, guessTimeout: guessTimeout}
}

const (
	TeamRed  = "red"
	TeamBlue = "blue"

	RoleSpymaster = "spymaster"

	codenamesBoardSize  = 25
	codenamesFirstCount = 9
	codenamesOtherCount = 8

	cnOwnerNeutral = "neutral"
	cnOwnerTrap    = "trap"

	cnPhaseClue  = "clue"
	cnPhaseGuess = "guess"
)

type cnTile struct {
	Word     string `json:"word"`
	Owner    string `json:"owner"` // red, blue, neutral, trap
	Revealed bool   `json:"revealed"`
}

type codenamesRound struct {
	Tiles        []cnTile `json:"tiles"`
	StartingTeam string   `json:"starting_team"`
	Turn         string   `json:"turn"`
	Phase        string   `json:"phase"`
	Clue         string   `json:"clue,omitempty"`
	ClueCount    int      `json:"clue_count,omitempty"`
	GuessesLeft  int      `json:"guesses_left,omitempty"`
	RedLeft      int      `json:"red_left"`
	BlueLeft     int      `json:"blue_left"`
	Outcome      string   `json:"outcome,omitempty"` // winning team once decided
	Rearm        bool     `json:"rearm,omitempty"`   // phase changed, deadline needs re-arming
}

type codenamesAction struct {
	Clue  string `json:"clue,omitempty"`
	Count int    `json:"count,omitempty"`
	Word  string `json:"word,omitempty"`
	Pass  bool   `json:"pass,omitempty"`
}

func (codenames) Kind() room.GameKind { return room.KindCodenames }

func (codenames) MissingStartConditions(r *room.Room) []string {
	var missing []string
	for _, team := range []string{TeamRed, TeamBlue} {
		spymasters, guessers := 0, 0
		for i := range r.Players {
			if r.Players[i].Team != team {
				continue
			}
			if r.Players[i].Role == RoleSpymaster {
				spymasters++
			} else {
				guessers++
			}
		}
		if spymasters != 1 {
			missing = append(missing, fmt.Sprintf("team %s needs exactly one spymaster", team))
		}
		if guessers < 1 {
			missing = append(missing, fmt.Sprintf("team %s needs at least one guesser", team))
		}
	}
	for i := range r.Players {
		if r.Players[i].Team != TeamRed && r.Players[i].Team != TeamBlue {
			missing = append(missing, fmt.Sprintf("player %s has not picked a team", r.Players[i].DisplayName))
		}
	}
	return missing
}

func (c codenames) InitRound(r *room.Room, now time.Time) ([]Effect, error) {
	starting := TeamRed
	other := TeamBlue
	if rand.IntN(2) == 1 {
		starting, other = other, starting
	}

	words := shuffled(codenamesWords)[:codenamesBoardSize]
	tiles := make([]cnTile, 0, codenamesBoardSize)
	for i, w := range words {
		owner := cnOwnerNeutral
		switch {
		case i < codenamesFirstCount:
			owner = starting
		case i < codenamesFirstCount+codenamesOtherCount:
			owner = other
		case i == codenamesBoardSize-1:
			owner = cnOwnerTrap
		}
		tiles = append(tiles, cnTile{Word: w, Owner: owner})
	}
	rand.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })

	round := codenamesRound{
		Tiles:        tiles,
		StartingTeam: starting,
		Turn:         starting,
		Phase:        cnPhaseClue,
		RedLeft:      codenamesFirstCount,
		BlueLeft:     codenamesOtherCount,
	}
	if starting == TeamBlue {
		round.RedLeft, round.BlueLeft = round.BlueLeft, round.RedLeft
	}

	r.ClearPending()
	r.TurnIndex = spymasterIndex(r, starting)
	deadline := now.Add(c.clueTimeout)
	r.TurnDeadline = &deadline
	if err := saveRound(r, &round); err != nil {
		return nil, err
	}
	return []Effect{ArmDeadline{At: deadline}}, nil
}

func (c codenames) ApplyAction(r *room.Room, playerID string, payload json.RawMessage, now time.Time) error {
	round, err := decodeRound[codenamesRound](r)
	if err != nil {
		return err
	}
	if round.Outcome != "" {
		return apperrors.ErrStaleCommand
	}

	var action codenamesAction
	if err := json.Unmarshal(payload, &action); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrBadAction, err)
	}

	p := r.FindPlayer(playerID)
	if p.Team != round.Turn {
		return apperrors.ErrNotYourTurn
	}

	switch round.Phase {
	case cnPhaseClue:
		if p.Role != RoleSpymaster {
			return apperrors.ErrNotYourTurn
		}
		if action.Clue == "" || action.Count < 1 {
			return fmt.Errorf("%w: clue requires a word and a positive count", apperrors.ErrBadAction)
		}
		round.Clue = action.Clue
		round.ClueCount = action.Count
		round.GuessesLeft = action.Count + 1
		round.Phase = cnPhaseGuess
		round.Rearm = true
		r.ClearPending()

	case cnPhaseGuess:
		if p.Role == RoleSpymaster {
			return apperrors.ErrNotYourTurn
		}
		if action.Pass {
			c.endTurn(r, round)
			break
		}
		tile := findTile(round, action.Word)
		if tile == nil {
			return fmt.Errorf("%w: %q is not an unrevealed board word", apperrors.ErrBadAction, action.Word)
		}
		c.reveal(r, round, p, tile)

	default:
		return apperrors.ErrWrongStatus
	}

	return saveRound(r, round)
}

// reveal applies one tile flip. Neutral and enemy reveals hand the turn
// over; the trap decides the game on the spot.
func (c codenames) reveal(r *room.Room, round *codenamesRound, p *room.Player, tile *cnTile) {
	tile.Revealed = true

	switch tile.Owner {
	case cnOwnerTrap:
		round.Outcome = opposingTeam(round.Turn)

	case round.Turn:
		p.Score++
		c.decrement(round, tile.Owner)
		if round.Outcome != "" {
			return
		}
		round.GuessesLeft--
		if round.GuessesLeft <= 0 {
			c.endTurn(r, round)
		}

	case cnOwnerNeutral:
		c.endTurn(r, round)

	default: // enemy word revealed for them
		c.decrement(round, tile.Owner)
		if round.Outcome == "" {
			c.endTurn(r, round)
		}
	}
}

// decrement lowers a team's remaining count and declares the win when a
// side's words run out.
func (codenames) decrement(round *codenamesRound, team string) {
	switch team {
	case TeamRed:
		round.RedLeft--
		if round.RedLeft <= 0 {
			round.Outcome = TeamRed
		}
	case TeamBlue:
		round.BlueLeft--
		if round.BlueLeft <= 0 {
			round.Outcome = TeamBlue
		}
	}
}

func (codenames) endTurn(r *room.Room, round *codenamesRound) {
	round.Turn = opposingTeam(round.Turn)
	round.Phase = cnPhaseClue
	round.Clue = ""
	round.ClueCount = 0
	round.GuessesLeft = 0
	round.Rearm = true
	r.ClearPending()
	r.TurnIndex = spymasterIndex(r, round.Turn)
}

func (c codenames) AdvanceIfReady(r *room.Room, now time.Time) ([]Effect, error) {
	round, err := decodeRound[codenamesRound](r)
	if err != nil {
		return nil, err
	}

	if round.Outcome != "" {
		r.Winner = round.Outcome
		r.TurnDeadline = nil
		r.ClearPending()
		r.SetStatus(room.StatusFinished, now)
		if err := saveRound(r, round); err != nil {
			return nil, err
		}
		return []Effect{CancelDeadline{}}, nil
	}

	if round.Rearm {
		round.Rearm = false
		timeout := c.clueTimeout
		if round.Phase == cnPhaseGuess {
			timeout = c.guessTimeout
		}
		deadline := now.Add(timeout)
		r.TurnDeadline = &deadline
		if err := saveRound(r, round); err != nil {
			return nil, err
		}
		return []Effect{ArmDeadline{At: deadline}}, nil
	}

	return nil, nil
}

// OnTimeUp hands the turn to the other team, whatever phase stalled.
func (c codenames) OnTimeUp(r *room.Room, now time.Time) ([]Effect, error) {
	round, err := decodeRound[codenamesRound](r)
	if err != nil {
		return nil, err
	}
	if round.Outcome != "" {
		return nil, apperrors.ErrStaleCommand
	}
	c.endTurn(r, round)
	if err := saveRound(r, round); err != nil {
		return nil, err
	}
	return c.AdvanceIfReady(r, now)
}

// NextRound is unreachable for Codenames: the game transitions straight
// to Finished, never through RoundSummary.
func (codenames) NextRound(r *room.Room, now time.Time) ([]Effect, error) {
	return nil, apperrors.ErrWrongStatus
}

func opposingTeam(team string) string {
	if team == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

func findTile(round *codenamesRound, word string) *cnTile {
	for i := range round.Tiles {
		t := &round.Tiles[i]
		if !t.Revealed && strings.EqualFold(t.Word, word) {
			return t
		}
	}
	return nil
}

func spymasterIndex(r *room.Room, team string) int {
	for i := range r.Players {
		if r.Players[i].Team == team && r.Players[i].Role == RoleSpymaster {
			return i
		}
	}
	return 0
}
