package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

func aliasRoom(t *testing.T) *room.Room {
	t.Helper()
	r := testRoom(room.KindAlias, "a1", "a2", "b1", "b2")
	r.FindPlayer("a1").Team = "cats"
	r.FindPlayer("a2").Team = "cats"
	r.FindPlayer("b1").Team = "dogs"
	r.FindPlayer("b2").Team = "dogs"
	return r
}

func aliasRoundState(t *testing.T, r *room.Room) *aliasRound {
	t.Helper()
	round, err := decodeRound[aliasRound](r)
	require.NoError(t, err)
	return round
}

func TestAlias_StartConditions(t *testing.T) {
	t.Parallel()

	m := NewAlias(45 * time.Second)

	r := testRoom(room.KindAlias, "a1", "a2")
	r.FindPlayer("a1").Team = "cats"
	r.FindPlayer("a2").Team = "cats"
	_, _, err := Apply(m, r, StartGame{RequesterID: "a1"}, time.Now())
	var ce *apperrors.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Missing, "at least 2 non-empty teams required")
}

func TestAlias_ExplainerTurn(t *testing.T) {
	t.Parallel()

	m := NewAlias(45 * time.Second)
	r := mustApply(t, m, aliasRoom(t), StartGame{RequesterID: "a1"})
	round := aliasRoundState(t, r)

	require.Len(t, round.Teams, 2)
	assert.Equal(t, "a1", round.ExplainerID, "first team's first member explains first")
	assert.NotEmpty(t, round.Word)
	assert.NotNil(t, r.TurnDeadline)

	_, _, err := Apply(m, r, SubmitTurnAction{PlayerID: "a2", Payload: []byte(`{"result":"correct"}`)}, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotYourTurn)

	_, _, err = Apply(m, r, SubmitTurnAction{PlayerID: "a1", Payload: []byte(`{"result":"maybe"}`)}, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrBadAction)

	word := round.Word
	r = mustApply(t, m, r, SubmitTurnAction{PlayerID: "a1", Payload: []byte(`{"result":"correct"}`)})
	round = aliasRoundState(t, r)
	assert.Equal(t, 1, round.Correct)
	assert.NotEqual(t, word, round.Word, "a fresh word follows every verdict")
	assert.Equal(t, 1.0, r.FindPlayer("a1").Score)

	r = mustApply(t, m, r, SubmitTurnAction{PlayerID: "a1", Payload: []byte(`{"result":"skip"}`)})
	round = aliasRoundState(t, r)
	assert.Equal(t, 1, round.Skipped)
}

func TestAlias_TimeUpBanksCorrectCount(t *testing.T) {
	t.Parallel()

	m := NewAlias(45 * time.Second)
	r := mustApply(t, m, aliasRoom(t), StartGame{RequesterID: "a1"})
	for i := 0; i < 3; i++ {
		r = mustApply(t, m, r, SubmitTurnAction{PlayerID: "a1", Payload: []byte(`{"result":"correct"}`)})
	}

	r = mustApply(t, m, r, TimeUp{ArmedVersion: r.Version})
	assert.Equal(t, room.StatusRoundSummary, r.Status)
	assert.Nil(t, r.TurnDeadline)

	round := aliasRoundState(t, r)
	assert.Equal(t, 3, round.Teams[0].Position)
	assert.Equal(t, 0, round.Teams[1].Position)
}

func TestAlias_TurnRotation(t *testing.T) {
	t.Parallel()

	m := NewAlias(45 * time.Second)
	r := mustApply(t, m, aliasRoom(t), StartGame{RequesterID: "a1"})
	r = mustApply(t, m, r, TimeUp{ArmedVersion: r.Version})
	r = mustApply(t, m, r, ContinueToNextRound{RequesterID: "a1"})

	round := aliasRoundState(t, r)
	assert.Equal(t, room.StatusPlaying, r.Status)
	assert.Equal(t, 1, round.TeamTurn, "turn passes to the other team")
	assert.Equal(t, "b1", round.ExplainerID)
	assert.Zero(t, round.Correct)
	assert.NotNil(t, r.TurnDeadline)

	// Full cycle: the first team's second member explains next time.
	r = mustApply(t, m, r, TimeUp{ArmedVersion: r.Version})
	r = mustApply(t, m, r, ContinueToNextRound{RequesterID: "b1"})
	round = aliasRoundState(t, r)
	assert.Equal(t, 0, round.TeamTurn)
	assert.Equal(t, "a2", round.ExplainerID)
}

func TestAlias_DisconnectedExplainerSkipped(t *testing.T) {
	t.Parallel()

	m := NewAlias(45 * time.Second)
	r := mustApply(t, m, aliasRoom(t), StartGame{RequesterID: "a1"})
	r = mustApply(t, m, r, TimeUp{ArmedVersion: r.Version})
	r = mustApply(t, m, r, Leave{PlayerID: "b1"})

	r = mustApply(t, m, r, ContinueToNextRound{RequesterID: "a1"})
	round := aliasRoundState(t, r)
	assert.Equal(t, "b2", round.ExplainerID, "offline teammates do not get the turn")
}

func TestAlias_WinAtBoardEnd(t *testing.T) {
	t.Parallel()

	m := NewAlias(45 * time.Second)
	r := mustApply(t, m, aliasRoom(t), StartGame{RequesterID: "a1"})

	round := aliasRoundState(t, r)
	round.Teams[0].Position = aliasBoardEnd - 1
	require.NoError(t, saveRound(r, round))

	r = mustApply(t, m, r, SubmitTurnAction{PlayerID: "a1", Payload: []byte(`{"result":"correct"}`)})
	r = mustApply(t, m, r, TimeUp{ArmedVersion: r.Version})
	require.Equal(t, room.StatusRoundSummary, r.Status)
	assert.Equal(t, aliasBoardEnd, aliasRoundState(t, r).Teams[0].Position)

	r = mustApply(t, m, r, ContinueToNextRound{RequesterID: "a1"})
	assert.Equal(t, room.StatusFinished, r.Status)
	assert.Equal(t, "cats", r.Winner)
}

func TestAlias_DeckReshufflesWhenExhausted(t *testing.T) {
	t.Parallel()

	round := &aliasRound{Deck: []string{"last"}}
	assert.Equal(t, "last", drawAliasWord(round))
	assert.NotEmpty(t, drawAliasWord(round), "an empty deck reshuffles")
	assert.Len(t, round.Deck, len(aliasWords)-1)
}
