package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
	"github.com/asafee03-dev/partyroom/internal/game/rules"
)

func newTestRegistry(t *testing.T, store Store) *Registry {
	t.Helper()
	reg := NewRegistry(store, NewTurnClock(), testModules(), time.Minute)
	t.Cleanup(reg.Close)
	return reg
}

func TestRegistry_EnsureLoadsAndCaches(t *testing.T) {
	t.Parallel()

	store := newMemStore(lobbyRoom("R1", "p1"))
	reg := newTestRegistry(t, store)

	a, err := reg.Ensure(context.Background(), "R1")
	require.NoError(t, err)

	again, err := reg.Ensure(context.Background(), "R1")
	require.NoError(t, err)
	assert.Same(t, a, again, "one live actor per room")
}

func TestRegistry_EnsureUnknownCode(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, newMemStore())

	_, err := reg.Ensure(context.Background(), "NOPE")
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func TestRegistry_EvictedActorRehydrates(t *testing.T) {
	t.Parallel()

	store := newMemStore(lobbyRoom("R1", "p1"))
	reg := newTestRegistry(t, store)

	a, err := reg.Ensure(context.Background(), "R1")
	require.NoError(t, err)
	snap, err := a.Enqueue(context.Background(), rules.Join{Player: playerStub("p2")})
	require.NoError(t, err)

	reg.evict("R1")
	_, ok := reg.Get("R1")
	assert.False(t, ok)

	// A fresh Ensure reloads the committed state from the store.
	b, err := reg.Ensure(context.Background(), "R1")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	next, err := b.Enqueue(context.Background(), rules.Join{Player: playerStub("p3")})
	require.NoError(t, err)
	assert.Equal(t, snap.Version+1, next.Version)
	assert.Len(t, next.Players, 3)
}

func TestRegistry_SweepIdleEvictsOnlyIdleActors(t *testing.T) {
	t.Parallel()

	store := newMemStore(lobbyRoom("R1", "p1"), lobbyRoom("R2", "p1"))
	reg := newTestRegistry(t, store)

	_, err := reg.Ensure(context.Background(), "R1")
	require.NoError(t, err)
	busy, err := reg.Ensure(context.Background(), "R2")
	require.NoError(t, err)
	_, cancel := busy.Subscribe(1)
	defer cancel()

	evicted := reg.SweepIdle(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 1, evicted)

	_, ok := reg.Get("R1")
	assert.False(t, ok)
	_, ok = reg.Get("R2")
	assert.True(t, ok, "subscribed actors stay loaded")
}

func TestRegistry_TimeUpSurvivesEviction(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1", "p2")
	store := newMemStore(r)
	reg := newTestRegistry(t, store)

	a, err := reg.Ensure(context.Background(), "R1")
	require.NoError(t, err)
	snap, err := a.Enqueue(context.Background(), rules.StartGame{RequesterID: "p1"})
	require.NoError(t, err)

	reg.evict("R1")

	// The deadline delivery path must reload the room, not drop the event.
	reg.deliverTimeUp("R1", snap.Version)

	b, ok := reg.Get("R1")
	require.True(t, ok, "delivery rehydrated the actor")
	latest, err := b.Enqueue(context.Background(), rules.Join{Player: playerStub("p2")})
	require.NoError(t, err)
	assert.Greater(t, latest.Version, snap.Version)
}

func TestRegistry_DeadlineSurvivesMidTurnCommands(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1", "p2")
	r.Kind = room.KindAlias
	r.Players[0].Team = "cats"
	r.Players[1].Team = "dogs"
	store := newMemStore(r)
	modules := map[room.GameKind]rules.Module{
		room.KindAlias: rules.NewAlias(200 * time.Millisecond),
	}
	reg := NewRegistry(store, NewTurnClock(), modules, time.Minute)
	t.Cleanup(reg.Close)

	a, err := reg.Ensure(context.Background(), "R1")
	require.NoError(t, err)
	snap, err := a.Enqueue(context.Background(), rules.StartGame{RequesterID: "p1"})
	require.NoError(t, err)

	// An accepted verdict bumps the version mid-turn. Alias turns only
	// ever end on the clock, so the deadline must still fire.
	explainer := snap.Players[snap.TurnIndex].ID
	_, err = a.Enqueue(context.Background(), rules.SubmitTurnAction{
		PlayerID: explainer, Payload: []byte(`{"result":"correct"}`),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cur, found, err := store.Get(context.Background(), "R1")
		return err == nil && found && cur.Status == room.StatusRoundSummary
	}, 2*time.Second, 20*time.Millisecond, "the turn never banked")
}

func TestRegistry_DispatchRetriesPastDyingActor(t *testing.T) {
	t.Parallel()

	store := newMemStore(lobbyRoom("R1", "p1"))
	reg := newTestRegistry(t, store)

	// A stopped actor still cached under the code, as seen by a command
	// racing an idle eviction.
	dying := newActor("R1", nil, store, reg.clock, reg.modules, nil)
	dying.Stop()
	reg.mu.Lock()
	reg.actors["R1"] = dying
	reg.mu.Unlock()

	snap, err := reg.Dispatch(context.Background(), "R1", rules.Join{Player: playerStub("p2")})
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)

	live, ok := reg.Get("R1")
	require.True(t, ok)
	assert.NotSame(t, dying, live)
}

func TestRegistry_CloseRefusesNewActors(t *testing.T) {
	t.Parallel()

	store := newMemStore(lobbyRoom("R1", "p1"))
	reg := NewRegistry(store, NewTurnClock(), testModules(), time.Minute)

	a, err := reg.Ensure(context.Background(), "R1")
	require.NoError(t, err)

	reg.Close()
	_, err = a.Enqueue(context.Background(), rules.Join{Player: playerStub("p2")})
	assert.ErrorIs(t, err, apperrors.ErrRoomClosed)

	_, err = reg.Ensure(context.Background(), "R1")
	assert.ErrorIs(t, err, apperrors.ErrRoomClosed)
}
