package actor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
	"github.com/asafee03-dev/partyroom/internal/game/rules"
)

func newTestActor(t *testing.T, state *room.Room, store Store) *Actor {
	t.Helper()
	a := newActor(state.Code, state.Clone(), store, &nopClock{}, testModules(), nil)
	t.Cleanup(a.Stop)
	return a
}

func TestActor_AcceptedCommandBumpsVersionByOne(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1")
	store := newMemStore(r)
	a := newTestActor(t, r, store)

	snap, err := a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p2", DisplayName: "Bob"}})
	require.NoError(t, err)
	assert.Equal(t, r.Version+1, snap.Version)
	assert.Equal(t, snap.Version, store.version("R1"), "memory never runs ahead of the store")
}

func TestActor_RejectionLeavesVersionAlone(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1", "p2")
	store := newMemStore(r)
	a := newTestActor(t, r, store)

	_, err := a.Enqueue(context.Background(), rules.StartGame{RequesterID: "p2"})
	assert.ErrorIs(t, err, apperrors.ErrNotHost)
	assert.Equal(t, r.Version, store.version("R1"))

	snap, err := a.Enqueue(context.Background(), rules.StartGame{RequesterID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, r.Version+1, snap.Version)
}

func TestActor_ConcurrentWritersSerialize(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1")
	store := newMemStore(r)
	a := newTestActor(t, r, store)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := a.Enqueue(context.Background(), rules.Join{Player: room.Player{
				ID: fmt.Sprintf("w%d", i), DisplayName: fmt.Sprintf("w%d", i),
			}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p1"}})
	require.NoError(t, err)
	assert.Len(t, snap.Players, writers+1)
	assert.Equal(t, r.Version+writers+1, snap.Version, "every acceptance advanced exactly one version")
}

func TestActor_StaleTimeUpDropped(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1", "p2")
	store := newMemStore(r)
	a := newTestActor(t, r, store)

	snap, err := a.Enqueue(context.Background(), rules.StartGame{RequesterID: "p1"})
	require.NoError(t, err)

	// Armed against the pre-start version: the turn moved on, drop it.
	_, err = a.Enqueue(context.Background(), rules.TimeUp{ArmedVersion: snap.Version - 1})
	assert.ErrorIs(t, err, apperrors.ErrStaleCommand)
	assert.Equal(t, snap.Version, store.version("R1"))
}

func TestActor_MidTurnCommandKeepsDeadlineCurrent(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1", "p2")
	r.Kind = room.KindDraw
	store := newMemStore(r)
	clock := &nopClock{}
	a := newActor(r.Code, r.Clone(), store, clock, testModules(), nil)
	t.Cleanup(a.Stop)

	_, err := a.Enqueue(context.Background(), rules.StartGame{RequesterID: "p1"})
	require.NoError(t, err)

	// A stroke lands mid-turn: the version moves, the deadline does not.
	snap, err := a.Enqueue(context.Background(), rules.SubmitTurnAction{
		PlayerID: "p1", Payload: []byte(`{"stroke":{"points":[1,2]}}`),
	})
	require.NoError(t, err)

	clock.mu.Lock()
	armed := append([]int64(nil), clock.armed...)
	clock.mu.Unlock()
	require.NotEmpty(t, armed)
	last := armed[len(armed)-1]
	assert.Equal(t, snap.Version, last, "the pending timer tracks the committed version")

	// The timer fires against the refreshed version and still ends the turn.
	final, err := a.Enqueue(context.Background(), rules.TimeUp{ArmedVersion: last})
	require.NoError(t, err)
	assert.Equal(t, room.StatusRoundSummary, final.Status)
}

func TestActor_LoadedRoomRearmsPersistedDeadline(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1", "p2")
	r.Kind = room.KindDraw
	r.SetStatus(room.StatusPlaying, time.Now())
	deadline := time.Now().Add(30 * time.Second)
	r.TurnDeadline = &deadline
	store := newMemStore(r)

	clock := &nopClock{}
	a := newActor(r.Code, r.Clone(), store, clock, testModules(), nil)
	t.Cleanup(a.Stop)

	// The stored deadline gets a live timer again on load.
	clock.mu.Lock()
	defer clock.mu.Unlock()
	require.Len(t, clock.armed, 1)
	assert.Equal(t, r.Version, clock.armed[0])
}

func TestActor_PersistenceFailureClosesRoom(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1")
	store := newMemStore(r)
	a := newTestActor(t, r, store)

	store.failCAS()
	_, err := a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p2"}})
	assert.ErrorIs(t, err, apperrors.ErrStoreDown)

	_, err = a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p3"}})
	assert.ErrorIs(t, err, apperrors.ErrRoomClosed)
	assert.Equal(t, r.Version, store.version("R1"), "nothing was committed")
}

func TestActor_ExternalWriteForcesRehydrate(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1")
	store := newMemStore(r)
	a := newTestActor(t, r, store)

	// An out-of-band writer bumps the stored version under the actor.
	hijacked := r.Clone()
	hijacked.Version += 5
	store.put(hijacked)

	_, err := a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p2"}})
	assert.ErrorIs(t, err, apperrors.ErrVersionClash)

	// The actor rehydrated; the retry lands on the new version.
	snap, err := a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p2"}})
	require.NoError(t, err)
	assert.Equal(t, hijacked.Version+1, snap.Version)
}

func TestActor_LastLeaveDeletesRoom(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1")
	store := newMemStore(r)
	clock := &nopClock{}
	a := newActor(r.Code, r.Clone(), store, clock, testModules(), nil)

	_, err := a.Enqueue(context.Background(), rules.Leave{PlayerID: "p1"})
	require.NoError(t, err)
	assert.False(t, store.has("R1"))

	_, err = a.Enqueue(context.Background(), rules.Leave{PlayerID: "p1"})
	assert.ErrorIs(t, err, apperrors.ErrRoomClosed)
	assert.Equal(t, 1, clock.cancels)
}

func TestActor_EffectsReachTheClock(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1", "p2")
	r.Kind = room.KindDraw
	store := newMemStore(r)
	clock := &nopClock{}
	a := newActor(r.Code, r.Clone(), store, clock, testModules(), nil)
	t.Cleanup(a.Stop)

	snap, err := a.Enqueue(context.Background(), rules.StartGame{RequesterID: "p1"})
	require.NoError(t, err)

	clock.mu.Lock()
	defer clock.mu.Unlock()
	require.Len(t, clock.armed, 1)
	assert.Equal(t, snap.Version, clock.armed[0], "the deadline carries the committed version")
	assert.Equal(t, "R1", clock.lastCode)
}

func TestActor_SubscribersGetEverySnapshot(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1")
	store := newMemStore(r)
	a := newTestActor(t, r, store)

	feed, cancel := a.Subscribe(8)
	defer cancel()

	_, err := a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p2"}})
	require.NoError(t, err)
	_, err = a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p3"}})
	require.NoError(t, err)

	first := <-feed
	second := <-feed
	assert.Equal(t, first.Version+1, second.Version)
	assert.Len(t, second.Players, 3)

	// Mutating a received snapshot must not leak into the actor.
	second.Players[0].DisplayName = "tampered"
	snap, err := a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p1"}})
	require.NoError(t, err)
	assert.Equal(t, "p1", snap.Players[0].DisplayName)
}

func TestActor_EnqueueAfterStop(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1")
	a := newActor(r.Code, r.Clone(), newMemStore(r), &nopClock{}, testModules(), nil)
	a.Stop()

	_, err := a.Enqueue(context.Background(), rules.Join{Player: room.Player{ID: "p2"}})
	assert.ErrorIs(t, err, apperrors.ErrRoomClosed)
}

func TestActor_EnqueueHonorsContext(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1")
	a := newTestActor(t, r, newMemStore(r))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Enqueue(ctx, rules.Join{Player: room.Player{ID: "p2"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestActor_IdleTracking(t *testing.T) {
	t.Parallel()

	r := lobbyRoom("R1", "p1")
	a := newTestActor(t, r, newMemStore(r))

	assert.False(t, a.Idle(time.Now(), time.Hour))
	assert.True(t, a.Idle(time.Now().Add(2*time.Hour), time.Hour))

	_, cancel := a.Subscribe(1)
	assert.False(t, a.Idle(time.Now().Add(2*time.Hour), time.Hour), "subscribers keep the actor live")
	cancel()
	assert.True(t, a.Idle(time.Now().Add(2*time.Hour), time.Hour))
}

// TestActor_VersionMonotonicity drives a random command stream and holds
// the core guarantee: each accepted command advances the stored version
// by exactly one, rejections advance nothing, and memory never runs
// ahead of the store.
func TestActor_VersionMonotonicity(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		r := lobbyRoom("R1", "p1", "p2")
		store := newMemStore(r)
		a := newActor(r.Code, r.Clone(), store, &nopClock{}, testModules(), nil)
		defer a.Stop()

		version := r.Version
		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			cmd := randomCommand(rt)
			snap, err := a.Enqueue(context.Background(), cmd)
			if err != nil {
				if !apperrors.IsRejection(err) {
					rt.Fatalf("step %d: non-rejection failure: %v", i, err)
				}
				if got := store.version("R1"); got != version {
					rt.Fatalf("step %d: rejection moved version %d -> %d", i, version, got)
				}
				continue
			}
			if snap.Version != version+1 {
				rt.Fatalf("step %d: version jumped %d -> %d", i, version, snap.Version)
			}
			version = snap.Version
			if got := store.version("R1"); got != version && got != 0 {
				rt.Fatalf("step %d: store at %d, actor at %d", i, got, version)
			}
			if got := store.version("R1"); got == 0 {
				// Room deleted by an effect; nothing more to assert.
				return
			}
		}
	})
}

func randomCommand(rt *rapid.T) rules.Command {
	switch rapid.IntRange(0, 5).Draw(rt, "cmd") {
	case 0:
		id := rapid.SampledFrom([]string{"p1", "p2", "p3"}).Draw(rt, "join_id")
		return rules.Join{Player: room.Player{ID: id, DisplayName: id}}
	case 1:
		return rules.Leave{PlayerID: rapid.SampledFrom([]string{"p2", "p3", "ghost"}).Draw(rt, "leave_id")}
	case 2:
		return rules.StartGame{RequesterID: rapid.SampledFrom([]string{"p1", "p2"}).Draw(rt, "starter")}
	case 3:
		angle := rapid.Float64Range(-10, 200).Draw(rt, "angle")
		id := rapid.SampledFrom([]string{"p1", "p2"}).Draw(rt, "actor_id")
		return rules.SubmitTurnAction{PlayerID: id, Payload: []byte(fmt.Sprintf(`{"angle":%f}`, angle))}
	case 4:
		return rules.TimeUp{ArmedVersion: rapid.Int64Range(0, 50).Draw(rt, "armed")}
	default:
		return rules.ContinueToNextRound{RequesterID: "p1"}
	}
}
