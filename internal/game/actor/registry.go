package actor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
	"github.com/asafee03-dev/partyroom/internal/game/rules"
)

// Registry maps room codes to live actors, creating them on demand.
// One actor per live room guarantees single-writer access; idle actors
// are evicted to bound memory and rehydrate from the store on the next
// command.
type Registry struct {
	store       Store
	clock       *TurnClock
	modules     map[room.GameKind]rules.Module
	idleTimeout time.Duration

	mu     sync.RWMutex
	actors map[string]*Actor
	closed bool
}

func NewRegistry(store Store, clock *TurnClock, modules map[room.GameKind]rules.Module, idleTimeout time.Duration) *Registry {
	reg := &Registry{
		store:       store,
		clock:       clock,
		modules:     modules,
		idleTimeout: idleTimeout,
		actors:      make(map[string]*Actor),
	}
	clock.SetDeliver(reg.deliverTimeUp)
	return reg
}

// Ensure returns the room's actor, loading state from the store when no
// actor is live. Unknown codes report ErrRoomNotFound.
func (reg *Registry) Ensure(ctx context.Context, code string) (*Actor, error) {
	reg.mu.RLock()
	a, ok := reg.actors[code]
	reg.mu.RUnlock()
	if ok {
		return a, nil
	}

	state, found, err := reg.store.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStoreDown, err)
	}
	if !found {
		return nil, apperrors.ErrRoomNotFound
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.closed {
		return nil, apperrors.ErrRoomClosed
	}
	if a, ok := reg.actors[code]; ok {
		return a, nil
	}

	a = newActor(code, state, reg.store, reg.clock, reg.modules, reg.evict)
	reg.actors[code] = a
	return a, nil
}

// Dispatch resolves the room's actor and enqueues one command. An idle
// eviction can race the lookup and hand out an actor that is already
// stopping; the command is replayed once against a fresh one instead of
// surfacing a spurious closed error for a live room.
func (reg *Registry) Dispatch(ctx context.Context, code string, cmd rules.Command) (*room.Room, error) {
	a, err := reg.Ensure(ctx, code)
	if err != nil {
		return nil, err
	}
	snap, err := a.Enqueue(ctx, cmd)
	if errors.Is(err, apperrors.ErrRoomClosed) {
		reg.drop(code, a)
		if a, err = reg.Ensure(ctx, code); err != nil {
			return nil, err
		}
		return a.Enqueue(ctx, cmd)
	}
	return snap, err
}

// drop removes a dead actor still cached under code. A stopped actor
// never accepts commands again, so keeping it mapped only spreads the
// closed error.
func (reg *Registry) drop(code string, a *Actor) {
	reg.mu.Lock()
	if cur, ok := reg.actors[code]; ok && cur == a {
		delete(reg.actors, code)
	}
	reg.mu.Unlock()
}

// Get returns a live actor without hydrating one.
func (reg *Registry) Get(code string) (*Actor, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	a, ok := reg.actors[code]
	return a, ok
}

// evict removes and stops one actor. Safe to call from the actor's own
// goroutine: the map delete is under the registry lock only.
func (reg *Registry) evict(code string) {
	reg.mu.Lock()
	a, ok := reg.actors[code]
	if ok {
		delete(reg.actors, code)
	}
	reg.mu.Unlock()

	if ok {
		a.Stop()
	}
}

// SweepIdle unloads actors that have seen no commands and have no
// subscribers for the idle timeout.
func (reg *Registry) SweepIdle(now time.Time) int {
	reg.mu.RLock()
	var idle []string
	for code, a := range reg.actors {
		if a.Idle(now, reg.idleTimeout) {
			idle = append(idle, code)
		}
	}
	reg.mu.RUnlock()

	for _, code := range idle {
		log.Printf("room %s: evicting idle actor", code)
		reg.evict(code)
	}
	return len(idle)
}

// RunSweeper evicts idle actors on a fixed cadence until ctx ends.
func (reg *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			reg.SweepIdle(now)
		}
	}
}

// Close stops every actor and refuses new ones.
func (reg *Registry) Close() {
	reg.mu.Lock()
	reg.closed = true
	actors := make([]*Actor, 0, len(reg.actors))
	for code, a := range reg.actors {
		actors = append(actors, a)
		delete(reg.actors, code)
	}
	reg.mu.Unlock()

	for _, a := range actors {
		a.Stop()
	}
	reg.clock.Stop()
}

// deliverTimeUp is the TurnClock sink. The room is rehydrated if its
// actor was evicted while the timer was pending, so deadlines survive
// eviction.
func (reg *Registry) deliverTimeUp(code string, armedVersion int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := reg.Dispatch(ctx, code, rules.TimeUp{ArmedVersion: armedVersion}); err != nil && !apperrors.IsRejection(err) {
		log.Printf("room %s: TimeUp dropped: %v", code, err)
	}
}
