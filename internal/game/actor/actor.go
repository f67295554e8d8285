// Package actor serializes all mutations of a room through a single
// goroutine per live room. The mailbox turns N concurrent client
// writers into one linear command stream, which is what eliminates the
// read-modify-write races a client-authoritative design suffers from.
package actor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
	"github.com/asafee03-dev/partyroom/internal/game/rules"
)

// Store is the persistence surface the actor needs: load, guarded
// write, delete.
type Store interface {
	Get(ctx context.Context, code string) (*room.Room, bool, error)
	CompareAndSwap(ctx context.Context, code string, expectedVersion int64, r *room.Room) (bool, error)
	Delete(ctx context.Context, code string) error
}

// Deadliner is the TurnClock surface.
type Deadliner interface {
	Arm(code string, at time.Time, armedVersion int64)
	Cancel(code string)
}

const (
	mailboxSize        = 64
	persistMaxAttempts = 3
	persistBackoffBase = 50 * time.Millisecond
)

type envelope struct {
	ctx   context.Context
	cmd   rules.Command
	reply chan result
}

type result struct {
	snapshot *room.Room
	err      error
}

// Actor owns one room's authoritative state. All access goes through
// Enqueue; state is only ever touched by the run goroutine.
type Actor struct {
	code    string
	store   Store
	clock   Deadliner
	modules map[room.GameKind]rules.Module
	onStop  func(code string)

	mailbox  chan envelope
	stopped  chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	subs       map[int]chan *room.Room
	nextSub    int
	lastActive time.Time

	state *room.Room // run goroutine only
}

func newActor(code string, state *room.Room, store Store, clock Deadliner, modules map[room.GameKind]rules.Module, onStop func(string)) *Actor {
	a := &Actor{
		code:       code,
		store:      store,
		clock:      clock,
		modules:    modules,
		onStop:     onStop,
		mailbox:    make(chan envelope, mailboxSize),
		stopped:    make(chan struct{}),
		subs:       make(map[int]chan *room.Room),
		lastActive: time.Now(),
		state:      state,
	}
	a.armPending()
	go a.run()
	return a
}

// Enqueue submits one command and waits for the outcome: the committed
// snapshot on acceptance, a rejection otherwise. Commands are processed
// strictly in arrival order.
func (a *Actor) Enqueue(ctx context.Context, cmd rules.Command) (*room.Room, error) {
	env := envelope{ctx: ctx, cmd: cmd, reply: make(chan result, 1)}

	select {
	case a.mailbox <- env:
	case <-a.stopped:
		return nil, apperrors.ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-env.reply:
		return res.snapshot, res.err
	case <-a.stopped:
		// The reply channel is buffered; prefer a late answer over a
		// spurious closed error.
		select {
		case res := <-env.reply:
			return res.snapshot, res.err
		default:
			return nil, apperrors.ErrRoomClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe registers a snapshot feed. Slow subscribers lose snapshots
// rather than stalling the actor.
func (a *Actor) Subscribe(buffer int) (<-chan *room.Room, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	ch := make(chan *room.Room, buffer)
	a.subs[id] = ch

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if c, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Idle reports whether the actor has had no commands and has no
// subscribers for longer than timeout.
func (a *Actor) Idle(now time.Time, timeout time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs) == 0 && now.Sub(a.lastActive) > timeout
}

// Stop shuts the actor down. In-flight Enqueue callers get ErrRoomClosed.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopped)
	})
}

func (a *Actor) run() {
	defer a.closeSubs()
	for {
		select {
		case env := <-a.mailbox:
			env.reply <- a.process(env)
		case <-a.stopped:
			return
		}
	}
}

func (a *Actor) process(env envelope) result {
	a.touch()

	if a.state == nil {
		if err := a.hydrate(env.ctx); err != nil {
			return result{err: err}
		}
	}

	// Stale deadline guard: a TimeUp armed at version V is a no-op once
	// any real command advanced the room past V.
	if tu, ok := env.cmd.(rules.TimeUp); ok && tu.ArmedVersion != a.state.Version {
		log.Printf("room %s: dropping stale TimeUp armed at v%d (now v%d)", a.code, tu.ArmedVersion, a.state.Version)
		return result{err: apperrors.ErrStaleCommand}
	}

	module, ok := a.modules[a.state.Kind]
	if !ok {
		return result{err: fmt.Errorf("no rule module for game kind %q", a.state.Kind)}
	}

	next, effects, err := rules.Apply(module, a.state, env.cmd, time.Now())
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindConflict {
			log.Printf("room %s: dropped %s: %v", a.code, env.cmd.Name(), err)
		}
		return result{err: err}
	}

	next.Version = a.state.Version + 1
	if err := a.persist(env.ctx, next); err != nil {
		return result{err: err}
	}

	a.state = next
	a.broadcast(next)
	a.runEffects(env.ctx, effects, next)
	a.refreshDeadline(effects, next)
	return result{snapshot: next.Clone()}
}

// refreshDeadline re-arms an untouched pending deadline at the new
// version. Mid-turn commands (a stroke, a verdict, a reveal) advance
// the version without ending the turn; the timer has to fire as
// current, not get dropped as stale.
func (a *Actor) refreshDeadline(effects []rules.Effect, committed *room.Room) {
	if committed.TurnDeadline == nil {
		return
	}
	for _, eff := range effects {
		switch eff.(type) {
		case rules.ArmDeadline, rules.CancelDeadline, rules.RequestDelete:
			return
		}
	}
	a.clock.Arm(a.code, *committed.TurnDeadline, committed.Version)
}

// armPending restores the timer behind a persisted deadline. Eviction
// and restarts kill timers, never the deadline itself.
func (a *Actor) armPending() {
	if a.state != nil && a.state.Status == room.StatusPlaying && a.state.TurnDeadline != nil {
		a.clock.Arm(a.code, *a.state.TurnDeadline, a.state.Version)
	}
}

func (a *Actor) hydrate(ctx context.Context) error {
	r, found, err := a.store.Get(ctx, a.code)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreDown, err)
	}
	if !found {
		return apperrors.ErrRoomNotFound
	}
	a.state = r
	a.armPending()
	return nil
}

// persist commits next with CAS on the previous version, retrying
// transient failures with backoff. The in-memory state never advances
// past what was durably written.
func (a *Actor) persist(ctx context.Context, next *room.Room) error {
	expected := next.Version - 1

	var lastErr error
	for attempt := 0; attempt < persistMaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(persistBackoffBase << (attempt - 1))
		}

		ok, err := a.store.CompareAndSwap(ctx, a.code, expected, next)
		if err != nil {
			lastErr = err
			continue
		}
		if !ok {
			// An external writer bypassed the actor. Re-read so we do
			// not keep fighting a version we no longer own.
			if err := a.hydrate(ctx); err == nil {
				log.Printf("room %s: version clash, rehydrated at v%d", a.code, a.state.Version)
			}
			return apperrors.ErrVersionClash
		}
		return nil
	}

	// Backoff exhausted: mark the room unavailable and evict, forcing a
	// rehydrate-or-fail on the next command.
	log.Printf("room %s: persistence failed after %d attempts: %v", a.code, persistMaxAttempts, lastErr)
	a.terminate()
	return fmt.Errorf("%w: %v", apperrors.ErrStoreDown, lastErr)
}

func (a *Actor) runEffects(ctx context.Context, effects []rules.Effect, committed *room.Room) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case rules.ArmDeadline:
			a.clock.Arm(a.code, e.At, committed.Version)
		case rules.CancelDeadline:
			a.clock.Cancel(a.code)
		case rules.RequestDelete:
			log.Printf("room %s: deleting (%s)", a.code, e.Reason)
			a.clock.Cancel(a.code)
			if err := a.store.Delete(ctx, a.code); err != nil {
				log.Printf("room %s: delete failed: %v", a.code, err)
			}
			a.terminate()
		case rules.Analytics:
			log.Printf("room %s: event %s %v", a.code, e.Event, e.Fields)
		}
	}
}

func (a *Actor) broadcast(r *room.Room) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, ch := range a.subs {
		select {
		case ch <- r.Clone():
		default:
		}
	}
}

func (a *Actor) closeSubs() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, ch := range a.subs {
		delete(a.subs, id)
		close(ch)
	}
}

func (a *Actor) terminate() {
	a.Stop()
	if a.onStop != nil {
		a.onStop(a.code)
	}
}

func (a *Actor) touch() {
	a.mu.Lock()
	a.lastActive = time.Now()
	a.mu.Unlock()
}
