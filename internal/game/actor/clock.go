package actor

import (
	"sync"
	"time"
)

// TurnClock keeps at most one outstanding deadline timer per room.
// Arming is last-write-wins on the timer; room state is untouched. The
// fired command carries the version it was armed against so the actor
// can drop it if the turn already advanced.
type TurnClock struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	deliver func(code string, armedVersion int64)
}

func NewTurnClock() *TurnClock {
	return &TurnClock{timers: make(map[string]*time.Timer)}
}

// SetDeliver wires the TimeUp sink. Must be called before Arm.
func (tc *TurnClock) SetDeliver(deliver func(code string, armedVersion int64)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.deliver = deliver
}

// Arm schedules a TimeUp for the room at the given instant, replacing
// any timer already pending for it.
func (tc *TurnClock) Arm(code string, at time.Time, armedVersion int64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if t, ok := tc.timers[code]; ok {
		t.Stop()
	}

	deliver := tc.deliver
	tc.timers[code] = time.AfterFunc(time.Until(at), func() {
		tc.mu.Lock()
		delete(tc.timers, code)
		tc.mu.Unlock()
		if deliver != nil {
			deliver(code, armedVersion)
		}
	})
}

// Cancel drops the room's pending timer, if any.
func (tc *TurnClock) Cancel(code string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if t, ok := tc.timers[code]; ok {
		t.Stop()
		delete(tc.timers, code)
	}
}

// Stop cancels every pending timer.
func (tc *TurnClock) Stop() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for code, t := range tc.timers {
		t.Stop()
		delete(tc.timers, code)
	}
}
