package actor

import (
	"context"
	"log"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
	"github.com/asafee03-dev/partyroom/internal/game/rules"
)

// Lister extends the actor's store view with the key scan the reaper
// sweeps over.
type Lister interface {
	Store
	ListCodes(ctx context.Context) ([]string, error)
}

// Reaper retires rooms on a background cadence. Three independent
// retention rules apply: a Finished room past its grace period, a room
// with nobody connected past the same grace window, and any room past
// the maximum age. Deletion routes through the owning actor when one is
// loaded so it serializes with player traffic.
type Reaper struct {
	store    Lister
	registry *Registry

	gracePeriod time.Duration
	maxAge      time.Duration
	interval    time.Duration
}

func NewReaper(store Lister, registry *Registry, gracePeriod, maxAge, interval time.Duration) *Reaper {
	return &Reaper{
		store:       store,
		registry:    registry,
		gracePeriod: gracePeriod,
		maxAge:      maxAge,
		interval:    interval,
	}
}

// Run sweeps until ctx ends.
func (rp *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			rp.Sweep(ctx, now)
		}
	}
}

// Sweep applies the retention rules once. Returns how many rooms were
// retired.
func (rp *Reaper) Sweep(ctx context.Context, now time.Time) int {
	codes, err := rp.store.ListCodes(ctx)
	if err != nil {
		log.Printf("reaper: list rooms: %v", err)
		return 0
	}

	reaped := 0
	for _, code := range codes {
		r, found, err := rp.store.Get(ctx, code)
		if err != nil {
			log.Printf("reaper: load room %s: %v", code, err)
			continue
		}
		if !found {
			continue
		}

		reason, eligible := rp.eligible(r, now)
		if !eligible {
			continue
		}

		rp.delete(ctx, code, reason)
		reaped++
	}
	return reaped
}

// eligible decides retirement. A room that is Playing with at least one
// player connected is never deleted, whatever else holds — except by
// the max-age rule, which is unconditional.
func (rp *Reaper) eligible(r *room.Room, now time.Time) (string, bool) {
	if now.Sub(r.CreatedAt) > rp.maxAge {
		return "max age exceeded", true
	}

	playingWithPlayers := r.Status == room.StatusPlaying && r.ConnectedCount() > 0
	if playingWithPlayers {
		return "", false
	}

	if r.Status == room.StatusFinished && now.Sub(r.StatusChangedAt) > rp.gracePeriod {
		return "finished grace period elapsed", true
	}
	if r.ConnectedCount() == 0 && now.Sub(r.LastActivityAt) > rp.gracePeriod {
		return "no connected players", true
	}
	return "", false
}

func (rp *Reaper) delete(ctx context.Context, code, reason string) {
	log.Printf("reaper: retiring room %s (%s)", code, reason)

	// Route through the actor when loaded so no in-flight command races
	// a store-level delete.
	if a, ok := rp.registry.Get(code); ok {
		if _, err := a.Enqueue(ctx, rules.DeleteRoom{}); err != nil && !apperrors.IsRejection(err) {
			log.Printf("reaper: actor delete for room %s: %v", code, err)
		}
		return
	}

	if err := rp.store.Delete(ctx, code); err != nil {
		log.Printf("reaper: store delete for room %s: %v", code, err)
	}
}
