package rules

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/asafee03-dev/partyroom/internal/apperrors"
	"github.com/asafee03-dev/partyroom/internal/game/room"
)

func decodeRound[T any](r *room.Room) (*T, error) {
	if len(r.Round) == 0 {
		return nil, fmt.Errorf("%w: room %s has no round state", apperrors.ErrWrongStatus, r.Code)
	}
	var v T
	if err := json.Unmarshal(r.Round, &v); err != nil {
		return nil, fmt.Errorf("decode round state for room %s: %w", r.Code, err)
	}
	return &v, nil
}

func saveRound(r *room.Room, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode round state for room %s: %w", r.Code, err)
	}
	r.Round = data
	return nil
}

// nextConnectedIndex walks the rotation order starting after from,
// skipping disconnected players. Falls back to from when nobody else is
// connected so TurnIndex always stays in range.
func nextConnectedIndex(r *room.Room, from int) int {
	n := len(r.Players)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if r.Players[i].Connected {
			return i
		}
	}
	return from
}

// timeBandPoints is the shared decay schedule for timed guesses:
// fast answers score 3, hesitant ones 2, anything slower 1.
func timeBandPoints(elapsed time.Duration) float64 {
	switch {
	case elapsed <= 20*time.Second:
		return 3
	case elapsed <= 40*time.Second:
		return 2
	default:
		return 1
	}
}

// allResponded reports whether every listed player appears in Pending.
func allResponded(r *room.Room, required []string) bool {
	for _, id := range required {
		if _, ok := r.Pending[id]; !ok {
			return false
		}
	}
	return true
}

func shuffled(words []string) []string {
	out := make([]string, len(words))
	copy(out, words)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// topScorer returns the highest-scoring player's ID.
func topScorer(r *room.Room) string {
	best := ""
	bestScore := -1.0
	for i := range r.Players {
		if r.Players[i].Score > bestScore {
			bestScore = r.Players[i].Score
			best = r.Players[i].ID
		}
	}
	return best
}

// anyScoreAtLeast implements the shared "first to N points" win check.
func anyScoreAtLeast(r *room.Room, threshold float64) bool {
	for i := range r.Players {
		if r.Players[i].Score >= threshold {
			return true
		}
	}
	return false
}
