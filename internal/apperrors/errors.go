package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a rejection for callers and transports.
type Kind int

const (
	// KindValidation — malformed or out-of-turn command; reported to the
	// caller, no state change.
	KindValidation Kind = iota + 1
	// KindConflict — stale version or a command that raced past a
	// transition (e.g. a late TimeUp); dropped and logged.
	KindConflict
	// KindNotFound — unknown room code.
	KindNotFound
	// KindPersistence — store unavailable after retries.
	KindPersistence
	// KindCapacity — roster preconditions for starting a game not met.
	KindCapacity
)

// GameError is a rejection with a stable wire code.
type GameError struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// Is matches on the wire code so sentinel comparisons survive wrapping.
func (e *GameError) Is(target error) bool {
	var ge *GameError
	if errors.As(target, &ge) {
		return ge.Code == e.Code
	}
	return false
}

// Predefined rejections.
var (
	ErrRoomNotFound   = &GameError{Kind: KindNotFound, Code: "room_not_found", Message: "room does not exist"}
	ErrRoomClosed     = &GameError{Kind: KindNotFound, Code: "room_closed", Message: "room has been closed"}
	ErrNotInRoom      = &GameError{Kind: KindValidation, Code: "not_in_room", Message: "you are not in this room"}
	ErrGameStarted    = &GameError{Kind: KindValidation, Code: "game_started", Message: "game already started"}
	ErrGameNotStarted = &GameError{Kind: KindValidation, Code: "game_not_started", Message: "game has not started"}
	ErrNotYourTurn    = &GameError{Kind: KindValidation, Code: "not_your_turn", Message: "it is not your turn"}
	ErrNotHost        = &GameError{Kind: KindValidation, Code: "not_host", Message: "only the host may do this"}
	ErrBadAction      = &GameError{Kind: KindValidation, Code: "bad_action", Message: "invalid action payload"}
	ErrWrongStatus    = &GameError{Kind: KindValidation, Code: "wrong_status", Message: "command is not legal in the current room status"}
	ErrStaleCommand   = &GameError{Kind: KindConflict, Code: "stale_command", Message: "command raced past a transition"}
	ErrVersionClash   = &GameError{Kind: KindConflict, Code: "version_clash", Message: "room was modified concurrently"}
	ErrStoreDown      = &GameError{Kind: KindPersistence, Code: "store_unavailable", Message: "room store is unavailable"}
)

// CapacityError reports every missing start condition, not just the first.
type CapacityError struct {
	Missing []string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("cannot start: %s", strings.Join(e.Missing, "; "))
}

// KindOf extracts the rejection kind; unknown errors map to persistence
// since they only ever come from infrastructure.
func KindOf(err error) Kind {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	var ce *CapacityError
	if errors.As(err, &ce) {
		return KindCapacity
	}
	return KindPersistence
}

// IsRejection reports whether err is a rule rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindConflict, KindNotFound, KindCapacity:
		return true
	default:
		return false
	}
}
