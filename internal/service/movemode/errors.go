package movemode

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/beachclub/internal/domain"
)

var (
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrNoFurniture          = errors.New("at least one furniture id is required")
	ErrFurnitureUnavailable = errors.New("furniture not found or inactive")
	ErrTerminalState        = errors.New("reservation is in a releasing state")
	ErrSessionInactive      = errors.New("move mode is not active")
	ErrSessionNotFound      = errors.New("move session not found")
	ErrNotInPool            = errors.New("reservation is not in the pool")
	ErrNothingToUndo        = errors.New("nothing to undo")
)

// errLocked unwinds a unit of work that hit the furniture lock gate.
var errLocked = errors.New("furniture locked")

type conflictAbort struct {
	conflicts domain.ConflictMap
}

func (e *conflictAbort) Error() string {
	return fmt.Sprintf("availability conflict on %d slot(s)", len(e.conflicts))
}
