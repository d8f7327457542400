package reservation

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
)

var (
	ErrNoDates             = errors.New("at least one date is required")
	ErrInvalidPeople       = errors.New("num_people must be positive")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrUnknownState        = errors.New("unknown reservation state")
	ErrNotReleasingState   = errors.New("state does not release furniture")
	ErrTerminalState       = errors.New("reservation is in a releasing state")
	ErrFamilyDateChange    = errors.New("dates of a multi-day family cannot be moved")
	ErrTicketExhausted     = errors.New("could not allocate a free ticket number")
	ErrInvalidScope        = errors.New("invalid cancel scope")
)

type NoFurnitureError struct {
	Date time.Time
}

func (e NoFurnitureError) Error() string {
	return fmt.Sprintf("no furniture requested for %s", domain.DateKey(e.Date))
}

type FurnitureUnavailableError struct {
	FurnitureIDs []int64
}

func (e FurnitureUnavailableError) Error() string {
	return fmt.Sprintf("furniture not found or inactive: %v", e.FurnitureIDs)
}

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

// conflictAbort unwinds the unit of work so that the transaction rolls
// back; it never leaves this package.
type conflictAbort struct {
	conflicts domain.ConflictMap
}

func (e *conflictAbort) Error() string {
	return fmt.Sprintf("availability conflict on %d slot(s)", len(e.conflicts))
}

// lockedAbort is conflictAbort for the furniture lock gate.
type lockedAbort struct{}

func (lockedAbort) Error() string { return "furniture locked" }
