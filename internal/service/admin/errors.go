package admin

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/beachclub/internal/domain"
)

var (
	ErrInvalidBlockType    = errors.New("invalid block type")
	ErrInvalidRange        = errors.New("invalid block date range")
	ErrFurnitureNotFound   = errors.New("furniture not found")
	ErrBlockNotFound       = errors.New("block not found")
	ErrReservationNotFound = errors.New("reservation not found")
)

// blockConflict aborts the block transaction when live bookings overlap it.
type blockConflict struct {
	conflicts domain.ConflictMap
}

func (e *blockConflict) Error() string {
	return fmt.Sprintf("block overlaps %d reservation(s)", len(e.conflicts.ReservationIDs()))
}
