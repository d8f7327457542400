package availability

import "errors"

var (
	ErrNoFurniture    = errors.New("at least one furniture id is required")
	ErrNoDates        = errors.New("at least one date is required")
	ErrNoTransaction  = errors.New("a transaction handle is required")
	ErrEmptyCatalog   = errors.New("reservation state catalog is empty")
	ErrNoHoldingState = errors.New("reservation state catalog has no holding state")
)
