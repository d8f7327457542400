package httpgin

import (
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/service/conflict"
	"github.com/kirinyoku/beachclub/internal/service/movemode"
)

// Dates travel as YYYY-MM-DD strings.

type CheckAvailabilityRequest struct {
	FurnitureIDs         []int64  `json:"furniture_ids" binding:"required,min=1"`
	Dates                []string `json:"dates" binding:"required,min=1"`
	ExcludeReservationID *int64   `json:"exclude_reservation_id"`
}

type CheckAvailabilityResponse struct {
	Available bool                 `json:"available"`
	Conflicts []conflict.DateGroup `json:"conflicts"`
}

type CreateReservationRequest struct {
	CustomerID      int64              `json:"customer_id" binding:"required"`
	Dates           []string           `json:"dates" binding:"required,min=1"`
	FurnitureIDs    []int64            `json:"furniture_ids"`
	FurnitureByDate map[string][]int64 `json:"furniture_by_date"`
	NumPeople       int                `json:"num_people" binding:"required,gt=0"`
	Paid            bool               `json:"paid"`
	PaymentMethod   string             `json:"payment_method"`
	Notes           string             `json:"notes"`
}

type CreateReservationResponse struct {
	Reservation domain.Reservation   `json:"reservation"`
	Children    []domain.Reservation `json:"children"`
}

type UpdateReservationRequest struct {
	Date          *string `json:"date"`
	FurnitureIDs  []int64 `json:"furniture_ids"`
	NumPeople     *int    `json:"num_people"`
	Paid          *bool   `json:"paid"`
	PaymentMethod *string `json:"payment_method"`
	Notes         *string `json:"notes"`
}

type CancelReservationRequest struct {
	Scope string `json:"scope" binding:"omitempty,oneof=single family"`
	State string `json:"state"`
}

type ChangeStateRequest struct {
	State string `json:"state" binding:"required"`
}

type ToggleLockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

type ReassignRequest struct {
	Date string  `json:"date" binding:"required"`
	From []int64 `json:"from"`
	To   []int64 `json:"to" binding:"required,min=1"`
}

type CreateBlockRequest struct {
	FurnitureID int64  `json:"furniture_id" binding:"required"`
	StartDate   string `json:"start_date" binding:"required"`
	EndDate     string `json:"end_date" binding:"required"`
	BlockType   string `json:"block_type" binding:"required"`
	Reason      string `json:"reason"`
}

type OpenMoveSessionRequest struct {
	Date string `json:"date" binding:"required"`
}

type MoveSessionResponse struct {
	SessionID string               `json:"session_id"`
	Date      string               `json:"date"`
	Pool      []movemode.PoolEntry `json:"pool"`
	CanUndo   bool                 `json:"can_undo"`
}

type MoveRequest struct {
	ReservationID int64   `json:"reservation_id" binding:"required"`
	FurnitureIDs  []int64 `json:"furniture_ids"`
}

type MoveResponse struct {
	Outcome      domain.Outcome       `json:"outcome"`
	FurnitureIDs []int64              `json:"furniture_ids"`
	Conflicts    []conflict.DateGroup `json:"conflicts,omitempty"`
	Pool         []movemode.PoolEntry `json:"pool"`
}

// OutcomeResponse is the body of 409 and 423 answers.
type OutcomeResponse struct {
	Outcome   domain.Outcome       `json:"outcome"`
	Conflicts []conflict.DateGroup `json:"conflicts,omitempty"`

	// PendingDates are the conflicting dates still needing replacement
	// furniture in furniture_by_date before a retry can succeed.
	PendingDates []string `json:"pending_dates,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func parseDates(ss []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(ss))
	for _, s := range ss {
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
