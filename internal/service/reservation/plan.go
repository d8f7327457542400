package reservation

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	postgresrepo "github.com/kirinyoku/beachclub/internal/repository/postgres"
	"github.com/kirinyoku/beachclub/internal/service/availability"
)

// CreateRequest describes a single-day or linked multi-day booking.
// FurnitureIDs applies to every date that has no entry in FurnitureByDate;
// FurnitureByDate is keyed by domain.DateKey and is how a caller retries
// with per-day replacements after a conflict.
type CreateRequest struct {
	CustomerID      int64
	Dates           []time.Time
	FurnitureIDs    []int64
	FurnitureByDate map[string][]int64
	NumPeople       int
	Paid            bool
	PaymentMethod   string
	Notes           string

	// ClientKey identifies the caller for the create rate limit. Empty
	// disables limiting.
	ClientKey string
}

type dayPlan struct {
	Date         time.Time
	FurnitureIDs []int64
}

func (r CreateRequest) plan() ([]dayPlan, error) {
	dates := domain.UniqueDays(r.Dates)
	if len(dates) == 0 {
		return nil, ErrNoDates
	}

	out := make([]dayPlan, 0, len(dates))
	for _, d := range dates {
		ids := r.FurnitureIDs
		if override, ok := r.FurnitureByDate[domain.DateKey(d)]; ok && len(override) > 0 {
			ids = override
		}

		ids = domain.UniqueIDs(ids)
		if len(ids) == 0 {
			return nil, NoFurnitureError{Date: d}
		}

		out = append(out, dayPlan{Date: d, FurnitureIDs: ids})
	}

	return out, nil
}

func planDates(days []dayPlan) []time.Time {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, d.Date)
	}
	return out
}

func planFurniture(days []dayPlan) []int64 {
	var out []int64
	for _, d := range days {
		out = append(out, d.FurnitureIDs...)
	}
	return domain.UniqueIDs(out)
}

// checkPlan runs the availability check for every planned (furniture, date)
// pair on tx. The checker works on a cross product, so pairs the plan does
// not ask for are dropped from its answer.
func (s *Service) checkPlan(
	ctx context.Context,
	tx postgresrepo.DB,
	days []dayPlan,
	exclude *int64,
	states domain.StateSet,
) (domain.ConflictMap, error) {
	found, err := s.checker.CheckTx(ctx, tx, availability.Query{
		FurnitureIDs:         planFurniture(days),
		Dates:                planDates(days),
		ExcludeReservationID: exclude,
	}, states)
	if err != nil {
		return nil, err
	}

	wanted := make(map[domain.SlotKey]struct{})
	for _, d := range days {
		for _, id := range d.FurnitureIDs {
			wanted[domain.NewSlotKey(id, d.Date)] = struct{}{}
		}
	}

	out := domain.ConflictMap{}
	for k, cs := range found {
		if _, ok := wanted[k]; ok {
			out[k] = cs
		}
	}

	return out, nil
}

// validateFurniture rejects ids that are missing from the catalog or retired.
func (s *Service) validateFurniture(ctx context.Context, tx postgresrepo.DB, ids []int64) error {
	const op = "service.reservation.validateFurniture"

	items, err := s.store.Furniture().With(tx).GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	active := make(map[int64]bool, len(items))
	for _, f := range items {
		active[f.ID] = f.Active
	}

	var bad []int64
	for _, id := range ids {
		if !active[id] {
			bad = append(bad, id)
		}
	}

	if len(bad) > 0 {
		slices.Sort(bad)
		return FurnitureUnavailableError{FurnitureIDs: bad}
	}

	return nil
}

func furnitureOn(rows []domain.Assignment, reservationID int64, date time.Time) []int64 {
	var out []int64
	for _, a := range rows {
		if a.ReservationID == reservationID && domain.Day(a.AssignmentDate).Equal(domain.Day(date)) {
			out = append(out, a.FurnitureID)
		}
	}
	slices.Sort(out)
	return out
}

func sameSet(a, b []int64) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}
