package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/queue"
	"github.com/kirinyoku/beachclub/internal/repository"
	postgresrepo "github.com/kirinyoku/beachclub/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/beachclub/internal/repository/redis"
	"github.com/kirinyoku/beachclub/internal/service/availability"
	"github.com/kirinyoku/beachclub/internal/service/notify"
	"github.com/kirinyoku/beachclub/internal/uow"
)

type Config struct {
	TicketMaxRetries int
}

// Service is the reservation orchestrator. Every operation runs in exactly
// one unit of work and checks availability on that same transaction before
// it writes to the ledger.
type Service struct {
	store    *postgresrepo.Store
	checker  *availability.Service
	notifier *notify.Notifier
	limiter  *redisrepo.SlidingWindowLimiter
	uow      *uow.UoW
	logger   *slog.Logger
	cfg      Config
}

func New(
	store *postgresrepo.Store,
	checker *availability.Service,
	notifier *notify.Notifier,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.TicketMaxRetries <= 0 {
		cfg.TicketMaxRetries = 5
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    store,
		checker:  checker,
		notifier: notifier,
		limiter:  limiter,
		uow:      uow.NewUoW(store),
		logger:   logger,
		cfg:      cfg,
	}
}

type CreateResult struct {
	Outcome     domain.Outcome
	Reservation *domain.Reservation
	Children    []domain.Reservation
	Conflicts   domain.ConflictMap
}

// Create books furniture for one date, or for a linked family when more
// than one date is given. The first date becomes the parent and every
// further date a child; a conflict on any day rolls the whole family back.
//
// Parameters:
//   - ctx: request-scoped context.
//   - req: customer, dates and furniture to book.
//
// Returns:
//   - *CreateResult: OutcomeOK with the stored rows, or OutcomeConflict with
//     the occupied slots and nothing persisted.
//   - error: reservation.ErrNoDates, NoFurnitureError or ErrInvalidPeople on bad input.
//   - error: reservation.ErrCustomerNotFound or FurnitureUnavailableError on unknown ids.
//   - error: reservation.ErrTicketExhausted if no ticket number could be allocated.
//   - error: RateLimitedError if the caller exceeded the create limit.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	const op = "service.reservation.Create"

	days, err := req.plan()
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if req.NumPeople <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidPeople)
	}

	if s.limiter != nil && req.ClientKey != "" {
		d, err := s.limiter.Allow(ctx, req.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !d.Allowed {
			return nil, fmt.Errorf("%s:%w", op, RateLimitedError{RetryAfter: d.RetryAfter})
		}
	}

	var parent *domain.Reservation
	var children []domain.Reservation

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		parent, children = nil, nil

		states, err := availability.LoadStates(ctx, s.store, tx)
		if err != nil {
			return err
		}

		initial, _ := states.Initial()

		reservations := s.store.Reservations().With(tx)

		exists, err := reservations.CustomerExists(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrCustomerNotFound
		}

		if err := s.validateFurniture(ctx, tx, planFurniture(days)); err != nil {
			return err
		}

		first, last := days[0].Date, days[len(days)-1].Date

		parent = &domain.Reservation{
			CustomerID:      req.CustomerID,
			ReservationDate: first,
			StartDate:       first,
			EndDate:         last,
			NumPeople:       req.NumPeople,
			CurrentState:    initial,
			Paid:            req.Paid,
			PaymentMethod:   req.PaymentMethod,
			Notes:           req.Notes,
		}
		if err := s.insertWithTicket(ctx, tx, parent); err != nil {
			return err
		}

		owners := []int64{parent.ID}
		parentID := parent.ID

		for i, d := range days[1:] {
			child := domain.Reservation{
				TicketNumber:    ChildTicketNumber(parent.TicketNumber, i+2),
				CustomerID:      req.CustomerID,
				ReservationDate: d.Date,
				StartDate:       d.Date,
				EndDate:         d.Date,
				NumPeople:       req.NumPeople,
				CurrentState:    initial,
				ParentID:        &parentID,
				Paid:            req.Paid,
				PaymentMethod:   req.PaymentMethod,
				Notes:           req.Notes,
			}
			if err := reservations.Insert(ctx, &child, nil); err != nil {
				return err
			}

			children = append(children, child)
			owners = append(owners, child.ID)
		}

		conflicts, err := s.checkPlan(ctx, tx, days, nil, states)
		if err != nil {
			return err
		}
		if !conflicts.Empty() {
			return &conflictAbort{conflicts: conflicts}
		}

		assignments := s.store.Assignments().With(tx)
		for i, d := range days {
			if err := assignments.Insert(ctx, owners[i], d.Date, d.FurnitureIDs); err != nil {
				return err
			}
		}

		ev := queue.ReservationEvent{
			Type:          queue.EventCreated,
			ReservationID: parent.ID,
			TicketNumber:  parent.TicketNumber,
			CustomerID:    parent.CustomerID,
			State:         parent.CurrentState,
			Dates:         notify.DateStrings(planDates(days)),
			FurnitureIDs:  planFurniture(days),
			ChildIDs:      owners[1:],
			OccurredAt:    now(),
		}
		dates := planDates(days)

		after(func(ctx context.Context) {
			s.notifier.DatesChanged(ctx, dates)
			s.notifier.Reservation(ctx, ev)
		})

		return nil
	})
	if err != nil {
		var ca *conflictAbort
		if errors.As(err, &ca) {
			return &CreateResult{Outcome: domain.OutcomeConflict, Conflicts: ca.conflicts}, nil
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("reservation created",
		"reservation_id", parent.ID,
		"ticket", parent.TicketNumber,
		"days", len(days),
	)

	return &CreateResult{
		Outcome:     domain.OutcomeOK,
		Reservation: parent,
		Children:    children,
	}, nil
}

// UpdateRequest changes one reservation row, i.e. one day. Nil fields are
// left as they are; a nil FurnitureIDs keeps the current furniture.
type UpdateRequest struct {
	Date          *time.Time
	FurnitureIDs  []int64
	NumPeople     *int
	Paid          *bool
	PaymentMethod *string
	Notes         *string
}

type UpdateResult struct {
	Outcome     domain.Outcome
	Reservation *domain.Reservation
	Conflicts   domain.ConflictMap
}

// Update re-checks availability, excluding the reservation itself, and only
// then rewrites its row and its ledger rows.
//
// Returns:
//   - *UpdateResult: OutcomeOK with the updated row, OutcomeConflict with the
//     occupied slots, or OutcomeLocked when furniture or date would change on
//     a locked reservation. Nothing is written unless the outcome is OK.
//   - error: reservation.ErrReservationNotFound if id does not exist.
//   - error: reservation.ErrTerminalState if the reservation already released its slots.
//   - error: reservation.ErrFamilyDateChange when moving a day of a family.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*UpdateResult, error) {
	const op = "service.reservation.Update"

	if req.NumPeople != nil && *req.NumPeople <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidPeople)
	}

	var updated *domain.Reservation

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		states, err := availability.LoadStates(ctx, s.store, tx)
		if err != nil {
			return err
		}

		reservations := s.store.Reservations().With(tx)

		res, err := reservations.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		if states.IsReleasing(res.CurrentState) {
			return ErrTerminalState
		}

		rows, err := s.store.Assignments().With(tx).ListByReservations(ctx, []int64{id})
		if err != nil {
			return err
		}

		oldDate := domain.Day(res.ReservationDate)
		current := furnitureOn(rows, id, oldDate)

		newDate := oldDate
		if req.Date != nil && !domain.Day(*req.Date).Equal(oldDate) {
			if res.IsChild() {
				return ErrFamilyDateChange
			}

			kids, err := reservations.Children(ctx, id)
			if err != nil {
				return err
			}
			if len(kids) > 0 {
				return ErrFamilyDateChange
			}

			newDate = domain.Day(*req.Date)
		}

		next := current
		if req.FurnitureIDs != nil {
			next = domain.UniqueIDs(req.FurnitureIDs)
			if len(next) == 0 {
				return NoFurnitureError{Date: newDate}
			}
		}

		dateChanged := !newDate.Equal(oldDate)
		furnitureChanged := !sameSet(current, next)

		if dateChanged || furnitureChanged {
			locked, err := reservations.FurnitureLocked(ctx, res)
			if err != nil {
				return err
			}
			if locked {
				return lockedAbort{}
			}
		}

		if furnitureChanged {
			if err := s.validateFurniture(ctx, tx, next); err != nil {
				return err
			}
		}

		if len(next) > 0 {
			conflicts, err := s.checkPlan(ctx, tx, []dayPlan{{Date: newDate, FurnitureIDs: next}}, &id, states)
			if err != nil {
				return err
			}
			if !conflicts.Empty() {
				return &conflictAbort{conflicts: conflicts}
			}
		}

		if dateChanged {
			res.ReservationDate = newDate
			res.StartDate = newDate
			res.EndDate = newDate
		}
		if req.NumPeople != nil {
			res.NumPeople = *req.NumPeople
		}
		if req.Paid != nil {
			res.Paid = *req.Paid
		}
		if req.PaymentMethod != nil {
			res.PaymentMethod = *req.PaymentMethod
		}
		if req.Notes != nil {
			res.Notes = *req.Notes
		}

		if err := reservations.UpdateDetails(ctx, res); err != nil {
			return err
		}

		if dateChanged || furnitureChanged {
			assignments := s.store.Assignments().With(tx)

			if _, err := assignments.DeleteForDate(ctx, id, oldDate, nil); err != nil {
				return err
			}

			if err := assignments.Insert(ctx, id, newDate, next); err != nil {
				return err
			}
		}

		updated = res

		dates := []time.Time{oldDate, newDate}
		ev := queue.ReservationEvent{
			Type:          queue.EventUpdated,
			ReservationID: res.ID,
			TicketNumber:  res.TicketNumber,
			CustomerID:    res.CustomerID,
			State:         res.CurrentState,
			Dates:         notify.DateStrings(dates),
			FurnitureIDs:  next,
			OccurredAt:    now(),
		}

		after(func(ctx context.Context) {
			s.notifier.DatesChanged(ctx, dates)
			s.notifier.Reservation(ctx, ev)
		})

		return nil
	})
	if err != nil {
		var ca *conflictAbort
		if errors.As(err, &ca) {
			return &UpdateResult{Outcome: domain.OutcomeConflict, Conflicts: ca.conflicts}, nil
		}

		if errors.As(err, new(lockedAbort)) {
			return &UpdateResult{Outcome: domain.OutcomeLocked}, nil
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &UpdateResult{Outcome: domain.OutcomeOK, Reservation: updated}, nil
}

type Scope string

const (
	ScopeSingle Scope = "single"
	ScopeFamily Scope = "family"
)

func (s Scope) Valid() bool {
	return s == ScopeSingle || s == ScopeFamily
}

type CancelResult struct {
	State          string  `json:"state"`
	ReservationIDs []int64 `json:"reservation_ids"`
}

// Cancel moves a reservation, or its whole family, into a releasing state.
// Ledger rows are kept as history; they stop counting immediately. Members
// that already released their slots keep their state.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: any member of the family when scope is ScopeFamily.
//   - scope: ScopeSingle or ScopeFamily; empty means ScopeFamily.
//   - state: the releasing state to use; empty picks the default cancel state.
//
// Returns:
//   - *CancelResult: the state applied and the reservations it was applied to.
//   - error: reservation.ErrReservationNotFound if id does not exist.
//   - error: reservation.ErrUnknownState or ErrNotReleasingState for a bad state.
//   - error: reservation.ErrTerminalState if nothing was left to cancel.
func (s *Service) Cancel(ctx context.Context, id int64, scope Scope, state string) (*CancelResult, error) {
	const op = "service.reservation.Cancel"

	if scope == "" {
		scope = ScopeFamily
	}

	if !scope.Valid() {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidScope)
	}

	var out *CancelResult

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		states, err := availability.LoadStates(ctx, s.store, tx)
		if err != nil {
			return err
		}

		target, ok := states.CancelState(state)
		if !ok {
			if state != "" && !states.Has(state) {
				return ErrUnknownState
			}
			return ErrNotReleasingState
		}

		members, err := s.lockMembers(ctx, tx, id, scope)
		if err != nil {
			return err
		}

		var ids []int64
		var dates []time.Time
		for _, m := range members {
			if states.IsReleasing(m.CurrentState) {
				continue
			}
			ids = append(ids, m.ID)
			dates = append(dates, m.ReservationDate)
		}

		if len(ids) == 0 {
			return ErrTerminalState
		}

		if _, err := s.store.Reservations().With(tx).UpdateState(ctx, ids, target); err != nil {
			return err
		}

		out = &CancelResult{State: target, ReservationIDs: ids}

		ev := queue.ReservationEvent{
			Type:          queue.EventCancelled,
			ReservationID: id,
			State:         target,
			Dates:         notify.DateStrings(dates),
			ChildIDs:      ids,
			OccurredAt:    now(),
		}

		after(func(ctx context.Context) {
			s.notifier.DatesChanged(ctx, dates)
			s.notifier.Reservation(ctx, ev)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("reservation cancelled",
		"reservation_id", id,
		"scope", string(scope),
		"state", out.State,
		"affected", len(out.ReservationIDs),
	)

	return out, nil
}

// lockMembers row-locks the reservations a cancel applies to.
func (s *Service) lockMembers(ctx context.Context, tx postgresrepo.DB, id int64, scope Scope) ([]domain.Reservation, error) {
	reservations := s.store.Reservations().With(tx)

	res, err := reservations.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	if scope == ScopeSingle {
		return []domain.Reservation{*res}, nil
	}

	root := res
	if rootID := res.FamilyRootID(); rootID != res.ID {
		root, err = reservations.GetForUpdate(ctx, rootID)
		if err != nil {
			return nil, err
		}
	}

	children, err := reservations.Children(ctx, root.ID)
	if err != nil {
		return nil, err
	}

	return append([]domain.Reservation{*root}, children...), nil
}

// ChangeState moves one reservation to another catalog state. Holding to
// holding only relabels the booking; holding to releasing frees its slots
// like a single-day cancel. Releasing states are final.
//
// Returns:
//   - *domain.Reservation: the reservation after the change.
//   - error: reservation.ErrUnknownState if state is not in the catalog.
//   - error: reservation.ErrReservationNotFound if id does not exist.
//   - error: reservation.ErrTerminalState if the reservation already released its slots.
func (s *Service) ChangeState(ctx context.Context, id int64, state string) (*domain.Reservation, error) {
	const op = "service.reservation.ChangeState"

	var out *domain.Reservation

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		states, err := availability.LoadStates(ctx, s.store, tx)
		if err != nil {
			return err
		}

		if !states.Has(state) {
			return ErrUnknownState
		}

		reservations := s.store.Reservations().With(tx)

		res, err := reservations.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		if states.IsReleasing(res.CurrentState) {
			return ErrTerminalState
		}

		out = res
		if res.CurrentState == state {
			return nil
		}

		if _, err := reservations.UpdateState(ctx, []int64{id}, state); err != nil {
			return err
		}

		res.CurrentState = state

		dates := []time.Time{res.ReservationDate}
		ev := queue.ReservationEvent{
			Type:          queue.EventStateChanged,
			ReservationID: res.ID,
			TicketNumber:  res.TicketNumber,
			CustomerID:    res.CustomerID,
			State:         state,
			Dates:         notify.DateStrings(dates),
			OccurredAt:    now(),
		}

		after(func(ctx context.Context) {
			s.notifier.DatesChanged(ctx, dates)
			s.notifier.Reservation(ctx, ev)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
