package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/repository"
	postgresrepo "github.com/kirinyoku/beachclub/internal/repository/postgres"
	"github.com/kirinyoku/beachclub/internal/service/availability"
	"github.com/kirinyoku/beachclub/internal/service/notify"
	"github.com/kirinyoku/beachclub/internal/uow"
)

type Config struct {
	MaxBlockDays int
}

// Service manages administrative holds: furniture blocks and per-reservation
// furniture locks.
type Service struct {
	store    *postgresrepo.Store
	checker  *availability.Service
	notifier *notify.Notifier
	uow      *uow.UoW
	logger   *slog.Logger
	cfg      Config
}

func New(
	store *postgresrepo.Store,
	checker *availability.Service,
	notifier *notify.Notifier,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.MaxBlockDays <= 0 {
		cfg.MaxBlockDays = 366
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    store,
		checker:  checker,
		notifier: notifier,
		uow:      uow.NewUoW(store),
		logger:   logger,
		cfg:      cfg,
	}
}

type BlockRequest struct {
	FurnitureID int64
	StartDate   time.Time
	EndDate     time.Time
	Type        domain.BlockType
	Reason      string
}

type BlockResult struct {
	Outcome   domain.Outcome
	Block     *domain.FurnitureBlock
	Conflicts domain.ConflictMap
}

// CreateBlock places an administrative hold on one furniture item for an
// inclusive date range. The range is checked on the insert's transaction;
// any holding reservation on it rejects the block. Reservations in a
// releasing state and other blocks do not.
//
// Parameters:
//   - ctx: request-scoped context.
//   - req: furniture, range, type and free-text reason.
//
// Returns:
//   - *BlockResult: OutcomeOK with the stored block, or OutcomeConflict with
//     the overlapping reservations and no row inserted.
//   - error: admin.ErrInvalidBlockType or ErrInvalidRange on bad input.
//   - error: admin.ErrFurnitureNotFound if the furniture does not exist.
func (s *Service) CreateBlock(ctx context.Context, req BlockRequest) (*BlockResult, error) {
	const op = "service.admin.CreateBlock"

	if !req.Type.Valid() {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidBlockType)
	}

	days, err := domain.DaysBetween(req.StartDate, req.EndDate)
	if err != nil || len(days) > s.cfg.MaxBlockDays {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRange)
	}

	block := &domain.FurnitureBlock{
		FurnitureID: req.FurnitureID,
		StartDate:   days[0],
		EndDate:     days[len(days)-1],
		BlockType:   req.Type,
		Reason:      req.Reason,
	}

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		states, err := availability.LoadStates(ctx, s.store, tx)
		if err != nil {
			return err
		}

		items, err := s.store.Furniture().With(tx).GetMany(ctx, []int64{req.FurnitureID})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrFurnitureNotFound
		}

		conflicts, err := s.checker.CheckTx(ctx, tx, availability.Query{
			FurnitureIDs: []int64{req.FurnitureID},
			Dates:        days,
		}, states)
		if err != nil {
			return err
		}

		if live := conflicts.Only(domain.ConflictReservation); !live.Empty() {
			return &blockConflict{conflicts: live}
		}

		if err := s.store.Blocks().With(tx).Insert(ctx, block); err != nil {
			if errors.Is(err, repository.ErrReferenceMissing) {
				return ErrFurnitureNotFound
			}
			return err
		}

		after(func(ctx context.Context) {
			s.notifier.DatesChanged(ctx, days)
		})

		return nil
	})
	if err != nil {
		var bc *blockConflict
		if errors.As(err, &bc) {
			return &BlockResult{Outcome: domain.OutcomeConflict, Conflicts: bc.conflicts}, nil
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("furniture block created",
		"block_id", block.ID,
		"furniture_id", block.FurnitureID,
		"type", string(block.BlockType),
		"days", len(days),
	)

	return &BlockResult{Outcome: domain.OutcomeOK, Block: block}, nil
}

// DeleteBlock lifts a block.
//
// Returns:
//   - *domain.FurnitureBlock: the removed block.
//   - error: admin.ErrBlockNotFound if no block has that id.
func (s *Service) DeleteBlock(ctx context.Context, id int64) (*domain.FurnitureBlock, error) {
	const op = "service.admin.DeleteBlock"

	var removed *domain.FurnitureBlock

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		b, err := s.store.Blocks().With(tx).Delete(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrBlockNotFound
			}
			return err
		}

		removed = b

		days, err := domain.DaysBetween(b.StartDate, b.EndDate)
		if err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.notifier.DatesChanged(ctx, days)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return removed, nil
}

// ToggleFurnitureLock sets or clears the furniture lock of one reservation.
// While set, move mode and reassignment refuse to touch its furniture.
//
// Returns:
//   - *domain.Reservation: the reservation after the change.
//   - error: admin.ErrReservationNotFound if id does not exist.
func (s *Service) ToggleFurnitureLock(ctx context.Context, id int64, locked bool) (*domain.Reservation, error) {
	const op = "service.admin.ToggleFurnitureLock"

	var out *domain.Reservation

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx postgresrepo.DB,
		after func(uow.AfterCommit),
	) error {
		reservations := s.store.Reservations().With(tx)

		res, err := reservations.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		out = res
		if res.IsFurnitureLocked == locked {
			return nil
		}

		if err := reservations.SetFurnitureLock(ctx, id, locked); err != nil {
			return err
		}

		res.IsFurnitureLocked = locked

		dates := []time.Time{res.ReservationDate}
		after(func(ctx context.Context) {
			s.notifier.DatesChanged(ctx, dates)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
