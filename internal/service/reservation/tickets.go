package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/repository"
	postgresrepo "github.com/kirinyoku/beachclub/internal/repository/postgres"
)

// TicketPrefix is the date part of a top-level ticket.
func TicketPrefix(date time.Time) string {
	return date.Format("060102")
}

// TicketNumber formats a top-level ticket: YYMMDD followed by the
// zero-padded daily sequence.
func TicketNumber(date time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", TicketPrefix(date), seq)
}

// ChildTicketNumber derives the ticket of the n-th day (2-based) of a family.
func ChildTicketNumber(parent string, n int) string {
	return fmt.Sprintf("%s-%d", parent, n)
}

// insertWithTicket inserts res under a fresh ticket number, retrying with
// the next candidate when another writer took it first.
func (s *Service) insertWithTicket(ctx context.Context, tx postgresrepo.DB, res *domain.Reservation) error {
	const op = "service.reservation.insertWithTicket"

	reservations := s.store.Reservations().With(tx)

	for attempt := 0; attempt < s.cfg.TicketMaxRetries; attempt++ {
		next, err := reservations.NextTicketSeq(ctx, TicketPrefix(res.ReservationDate))
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		seq := next + attempt
		res.TicketNumber = TicketNumber(res.ReservationDate, seq)

		err = reservations.Insert(ctx, res, &seq)
		if err == nil {
			return nil
		}

		if !errors.Is(err, repository.ErrTicketCollision) {
			return fmt.Errorf("%s:%w", op, err)
		}

		s.logger.Debug("ticket number collision",
			"ticket", res.TicketNumber,
			"attempt", attempt+1,
		)
	}

	return fmt.Errorf("%s:%w", op, ErrTicketExhausted)
}
