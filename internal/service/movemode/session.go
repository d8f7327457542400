package movemode

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
)

// PoolEntry is a reservation whose furniture was pulled off the floor plan
// and is waiting to be reassigned.
type PoolEntry struct {
	ReservationID        int64     `json:"reservation_id"`
	Date                 time.Time `json:"date"`
	OriginalFurnitureIDs []int64   `json:"original_furniture_ids"`
}

type stepKind int

const (
	stepUnassign stepKind = iota + 1
	stepAssign
)

// step is an applied change; undo replays its inverse.
type step struct {
	kind          stepKind
	reservationID int64
	furnitureIDs  []int64
	entry         *PoolEntry // pool entry before the change, nil if none
}

// Session is one operator's move mode. It lives only in memory; abandoning
// it leaves the ledger as the last committed change put it.
type Session struct {
	mu     sync.Mutex
	id     string
	ledger Ledger
	active bool
	date   time.Time
	pool   map[int64]*PoolEntry
	undo   []step
}

func NewSession(id string, ledger Ledger) *Session {
	return &Session{
		id:     id,
		ledger: ledger,
		pool:   map[int64]*PoolEntry{},
	}
}

func (s *Session) ID() string { return s.id }

// Activate starts move mode for date, discarding any previous pool and
// undo history.
func (s *Session) Activate(date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.active = true
	s.date = domain.Day(date)
}

// Deactivate ends move mode and returns the entries still in the pool.
// Their furniture stays unassigned.
func (s *Session) Deactivate() []PoolEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	left := s.poolLocked()
	s.reset()
	s.active = false

	return left
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) Date() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

func (s *Session) Pool() []PoolEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poolLocked()
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo) > 0
}

// Unassign pulls furniture of a reservation off the session date into the
// pool. A locked reservation yields OutcomeLocked and changes nothing.
func (s *Session) Unassign(ctx context.Context, reservationID int64, furnitureIDs []int64) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, ErrSessionInactive
	}

	res, err := s.ledger.UnassignForDate(ctx, reservationID, furnitureIDs, s.date)
	if err != nil || res.Outcome != domain.OutcomeOK || len(res.FurnitureIDs) == 0 {
		return res, err
	}

	s.undo = append(s.undo, step{
		kind:          stepUnassign,
		reservationID: reservationID,
		furnitureIDs:  slices.Clone(res.FurnitureIDs),
		entry:         s.snapshot(reservationID),
	})
	s.addToPool(reservationID, res.FurnitureIDs)

	return res, nil
}

// Assign gives a reservation furniture on the session date. On success the
// reservation leaves the pool.
func (s *Session) Assign(ctx context.Context, reservationID int64, furnitureIDs []int64) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, ErrSessionInactive
	}

	return s.assignLocked(ctx, reservationID, furnitureIDs)
}

// Restore reassigns a pooled reservation to the furniture it had when it
// was first pulled.
func (s *Session) Restore(ctx context.Context, reservationID int64) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, ErrSessionInactive
	}

	entry, ok := s.pool[reservationID]
	if !ok {
		return nil, ErrNotInPool
	}

	return s.assignLocked(ctx, reservationID, slices.Clone(entry.OriginalFurnitureIDs))
}

// Undo replays the inverse of the last change. The inverse goes through the
// same lock and availability gates; if it does not succeed the step stays
// on the stack.
func (s *Session) Undo(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, ErrSessionInactive
	}

	if len(s.undo) == 0 {
		return nil, ErrNothingToUndo
	}

	last := s.undo[len(s.undo)-1]

	var res *Result
	var err error

	switch last.kind {
	case stepUnassign:
		res, err = s.ledger.AssignFurniture(ctx, last.reservationID, s.date, last.furnitureIDs)
	case stepAssign:
		// an empty id list would clear the whole date
		if len(last.furnitureIDs) == 0 {
			res = &Result{Outcome: domain.OutcomeOK, FurnitureIDs: []int64{}}
			break
		}
		res, err = s.ledger.UnassignForDate(ctx, last.reservationID, last.furnitureIDs, s.date)
	}
	if err != nil || res.Outcome != domain.OutcomeOK {
		return res, err
	}

	s.undo = s.undo[:len(s.undo)-1]
	s.restoreEntry(last.reservationID, last.entry)

	return res, nil
}

func (s *Session) assignLocked(ctx context.Context, reservationID int64, furnitureIDs []int64) (*Result, error) {
	res, err := s.ledger.AssignFurniture(ctx, reservationID, s.date, furnitureIDs)
	if err != nil || res.Outcome != domain.OutcomeOK {
		return res, err
	}

	entry := s.snapshot(reservationID)
	delete(s.pool, reservationID)

	// Only the ids that were actually added are taken back by undo.
	if len(res.FurnitureIDs) > 0 || entry != nil {
		s.undo = append(s.undo, step{
			kind:          stepAssign,
			reservationID: reservationID,
			furnitureIDs:  slices.Clone(res.FurnitureIDs),
			entry:         entry,
		})
	}

	return res, nil
}

func (s *Session) addToPool(reservationID int64, furnitureIDs []int64) {
	entry, ok := s.pool[reservationID]
	if !ok {
		entry = &PoolEntry{ReservationID: reservationID, Date: s.date}
		s.pool[reservationID] = entry
	}

	for _, id := range furnitureIDs {
		if !slices.Contains(entry.OriginalFurnitureIDs, id) {
			entry.OriginalFurnitureIDs = append(entry.OriginalFurnitureIDs, id)
		}
	}
	slices.Sort(entry.OriginalFurnitureIDs)
}

func (s *Session) snapshot(reservationID int64) *PoolEntry {
	entry, ok := s.pool[reservationID]
	if !ok {
		return nil
	}

	cp := *entry
	cp.OriginalFurnitureIDs = slices.Clone(entry.OriginalFurnitureIDs)
	return &cp
}

func (s *Session) restoreEntry(reservationID int64, entry *PoolEntry) {
	if entry == nil {
		delete(s.pool, reservationID)
		return
	}
	s.pool[reservationID] = entry
}

func (s *Session) poolLocked() []PoolEntry {
	out := make([]PoolEntry, 0, len(s.pool))
	for _, e := range s.pool {
		cp := *e
		cp.OriginalFurnitureIDs = slices.Clone(e.OriginalFurnitureIDs)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b PoolEntry) int {
		switch {
		case a.ReservationID < b.ReservationID:
			return -1
		case a.ReservationID > b.ReservationID:
			return 1
		}
		return 0
	})
	return out
}

func (s *Session) reset() {
	s.pool = map[int64]*PoolEntry{}
	s.undo = nil
}
