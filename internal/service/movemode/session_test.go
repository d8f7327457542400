package movemode

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/beachclub/internal/domain"
)

// fakeLedger keeps the assignments of a single date in memory and applies
// the same lock and availability gates as Service.
type fakeLedger struct {
	held   map[int64][]int64 // reservation -> furniture
	locked map[int64]bool
	calls  int
}

func newFakeLedger(held map[int64][]int64) *fakeLedger {
	return &fakeLedger{held: held, locked: map[int64]bool{}}
}

func (l *fakeLedger) UnassignForDate(_ context.Context, resID int64, ids []int64, _ time.Time) (*Result, error) {
	l.calls++
	if l.locked[resID] {
		return &Result{Outcome: domain.OutcomeLocked}, nil
	}

	var removed, kept []int64
	for _, id := range l.held[resID] {
		if len(ids) == 0 || slices.Contains(ids, id) {
			removed = append(removed, id)
			continue
		}
		kept = append(kept, id)
	}
	l.held[resID] = kept

	return &Result{Outcome: domain.OutcomeOK, FurnitureIDs: removed}, nil
}

func (l *fakeLedger) AssignFurniture(_ context.Context, resID int64, _ time.Time, ids []int64) (*Result, error) {
	l.calls++
	if l.locked[resID] {
		return &Result{Outcome: domain.OutcomeLocked}, nil
	}

	conflicts := domain.ConflictMap{}
	for other, furniture := range l.held {
		if other == resID {
			continue
		}
		for _, id := range ids {
			if slices.Contains(furniture, id) {
				conflicts.Add(domain.Conflict{FurnitureID: id, Kind: domain.ConflictReservation, ReservationID: other})
			}
		}
	}
	if !conflicts.Empty() {
		return &Result{Outcome: domain.OutcomeConflict, Conflicts: conflicts}, nil
	}

	added := []int64{}
	for _, id := range ids {
		if !slices.Contains(l.held[resID], id) {
			l.held[resID] = append(l.held[resID], id)
			added = append(added, id)
		}
	}

	return &Result{Outcome: domain.OutcomeOK, FurnitureIDs: added}, nil
}

func (l *fakeLedger) furniture(resID int64) []int64 {
	out := slices.Clone(l.held[resID])
	slices.Sort(out)
	return out
}

var sessionDate = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func activeSession(l Ledger) *Session {
	s := NewSession("s1", l)
	s.Activate(sessionDate)
	return s
}

func TestSession_Inactive(t *testing.T) {
	s := NewSession("s1", newFakeLedger(map[int64][]int64{}))
	ctx := context.Background()

	_, err := s.Unassign(ctx, 1, nil)
	assert.ErrorIs(t, err, ErrSessionInactive)

	_, err = s.Assign(ctx, 1, []int64{1})
	assert.ErrorIs(t, err, ErrSessionInactive)

	_, err = s.Restore(ctx, 1)
	assert.ErrorIs(t, err, ErrSessionInactive)

	_, err = s.Undo(ctx)
	assert.ErrorIs(t, err, ErrSessionInactive)
}

func TestSession_UnassignThenUndoRestoresRows(t *testing.T) {
	ctx := context.Background()
	l := newFakeLedger(map[int64][]int64{1: {10, 11}})
	s := activeSession(l)

	res, err := s.Unassign(ctx, 1, []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeOK, res.Outcome)
	assert.Empty(t, l.furniture(1))

	pool := s.Pool()
	require.Len(t, pool, 1)
	assert.Equal(t, int64(1), pool[0].ReservationID)
	assert.Equal(t, []int64{10, 11}, pool[0].OriginalFurnitureIDs)
	assert.True(t, s.CanUndo())

	res, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeOK, res.Outcome)
	assert.Equal(t, []int64{10, 11}, l.furniture(1))
	assert.Empty(t, s.Pool())
	assert.False(t, s.CanUndo())
}

func TestSession_UnassignEmptyListTakesWholeDate(t *testing.T) {
	l := newFakeLedger(map[int64][]int64{1: {10, 11}})
	s := activeSession(l)

	res, err := s.Unassign(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, res.FurnitureIDs)
	assert.Equal(t, []int64{10, 11}, s.Pool()[0].OriginalFurnitureIDs)
}

func TestSession_LockedReservationIsUntouched(t *testing.T) {
	ctx := context.Background()
	l := newFakeLedger(map[int64][]int64{1: {10}})
	l.locked[1] = true
	s := activeSession(l)

	res, err := s.Unassign(ctx, 1, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeLocked, res.Outcome)
	assert.Equal(t, []int64{10}, l.furniture(1))
	assert.Empty(t, s.Pool())
	assert.False(t, s.CanUndo())
}

func TestSession_AssignFromPoolAndUndo(t *testing.T) {
	ctx := context.Background()
	l := newFakeLedger(map[int64][]int64{1: {10}, 2: {20}})
	s := activeSession(l)

	_, err := s.Unassign(ctx, 1, []int64{10})
	require.NoError(t, err)

	// 20 is held by reservation 2
	res, err := s.Assign(ctx, 1, []int64{20})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeConflict, res.Outcome)
	assert.Len(t, s.Pool(), 1, "a conflict keeps the entry pooled")

	res, err = s.Assign(ctx, 1, []int64{30})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeOK, res.Outcome)
	assert.Equal(t, []int64{30}, l.furniture(1))
	assert.Empty(t, s.Pool())

	// undo the assign: furniture comes off and the entry is pooled again
	_, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.Empty(t, l.furniture(1))
	require.Len(t, s.Pool(), 1)
	assert.Equal(t, []int64{10}, s.Pool()[0].OriginalFurnitureIDs)

	// undo the unassign: original furniture is back
	_, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, l.furniture(1))
	assert.Empty(t, s.Pool())

	_, err = s.Undo(ctx)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestSession_Restore(t *testing.T) {
	ctx := context.Background()
	l := newFakeLedger(map[int64][]int64{1: {10, 11}})
	s := activeSession(l)

	_, err := s.Restore(ctx, 1)
	assert.ErrorIs(t, err, ErrNotInPool)

	_, err = s.Unassign(ctx, 1, []int64{10})
	require.NoError(t, err)
	_, err = s.Unassign(ctx, 1, []int64{11})
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, s.Pool()[0].OriginalFurnitureIDs)

	res, err := s.Restore(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeOK, res.Outcome)
	assert.Equal(t, []int64{10, 11}, l.furniture(1))
	assert.Empty(t, s.Pool())
}

func TestSession_UndoBlockedKeepsStep(t *testing.T) {
	ctx := context.Background()
	l := newFakeLedger(map[int64][]int64{1: {10}})
	s := activeSession(l)

	_, err := s.Unassign(ctx, 1, []int64{10})
	require.NoError(t, err)

	// someone else takes the freed slot before the undo
	l.held[2] = []int64{10}

	res, err := s.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeConflict, res.Outcome)
	assert.True(t, s.CanUndo())
	assert.Len(t, s.Pool(), 1)

	// the undo goes through the lock gate as well
	delete(l.held, 2)
	l.locked[1] = true

	res, err = s.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeLocked, res.Outcome)
	assert.True(t, s.CanUndo())
}

func TestSession_ActivateResetsAndDeactivateReturnsPool(t *testing.T) {
	ctx := context.Background()
	l := newFakeLedger(map[int64][]int64{1: {10}, 2: {20}})
	s := activeSession(l)

	_, err := s.Unassign(ctx, 2, nil)
	require.NoError(t, err)
	_, err = s.Unassign(ctx, 1, nil)
	require.NoError(t, err)

	left := s.Deactivate()
	require.Len(t, left, 2)
	assert.Equal(t, int64(1), left[0].ReservationID)
	assert.Equal(t, int64(2), left[1].ReservationID)
	assert.False(t, s.Active())
	assert.False(t, s.CanUndo())

	next := sessionDate.AddDate(0, 0, 1)
	s.Activate(next.Add(5 * time.Hour))
	assert.True(t, s.Active())
	assert.Equal(t, next, s.Date())
	assert.Empty(t, s.Pool())
	assert.Empty(t, l.furniture(1), "abandoned pool stays unassigned")
}

func TestRegistry(t *testing.T) {
	l := newFakeLedger(map[int64][]int64{1: {10}})
	r := NewRegistry(l, time.Minute, nil)

	s := r.Open(sessionDate)
	assert.True(t, s.Active())
	assert.NotEmpty(t, s.ID())

	got, err := r.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = s.Unassign(context.Background(), 1, nil)
	require.NoError(t, err)

	left, err := r.Close(s.ID())
	require.NoError(t, err)
	assert.Len(t, left, 1)
	assert.False(t, s.Active())

	_, err = r.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = r.Close("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
