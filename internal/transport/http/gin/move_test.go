package httpgin

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/service"
	"github.com/kirinyoku/beachclub/internal/service/movemode"
)

// memLedger holds one date of assignments in memory.
type memLedger struct {
	held   map[int64][]int64
	locked map[int64]bool
}

func (l *memLedger) UnassignForDate(_ context.Context, resID int64, ids []int64, _ time.Time) (*movemode.Result, error) {
	if l.locked[resID] {
		return &movemode.Result{Outcome: domain.OutcomeLocked}, nil
	}

	var removed, kept []int64
	for _, id := range l.held[resID] {
		if len(ids) == 0 || slices.Contains(ids, id) {
			removed = append(removed, id)
		} else {
			kept = append(kept, id)
		}
	}
	l.held[resID] = kept

	return &movemode.Result{Outcome: domain.OutcomeOK, FurnitureIDs: removed}, nil
}

func (l *memLedger) AssignFurniture(_ context.Context, resID int64, date time.Time, ids []int64) (*movemode.Result, error) {
	if l.locked[resID] {
		return &movemode.Result{Outcome: domain.OutcomeLocked}, nil
	}

	conflicts := domain.ConflictMap{}
	for other, held := range l.held {
		for _, id := range ids {
			if other != resID && slices.Contains(held, id) {
				conflicts.Add(domain.Conflict{FurnitureID: id, Date: date, Kind: domain.ConflictReservation, ReservationID: other})
			}
		}
	}
	if !conflicts.Empty() {
		return &movemode.Result{Outcome: domain.OutcomeConflict, Conflicts: conflicts}, nil
	}

	added := []int64{}
	for _, id := range ids {
		if !slices.Contains(l.held[resID], id) {
			l.held[resID] = append(l.held[resID], id)
			added = append(added, id)
		}
	}

	return &movemode.Result{Outcome: domain.OutcomeOK, FurnitureIDs: added}, nil
}

func newMoveServer(t *testing.T, ledger *memLedger) *testServer {
	t.Helper()

	svcs := &service.Services{
		MoveSessions: movemode.NewRegistry(ledger, time.Minute, discardLogger()),
	}

	return &testServer{router: NewRouter(svcs, nil, discardLogger())}
}

func openSession(t *testing.T, s *testServer) string {
	t.Helper()

	w := s.do(http.MethodPost, "/move/sessions", `{"date":"2025-07-01"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp MoveSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2025-07-01", resp.Date)
	assert.Empty(t, resp.Pool)
	assert.False(t, resp.CanUndo)

	return resp.SessionID
}

func TestMoveSession_Flow(t *testing.T) {
	ledger := &memLedger{held: map[int64][]int64{1: {10}, 2: {20}}, locked: map[int64]bool{}}
	s := newMoveServer(t, ledger)
	sid := openSession(t, s)
	base := "/move/sessions/" + sid

	w := s.do(http.MethodPost, base+"/unassign", `{"reservation_id":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var moved MoveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.Equal(t, domain.OutcomeOK, moved.Outcome)
	assert.Equal(t, []int64{10}, moved.FurnitureIDs)
	require.Len(t, moved.Pool, 1)

	// 20 belongs to reservation 2
	w = s.do(http.MethodPost, base+"/assign", `{"reservation_id":1,"furniture_ids":[20]}`)
	require.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.Equal(t, domain.OutcomeConflict, moved.Outcome)
	require.Len(t, moved.Conflicts, 1)
	assert.Equal(t, []int64{2}, moved.Conflicts[0].ReservationIDs)

	w = s.do(http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	var sess MoveSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Len(t, sess.Pool, 1)
	assert.True(t, sess.CanUndo)

	w = s.do(http.MethodPost, base+"/undo", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{10}, ledger.held[1])

	w = s.do(http.MethodPost, base+"/undo", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodDelete, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMoveSession_RestoreAndLocked(t *testing.T) {
	ledger := &memLedger{held: map[int64][]int64{1: {10, 11}, 3: {30}}, locked: map[int64]bool{3: true}}
	s := newMoveServer(t, ledger)
	base := "/move/sessions/" + openSession(t, s)

	w := s.do(http.MethodPost, base+"/unassign", `{"reservation_id":3}`)
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.JSONEq(t, `{"outcome":"locked"}`, w.Body.String())
	assert.Equal(t, []int64{30}, ledger.held[3])

	w = s.do(http.MethodPost, base+"/restore", `{"reservation_id":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "not pooled yet")

	w = s.do(http.MethodPost, base+"/unassign", `{"reservation_id":1,"furniture_ids":[11]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{10}, ledger.held[1])

	w = s.do(http.MethodPost, base+"/restore", `{"reservation_id":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	var moved MoveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &moved))
	assert.Equal(t, []int64{11}, moved.FurnitureIDs)
	assert.Empty(t, moved.Pool)
	assert.Equal(t, []int64{10, 11}, ledger.held[1])
}

func TestMoveSession_UnknownSession(t *testing.T) {
	s := newMoveServer(t, &memLedger{held: map[int64][]int64{}, locked: map[int64]bool{}})

	w := s.do(http.MethodPost, "/move/sessions/nope/unassign", `{"reservation_id":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, "/move/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
