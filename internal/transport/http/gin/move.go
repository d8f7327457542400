package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/service/conflict"
	"github.com/kirinyoku/beachclub/internal/service/movemode"
)

// @Summary  Activate move mode for a date
// @Param    req body  OpenMoveSessionRequest true "payload"
// @Success  201 {object} MoveSessionResponse
// @Router   /move/sessions [post]
func (h *handlers) openMoveSession(c *gin.Context) {
	var req OpenMoveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	date, err := domain.ParseDate(req.Date)
	if err != nil {
		badRequest(c, "invalid date (YYYY-MM-DD)")
		return
	}

	s := h.svcs.MoveSessions.Open(date)

	c.JSON(http.StatusCreated, sessionResponse(s))
}

// @Summary  Get move session pool
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} MoveSessionResponse
// @Failure  404 {object} ErrorResponse
// @Router   /move/sessions/{sid} [get]
func (h *handlers) getMoveSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, sessionResponse(s))
}

// @Summary  Deactivate move mode
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {array} movemode.PoolEntry "entries left unassigned"
// @Router   /move/sessions/{sid} [delete]
func (h *handlers) closeMoveSession(c *gin.Context) {
	left, err := h.svcs.MoveSessions.Close(c.Param("sid"))
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, left)
}

// @Summary  Pull furniture into the pool
// @Param    sid  path  string  true  "Session ID"
// @Param    req body  MoveRequest true "payload"
// @Success  200 {object} MoveResponse
// @Failure  423 {object} OutcomeResponse
// @Router   /move/sessions/{sid}/unassign [post]
func (h *handlers) moveUnassign(c *gin.Context) {
	s, req, ok := h.moveInput(c)
	if !ok {
		return
	}

	result, err := s.Unassign(c.Request.Context(), req.ReservationID, req.FurnitureIDs)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	h.respondMove(c, result, s)
}

// @Summary  Assign furniture on the session date
// @Param    sid  path  string  true  "Session ID"
// @Param    req body  MoveRequest true "payload"
// @Success  200 {object} MoveResponse
// @Failure  409 {object} MoveResponse
// @Failure  423 {object} OutcomeResponse
// @Router   /move/sessions/{sid}/assign [post]
func (h *handlers) moveAssign(c *gin.Context) {
	s, req, ok := h.moveInput(c)
	if !ok {
		return
	}

	result, err := s.Assign(c.Request.Context(), req.ReservationID, req.FurnitureIDs)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	h.respondMove(c, result, s)
}

// @Summary  Restore pooled reservation to its original furniture
// @Param    sid  path  string  true  "Session ID"
// @Param    req body  MoveRequest true "payload"
// @Success  200 {object} MoveResponse
// @Router   /move/sessions/{sid}/restore [post]
func (h *handlers) moveRestore(c *gin.Context) {
	s, req, ok := h.moveInput(c)
	if !ok {
		return
	}

	result, err := s.Restore(c.Request.Context(), req.ReservationID)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	h.respondMove(c, result, s)
}

// @Summary  Undo the last move
// @Param    sid  path  string  true  "Session ID"
// @Success  200 {object} MoveResponse
// @Router   /move/sessions/{sid}/undo [post]
func (h *handlers) moveUndo(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	result, err := s.Undo(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}

	h.respondMove(c, result, s)
}

func (h *handlers) session(c *gin.Context) (*movemode.Session, bool) {
	s, err := h.svcs.MoveSessions.Get(c.Param("sid"))
	if err != nil {
		h.respondErr(c, err)
		return nil, false
	}
	return s, true
}

func (h *handlers) moveInput(c *gin.Context) (*movemode.Session, MoveRequest, bool) {
	var req MoveRequest

	s, ok := h.session(c)
	if !ok {
		return nil, req, false
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return nil, req, false
	}

	return s, req, true
}

// respondMove maps a ledger outcome: locked is 423 so clients can give a
// soft hint instead of an error dialog, conflict is 409.
func (h *handlers) respondMove(c *gin.Context, result *movemode.Result, s *movemode.Session) {
	if result.Outcome == domain.OutcomeLocked {
		respondLocked(c)
		return
	}

	resp := MoveResponse{
		Outcome:      result.Outcome,
		FurnitureIDs: result.FurnitureIDs,
		Pool:         []movemode.PoolEntry{},
	}
	if s != nil {
		resp.Pool = s.Pool()
	}

	status := http.StatusOK
	if result.Outcome == domain.OutcomeConflict {
		status = http.StatusConflict
		resp.Conflicts = conflict.GroupByDate(result.Conflicts)
	}

	c.JSON(status, resp)
}

func sessionResponse(s *movemode.Session) MoveSessionResponse {
	return MoveSessionResponse{
		SessionID: s.ID(),
		Date:      domain.DateKey(s.Date()),
		Pool:      s.Pool(),
		CanUndo:   s.CanUndo(),
	}
}
