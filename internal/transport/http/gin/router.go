package httpgin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/beachclub/internal/domain"
	redisrepo "github.com/kirinyoku/beachclub/internal/repository/redis"
	"github.com/kirinyoku/beachclub/internal/service"
	"github.com/kirinyoku/beachclub/internal/service/admin"
	"github.com/kirinyoku/beachclub/internal/service/availability"
	"github.com/kirinyoku/beachclub/internal/service/conflict"
	"github.com/kirinyoku/beachclub/internal/service/movemode"
	"github.com/kirinyoku/beachclub/internal/service/query"
	"github.com/kirinyoku/beachclub/internal/service/reservation"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	h := &handlers{svcs: svcs, idem: idem, logger: logger}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/furniture", h.listFurniture)
	r.GET("/states", h.listStates)
	r.POST("/availability", h.checkAvailability)
	r.GET("/floorplan/:date", h.floorPlan)
	r.GET("/floorplan/:date/free", h.freeFurniture)

	res := r.Group("/reservations")
	{
		res.POST("", h.createReservation)
		res.GET("/:id", h.getReservation)
		res.GET("/:id/family", h.getFamily)
		res.PATCH("/:id", h.updateReservation)
		res.POST("/:id/cancel", h.cancelReservation)
		res.POST("/:id/state", h.changeState)
		res.PUT("/:id/lock", h.toggleLock)
		res.POST("/:id/reassign", h.reassign)
	}

	move := r.Group("/move/sessions")
	{
		move.POST("", h.openMoveSession)
		move.GET("/:sid", h.getMoveSession)
		move.DELETE("/:sid", h.closeMoveSession)
		move.POST("/:sid/unassign", h.moveUnassign)
		move.POST("/:sid/assign", h.moveAssign)
		move.POST("/:sid/restore", h.moveRestore)
		move.POST("/:sid/undo", h.moveUndo)
	}

	// TODO: put /admin behind the staff auth middleware once the identity provider is wired.
	adm := r.Group("/admin")
	{
		adm.GET("/blocks", h.listBlocks)
		adm.POST("/blocks", h.createBlock)
		adm.DELETE("/blocks/:id", h.deleteBlock)
	}

	return r
}

type handlers struct {
	svcs   *service.Services
	idem   *redisrepo.IdempotencyStore
	logger *slog.Logger
}

// @Summary  List furniture
// @Param    active  query  bool  false  "only active items"
// @Success  200  {array}  domain.FurnitureItem
// @Router   /furniture [get]
func (h *handlers) listFurniture(c *gin.Context) {
	activeOnly := c.Query("active") != "false"

	items, err := h.svcs.Query.ListFurniture(c.Request.Context(), activeOnly)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	writeJSONWithCache(c, http.StatusOK, items, "public, max-age=60", true)
}

// @Summary  List reservation states
// @Success  200  {array}  domain.ReservationState
// @Router   /states [get]
func (h *handlers) listStates(c *gin.Context) {
	states, err := h.svcs.Query.States(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, states)
}

// @Summary  Check availability
// @Param    req body  CheckAvailabilityRequest true "payload"
// @Success  200 {object} CheckAvailabilityResponse
// @Failure  400 {object} ErrorResponse
// @Router   /availability [post]
func (h *handlers) checkAvailability(c *gin.Context) {
	var req CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	dates, err := parseDates(req.Dates)
	if err != nil {
		badRequest(c, "invalid dates (YYYY-MM-DD)")
		return
	}

	conflicts, err := h.svcs.Availability.Check(c.Request.Context(), availability.Query{
		FurnitureIDs:         req.FurnitureIDs,
		Dates:                dates,
		ExcludeReservationID: req.ExcludeReservationID,
	})
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckAvailabilityResponse{
		Available: conflicts.Empty(),
		Conflicts: conflict.GroupByDate(conflicts),
	})
}

// @Summary  Floor plan of a date
// @Param    date  path  string  true  "YYYY-MM-DD"
// @Success  200  {object}  domain.FloorPlan
// @Router   /floorplan/{date} [get]
func (h *handlers) floorPlan(c *gin.Context) {
	date, ok := parseDateParam(c, "date")
	if !ok {
		return
	}

	plan, err := h.svcs.Query.FloorPlan(c.Request.Context(), date)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	writeJSONWithCache(c, http.StatusOK, plan, "no-cache", true)
}

// @Summary  Free furniture of a date
// @Param    date  path  string  true  "YYYY-MM-DD"
// @Success  200  {array}  domain.FurnitureItem
// @Router   /floorplan/{date}/free [get]
func (h *handlers) freeFurniture(c *gin.Context) {
	date, ok := parseDateParam(c, "date")
	if !ok {
		return
	}

	items, err := h.svcs.Query.FreeFurniture(c.Request.Context(), date)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	writeJSONWithCache(c, http.StatusOK, items, "no-cache", true)
}

// @Summary  Create reservation (idempotent)
// @Param    req body  CreateReservationRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateReservationResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} OutcomeResponse "furniture taken / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /reservations [post]
func (h *handlers) createReservation(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	dates, err := parseDates(req.Dates)
	if err != nil {
		badRequest(c, "invalid dates (YYYY-MM-DD)")
		return
	}

	resolution := conflict.Resolution{}
	for k, ids := range req.FurnitureByDate {
		d, err := domain.ParseDate(k)
		if err != nil {
			badRequest(c, "invalid furniture_by_date key "+k)
			return
		}
		resolution.Set(d, ids)
	}

	base := make(map[string][]int64, len(dates))
	for _, d := range dates {
		base[domain.DateKey(d)] = req.FurnitureIDs
	}

	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if h.idem == nil {
		idemKey = ""
	}

	if idemKey != "" {
		if h.replayIdempotent(c, idemKey) {
			return
		}

		claimed, err := h.idem.Claim(c.Request.Context(), idemKey)
		if err != nil {
			h.respondErr(c, err)
			return
		}
		if !claimed {
			if h.replayIdempotent(c, idemKey) {
				return
			}
			c.Header("Retry-After", "1")
			c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
			return
		}
	}

	result, err := h.svcs.Reservation.Create(c.Request.Context(), reservation.CreateRequest{
		CustomerID:      req.CustomerID,
		Dates:           dates,
		FurnitureIDs:    req.FurnitureIDs,
		FurnitureByDate: conflict.Merge(base, resolution),
		NumPeople:       req.NumPeople,
		Paid:            req.Paid,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		ClientKey:       "ip:" + c.ClientIP(),
	})
	if err != nil || result.Outcome != domain.OutcomeOK {
		if idemKey != "" {
			_ = h.idem.Abandon(c.Request.Context(), idemKey)
		}
	}
	if err != nil {
		h.respondErr(c, err)
		return
	}

	if result.Outcome == domain.OutcomeConflict {
		h.respondConflict(c, result.Conflicts, resolution)
		return
	}

	resp := CreateReservationResponse{
		Reservation: *result.Reservation,
		Children:    result.Children,
	}
	if resp.Children == nil {
		resp.Children = []domain.Reservation{}
	}

	if idemKey != "" {
		if err := h.idem.Complete(c.Request.Context(), idemKey, http.StatusCreated, resp); err != nil {
			h.logger.Warn("store idempotent response", "key", idemKey, "error", err)
		}
		c.Header("Idempotency-Key", idemKey)
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *handlers) replayIdempotent(c *gin.Context, idemKey string) bool {
	stored, err := h.idem.Lookup(c.Request.Context(), idemKey)
	if err != nil || stored == nil {
		return false
	}

	c.Header("Idempotency-Key", idemKey)
	c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)

	return true
}

// @Summary  Get reservation with assignments
// @Param    id  path  int  true  "Reservation ID"
// @Success  200 {object} domain.ReservationWithAssignments
// @Failure  404 {object} ErrorResponse
// @Router   /reservations/{id} [get]
func (h *handlers) getReservation(c *gin.Context) {
	id, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	res, err := h.svcs.Query.GetReservation(c.Request.Context(), id)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// @Summary  Get multi-day family
// @Param    id  path  int  true  "any member's ID"
// @Success  200 {object} query.Family
// @Failure  404 {object} ErrorResponse
// @Router   /reservations/{id}/family [get]
func (h *handlers) getFamily(c *gin.Context) {
	id, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	fam, err := h.svcs.Query.GetFamily(c.Request.Context(), id)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, fam)
}

// @Summary  Update reservation
// @Param    id  path  int  true  "Reservation ID"
// @Param    req body  UpdateReservationRequest true "payload"
// @Success  200 {object} domain.Reservation
// @Failure  409 {object} OutcomeResponse
// @Failure  423 {object} OutcomeResponse
// @Router   /reservations/{id} [patch]
func (h *handlers) updateReservation(c *gin.Context) {
	id, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	var req UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	upd := reservation.UpdateRequest{
		FurnitureIDs:  req.FurnitureIDs,
		NumPeople:     req.NumPeople,
		Paid:          req.Paid,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}
	if req.Date != nil {
		d, err := domain.ParseDate(*req.Date)
		if err != nil {
			badRequest(c, "invalid date (YYYY-MM-DD)")
			return
		}
		upd.Date = &d
	}

	result, err := h.svcs.Reservation.Update(c.Request.Context(), id, upd)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	switch result.Outcome {
	case domain.OutcomeConflict:
		h.respondConflict(c, result.Conflicts, nil)
	case domain.OutcomeLocked:
		respondLocked(c)
	default:
		c.JSON(http.StatusOK, result.Reservation)
	}
}

// @Summary  Cancel reservation or family
// @Param    id  path  int  true  "Reservation ID"
// @Param    req body  CancelReservationRequest false "payload"
// @Success  200 {object} reservation.CancelResult
// @Router   /reservations/{id}/cancel [post]
func (h *handlers) cancelReservation(c *gin.Context) {
	id, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	var req CancelReservationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	result, err := h.svcs.Reservation.Cancel(c.Request.Context(), id, reservation.Scope(req.Scope), req.State)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary  Change reservation state
// @Param    id  path  int  true  "Reservation ID"
// @Param    req body  ChangeStateRequest true "payload"
// @Success  200 {object} domain.Reservation
// @Router   /reservations/{id}/state [post]
func (h *handlers) changeState(c *gin.Context) {
	id, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	var req ChangeStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.svcs.Reservation.ChangeState(c.Request.Context(), id, req.State)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// @Summary  Lock or unlock reservation furniture
// @Param    id  path  int  true  "Reservation ID"
// @Param    req body  ToggleLockRequest true "payload"
// @Success  200 {object} domain.Reservation
// @Router   /reservations/{id}/lock [put]
func (h *handlers) toggleLock(c *gin.Context) {
	id, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	var req ToggleLockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.svcs.Admin.ToggleFurnitureLock(c.Request.Context(), id, *req.Locked)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// @Summary  Reassign furniture for one date
// @Param    id  path  int  true  "Reservation ID"
// @Param    req body  ReassignRequest true "payload"
// @Success  200 {object} MoveResponse
// @Failure  409 {object} OutcomeResponse
// @Failure  423 {object} OutcomeResponse
// @Router   /reservations/{id}/reassign [post]
func (h *handlers) reassign(c *gin.Context) {
	id, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	date, err := domain.ParseDate(req.Date)
	if err != nil {
		badRequest(c, "invalid date (YYYY-MM-DD)")
		return
	}

	result, err := h.svcs.Move.ReassignFurniture(c.Request.Context(), id, date, req.From, req.To)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	h.respondMove(c, result, nil)
}

// @Summary  List furniture blocks
// @Param    furniture_id  query  int     false  "Furniture ID"
// @Param    from          query  string  true   "YYYY-MM-DD"
// @Param    to            query  string  true   "YYYY-MM-DD"
// @Success  200 {array} domain.FurnitureBlock
// @Router   /admin/blocks [get]
func (h *handlers) listBlocks(c *gin.Context) {
	from, err := domain.ParseDate(c.Query("from"))
	if err != nil {
		badRequest(c, "invalid from (YYYY-MM-DD)")
		return
	}

	to, err := domain.ParseDate(c.Query("to"))
	if err != nil {
		badRequest(c, "invalid to (YYYY-MM-DD)")
		return
	}

	var furnitureID *int64
	if s := c.Query("furniture_id"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			badRequest(c, "invalid furniture_id")
			return
		}
		furnitureID = &v
	}

	blocks, err := h.svcs.Query.ListBlocks(c.Request.Context(), furnitureID, from, to)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, blocks)
}

// @Summary  Create furniture block
// @Param    req body  CreateBlockRequest true "payload"
// @Success  201 {object} domain.FurnitureBlock
// @Failure  409 {object} OutcomeResponse "overlaps live reservations"
// @Router   /admin/blocks [post]
func (h *handlers) createBlock(c *gin.Context) {
	var req CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		badRequest(c, "invalid start_date (YYYY-MM-DD)")
		return
	}

	end, err := domain.ParseDate(req.EndDate)
	if err != nil {
		badRequest(c, "invalid end_date (YYYY-MM-DD)")
		return
	}

	result, err := h.svcs.Admin.CreateBlock(c.Request.Context(), admin.BlockRequest{
		FurnitureID: req.FurnitureID,
		StartDate:   start,
		EndDate:     end,
		Type:        domain.BlockType(req.BlockType),
		Reason:      req.Reason,
	})
	if err != nil {
		h.respondErr(c, err)
		return
	}

	if result.Outcome == domain.OutcomeConflict {
		c.JSON(http.StatusConflict, OutcomeResponse{
			Outcome:   domain.OutcomeConflict,
			Conflicts: conflict.GroupByDate(result.Conflicts),
		})
		return
	}

	c.JSON(http.StatusCreated, result.Block)
}

// @Summary  Delete furniture block
// @Param    id  path  int  true  "Block ID"
// @Success  200 {object} domain.FurnitureBlock
// @Failure  404 {object} ErrorResponse
// @Router   /admin/blocks/{id} [delete]
func (h *handlers) deleteBlock(c *gin.Context) {
	id, ok := parseInt64Param(c, "id")
	if !ok {
		return
	}

	b, err := h.svcs.Admin.DeleteBlock(c.Request.Context(), id)
	if err != nil {
		h.respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// --- Helpers ---

// respondConflict answers 409 with the conflicts grouped per date and the
// free furniture of each date as alternatives. Dates that resolution does not
// cover with conflict-free furniture are listed as pending.
func (h *handlers) respondConflict(c *gin.Context, conflicts domain.ConflictMap, resolution conflict.Resolution) {
	groups := conflict.GroupByDate(conflicts)

	pending := []string{}
	for _, d := range conflict.Pending(groups, resolution) {
		pending = append(pending, domain.DateKey(d))
	}

	if err := conflict.AttachAlternatives(groups, func(date time.Time) ([]domain.FurnitureItem, error) {
		return h.svcs.Query.FreeFurniture(c.Request.Context(), date)
	}); err != nil {
		h.logger.Warn("load conflict alternatives", "error", err)
	}

	c.JSON(http.StatusConflict, OutcomeResponse{
		Outcome:      domain.OutcomeConflict,
		Conflicts:    groups,
		PendingDates: pending,
	})
}

func respondLocked(c *gin.Context) {
	c.JSON(http.StatusLocked, OutcomeResponse{Outcome: domain.OutcomeLocked})
}

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseDateParam(c *gin.Context, name string) (time.Time, bool) {
	d, err := domain.ParseDate(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name+" (YYYY-MM-DD)")
		return time.Time{}, false
	}
	return d, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func (h *handlers) respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var rl reservation.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())+1))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: rl.Error()})
		return
	}

	var nf reservation.NoFurnitureError
	if errors.As(err, &nf) {
		badRequest(c, nf.Error())
		return
	}

	var fu reservation.FurnitureUnavailableError
	if errors.As(err, &fu) {
		badRequest(c, fu.Error())
		return
	}

	switch {
	// validation
	case errors.Is(err, availability.ErrNoFurniture),
		errors.Is(err, availability.ErrNoDates),
		errors.Is(err, reservation.ErrNoDates),
		errors.Is(err, reservation.ErrInvalidPeople),
		errors.Is(err, reservation.ErrInvalidScope),
		errors.Is(err, reservation.ErrUnknownState),
		errors.Is(err, reservation.ErrNotReleasingState),
		errors.Is(err, movemode.ErrNoFurniture),
		errors.Is(err, movemode.ErrFurnitureUnavailable),
		errors.Is(err, admin.ErrInvalidBlockType),
		errors.Is(err, admin.ErrInvalidRange),
		errors.Is(err, query.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidDateRange):
		badRequest(c, rootMessage(err))
		return
	// not found
	case errors.Is(err, reservation.ErrCustomerNotFound),
		errors.Is(err, reservation.ErrReservationNotFound),
		errors.Is(err, query.ErrReservationNotFound),
		errors.Is(err, movemode.ErrReservationNotFound),
		errors.Is(err, movemode.ErrSessionNotFound),
		errors.Is(err, admin.ErrFurnitureNotFound),
		errors.Is(err, admin.ErrBlockNotFound),
		errors.Is(err, admin.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: rootMessage(err)})
		return
	// state
	case errors.Is(err, reservation.ErrTerminalState),
		errors.Is(err, reservation.ErrFamilyDateChange),
		errors.Is(err, movemode.ErrTerminalState),
		errors.Is(err, movemode.ErrSessionInactive),
		errors.Is(err, movemode.ErrNotInPool),
		errors.Is(err, movemode.ErrNothingToUndo):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: rootMessage(err)})
		return
	}

	reqID, _ := c.Get("request_id")
	h.logger.Error("request failed", "error", err, "request_id", reqID)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// rootMessage strips the op prefixes the services wrap errors with.
func rootMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ":"); i >= 0 {
		return strings.TrimSpace(msg[i+1:])
	}
	return msg
}
