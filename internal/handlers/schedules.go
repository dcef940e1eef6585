package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"preheat_scheduler/internal/feed"
	"preheat_scheduler/internal/metrics"
	"preheat_scheduler/internal/models"
	"preheat_scheduler/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errListSchedules = "failed to load schedules"
	errMissingHome   = "room.home_id is required"

	sourceRequest = "request"
	sourceFeed    = "feed"
)

// ReservationRequest is one booking in a generate payload. Dates are
// calendar days (YYYY-MM-DD).
type ReservationRequest struct {
	ID           string `json:"id" binding:"required" example:"HMX2Q9"`
	PropertyName string `json:"property_name" example:"Sea View Studio"`
	CheckInDate  string `json:"check_in_date" binding:"required" example:"2025-06-13"`
	CheckOutDate string `json:"check_out_date" binding:"required" example:"2025-06-16"`
}

// GenerateRequest asks for entries for one room. Without reservations the
// room's channel-manager feed is read instead.
type GenerateRequest struct {
	Room         service.RoomMapping  `json:"room"`
	Reservations []ReservationRequest `json:"reservations" binding:"omitempty,dive"`
}

// TestScheduleRequest builds one pair from explicit instants.
type TestScheduleRequest struct {
	Arrival        time.Time           `json:"arrival" binding:"required" example:"2025-06-13T15:00:00Z"`
	Departure      time.Time           `json:"departure" binding:"required" example:"2025-06-16T10:00:00Z"`
	PreheatMinutes int                 `json:"preheat_minutes" example:"60"`
	ArrivalTemp    float64             `json:"arrival_temp" binding:"required" example:"21"`
	PropertyName   string              `json:"property_name,omitempty" example:"Sea View Studio"`
	Room           service.RoomMapping `json:"room"`
}

func (r ReservationRequest) toModel() (models.Reservation, error) {
	in, err := time.Parse(layoutDate, strings.TrimSpace(r.CheckInDate))
	if err != nil {
		return models.Reservation{}, fmt.Errorf("reservation %s: invalid check_in_date %q", r.ID, r.CheckInDate)
	}
	out, err := time.Parse(layoutDate, strings.TrimSpace(r.CheckOutDate))
	if err != nil {
		return models.Reservation{}, fmt.Errorf("reservation %s: invalid check_out_date %q", r.ID, r.CheckOutDate)
	}
	return models.Reservation{ID: r.ID, PropertyName: r.PropertyName, CheckIn: in, CheckOut: out}, nil
}

// @Summary      List schedule entries
// @Description  Entries of the caller starting at or after 'from', earliest first.
// @Tags         schedules
// @Produce      json
// @Param        from  query     string  false  "Lower bound (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-06-01)
// @Success      200   {object}  map[string]interface{}  "count, entries"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/schedules [get]
// @Security     BearerAuth
func (h *Handler) listSchedules(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var from time.Time
	if qs := c.Query("from"); qs != "" {
		var err error
		if from, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	entries, err := h.services.Schedules.List(c.Request.Context(), uid, from)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListSchedules, "schedules_list_failed", err, "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

// @Summary      Schedule status
// @Description  Number of due pending entries and the next one to fire.
// @Tags         schedules
// @Produce      json
// @Success      200  {object}  service.ScheduleStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedules/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	st, err := h.services.Status.GetStatus(c.Request.Context(), uid)
	if err != nil {
		h.respondServiceError(c, "schedules_status_failed", err, "user_id", uid)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Generate entries from reservations
// @Description  Creates a heat/stop pair per reservation. Reservations whose preheat start has passed or whose room cannot be resolved are skipped silently. Without reservations the room's feed is used.
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        body  body      GenerateRequest  true  "Room and reservations"
// @Success      200   {object}  map[string]interface{}  "created_count, source"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/schedules/generate [post]
// @Security     BearerAuth
func (h *Handler) generateSchedules(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if req.Room.HomeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingHome})
		return
	}

	ctx := c.Request.Context()
	var (
		created int
		err     error
		source  = sourceRequest
	)
	if len(req.Reservations) == 0 {
		source = sourceFeed
		created, err = h.services.GenerateFromFeed(ctx, uid, req.Room)
	} else {
		reservations := make([]models.Reservation, 0, len(req.Reservations))
		for _, r := range req.Reservations {
			m, perr := r.toModel()
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
				return
			}
			reservations = append(reservations, m)
		}
		created, err = h.services.GenerateBulk(ctx, uid, reservations, req.Room)
	}
	if errors.Is(err, feed.ErrUnknownRoom) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.respondServiceError(c, "schedules_generate_failed", err, "user_id", uid, "source", source)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created_count": created, "source": source})
}

// @Summary      Create a test schedule
// @Description  Builds one heat/stop pair from explicit arrival and departure instants.
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        body  body      TestScheduleRequest  true  "Test stay"
// @Success      201   {object}  map[string]interface{}  "count, entries"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/schedules/test [post]
// @Security     BearerAuth
func (h *Handler) generateTestSchedule(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req TestScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	entries, err := h.services.GenerateManualTest(c.Request.Context(), uid, service.ManualTest{
		Arrival:        req.Arrival,
		Departure:      req.Departure,
		PreheatMinutes: req.PreheatMinutes,
		ArrivalTemp:    req.ArrivalTemp,
		PropertyName:   req.PropertyName,
		Room:           req.Room,
	})
	if err != nil {
		h.respondServiceError(c, "schedules_test_failed", err, "user_id", uid)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"count": len(entries), "entries": entries})
}

// @Summary      Edit a schedule entry
// @Description  Partial update of one entry. The sibling of a generated pair is not touched.
// @Tags         schedules
// @Accept       json
// @Produce      json
// @Param        id    path      string               true  "Entry id"
// @Param        body  body      models.SchedulePatch true  "Fields to change"
// @Success      200   {object}  models.ScheduleEntry
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/schedules/{id} [patch]
// @Security     BearerAuth
func (h *Handler) updateSchedule(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var patch models.SchedulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := c.Param("id")
	e, err := h.services.Schedules.Update(c.Request.Context(), uid, id, patch)
	if err != nil {
		h.respondServiceError(c, "schedule_update_failed", err, "user_id", uid, "entry_id", id)
		return
	}
	c.JSON(http.StatusOK, e)
}

// @Summary      Delete a schedule entry
// @Tags         schedules
// @Produce      json
// @Param        id   path      string  true  "Entry id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedules/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteSchedule(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.services.Schedules.Delete(c.Request.Context(), uid, id); err != nil {
		h.respondServiceError(c, "schedule_delete_failed", err, "user_id", uid, "entry_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDeleted, "id": id})
}

// @Summary      Apply an entry now
// @Description  Sends the entry's command immediately regardless of its start time or status. A device failure is reported in the returned entry's status.
// @Tags         schedules
// @Produce      json
// @Param        id   path      string  true  "Entry id"
// @Success      200  {object}  models.ScheduleEntry
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedules/{id}/apply [post]
// @Security     BearerAuth
func (h *Handler) applySchedule(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	e, err := h.services.ApplyNow(c.Request.Context(), uid, id)
	if err != nil {
		h.respondServiceError(c, "schedule_apply_failed", err, "user_id", uid, "entry_id", id)
		return
	}
	c.JSON(http.StatusOK, e)
}

// @Summary      Run due entries
// @Description  Applies the caller's pending entries whose start time has passed.
// @Tags         schedules
// @Produce      json
// @Success      200  {object}  service.RunResult
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedules/run-due [post]
// @Security     BearerAuth
func (h *Handler) runDue(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	h.runPass(c, service.RunScope{UserID: uid, Trigger: metrics.TriggerOperator})
}

// @Summary      Run due entries for every user
// @Description  Hook for external schedulers. Requires the X-Trigger-Token header.
// @Tags         system
// @Produce      json
// @Param        X-Trigger-Token  header    string  true  "Shared trigger token"
// @Success      200              {object}  service.RunResult
// @Failure      401              {object}  map[string]string
// @Failure      404              {object}  map[string]string
// @Failure      500              {object}  map[string]string
// @Router       /internal/run-due [post]
func (h *Handler) runDueExternal(c *gin.Context) {
	h.runPass(c, service.RunScope{Trigger: metrics.TriggerExternal})
}

func (h *Handler) runPass(c *gin.Context, scope service.RunScope) {
	res, err := h.services.RunOnce(c.Request.Context(), scope)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("due_run_failed", "err", err, "trigger", scope.Trigger, "user_id", scope.UserID)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternal, "result": res})
		return
	}
	c.JSON(http.StatusOK, res)
}
