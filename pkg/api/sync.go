package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/schedule"
)

// HandlePushSchedule reconciles a schedule pushed by the calendar
// platform. The body is either the raw schedule or an envelope
// {"user_id", "calendar_id", "schedule": {...}}.
func (h *Handler) HandlePushSchedule(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Debug().Err(err).Msg("failed to bind json")
		abort(c, newBadRequestError("invalid request body"))
		return
	}

	raw := body
	if inner, ok := body["schedule"].(map[string]any); ok {
		raw = inner
	}
	sched := schedule.FromPayload(raw)
	pushUserID, _ := body["user_id"].(string)
	calendarID, _ := body["calendar_id"].(string)
	if calendarID == "" {
		calendarID = sched.CalendarID
	}

	ctx := c.Request.Context()
	if calendarID == "" {
		resolved, err := h.tasks.ResolveCalendarID(ctx, pushUserID)
		if err != nil {
			h.fail(c, err)
			return
		}
		calendarID = resolved
	}

	target := model.SyncTarget{UserID: pushUserID, CalendarID: calendarID, Source: model.SourcePush}
	res, err := h.tasks.SyncScheduleTask(ctx, sched, target)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) HandleSyncTargets(c *gin.Context) {
	targets, err := h.tasks.SyncTargets(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if targets == nil {
		targets = []model.SyncTarget{}
	}
	c.JSON(http.StatusOK, gin.H{"targets": targets})
}

// HandleRunSync runs a sync now and returns its summary. The run outlives
// a disconnecting client.
func (h *Handler) HandleRunSync(c *gin.Context) {
	sum := h.sync.Trigger(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) HandleLastSync(c *gin.Context) {
	sum, ok := h.sync.Last()
	if !ok {
		abort(c, newAPIError(http.StatusNotFound, "NO_SYNC_RUN", "no sync has completed yet"))
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) HandleListUserCalendars(c *gin.Context) {
	rows, err := h.tasks.ListUserCalendars(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if rows == nil {
		rows = []model.UserCalendar{}
	}
	c.JSON(http.StatusOK, gin.H{"calendars": rows})
}

type setUserCalendarRequest struct {
	CalendarID string `json:"calendar_id" binding:"required"`
}

func (h *Handler) HandleSetUserCalendar(c *gin.Context) {
	var req setUserCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, newBadRequestError("calendar_id is required"))
		return
	}
	row, err := h.tasks.SetUserCalendar(c.Request.Context(), c.Param("userId"), req.CalendarID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
