package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/taskflow/pkg/lifecycle"
	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/schedule"
	"github.com/harrisonrobin/taskflow/pkg/service"
	"github.com/harrisonrobin/taskflow/pkg/store"
)

type taskResponse struct {
	ID                 int64      `json:"id"`
	ExternalScheduleID string     `json:"externalScheduleId"`
	CreatorID          string     `json:"creatorId"`
	ExecutorID         string     `json:"executorId"`
	OwnerID            string     `json:"ownerId"`
	VerifierID         string     `json:"verifierId,omitempty"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	StartTime          *time.Time `json:"startTime"`
	EndTime            *time.Time `json:"endTime"`
	CompletionTime     *time.Time `json:"completionTime"`
	VerifyTime         *time.Time `json:"verifyTime"`
	Status             string     `json:"status"`
	Phase              string     `json:"phase"`
	RejectReason       string     `json:"rejectReason,omitempty"`
	RedoCount          int        `json:"redoCount"`
	LastReminderKind   string     `json:"lastReminderKind"`
	LastReminderAt     *time.Time `json:"lastReminderAt"`
	OwnerCalendarID    string     `json:"ownerCalendarId"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func newTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:                 t.ID,
		ExternalScheduleID: t.ExternalScheduleID,
		CreatorID:          t.CreatorID,
		ExecutorID:         t.ExecutorID,
		OwnerID:            t.OwnerID,
		VerifierID:         t.VerifierID,
		Title:              t.Title,
		Description:        t.Description,
		StartTime:          t.StartTime,
		EndTime:            t.EndTime,
		CompletionTime:     t.CompletionTime,
		VerifyTime:         t.VerifyTime,
		Status:             string(t.Status),
		Phase:              string(lifecycle.PhaseOf(t)),
		RejectReason:       t.RejectReason,
		RedoCount:          t.RedoCount,
		LastReminderKind:   string(t.LastReminderKind),
		LastReminderAt:     t.LastReminderAt,
		OwnerCalendarID:    t.OwnerCalendarID,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func (h *Handler) HandleListTasks(c *gin.Context) {
	filter := store.Filter{
		Status:     model.Status(c.Query("status")),
		ExecutorID: c.Query("executor_id"),
	}
	tasks, err := h.tasks.ListTasks(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, newTaskResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": resp})
}

func (h *Handler) HandleGetTask(c *gin.Context) {
	task, err := h.tasks.GetTask(c.Request.Context(), c.Param("scheduleId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *Handler) HandleGetKpi(c *gin.Context) {
	kpi, err := h.tasks.GetKpi(c.Request.Context(), c.Query("executor_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, kpi)
}

func (h *Handler) HandleCreateTask(c *gin.Context) {
	var req service.ManualTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug().Err(err).Msg("failed to bind json")
		if errors.Is(err, schedule.ErrInvalidTime) {
			abort(c, newAPIError(http.StatusBadRequest, "INVALID_TIME", err.Error()))
			return
		}
		abort(c, newBadRequestError("invalid request body"))
		return
	}
	task, err := h.tasks.CreateManualTask(c.Request.Context(), req, userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (h *Handler) HandleCompleteTask(c *gin.Context) {
	task, err := h.tasks.SubmitForVerification(c.Request.Context(), c.Param("scheduleId"), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

type verifyTaskRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Reason  string `json:"reason"`
}

func (h *Handler) HandleVerifyTask(c *gin.Context) {
	var req verifyTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug().Err(err).Msg("failed to bind json")
		abort(c, newBadRequestError("approve is required"))
		return
	}
	task, err := h.tasks.VerifyTask(c.Request.Context(), c.Param("scheduleId"), userID(c), *req.Approve, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

// HandleInteraction is the card action webhook.
func (h *Handler) HandleInteraction(c *gin.Context) {
	var req model.Interaction
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug().Err(err).Msg("failed to bind json")
		abort(c, newBadRequestError("invalid request body"))
		return
	}
	task, err := h.tasks.HandleInteraction(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}
