// Package api exposes the task service over HTTP: the inbound action
// webhook, schedule push, direct transitions and the read surface.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harrisonrobin/taskflow/pkg/model"
	"github.com/harrisonrobin/taskflow/pkg/service"
	"github.com/harrisonrobin/taskflow/pkg/store"
	"github.com/harrisonrobin/taskflow/pkg/syncer"
)

// UserIDHeader carries the acting user. Token verification happens in
// front of this service.
const UserIDHeader = "X-User-ID"

const userIDCtxKey = "userID"

type Tasks interface {
	ListTasks(ctx context.Context, filter store.Filter) ([]*model.Task, error)
	GetTask(ctx context.Context, scheduleID string) (*model.Task, error)
	GetKpi(ctx context.Context, executorID string) (model.KpiSummary, error)
	CreateManualTask(ctx context.Context, in service.ManualTaskInput, creatorID string) (*model.Task, error)
	SubmitForVerification(ctx context.Context, scheduleID, executorID string) (*model.Task, error)
	VerifyTask(ctx context.Context, scheduleID, managerID string, approve bool, reason string) (*model.Task, error)
	HandleInteraction(ctx context.Context, in model.Interaction) (*model.Task, error)
	SyncScheduleTask(ctx context.Context, sched model.ExternalSchedule, target model.SyncTarget) (service.SyncResult, error)
	SyncTargets(ctx context.Context) ([]model.SyncTarget, error)
	ResolveCalendarID(ctx context.Context, userID string) (string, error)
	ListUserCalendars(ctx context.Context) ([]model.UserCalendar, error)
	SetUserCalendar(ctx context.Context, userID, calendarID string) (model.UserCalendar, error)
}

type SyncTrigger interface {
	Trigger(ctx context.Context) syncer.Summary
	Last() (syncer.Summary, bool)
}

type Handler struct {
	logger zerolog.Logger
	tasks  Tasks
	sync   SyncTrigger
}

func New(logger zerolog.Logger, tasks Tasks, sync SyncTrigger) *Handler {
	return &Handler{
		logger: logger.With().Str("component", "api").Logger(),
		tasks:  tasks,
		sync:   sync,
	}
}

// Register mounts every route on router.
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := router.Group("/api/v1")
	v1.POST("/interactions", h.HandleInteraction)
	v1.POST("/schedules/push", h.HandlePushSchedule)
	v1.GET("/kpi", h.HandleGetKpi)

	tasks := v1.Group("/tasks")
	tasks.GET("", h.HandleListTasks)
	tasks.GET("/:scheduleId", h.HandleGetTask)
	tasks.POST("", h.HandleUserMiddleware, h.HandleCreateTask)
	tasks.POST("/:scheduleId/complete", h.HandleUserMiddleware, h.HandleCompleteTask)
	tasks.POST("/:scheduleId/verify", h.HandleUserMiddleware, h.HandleVerifyTask)

	users := v1.Group("/users")
	users.GET("/calendars", h.HandleListUserCalendars)
	users.PUT("/:userId/calendar", h.HandleSetUserCalendar)

	sync := v1.Group("/sync")
	sync.GET("/targets", h.HandleSyncTargets)
	sync.POST("/run", h.HandleRunSync)
	sync.GET("/last", h.HandleLastSync)
}

// HandleUserMiddleware requires the acting user header.
func (h *Handler) HandleUserMiddleware(c *gin.Context) {
	userID := c.GetHeader(UserIDHeader)
	if userID == "" {
		abort(c, newAPIError(http.StatusUnauthorized, "MISSING_USER", "missing "+UserIDHeader+" header"))
		return
	}
	c.Set(userIDCtxKey, userID)
	c.Next()
}

func userID(c *gin.Context) string {
	return c.GetString(userIDCtxKey)
}
