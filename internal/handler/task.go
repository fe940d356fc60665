package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"socialmonitor/internal/repository"
	"socialmonitor/internal/scheduler"
)

type TaskHandler struct {
	Store  repository.Store
	Sched  *scheduler.Scheduler
	Logger *zap.Logger
}

func (h *TaskHandler) Register(r *gin.Engine) {
	tasks := r.Group("/api/tasks")
	tasks.GET("", h.listTasks)
	tasks.PUT("/:name/schedule", h.updateSchedule)
	tasks.POST("/:name/run", h.runNow)

	sched := r.Group("/api/scheduler")
	sched.POST("/start", h.startScheduler)
	sched.POST("/stop", h.stopScheduler)
	sched.GET("/status", h.schedulerStatus)

	r.GET("/api/logs", h.listLogs)
}

// @Summary List schedule tasks
// @Tags tasks
// @Success 200 {object} apiResponse
// @Router /api/tasks [get]
func (h *TaskHandler) listTasks(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	tasks, err := h.Store.ListTasks(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, tasks, countMeta(len(tasks)))
}

type updateScheduleRequest struct {
	ScheduleTime string `json:"schedule_time" binding:"required"`
	Enabled      *bool  `json:"enabled"`
}

// @Summary Update a task's daily schedule
// @Tags tasks
// @Param name path string true "task name"
// @Param body body updateScheduleRequest true "new schedule"
// @Success 200 {object} apiResponse
// @Router /api/tasks/{name}/schedule [put]
func (h *TaskHandler) updateSchedule(c *gin.Context) {
	if h.Sched == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	err := h.Sched.UpdateTaskSchedule(c.Request.Context(), name, req.ScheduleTime, req.Enabled)
	if err != nil {
		if errors.Is(err, scheduler.ErrTaskNotFound) {
			Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"task_name": name, "schedule_time": req.ScheduleTime}, nil)
}

// @Summary Run a task immediately
// @Tags tasks
// @Param name path string true "task name"
// @Success 200 {object} apiResponse
// @Router /api/tasks/{name}/run [post]
func (h *TaskHandler) runNow(c *gin.Context) {
	if h.Sched == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if err := h.Sched.RunNow(c.Request.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrTaskNotFound) {
			Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Warn("run now failed", zap.String("task", name), zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"task_name": name}, nil)
}

// @Summary Start the scheduler loop
// @Tags scheduler
// @Success 200 {object} apiResponse
// @Router /api/scheduler/start [post]
func (h *TaskHandler) startScheduler(c *gin.Context) {
	if h.Sched == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	if err := h.Sched.Start(c.Request.Context()); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"running": true}, nil)
}

// @Summary Stop the scheduler loop
// @Tags scheduler
// @Success 200 {object} apiResponse
// @Router /api/scheduler/stop [post]
func (h *TaskHandler) stopScheduler(c *gin.Context) {
	if h.Sched == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	h.Sched.Stop()
	Ok(c, gin.H{"running": false}, nil)
}

// @Summary Scheduler status snapshot
// @Tags scheduler
// @Success 200 {object} apiResponse
// @Router /api/scheduler/status [get]
func (h *TaskHandler) schedulerStatus(c *gin.Context) {
	if h.Sched == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	status, err := h.Sched.Status(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, status, nil)
}

// @Summary List task run logs
// @Tags tasks
// @Param task_id query int false "task id"
// @Param limit query int false "max rows (default 50)"
// @Success 200 {object} apiResponse
// @Router /api/logs [get]
func (h *TaskHandler) listLogs(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "store unavailable", nil)
		return
	}
	taskID := uintQueryPtr(c, "task_id")
	limit := intQuery(c, "limit", 50)
	logs, err := h.Store.ListRunLogs(c.Request.Context(), taskID, limit)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, logs, countMeta(len(logs)))
}
