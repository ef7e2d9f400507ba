package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	services "github.com/phamduchanh/docvec-be/service"
	"github.com/phamduchanh/docvec-be/types"
)

// TaskHandler exposes the lifecycle of queued ingestion tasks.
type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) ListTasksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   h.taskService.List(),
	})
}

func (h *TaskHandler) GetTaskStatusHandler(c *gin.Context) {
	task, err := h.taskService.Get(c.Param("id"))
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data: types.TaskStatusResponse{
			TaskID:         task.ID,
			Status:         task.Status,
			TotalPages:     task.TotalPages,
			ProcessedPages: task.ProcessedPages,
			Error:          task.Error,
		},
	})
}

// GetTaskResultHandler answers 202 while a task is still queued or running
// so pollers can tell "pending" apart from "unknown task".
func (h *TaskHandler) GetTaskResultHandler(c *gin.Context) {
	task, err := h.taskService.Get(c.Param("id"))
	if err != nil {
		writeTaskError(c, err)
		return
	}
	if !task.Status.Terminal() {
		c.JSON(http.StatusAccepted, types.DataResponse{
			Status:  true,
			Message: "Task is still " + string(task.Status),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: task.Status == types.TaskStatusSucceeded,
		Data:   task,
	})
}

func (h *TaskHandler) CancelTaskHandler(c *gin.Context) {
	if err := h.taskService.Cancel(c.Param("id")); err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status:  true,
		Message: "Cancellation requested",
	})
}

func (h *TaskHandler) ClearTaskHandler(c *gin.Context) {
	if err := h.taskService.Clear(c.Param("id")); err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status:  true,
		Message: "Task removed",
	})
}

func writeTaskError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	c.JSON(status, types.DataResponse{
		Status:  false,
		Message: err.Error(),
	})
}
