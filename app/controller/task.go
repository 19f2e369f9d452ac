package controller

import (
	"context"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-taskguard/app/dto"
	"github.com/vibast-solutions/ms-go-taskguard/app/queue"
	"github.com/vibast-solutions/ms-go-taskguard/app/service"
)

type TaskPublisher interface {
	Publish(ctx context.Context, msg queue.TaskMessage) error
}

type TaskController struct {
	tasks    *service.TaskService
	producer TaskPublisher
	log      logrus.FieldLogger
}

// NewTaskController constructs the HTTP task controller.
func NewTaskController(tasks *service.TaskService, producer TaskPublisher, logger logrus.FieldLogger) *TaskController {
	return &TaskController{tasks: tasks, producer: producer, log: logger}
}

// List returns the registered task names.
func (c *TaskController) List(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string][]string{"tasks": c.tasks.Names()})
}

// Enqueue validates a task invocation and publishes it to the worker stream.
func (c *TaskController) Enqueue(ctx echo.Context) error {
	req, err := dto.EnqueueFromEcho(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if !slices.Contains(c.tasks.Names(), req.Task) {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "unknown task"})
	}

	if err := c.producer.Publish(ctx.Request().Context(), queue.TaskMessage{
		TaskID: req.TaskID,
		Name:   req.Task,
		Args:   req.Args,
		Kwargs: req.Kwargs,
	}); err != nil {
		c.log.WithError(err).WithField("task", req.Task).Error("Failed to queue task")
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to queue task"})
	}

	return ctx.JSON(http.StatusAccepted, map[string]string{"message": "task accepted", "task_id": req.TaskID})
}
