package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-taskguard/app/dto"
	"github.com/vibast-solutions/ms-go-taskguard/app/service"
)

type LockController struct {
	tasks *service.TaskService
	log   logrus.FieldLogger
}

// NewLockController constructs the HTTP lock admin controller.
func NewLockController(tasks *service.TaskService, logger logrus.FieldLogger) *LockController {
	return &LockController{tasks: tasks, log: logger}
}

// Status reports whether the lock of a task invocation is held.
func (c *LockController) Status(ctx echo.Context) error {
	query, err := dto.LockQueryFromEcho(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := query.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	identifier, err := c.tasks.Identifier(query.Task, query.Args, query.Kwargs)
	if err != nil {
		return c.fail(ctx, err)
	}
	running, err := c.tasks.IsAlreadyRunning(ctx.Request().Context(), query.Task, query.Args, query.Kwargs)
	if err != nil {
		return c.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"task":       query.Task,
		"identifier": identifier,
		"running":    running,
	})
}

// Reset clears the lock of a task invocation.
func (c *LockController) Reset(ctx echo.Context) error {
	query, err := dto.LockQueryFromEcho(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := query.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	identifier, err := c.tasks.Identifier(query.Task, query.Args, query.Kwargs)
	if err != nil {
		return c.fail(ctx, err)
	}
	if err := c.tasks.ResetLock(ctx.Request().Context(), query.Task, query.Args, query.Kwargs); err != nil {
		return c.fail(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]string{"message": "lock reset", "identifier": identifier})
}

func (c *LockController) fail(ctx echo.Context, err error) error {
	code, message := statusFor(err)
	if code == http.StatusInternalServerError {
		c.log.WithError(err).Error("Lock admin request failed")
	}
	return ctx.JSON(code, map[string]string{"error": message})
}
