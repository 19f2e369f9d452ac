package dto

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
)

var ErrMissingTaskID = errors.New("task_id is required")

type EnqueueRequest struct {
	Task   string          `param:"task" json:"-"`
	TaskID string          `json:"task_id"`
	Args   json.RawMessage `json:"args"`
	Kwargs json.RawMessage `json:"kwargs"`
}

// EnqueueFromEcho binds and normalizes a request from Echo.
func EnqueueFromEcho(ctx echo.Context) (EnqueueRequest, error) {
	var req EnqueueRequest
	if err := ctx.Bind(&req); err != nil {
		return EnqueueRequest{}, err
	}
	req.normalize()
	return req, nil
}

// Validate checks required fields and that args and kwargs decode.
func (r *EnqueueRequest) Validate() error {
	if r.Task == "" {
		return ErrMissingTask
	}
	if r.TaskID == "" {
		return ErrMissingTaskID
	}
	if _, err := task.DecodeArgs(r.Args); err != nil {
		return ErrInvalidArgs
	}
	if _, err := task.DecodeKwargs(r.Kwargs); err != nil {
		return ErrInvalidKwarg
	}
	return nil
}

// normalize trims identifiers and treats JSON null as absent.
func (r *EnqueueRequest) normalize() {
	r.Task = strings.TrimSpace(r.Task)
	r.TaskID = strings.TrimSpace(r.TaskID)
	if string(r.Args) == "null" {
		r.Args = nil
	}
	if string(r.Kwargs) == "null" {
		r.Kwargs = nil
	}
}
