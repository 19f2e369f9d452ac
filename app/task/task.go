package task

import (
	"context"
	"time"
)

// Context describes a single task invocation. Handlers must treat it as read-only.
type Context struct {
	Name          string
	Args          []any
	Kwargs        map[string]any
	SoftTimeLimit time.Duration
	TimeLimit     time.Duration
}

// Handler is the body of a task.
type Handler func(ctx context.Context, tc *Context) (any, error)

// Definition declares a task and its own time limits. Zero limits mean unset.
type Definition struct {
	Name          string
	SoftTimeLimit time.Duration
	TimeLimit     time.Duration
	Handler       Handler
}

// NewContext builds the invocation context for the given arguments.
func (d Definition) NewContext(args []any, kwargs map[string]any) *Context {
	return &Context{
		Name:          d.Name,
		Args:          args,
		Kwargs:        kwargs,
		SoftTimeLimit: d.SoftTimeLimit,
		TimeLimit:     d.TimeLimit,
	}
}
