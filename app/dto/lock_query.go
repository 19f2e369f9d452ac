package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrMissingTask  = errors.New("task is required")
	ErrInvalidArgs  = errors.New("args must be a JSON array")
	ErrInvalidKwarg = errors.New("kwargs must be a JSON object")
)

// LockQuery names the invocation whose lock is inspected or reset.
type LockQuery struct {
	Task   string
	Args   []any
	Kwargs map[string]any
}

// LockQueryFromEcho reads the task path param and the args/kwargs query params.
func LockQueryFromEcho(ctx echo.Context) (LockQuery, error) {
	query := LockQuery{Task: strings.TrimSpace(ctx.Param("task"))}

	args, err := task.DecodeArgs([]byte(strings.TrimSpace(ctx.QueryParam("args"))))
	if err != nil {
		return LockQuery{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	kwargs, err := task.DecodeKwargs([]byte(strings.TrimSpace(ctx.QueryParam("kwargs"))))
	if err != nil {
		return LockQuery{}, fmt.Errorf("%w: %v", ErrInvalidKwarg, err)
	}
	query.Args = args
	query.Kwargs = kwargs
	return query, nil
}

// LockQueryFromStruct converts a gRPC request with task, args and kwargs fields.
// Args and kwargs are JSON text so numbers keep their exact digits; native
// list and struct values are accepted too but travel as float64.
func LockQueryFromStruct(req *structpb.Struct) (LockQuery, error) {
	if req == nil {
		return LockQuery{}, nil
	}
	fields := req.GetFields()
	query := LockQuery{Task: strings.TrimSpace(fields["task"].GetStringValue())}

	if value, ok := fields["args"]; ok {
		switch kind := value.GetKind().(type) {
		case *structpb.Value_StringValue:
			args, err := task.DecodeArgs([]byte(kind.StringValue))
			if err != nil {
				return LockQuery{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
			}
			query.Args = args
		case *structpb.Value_ListValue:
			query.Args = kind.ListValue.AsSlice()
		default:
			return LockQuery{}, ErrInvalidArgs
		}
	}
	if value, ok := fields["kwargs"]; ok {
		switch kind := value.GetKind().(type) {
		case *structpb.Value_StringValue:
			kwargs, err := task.DecodeKwargs([]byte(kind.StringValue))
			if err != nil {
				return LockQuery{}, fmt.Errorf("%w: %v", ErrInvalidKwarg, err)
			}
			query.Kwargs = kwargs
		case *structpb.Value_StructValue:
			query.Kwargs = kind.StructValue.AsMap()
		default:
			return LockQuery{}, ErrInvalidKwarg
		}
	}
	return query, nil
}

// ToStruct renders the query as a gRPC request with args and kwargs as JSON text.
func (q LockQuery) ToStruct() (*structpb.Struct, error) {
	fields := map[string]any{"task": q.Task}
	if q.Args != nil {
		args, err := task.EncodeArgs(q.Args)
		if err != nil {
			return nil, err
		}
		fields["args"] = string(args)
	}
	if q.Kwargs != nil {
		kwargs, err := task.EncodeKwargs(q.Kwargs)
		if err != nil {
			return nil, err
		}
		fields["kwargs"] = string(kwargs)
	}
	return structpb.NewStruct(fields)
}

// Validate checks required fields.
func (q LockQuery) Validate() error {
	if q.Task == "" {
		return ErrMissingTask
	}
	return nil
}
