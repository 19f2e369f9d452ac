package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/vibast-solutions/ms-go-taskguard/app/service"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
)

const (
	AddTask  = "jobs.add"
	MulTask  = "jobs.mul"
	SubTask  = "jobs.sub"
	Add2Task = "jobs.add2"
	Add3Task = "jobs.add3"
)

// Register adds the arithmetic sample tasks to svc, each guarded as single-instance.
func Register(svc *service.TaskService) error {
	defs := []struct {
		def  task.Definition
		opts []service.Option
	}{
		{def: task.Definition{Name: AddTask, Handler: binary(func(a, b int64) int64 { return a + b })}},
		{
			def:  task.Definition{Name: MulTask, Handler: binary(func(a, b int64) int64 { return a * b })},
			opts: []service.Option{service.WithIncludeArgs(), service.WithLockTimeout(20 * time.Second)},
		},
		{def: task.Definition{Name: SubTask, Handler: binary(func(a, b int64) int64 { return a - b })}},
		{def: task.Definition{Name: Add2Task, TimeLimit: 70 * time.Second, Handler: binary(func(a, b int64) int64 { return a + b })}},
		{def: task.Definition{Name: Add3Task, SoftTimeLimit: 80 * time.Second, Handler: binary(func(a, b int64) int64 { return a + b })}},
	}

	for _, d := range defs {
		if err := svc.RegisterSingleInstance(d.def, d.opts...); err != nil {
			return err
		}
	}
	return nil
}

func binary(op func(a, b int64) int64) task.Handler {
	return func(_ context.Context, tc *task.Context) (any, error) {
		if len(tc.Args) != 2 {
			return nil, fmt.Errorf("%s expects 2 arguments, got %d", tc.Name, len(tc.Args))
		}
		a, err := toInt(tc.Args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tc.Name, err)
		}
		b, err := toInt(tc.Args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tc.Name, err)
		}
		return op(a, b), nil
	}
}

func toInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return integralFloat(v, value)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("argument %v is not an integer", value)
		}
		return integralFloat(f, value)
	default:
		return 0, fmt.Errorf("argument %v is not an integer", value)
	}
}

// integralFloat accepts floats with no fractional part that fit in an int64.
func integralFloat(f float64, value any) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("argument %v is not an integer", value)
	}
	return int64(f), nil
}
