package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-taskguard/app/metrics"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
)

type registration struct {
	def     task.Definition
	handler task.Handler
	opts    []Option
	single  bool
}

// TaskService is the registry workers run tasks through and operators inspect locks with.
type TaskService struct {
	guard *Guard
	log   logrus.FieldLogger

	mu    sync.RWMutex
	tasks map[string]*registration
}

// NewTaskService builds an empty task registry.
func NewTaskService(guard *Guard, logger logrus.FieldLogger) *TaskService {
	return &TaskService{
		guard: guard,
		log:   logger,
		tasks: make(map[string]*registration),
	}
}

// Register adds a task that may run concurrently.
func (s *TaskService) Register(def task.Definition) error {
	return s.add(&registration{def: def, handler: def.Handler})
}

// RegisterSingleInstance adds a task whose invocations are serialized by the guard.
func (s *TaskService) RegisterSingleInstance(def task.Definition, opts ...Option) error {
	return s.add(&registration{
		def:     def,
		handler: s.guard.Wrap(def.Handler, opts...),
		opts:    opts,
		single:  true,
	})
}

func (s *TaskService) add(r *registration) error {
	if r.def.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if r.def.Handler == nil {
		return fmt.Errorf("task %s has no handler", r.def.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[r.def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, r.def.Name)
	}
	s.tasks[r.def.Name] = r
	return nil
}

// Names lists registered task names in order.
func (s *TaskService) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes a registered task with the given arguments.
func (s *TaskService) Run(ctx context.Context, name string, args []any, kwargs map[string]any) (any, error) {
	r, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	log := s.log.WithField("task", name)
	if taskID, ok := TaskIDFromContext(ctx); ok {
		log = log.WithField("task_id", taskID)
	}
	log.Debug("Running task")

	result, err := r.handler(ctx, r.def.NewContext(args, kwargs))
	switch {
	case err == nil:
		metrics.TaskRunCounter.WithLabelValues(name, metrics.OutcomeSuccess).Inc()
	case errors.Is(err, ErrOtherInstanceRunning):
		metrics.TaskRunCounter.WithLabelValues(name, metrics.OutcomeContended).Inc()
	default:
		metrics.TaskRunCounter.WithLabelValues(name, metrics.OutcomeFailure).Inc()
	}
	return result, err
}

// Identifier returns the lock identifier an invocation would use.
func (s *TaskService) Identifier(name string, args []any, kwargs map[string]any) (string, error) {
	r, err := s.lookupSingle(name)
	if err != nil {
		return "", err
	}
	return Identifier(r.def.NewContext(args, kwargs), newSingleInstance(r.opts).IncludeArgs)
}

// IsAlreadyRunning reports whether the lock for the invocation is held.
func (s *TaskService) IsAlreadyRunning(ctx context.Context, name string, args []any, kwargs map[string]any) (bool, error) {
	r, err := s.lookupSingle(name)
	if err != nil {
		return false, err
	}
	return s.guard.IsAlreadyRunning(ctx, r.def.NewContext(args, kwargs), r.opts...)
}

// ResetLock clears the lock for the invocation without waiting for it to expire.
func (s *TaskService) ResetLock(ctx context.Context, name string, args []any, kwargs map[string]any) error {
	r, err := s.lookupSingle(name)
	if err != nil {
		return err
	}
	return s.guard.ResetLock(ctx, r.def.NewContext(args, kwargs), r.opts...)
}

func (s *TaskService) lookup(name string) (*registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return r, nil
}

func (s *TaskService) lookupSingle(name string) (*registration, error) {
	r, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if !r.single {
		return nil, fmt.Errorf("%w: %s", ErrNotSingleInstance, name)
	}
	return r, nil
}
