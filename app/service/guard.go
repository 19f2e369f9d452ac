package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-taskguard/app/lock"
	"github.com/vibast-solutions/ms-go-taskguard/app/metrics"
	"github.com/vibast-solutions/ms-go-taskguard/app/task"
	"github.com/vibast-solutions/ms-go-taskguard/config"
)

// DefaultLockTimeout applies when neither the task nor the queue sets a limit.
const DefaultLockTimeout = 300 * time.Second

// SingleInstance holds the per-task lock settings.
type SingleInstance struct {
	// LockTimeout overrides every detected time limit when positive.
	LockTimeout time.Duration
	// IncludeArgs makes invocations with different arguments lock independently.
	IncludeArgs bool
}

type Option func(*SingleInstance)

// WithLockTimeout sets an explicit lock timeout.
func WithLockTimeout(timeout time.Duration) Option {
	return func(s *SingleInstance) {
		s.LockTimeout = timeout
	}
}

// WithIncludeArgs keys the lock on the invocation arguments as well as the task name.
func WithIncludeArgs() Option {
	return func(s *SingleInstance) {
		s.IncludeArgs = true
	}
}

func newSingleInstance(opts []Option) SingleInstance {
	var s SingleInstance
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Guard makes tasks run at most once at a time across all workers sharing a lock store.
type Guard struct {
	backends *lock.Provider
	limits   config.TaskLimits
	log      logrus.FieldLogger
}

// NewGuard builds a guard. The backend is resolved on first use.
func NewGuard(backends *lock.Provider, limits config.TaskLimits, logger logrus.FieldLogger) *Guard {
	return &Guard{backends: backends, limits: limits, log: logger}
}

// Timeout resolves the lock timeout of an invocation, rounded up to whole seconds.
func (g *Guard) Timeout(tc *task.Context, s SingleInstance) time.Duration {
	candidates := []time.Duration{
		s.LockTimeout,
		tc.SoftTimeLimit,
		tc.TimeLimit,
		g.limits.SoftTimeLimit,
		g.limits.TimeLimit,
	}
	for _, candidate := range candidates {
		if candidate > 0 {
			return ceilSeconds(candidate)
		}
	}
	return DefaultLockTimeout
}

func ceilSeconds(d time.Duration) time.Duration {
	if rem := d % time.Second; rem != 0 {
		return d - rem + time.Second
	}
	return d
}

// Wrap returns a handler that runs h only while holding the invocation's lock.
// A held lock yields *OtherInstanceRunningError without calling h. Once the
// lock is taken it is released on every exit from h, panics included.
func (g *Guard) Wrap(h task.Handler, opts ...Option) task.Handler {
	settings := newSingleInstance(opts)

	return func(ctx context.Context, tc *task.Context) (result any, err error) {
		backend, err := g.backends.Backend()
		if err != nil {
			return nil, err
		}
		identifier, err := Identifier(tc, settings.IncludeArgs)
		if err != nil {
			return nil, err
		}
		timeout := g.Timeout(tc, settings)
		kind := string(backend.Kind())

		log := g.log.WithFields(logrus.Fields{
			"task":       tc.Name,
			"identifier": identifier,
			"backend":    kind,
		})

		lease, acquired, err := backend.Acquire(ctx, identifier, timeout)
		if err != nil {
			metrics.LockAcquireCounter.WithLabelValues(kind, metrics.ResultError).Inc()
			return nil, err
		}
		if !acquired {
			metrics.LockAcquireCounter.WithLabelValues(kind, metrics.ResultDenied).Inc()
			log.Info("Another instance is running")
			return nil, &OtherInstanceRunningError{Identifier: identifier}
		}
		metrics.LockAcquireCounter.WithLabelValues(kind, metrics.ResultGranted).Inc()
		log.WithField("timeout", timeout).Debug("Got lock, running")

		defer func() {
			releaseErr := backend.Release(context.WithoutCancel(ctx), lease)
			metrics.LockReleaseCounter.WithLabelValues(kind).Inc()
			if releaseErr == nil {
				return
			}
			log.WithError(releaseErr).Error("Failed to release lock")
			if err == nil {
				err = releaseErr
			}
		}()

		return h(ctx, tc)
	}
}

// IsAlreadyRunning reports whether the lock of this invocation is currently held.
func (g *Guard) IsAlreadyRunning(ctx context.Context, tc *task.Context, opts ...Option) (bool, error) {
	settings := newSingleInstance(opts)
	backend, err := g.backends.Backend()
	if err != nil {
		return false, err
	}
	identifier, err := Identifier(tc, settings.IncludeArgs)
	if err != nil {
		return false, err
	}
	return backend.IsAlreadyRunning(ctx, identifier, g.Timeout(tc, settings))
}

// ResetLock removes the lock of this invocation regardless of its age.
func (g *Guard) ResetLock(ctx context.Context, tc *task.Context, opts ...Option) error {
	settings := newSingleInstance(opts)
	backend, err := g.backends.Backend()
	if err != nil {
		return err
	}
	identifier, err := Identifier(tc, settings.IncludeArgs)
	if err != nil {
		return err
	}
	g.log.WithFields(logrus.Fields{"task": tc.Name, "identifier": identifier}).Info("Resetting lock")
	return backend.Reset(ctx, identifier)
}
