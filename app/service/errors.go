package service

import (
	"errors"
	"fmt"
)

var (
	ErrOtherInstanceRunning = errors.New("other instance running")
	ErrUnknownTask          = errors.New("unknown task")
	ErrDuplicateTask        = errors.New("task already registered")
	ErrNotSingleInstance    = errors.New("task is not single-instance")
)

// OtherInstanceRunningError is returned when the lock for Identifier is held elsewhere.
type OtherInstanceRunningError struct {
	Identifier string
}

func (e *OtherInstanceRunningError) Error() string {
	return fmt.Sprintf("failed to acquire lock, %s already running", e.Identifier)
}

func (e *OtherInstanceRunningError) Unwrap() error {
	return ErrOtherInstanceRunning
}
