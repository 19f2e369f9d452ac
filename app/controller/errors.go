package controller

import (
	"errors"
	"net/http"

	"github.com/vibast-solutions/ms-go-taskguard/app/service"
)

// statusFor maps task service errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnknownTask):
		return http.StatusNotFound, "unknown task"
	case errors.Is(err, service.ErrNotSingleInstance):
		return http.StatusConflict, "task is not single-instance"
	default:
		return http.StatusInternalServerError, "lock backend failure"
	}
}
