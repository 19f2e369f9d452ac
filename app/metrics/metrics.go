package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	ResultGranted = "granted"
	ResultDenied  = "denied"
	ResultError   = "error"

	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeContended = "contended"
)

var (
	// LockAcquireCounter counts acquire attempts by backend and result.
	LockAcquireCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskguard_lock_acquire_total",
		Help: "Total number of single-instance lock acquire attempts",
	}, []string{"backend", "result"})
	// LockReleaseCounter counts lock releases by backend.
	LockReleaseCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskguard_lock_release_total",
		Help: "Total number of single-instance lock releases",
	}, []string{"backend"})
	// TaskRunCounter counts task runs by task name and outcome.
	TaskRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskguard_task_runs_total",
		Help: "Total number of task runs",
	}, []string{"task", "outcome"})
)

// NewRegistry creates a registry with the taskguard metrics and the Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	RegisterMetrics(reg)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// RegisterMetrics registers the taskguard metrics on the provided registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LockAcquireCounter, LockReleaseCounter, TaskRunCounter)
}
