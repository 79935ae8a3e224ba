package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup primes the dashboard caches of every active tenant.
	TaskDashboardWarmup = "dashboard:warmup"
	// TaskDashboardCacheBump invalidates every cached dashboard figure.
	TaskDashboardCacheBump = "dashboard:cache_bump"
	// DashboardWarmupCron runs the warmup nightly at 01:15 UTC.
	DashboardWarmupCron = "15 1 * * *"
)

// DashboardWarmupPayload limits a warmup to the listed schemas. An empty list
// warms every active tenant.
type DashboardWarmupPayload struct {
	Schemas []string `json:"schemas,omitempty"`
}

// CacheBumpPayload records why the dashboard cache was invalidated.
type CacheBumpPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewDashboardWarmupTask constructs a warmup task.
func NewDashboardWarmupTask(payload DashboardWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data), nil
}

// NewCacheBumpTask constructs a cache bump task.
func NewCacheBumpTask(payload CacheBumpPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardCacheBump, data), nil
}

// NewTask builds the task registered under taskType with an empty payload.
func NewTask(taskType string) (*asynq.Task, error) {
	switch taskType {
	case TaskDashboardWarmup:
		return NewDashboardWarmupTask(DashboardWarmupPayload{})
	case TaskDashboardCacheBump:
		return NewCacheBumpTask(CacheBumpPayload{Reason: "manual"})
	default:
		return nil, &UnknownTaskError{Type: taskType}
	}
}

// UnknownTaskError is returned for task types the worker does not handle.
type UnknownTaskError struct {
	Type string
}

func (e *UnknownTaskError) Error() string {
	return "jobs: unknown task type " + e.Type
}
