package core

import "time"

// RunnerStats represents runtime observability state for a task runner.
type RunnerStats struct {
	Name       string
	Type       string
	Pending    int
	Idle       int
	Running    int
	Rejected   int64
	Closed     bool
	LastTaskAt time.Time
}
