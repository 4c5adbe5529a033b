package core

import "time"

// TaskExecutionRecord captures a completed envelope execution.
type TaskExecutionRecord struct {
	TaskID       TaskID
	Name         string
	ExecutorName string
	Priority     TaskPriority
	// Bypass is true for the flush and release envelopes.
	Bypass     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	// HighPriorityRun counts lane tasks drained before the body.
	HighPriorityRun int
	Skipped         bool
	Failed          bool
}

// ExecutorStats represents runtime observability state for a TaskExecutor.
type ExecutorStats struct {
	Name       string
	State      string
	LaneDepth  int
	Submitted  int64
	Rejected   int64
	Failures   int64
	Suppressed int64
	OwnsEngine bool
	LastTask   string
	LastTaskAt time.Time
}

// EngineStats represents runtime observability state for a SingleThreadEngine.
type EngineStats struct {
	Name       string
	Queued     int
	Running    bool
	Executed   int64
	Shutdown   bool
	Terminated bool
}
