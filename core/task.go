package core

import (
	"context"

	"github.com/google/uuid"
)

// Task is the unit of work (Closure). Returning an error or panicking marks
// the task as failed; failed tasks are never retried.
type Task func(ctx context.Context) error

// TaskPriority selects the lane a task is submitted to.
type TaskPriority int

const (
	// TaskPriorityDefault: tasks run in engine submission order
	TaskPriorityDefault TaskPriority = iota

	// TaskPriorityHigh: tasks are drained by the next envelope that starts,
	// before that envelope's own body.
	TaskPriorityHigh
)

func (p TaskPriority) String() string {
	switch p {
	case TaskPriorityDefault:
		return "default"
	case TaskPriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// TaskID identifies one envelope execution in history records.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

// IsZero reports whether id was never assigned.
func (id TaskID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// =============================================================================
// Context Helper
// =============================================================================
type executorKeyType struct{}

var executorKey executorKeyType

// GetCurrentExecutor returns the executor whose worker is running the task
// that received ctx, or nil outside of a task.
func GetCurrentExecutor(ctx context.Context) *TaskExecutor {
	if v := ctx.Value(executorKey); v != nil {
		return v.(*TaskExecutor)
	}
	return nil
}

func noopTask(context.Context) error { return nil }
