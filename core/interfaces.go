package core

import (
	"time"
)

// =============================================================================
// ErrorListener: Receives the first unrecovered failure
// =============================================================================

// ErrorListener is notified when a failure escalates out of an executor.
//
// Once OnError has been called the owner must Release the executor; no other
// operation is safe afterwards. OnError is invoked on the worker goroutine for
// task failures and on the caller's goroutine for submission, timeout and
// release failures.
type ErrorListener interface {
	OnError(err *ProcessingError)
}

// ErrorListenerFunc adapts a function to the ErrorListener interface.
type ErrorListenerFunc func(err *ProcessingError)

// OnError calls f(err).
func (f ErrorListenerFunc) OnError(err *ProcessingError) {
	f(err)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting executor metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; some of them are called while a
// task is about to run on the worker.
type Metrics interface {
	// RecordTaskDuration records how long a task body took to execute.
	RecordTaskDuration(executorName string, priority TaskPriority, duration time.Duration)

	// RecordTaskFailure records a failure that escalated to the error listener.
	RecordTaskFailure(executorName string, kind ErrorKind)

	// RecordQueueDepth records the current depth of the high-priority lane.
	RecordQueueDepth(executorName string, depth int)

	// RecordTaskRejected records a dropped submission or a discarded task.
	//
	// Reasons used by TaskExecutor: "cancelling", "released", "cleared",
	// "discarded", "suppressed_error".
	RecordTaskRejected(executorName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(executorName string, priority TaskPriority, duration time.Duration) {
}

// RecordTaskFailure is a no-op.
func (m *NilMetrics) RecordTaskFailure(executorName string, kind ErrorKind) {
}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(executorName string, depth int) {
}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(executorName string, reason string) {
}

// =============================================================================
// ExecutorConfig: Configuration for TaskExecutor
// =============================================================================

const (
	// DefaultInvokeTimeout bounds Invoke and worker identity resolution.
	DefaultInvokeTimeout = 500 * time.Millisecond
	// DefaultReleaseTimeout bounds the wait for an owned engine to terminate.
	DefaultReleaseTimeout = 500 * time.Millisecond
)

// ExecutorConfig holds configuration options for TaskExecutor.
// Zero values are replaced by defaults.
type ExecutorConfig struct {
	// Name labels logs, metrics and stats. Defaults to "executor".
	Name string

	// InvokeTimeout bounds Invoke and identity resolution. Defaults to 500ms.
	InvokeTimeout time.Duration

	// ReleaseTimeout bounds engine termination in Release. Defaults to 500ms.
	ReleaseTimeout time.Duration

	// HistoryCapacity is the number of envelope executions kept for RecentTasks.
	HistoryCapacity int

	// Logger defaults to NoOpLogger.
	Logger Logger

	// Metrics defaults to NilMetrics.
	Metrics Metrics
}

// DefaultExecutorConfig returns a config with default handlers.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		Name:            "executor",
		InvokeTimeout:   DefaultInvokeTimeout,
		ReleaseTimeout:  DefaultReleaseTimeout,
		HistoryCapacity: defaultTaskHistoryCapacity,
		Logger:          NewNoOpLogger(),
		Metrics:         &NilMetrics{},
	}
}

func (c *ExecutorConfig) withDefaults() ExecutorConfig {
	out := *DefaultExecutorConfig()
	if c == nil {
		return out
	}
	if c.Name != "" {
		out.Name = c.Name
	}
	if c.InvokeTimeout > 0 {
		out.InvokeTimeout = c.InvokeTimeout
	}
	if c.ReleaseTimeout > 0 {
		out.ReleaseTimeout = c.ReleaseTimeout
	}
	if c.HistoryCapacity > 0 {
		out.HistoryCapacity = c.HistoryCapacity
	}
	if c.Logger != nil {
		out.Logger = c.Logger
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	return out
}
