package frameexecutor

import "github.com/Swind/go-frame-executor/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the frameexecutor package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskExecutor serializes tasks onto a single worker
type TaskExecutor = core.TaskExecutor

// ExecutorConfig holds configuration options for TaskExecutor
type ExecutorConfig = core.ExecutorConfig

// ErrorListener receives the first failure of an executor
type ErrorListener = core.ErrorListener

// ErrorListenerFunc adapts a function to ErrorListener
type ErrorListenerFunc = core.ErrorListenerFunc

// ProcessingError is the failure type handed to an ErrorListener
type ProcessingError = core.ProcessingError

// ErrorKind classifies a ProcessingError
type ErrorKind = core.ErrorKind

// SingleThreadEngine is the worker an executor runs on
type SingleThreadEngine = core.SingleThreadEngine

// Error kinds
const (
	KindTaskFailure       = core.KindTaskFailure
	KindSubmissionFailure = core.KindSubmissionFailure
	KindTimeout           = core.KindTimeout
	KindInterrupted       = core.KindInterrupted
	KindReleaseTimeout    = core.KindReleaseTimeout
	KindNotOnWorker       = core.KindNotOnWorker
)

// Sentinel errors
var (
	ErrEngineShutdown = core.ErrEngineShutdown
	ErrCalledOnWorker = core.ErrCalledOnWorker
	ErrReleased       = core.ErrReleased
)

// GetCurrentExecutor retrieves the current TaskExecutor from context
var GetCurrentExecutor = core.GetCurrentExecutor
