package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineShutdown is returned by an Engine that no longer accepts work.
	ErrEngineShutdown = errors.New("engine is shut down")

	// ErrCalledOnWorker is returned by blocking operations that would wait on
	// the worker from the worker itself.
	ErrCalledOnWorker = errors.New("must not be called on the worker goroutine")

	// ErrNotOnWorker is the cause of a KindNotOnWorker error.
	ErrNotOnWorker = errors.New("not running on the worker goroutine")

	// ErrReleased is returned by operations on a released executor.
	ErrReleased = errors.New("executor is released")

	// ErrInvokeTimeout is the cause of a KindTimeout error raised by Invoke.
	ErrInvokeTimeout = errors.New("invoke timed out")

	// ErrIdentityTimeout is the cause of a KindTimeout error raised while
	// waiting for the worker identity probe.
	ErrIdentityTimeout = errors.New("worker identity probe timed out")

	// ErrReleaseTimeout is the cause of a KindReleaseTimeout error.
	ErrReleaseTimeout = errors.New("release timed out, worker resources may not be cleaned up properly")
)

// ErrorKind classifies a ProcessingError by where the failure surfaced.
type ErrorKind int

const (
	// KindTaskFailure: a task body returned an error or panicked
	KindTaskFailure ErrorKind = iota
	// KindSubmissionFailure: the engine refused new work
	KindSubmissionFailure
	// KindTimeout: a bounded wait (invoke, identity resolution) elapsed
	KindTimeout
	// KindInterrupted: the caller's context ended while waiting
	KindInterrupted
	// KindReleaseTimeout: the owned engine did not terminate in time
	KindReleaseTimeout
	// KindNotOnWorker: VerifyWorkerThread was called off the worker
	KindNotOnWorker
)

func (k ErrorKind) String() string {
	switch k {
	case KindTaskFailure:
		return "task_failure"
	case KindSubmissionFailure:
		return "submission_failure"
	case KindTimeout:
		return "timeout"
	case KindInterrupted:
		return "interrupted"
	case KindReleaseTimeout:
		return "release_timeout"
	case KindNotOnWorker:
		return "not_on_worker"
	default:
		return "unknown"
	}
}

// ProcessingError is the single failure type handed to an ErrorListener.
type ProcessingError struct {
	Kind ErrorKind
	// Op names the executor operation that surfaced the failure.
	Op  string
	Err error
	// Stack is set when the failure was a recovered panic.
	Stack []byte
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func newProcessingError(kind ErrorKind, op string, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Op: op, Err: err}
}

// AsProcessingError returns err unchanged when it already is (or wraps) a
// *ProcessingError, and otherwise wraps it as a task failure.
func AsProcessingError(err error) *ProcessingError {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe
	}
	return newProcessingError(KindTaskFailure, "task", err)
}

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
