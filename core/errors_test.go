package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestAsProcessingError verifies conversion of task errors
// Main test items:
// 1. nil stays nil
// 2. A plain error becomes a task failure that unwraps to the cause
// 3. A wrapped *ProcessingError is returned as is
func TestAsProcessingError(t *testing.T) {
	if AsProcessingError(nil) != nil {
		t.Fatal("AsProcessingError(nil) should be nil")
	}

	cause := errors.New("shader compile failed")
	perr := AsProcessingError(cause)
	if perr.Kind != KindTaskFailure {
		t.Errorf("Kind = %v, want task_failure", perr.Kind)
	}
	if !errors.Is(perr, cause) {
		t.Error("ProcessingError should unwrap to its cause")
	}

	inner := newProcessingError(KindTimeout, "Invoke", ErrInvokeTimeout)
	wrapped := fmt.Errorf("frame 12: %w", inner)
	if got := AsProcessingError(wrapped); got != inner {
		t.Errorf("AsProcessingError(wrapped) = %v, want the inner error", got)
	}
}

// TestProcessingError_Error verifies the message layout
func TestProcessingError_Error(t *testing.T) {
	perr := newProcessingError(KindSubmissionFailure, "Submit", ErrEngineShutdown)
	msg := perr.Error()
	for _, part := range []string{"Submit", "submission_failure", ErrEngineShutdown.Error()} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}

	bare := &ProcessingError{Kind: KindNotOnWorker, Op: "VerifyWorkerThread"}
	if got := bare.Error(); got != "VerifyWorkerThread: not_on_worker" {
		t.Errorf("Error() without cause = %q", got)
	}
}

// TestErrorKind_String verifies kind names used as metric labels
func TestErrorKind_String(t *testing.T) {
	cases := map[ErrorKind]string{
		KindTaskFailure:       "task_failure",
		KindSubmissionFailure: "submission_failure",
		KindTimeout:           "timeout",
		KindInterrupted:       "interrupted",
		KindReleaseTimeout:    "release_timeout",
		KindNotOnWorker:       "not_on_worker",
		ErrorKind(99):         "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}

// TestPanicError verifies the recovered value is kept
func TestPanicError(t *testing.T) {
	perr := &PanicError{Value: 42}
	if !strings.Contains(perr.Error(), "42") {
		t.Errorf("Error() = %q, want the panic value", perr.Error())
	}
}
