package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

type executorState int

const (
	stateActive executorState = iota
	// stateCancelling: an error was reported or a flush is in progress
	stateCancelling
	// stateReleased: terminal
	stateReleased
)

func (s executorState) String() string {
	switch s {
	case stateActive:
		return "active"
	case stateCancelling:
		return "cancelling"
	case stateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// TaskExecutor serializes tasks onto the single worker of an Engine.
//
// It offers two lanes. Default-priority tasks run in submission order.
// High-priority tasks are queued in a lane that every envelope drains, in
// FIFO order, before running its own body, so they overtake default-priority
// tasks that have not started yet.
//
// The first failure (task error or panic, engine refusal, timed out wait) is
// handed to the ErrorListener and puts the executor into cancellation mode:
// new submissions are dropped, queued envelopes skip their bodies and later
// failures are suppressed. Flush leaves cancellation mode; Release is
// terminal.
//
// All methods can be called from any goroutine, except Flush and Release
// which return ErrCalledOnWorker on the worker.
type TaskExecutor struct {
	engine     Engine
	ownsEngine bool
	listener   ErrorListener
	identity   *workerIdentity

	// mu guards state and lane. It is never held while a task body or the
	// listener runs.
	mu    sync.Mutex
	state executorState
	lane  *TaskQueue

	name           string
	logger         Logger
	metrics        Metrics
	invokeTimeout  time.Duration
	releaseTimeout time.Duration
	history        *executionHistory
	taskCtx        context.Context

	submitted  atomic.Int64
	rejected   atomic.Int64
	failures   atomic.Int64
	suppressed atomic.Int64
}

// NewTaskExecutor creates an executor with the default configuration.
//
// When ownsEngine is true, Release shuts the engine down and waits for it.
func NewTaskExecutor(engine Engine, ownsEngine bool, listener ErrorListener) *TaskExecutor {
	return NewTaskExecutorWithConfig(engine, ownsEngine, listener, nil)
}

// NewTaskExecutorWithConfig creates an executor. A probe is submitted to the
// engine right away to learn the worker goroutine's identity.
//
// A nil listener logs failures at error level, through config.Logger when set
// and through NewDefaultLogger otherwise.
func NewTaskExecutorWithConfig(engine Engine, ownsEngine bool, listener ErrorListener, config *ExecutorConfig) *TaskExecutor {
	cfg := config.withDefaults()

	e := &TaskExecutor{
		engine:         engine,
		ownsEngine:     ownsEngine,
		lane:           NewFIFOQueue[Task](),
		name:           cfg.Name,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		invokeTimeout:  cfg.InvokeTimeout,
		releaseTimeout: cfg.ReleaseTimeout,
		history:        newExecutionHistory(cfg.HistoryCapacity),
	}
	if listener == nil {
		fallback := e.logger
		if config == nil || config.Logger == nil {
			fallback = NewDefaultLogger()
		}
		listener = ErrorListenerFunc(func(err *ProcessingError) {
			fallback.Error("unhandled executor failure", F("executor", e.name), F("error", err))
		})
	}
	e.listener = listener
	e.taskCtx = context.WithValue(context.Background(), executorKey, e)
	e.identity = probeWorkerIdentity(engine)

	return e
}

// Name returns the name of the executor
func (e *TaskExecutor) Name() string {
	return e.name
}

// Submit queues task as a default-priority envelope. The task is dropped
// when the executor is cancelling or released.
func (e *TaskExecutor) Submit(task Task) {
	e.submitEnvelope(task, "Submit")
}

// SubmitWithHighPriority queues task in the high-priority lane. It runs
// before the body of the next envelope that starts, after any high-priority
// task queued earlier. Envelopes already running are not interrupted.
func (e *TaskExecutor) SubmitWithHighPriority(task Task) {
	e.mu.Lock()
	if e.state != stateActive {
		state := e.state
		e.mu.Unlock()
		e.reject("SubmitWithHighPriority", state)
		return
	}
	e.lane.Push(task)
	depth := e.lane.Len()
	e.mu.Unlock()

	e.metrics.RecordQueueDepth(e.name, depth)

	// If an envelope is already queued it drains the lane first; this one
	// covers the case where nothing is pending.
	e.submitEnvelope(noopTask, "SubmitWithHighPriority")
}

// Invoke runs task and waits for it to finish.
//
// On the worker goroutine task runs in place. Elsewhere it is handed to the
// engine and the caller waits at most the invoke timeout. Failures, the
// timeout and cancellation of ctx are reported to the ErrorListener, never
// to the caller, so Invoke can return before task has run.
func (e *TaskExecutor) Invoke(ctx context.Context, task Task) {
	if e.isWorkerThread("Invoke") {
		if perr := e.runTask(task, TaskPriorityDefault); perr != nil {
			e.handleError(perr)
		}
		return
	}

	done := make(chan struct{})
	err := e.engine.Execute(func() {
		defer close(done)
		if perr := e.runTask(task, TaskPriorityDefault); perr != nil {
			e.handleError(perr)
		}
	})
	if err != nil {
		e.handleError(newProcessingError(KindSubmissionFailure, "Invoke", err))
		return
	}

	timer := time.NewTimer(e.invokeTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		e.handleError(newProcessingError(KindTimeout, "Invoke",
			fmt.Errorf("%w after %v", ErrInvokeTimeout, e.invokeTimeout)))
	case <-ctx.Done():
		e.handleError(newProcessingError(KindInterrupted, "Invoke", ctx.Err()))
	}
}

// Flush discards every task that has not started yet and blocks until the
// worker has finished the task it was running. Tasks submitted while Flush
// is in progress are dropped; afterwards the executor accepts tasks again,
// also when it had entered cancellation mode because of a failure.
//
// Flush returns ctx.Err() if ctx ends first, ErrCalledOnWorker on the worker
// and ErrReleased after Release.
func (e *TaskExecutor) Flush(ctx context.Context) error {
	if e.isWorkerThread("Flush") {
		return ErrCalledOnWorker
	}

	done := make(chan struct{})
	reset := func(context.Context) error {
		e.mu.Lock()
		if e.state == stateCancelling {
			e.state = stateActive
		}
		e.mu.Unlock()
		close(done)
		return nil
	}

	e.mu.Lock()
	if e.state == stateReleased {
		e.mu.Unlock()
		return ErrReleased
	}
	e.state = stateCancelling
	dropped := e.lane.Clear()
	err := e.engine.Execute(e.envelope(reset, true))
	e.mu.Unlock()

	e.recordCleared(dropped)
	if err != nil {
		return newProcessingError(KindSubmissionFailure, "Flush", err)
	}

	e.logger.Info("flushing executor", F("executor", e.name), F("dropped_high_priority", dropped))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release cancels pending tasks, runs releaseTask on the worker and, if the
// executor owns its engine, shuts the engine down and waits for it to
// terminate. A termination timeout is reported to the ErrorListener on the
// calling goroutine. A nil releaseTask is allowed.
//
// The executor must not be used after Release. Release returns ctx.Err() if
// ctx ends while waiting, ErrCalledOnWorker on the worker and ErrReleased
// when called twice.
func (e *TaskExecutor) Release(ctx context.Context, releaseTask Task) error {
	if e.isWorkerThread("Release") {
		return ErrCalledOnWorker
	}
	if releaseTask == nil {
		releaseTask = noopTask
	}

	e.mu.Lock()
	if e.state == stateReleased {
		e.mu.Unlock()
		return ErrReleased
	}
	e.state = stateReleased
	dropped := e.lane.Clear()
	execErr := e.engine.Execute(e.envelope(releaseTask, true))
	e.mu.Unlock()

	e.recordCleared(dropped)
	e.logger.Info("releasing executor", F("executor", e.name), F("owns_engine", e.ownsEngine))

	var submitErr error
	if execErr != nil {
		submitErr = newProcessingError(KindSubmissionFailure, "Release", execErr)
	}

	if !e.ownsEngine {
		return submitErr
	}

	e.engine.Shutdown()
	waitCtx, cancel := context.WithTimeout(ctx, e.releaseTimeout)
	defer cancel()
	if err := e.engine.AwaitTermination(waitCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Reported directly: the executor is already released, so the
		// regular path would suppress it.
		perr := newProcessingError(KindReleaseTimeout, "Release",
			fmt.Errorf("%w after %v", ErrReleaseTimeout, e.releaseTimeout))
		e.failures.Add(1)
		e.metrics.RecordTaskFailure(e.name, perr.Kind)
		e.logger.Error("release timed out", F("executor", e.name), F("timeout", e.releaseTimeout))
		e.listener.OnError(perr)
	}
	return submitErr
}

// IsWorkerThread reports whether the caller runs on the executor's worker.
// If the worker identity cannot be resolved the failure is escalated and
// false is returned.
func (e *TaskExecutor) IsWorkerThread() bool {
	return e.isWorkerThread("IsWorkerThread")
}

// VerifyWorkerThread returns a KindNotOnWorker *ProcessingError when the
// caller is not the worker.
func (e *TaskExecutor) VerifyWorkerThread() error {
	if e.isWorkerThread("VerifyWorkerThread") {
		return nil
	}
	return newProcessingError(KindNotOnWorker, "VerifyWorkerThread", ErrNotOnWorker)
}

// Stats returns a snapshot of the executor state.
func (e *TaskExecutor) Stats() ExecutorStats {
	e.mu.Lock()
	state := e.state
	depth := e.lane.Len()
	e.mu.Unlock()

	stats := ExecutorStats{
		Name:       e.name,
		State:      state.String(),
		LaneDepth:  depth,
		Submitted:  e.submitted.Load(),
		Rejected:   e.rejected.Load(),
		Failures:   e.failures.Load(),
		Suppressed: e.suppressed.Load(),
		OwnsEngine: e.ownsEngine,
	}
	if last, ok := e.history.Last(); ok {
		stats.LastTask = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
	return stats
}

// RecentTasks returns up to limit envelope executions, newest first.
func (e *TaskExecutor) RecentTasks(limit int) []TaskExecutionRecord {
	return e.history.Recent(limit)
}

func (e *TaskExecutor) submitEnvelope(task Task, op string) {
	e.mu.Lock()
	if e.state != stateActive {
		state := e.state
		e.mu.Unlock()
		e.reject(op, state)
		return
	}
	// Submitting under the lock keeps the state check and the engine order
	// consistent with a concurrent Flush or Release.
	err := e.engine.Execute(e.envelope(task, false))
	e.mu.Unlock()

	if err != nil {
		e.handleError(newProcessingError(KindSubmissionFailure, op, err))
		return
	}
	e.submitted.Add(1)
}

// envelope wraps body so that it first drains the high-priority lane. Unless
// bypass is set, the envelope does nothing once the executor left the
// active state.
func (e *TaskExecutor) envelope(body Task, bypass bool) func() {
	id := GenerateTaskID()
	name := resolveTaskName(body)

	return func() {
		rec := TaskExecutionRecord{
			TaskID:       id,
			Name:         name,
			ExecutorName: e.name,
			Priority:     TaskPriorityDefault,
			Bypass:       bypass,
			StartedAt:    time.Now(),
		}
		defer func() {
			rec.FinishedAt = time.Now()
			rec.Duration = rec.FinishedAt.Sub(rec.StartedAt)
			e.history.Add(rec)
		}()

		if !bypass && !e.isActive() {
			rec.Skipped = true
			e.rejected.Add(1)
			e.metrics.RecordTaskRejected(e.name, "discarded")
			return
		}

		for {
			// Lock only polling so public methods are never blocked by a task.
			e.mu.Lock()
			next, ok := e.lane.Pop()
			depth := e.lane.Len()
			e.mu.Unlock()
			if !ok {
				break
			}
			e.metrics.RecordQueueDepth(e.name, depth)
			rec.HighPriorityRun++
			if perr := e.runTask(next, TaskPriorityHigh); perr != nil {
				rec.Failed = true
				e.handleError(perr)
				return
			}
		}

		if perr := e.runTask(body, TaskPriorityDefault); perr != nil {
			rec.Failed = true
			e.handleError(perr)
		}
	}
}

// runTask runs task on the calling goroutine and converts a returned error or
// a panic into a *ProcessingError.
func (e *TaskExecutor) runTask(task Task, priority TaskPriority) (perr *ProcessingError) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			perr = &ProcessingError{
				Kind:  KindTaskFailure,
				Op:    "task",
				Err:   &PanicError{Value: rec},
				Stack: debug.Stack(),
			}
		}
		e.metrics.RecordTaskDuration(e.name, priority, time.Since(start))
	}()

	if task == nil {
		panic("task is nil")
	}
	if err := task(e.taskCtx); err != nil {
		return AsProcessingError(err)
	}
	return nil
}

// handleError reports the first failure and suppresses the rest. Failures
// that arrive while the executor is not active are taken to be symptoms of
// the failure (or flush, or release) that made it leave the active state.
func (e *TaskExecutor) handleError(perr *ProcessingError) {
	e.mu.Lock()
	if e.state != stateActive {
		state := e.state
		e.mu.Unlock()
		e.suppressed.Add(1)
		e.metrics.RecordTaskRejected(e.name, "suppressed_error")
		e.logger.Debug("suppressing executor failure",
			F("executor", e.name), F("state", state), F("error", perr))
		return
	}
	e.state = stateCancelling
	e.mu.Unlock()

	e.failures.Add(1)
	e.metrics.RecordTaskFailure(e.name, perr.Kind)
	e.logger.Warn("executor failure, cancelling tasks",
		F("executor", e.name), F("kind", perr.Kind), F("op", perr.Op), F("error", perr.Err))
	e.listener.OnError(perr)
}

func (e *TaskExecutor) isActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateActive
}

func (e *TaskExecutor) reject(op string, state executorState) {
	e.rejected.Add(1)
	e.metrics.RecordTaskRejected(e.name, state.String())
	e.logger.Debug("task dropped", F("executor", e.name), F("op", op), F("state", state))
}

func (e *TaskExecutor) recordCleared(n int) {
	for range n {
		e.rejected.Add(1)
		e.metrics.RecordTaskRejected(e.name, "cleared")
	}
}

// isWorkerThread resolves the worker identity (bounded) and compares it with
// the caller. Resolution failures are escalated and read as "not the worker".
func (e *TaskExecutor) isWorkerThread(op string) bool {
	id, err := e.identity.resolve(e.invokeTimeout)
	if err != nil {
		kind := KindTimeout
		if errors.Is(err, ErrEngineShutdown) {
			kind = KindSubmissionFailure
		}
		e.handleError(newProcessingError(kind, op, err))
		return false
	}
	return id == currentGoroutineID()
}

// =============================================================================
// Worker identity
// =============================================================================

// workerIdentity is filled in by a probe that runs on the worker.
type workerIdentity struct {
	done chan struct{}
	id   uint64
	err  error
}

func probeWorkerIdentity(engine Engine) *workerIdentity {
	w := &workerIdentity{done: make(chan struct{})}
	err := engine.Execute(func() {
		w.id = currentGoroutineID()
		close(w.done)
	})
	if err != nil {
		w.err = err
		close(w.done)
	}
	return w
}

func (w *workerIdentity) resolve(timeout time.Duration) (uint64, error) {
	select {
	case <-w.done:
		return w.id, w.err
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		return w.id, w.err
	case <-timer.C:
		return 0, fmt.Errorf("%w after %v", ErrIdentityTimeout, timeout)
	}
}
