// Package frameexecutor runs thread-affine work on a single dedicated worker.
//
// Code that drives resources bound to one OS thread (a graphics context, a
// hardware codec session, a CGO library with thread local state) posts
// closures to a TaskExecutor instead of locking around the resource. The
// executor serializes them onto one goroutine locked to its OS thread.
//
// # Quick Start
//
// Create an executor that owns its worker:
//
//	exec := frameexecutor.NewExecutor(listener, nil)
//	defer exec.Release(context.Background(), cleanupGL)
//
//	exec.Submit(func(ctx context.Context) error {
//		return renderFrame()
//	})
//
// Several executors can share the process-wide worker:
//
//	frameexecutor.InitGlobalWorker()
//	defer frameexecutor.ShutdownGlobalWorker(context.Background())
//
//	exec := frameexecutor.CreateExecutor(listener, nil)
//
// # Key Concepts
//
// Submit: default-priority tasks run in submission order.
//
// SubmitWithHighPriority: the task runs before the body of the next
// default-priority task that has not started yet, after earlier high-priority
// tasks. A running task is never interrupted.
//
// Invoke: runs a task and waits for it, in place when already on the worker.
// The wait is bounded; a timeout is reported to the ErrorListener.
//
// Flush: discards pending tasks and waits for the running one.
//
// Release: runs a final task on the worker and shuts an owned worker down.
//
// # Error Handling
//
// The first failure is handed to the ErrorListener as a *ProcessingError and
// the executor stops running tasks until Flush. Later failures are treated as
// consequences of the first and are not reported. After OnError the owner is
// expected to Release the executor.
package frameexecutor
