package core

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Engine runs submitted closures one at a time, in submission order, on a
// single worker goroutine. TaskExecutor is built on top of an Engine.
type Engine interface {
	// Execute queues fn. It never blocks on the worker and returns
	// ErrEngineShutdown once Shutdown has been called.
	Execute(fn func()) error

	// Shutdown stops accepting new work. Already accepted work still runs.
	Shutdown()

	// AwaitTermination blocks until all accepted work has run and the worker
	// has exited, or ctx ends.
	AwaitTermination(ctx context.Context) error
}

// EngineConfig holds configuration options for SingleThreadEngine.
type EngineConfig struct {
	Name   string
	Logger Logger
}

// SingleThreadEngine binds a dedicated goroutine, locked to its OS thread, to
// execute closures sequentially. Everything submitted to it runs on the same
// goroutine and thread, which makes it suitable for thread-affine resources
// such as a graphics context or CGO libraries with thread local state.
//
// The queue is unbounded: Execute only takes a short lock and never waits for
// the worker.
type SingleThreadEngine struct {
	mu       sync.Mutex
	queue    *FIFOQueue[func()]
	shutdown bool
	stopping bool

	signal  chan struct{}
	stopped chan struct{}

	shutdownOnce sync.Once
	stopOnce     sync.Once

	workerID atomic.Uint64
	running  atomic.Bool
	executed atomic.Int64

	name   string
	logger Logger
}

var _ Engine = (*SingleThreadEngine)(nil)

// NewSingleThreadEngine creates and starts a new SingleThreadEngine.
func NewSingleThreadEngine() *SingleThreadEngine {
	return NewSingleThreadEngineWithConfig(nil)
}

// NewSingleThreadEngineWithConfig creates and starts a SingleThreadEngine.
// It immediately spawns the dedicated worker goroutine.
func NewSingleThreadEngineWithConfig(cfg *EngineConfig) *SingleThreadEngine {
	e := &SingleThreadEngine{
		queue:   NewFIFOQueue[func()](),
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
		name:    "worker",
		logger:  NewNoOpLogger(),
	}
	if cfg != nil {
		if cfg.Name != "" {
			e.name = cfg.Name
		}
		if cfg.Logger != nil {
			e.logger = cfg.Logger
		}
	}

	go e.runLoop()

	return e
}

// Name returns the name of the engine
func (e *SingleThreadEngine) Name() string {
	return e.name
}

// Execute queues fn for execution on the worker goroutine.
func (e *SingleThreadEngine) Execute(fn func()) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return ErrEngineShutdown
	}
	e.queue.Push(fn)
	e.mu.Unlock()

	e.wake()
	return nil
}

// Shutdown stops accepting new work; queued closures still run, then the
// worker exits. It may be called from the worker itself.
func (e *SingleThreadEngine) Shutdown() {
	e.shutdownOnce.Do(func() {
		e.mu.Lock()
		e.shutdown = true
		e.mu.Unlock()
		e.wake()
	})
}

// Stop shuts the engine down, drops everything still queued and waits for
// the closure currently running (if any) to return. Called from the worker
// itself it does not wait.
func (e *SingleThreadEngine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.shutdown = true
		e.stopping = true
		dropped := e.queue.Clear()
		e.mu.Unlock()
		e.wake()

		if dropped > 0 {
			e.logger.Debug("engine stopped with pending work",
				F("engine", e.name), F("dropped", dropped))
		}
	})
	if e.IsWorkerGoroutine() {
		return
	}
	<-e.stopped
}

// AwaitTermination blocks until the worker goroutine has exited.
func (e *SingleThreadEngine) AwaitTermination(ctx context.Context) error {
	select {
	case <-e.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown reports whether the engine stopped accepting work.
func (e *SingleThreadEngine) IsShutdown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}

// IsTerminated reports whether the worker goroutine has exited.
func (e *SingleThreadEngine) IsTerminated() bool {
	select {
	case <-e.stopped:
		return true
	default:
		return false
	}
}

// IsWorkerGoroutine reports whether the caller is the engine's worker.
func (e *SingleThreadEngine) IsWorkerGoroutine() bool {
	id := e.workerID.Load()
	return id != 0 && id == currentGoroutineID()
}

// Stats returns a snapshot of the engine state.
func (e *SingleThreadEngine) Stats() EngineStats {
	e.mu.Lock()
	queued := e.queue.Len()
	shutdown := e.shutdown
	e.mu.Unlock()

	return EngineStats{
		Name:       e.name,
		Queued:     queued,
		Running:    e.running.Load(),
		Executed:   e.executed.Load(),
		Shutdown:   shutdown,
		Terminated: e.IsTerminated(),
	}
}

func (e *SingleThreadEngine) wake() {
	select {
	case e.signal <- struct{}{}:
	default:
		// A wake-up is already pending
	}
}

// next pops the next closure. exit is true once the loop should return.
func (e *SingleThreadEngine) next() (fn func(), ok bool, exit bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopping {
		return nil, false, true
	}
	if fn, ok = e.queue.Pop(); ok {
		return fn, true, false
	}
	return nil, false, e.shutdown
}

// runLoop is the core of this engine, it occupies a dedicated goroutine
func (e *SingleThreadEngine) runLoop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.stopped)

	e.workerID.Store(currentGoroutineID())

	for {
		fn, ok, exit := e.next()
		if exit {
			return
		}
		if !ok {
			<-e.signal
			continue
		}
		e.run(fn)
	}
}

func (e *SingleThreadEngine) run(fn func()) {
	e.running.Store(true)
	defer func() {
		e.running.Store(false)
		e.executed.Add(1)
		if rec := recover(); rec != nil {
			e.logger.Error("engine closure panicked",
				F("engine", e.name), F("panic", rec), F("stack", string(debug.Stack())))
		}
	}()
	fn()
}
