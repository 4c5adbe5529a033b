package frameexecutor

import (
	"context"
	"sync"

	"github.com/Swind/go-frame-executor/core"
)

// NewExecutor creates an executor with its own dedicated worker. Release
// shuts the worker down.
func NewExecutor(listener ErrorListener, cfg *ExecutorConfig) *TaskExecutor {
	engineCfg := &core.EngineConfig{Name: "executor-worker"}
	if cfg != nil {
		if cfg.Name != "" {
			engineCfg.Name = cfg.Name + "-worker"
		}
		engineCfg.Logger = cfg.Logger
	}
	engine := core.NewSingleThreadEngineWithConfig(engineCfg)
	return core.NewTaskExecutorWithConfig(engine, true, listener, cfg)
}

// =============================================================================
// Global Worker Helper (Singleton)
// =============================================================================

var (
	globalWorker *core.SingleThreadEngine
	globalMu     sync.Mutex
)

// InitGlobalWorker starts the process-wide worker. Repeated calls are no-ops.
func InitGlobalWorker() {
	InitGlobalWorkerWithConfig(nil)
}

// InitGlobalWorkerWithConfig starts the process-wide worker with cfg.
func InitGlobalWorkerWithConfig(cfg *core.EngineConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorker != nil {
		return // Already initialized
	}

	if cfg == nil {
		cfg = &core.EngineConfig{}
	}
	if cfg.Name == "" {
		cfg.Name = "global-worker"
	}
	globalWorker = core.NewSingleThreadEngineWithConfig(cfg)
}

// GetGlobalWorker returns the process-wide worker.
// It panics if InitGlobalWorker has not been called.
func GetGlobalWorker() *core.SingleThreadEngine {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalWorker == nil {
		panic("global worker not initialized. Call InitGlobalWorker() first.")
	}
	return globalWorker
}

// ShutdownGlobalWorker stops accepting work on the process-wide worker and
// waits for queued work to finish, or for ctx to end.
func ShutdownGlobalWorker(ctx context.Context) error {
	globalMu.Lock()
	worker := globalWorker
	globalWorker = nil
	globalMu.Unlock()

	if worker == nil {
		return nil
	}
	worker.Shutdown()
	return worker.AwaitTermination(ctx)
}

// CreateExecutor creates an executor on the process-wide worker. Releasing it
// leaves the worker running for other executors.
func CreateExecutor(listener ErrorListener, cfg *ExecutorConfig) *TaskExecutor {
	return core.NewTaskExecutorWithConfig(GetGlobalWorker(), false, listener, cfg)
}
