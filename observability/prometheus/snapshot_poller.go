package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-frame-executor/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExecutorSnapshotProvider provides current executor stats snapshots.
type ExecutorSnapshotProvider interface {
	Stats() core.ExecutorStats
}

// EngineSnapshotProvider provides current engine stats snapshots.
type EngineSnapshotProvider interface {
	Stats() core.EngineStats
}

var executorStates = []string{"active", "cancelling", "released"}

// SnapshotPoller periodically exports executor/engine Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	executorsMu sync.RWMutex
	executors   map[string]ExecutorSnapshotProvider

	enginesMu sync.RWMutex
	engines   map[string]EngineSnapshotProvider

	executorState     *prom.GaugeVec
	executorLaneDepth *prom.GaugeVec
	executorSubmitted *prom.GaugeVec
	executorRejected  *prom.GaugeVec
	executorFailures  *prom.GaugeVec

	engineQueued     *prom.GaugeVec
	engineRunning    *prom.GaugeVec
	engineExecuted   *prom.GaugeVec
	engineTerminated *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	executorState := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "executor_state",
		Help:      "Executor state (1 for the current state, 0 otherwise).",
	}, []string{"executor", "state"})
	executorLaneDepth := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "executor_lane_depth",
		Help:      "High-priority lane depth snapshot per executor.",
	}, []string{"executor"})
	executorSubmitted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "executor_submitted",
		Help:      "Envelopes accepted by the engine, snapshot per executor.",
	}, []string{"executor"})
	executorRejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "executor_rejected",
		Help:      "Dropped or discarded task count snapshot per executor.",
	}, []string{"executor"})
	executorFailures := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "executor_failures",
		Help:      "Escalated failure count snapshot per executor.",
	}, []string{"executor"})

	engineQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "engine_queued",
		Help:      "Closures waiting for the worker per engine.",
	}, []string{"engine"})
	engineRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "engine_running",
		Help:      "Engine busy state (1=running a closure, 0=idle).",
	}, []string{"engine"})
	engineExecuted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "engine_executed",
		Help:      "Closures executed per engine.",
	}, []string{"engine"})
	engineTerminated := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: DefaultNamespace,
		Name:      "engine_terminated",
		Help:      "Engine worker state (1=exited, 0=alive).",
	}, []string{"engine"})

	var err error
	for _, vec := range []**prom.GaugeVec{
		&executorState, &executorLaneDepth, &executorSubmitted, &executorRejected, &executorFailures,
		&engineQueued, &engineRunning, &engineExecuted, &engineTerminated,
	} {
		if *vec, err = registerCollector(reg, *vec); err != nil {
			return nil, err
		}
	}

	return &SnapshotPoller{
		interval:          interval,
		executors:         make(map[string]ExecutorSnapshotProvider),
		engines:           make(map[string]EngineSnapshotProvider),
		executorState:     executorState,
		executorLaneDepth: executorLaneDepth,
		executorSubmitted: executorSubmitted,
		executorRejected:  executorRejected,
		executorFailures:  executorFailures,
		engineQueued:      engineQueued,
		engineRunning:     engineRunning,
		engineExecuted:    engineExecuted,
		engineTerminated:  engineTerminated,
	}, nil
}

// AddExecutor adds or replaces an executor snapshot provider by name.
func (p *SnapshotPoller) AddExecutor(name string, provider ExecutorSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "executor")
	p.executorsMu.Lock()
	p.executors[name] = provider
	p.executorsMu.Unlock()
}

// AddEngine adds or replaces an engine snapshot provider by name.
func (p *SnapshotPoller) AddEngine(name string, provider EngineSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "engine")
	p.enginesMu.Lock()
	p.engines[name] = provider
	p.enginesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe. A final snapshot is
// taken so gauges reflect the state at shutdown.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()

	p.collectOnce()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.executorsMu.RLock()
	for name, provider := range p.executors {
		stats := provider.Stats()
		for _, state := range executorStates {
			p.executorState.WithLabelValues(name, state).Set(boolGauge(stats.State == state))
		}
		p.executorLaneDepth.WithLabelValues(name).Set(float64(stats.LaneDepth))
		p.executorSubmitted.WithLabelValues(name).Set(float64(stats.Submitted))
		p.executorRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.executorFailures.WithLabelValues(name).Set(float64(stats.Failures))
	}
	p.executorsMu.RUnlock()

	p.enginesMu.RLock()
	for name, provider := range p.engines {
		stats := provider.Stats()
		p.engineQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.engineRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
		p.engineExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.engineTerminated.WithLabelValues(name).Set(boolGauge(stats.Terminated))
	}
	p.enginesMu.RUnlock()
}
