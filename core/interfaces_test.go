package core

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Test Metrics
// =============================================================================

// TestMetrics is a recording metrics implementation for testing
type TestMetrics struct {
	mu             sync.Mutex
	taskDurations  []TaskDurationMetric
	taskFailures   []TaskFailureMetric
	queueDepths    []int
	taskRejections []string
}

type TaskDurationMetric struct {
	ExecutorName string
	Priority     TaskPriority
	Duration     time.Duration
}

type TaskFailureMetric struct {
	ExecutorName string
	Kind         ErrorKind
}

func NewTestMetrics() *TestMetrics {
	return &TestMetrics{}
}

func (m *TestMetrics) RecordTaskDuration(executorName string, priority TaskPriority, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskDurations = append(m.taskDurations, TaskDurationMetric{executorName, priority, duration})
}

func (m *TestMetrics) RecordTaskFailure(executorName string, kind ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskFailures = append(m.taskFailures, TaskFailureMetric{executorName, kind})
}

func (m *TestMetrics) RecordQueueDepth(executorName string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepths = append(m.queueDepths, depth)
}

func (m *TestMetrics) RecordTaskRejected(executorName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskRejections = append(m.taskRejections, reason)
}

func (m *TestMetrics) GetTaskDurations() []TaskDurationMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TaskDurationMetric(nil), m.taskDurations...)
}

func (m *TestMetrics) GetTaskFailures() []TaskFailureMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TaskFailureMetric(nil), m.taskFailures...)
}

func (m *TestMetrics) GetQueueDepths() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.queueDepths...)
}

func (m *TestMetrics) GetTaskRejections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.taskRejections...)
}

func TestNilMetrics(t *testing.T) {
	// Given: A NilMetrics
	metrics := &NilMetrics{}

	// When: All methods are called
	metrics.RecordTaskDuration("gl", TaskPriorityHigh, time.Second)
	metrics.RecordTaskFailure("gl", KindTimeout)
	metrics.RecordQueueDepth("gl", 10)
	metrics.RecordTaskRejected("gl", "cancelling")

	// Then: No panic should occur (all methods are no-ops)
}

// TestExecutor_MetricsHooks verifies which hooks the executor calls
// Main test items:
// 1. Lane pushes and drains record the lane depth
// 2. Both lanes record durations with their priority
// 3. The escalated failure is recorded with its kind
// 4. Drops after the failure are recorded with the state as reason
func TestExecutor_MetricsHooks(t *testing.T) {
	metrics := NewTestMetrics()
	reported := make(chan *ProcessingError, 1)
	exec := NewTaskExecutorWithConfig(NewSingleThreadEngine(), true,
		ErrorListenerFunc(func(err *ProcessingError) { reported <- err }),
		&ExecutorConfig{Name: "gl", Metrics: metrics})
	defer exec.Release(context.Background(), nil)

	exec.SubmitWithHighPriority(func(ctx context.Context) error { return nil })
	exec.Submit(func(ctx context.Context) error { return errors.New("boom") })
	<-reported
	exec.Submit(func(ctx context.Context) error { return nil })

	depths := metrics.GetQueueDepths()
	if len(depths) < 2 || depths[0] != 1 || depths[len(depths)-1] != 0 {
		t.Errorf("queue depths = %v, want 1 then 0", depths)
	}

	var high, def int
	for _, d := range metrics.GetTaskDurations() {
		if d.ExecutorName != "gl" {
			t.Errorf("duration recorded for %q", d.ExecutorName)
		}
		switch d.Priority {
		case TaskPriorityHigh:
			high++
		case TaskPriorityDefault:
			def++
		}
	}
	if high != 1 || def < 2 {
		t.Errorf("durations high=%d default=%d, want 1 and >= 2", high, def)
	}

	failures := metrics.GetTaskFailures()
	if len(failures) != 1 || failures[0].Kind != KindTaskFailure {
		t.Errorf("failures = %+v, want one task failure", failures)
	}

	rejections := metrics.GetTaskRejections()
	if len(rejections) != 1 || rejections[0] != "cancelling" {
		t.Errorf("rejections = %v, want [cancelling]", rejections)
	}
}

// TestExecutor_MetricsDiscardedReason verifies the reason recorded for an
// envelope that was queued before a failure and skipped afterwards
func TestExecutor_MetricsDiscardedReason(t *testing.T) {
	metrics := NewTestMetrics()
	reported := make(chan *ProcessingError, 1)
	exec := NewTaskExecutorWithConfig(NewSingleThreadEngine(), true,
		ErrorListenerFunc(func(err *ProcessingError) { reported <- err }),
		&ExecutorConfig{Name: "gl", Metrics: metrics})
	defer exec.Release(context.Background(), nil)

	gate := make(chan struct{})
	exec.Submit(func(ctx context.Context) error {
		<-gate
		return errors.New("boom")
	})
	exec.Submit(func(ctx context.Context) error { return nil })
	close(gate)
	<-reported

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(metrics.GetTaskRejections()) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	rejections := metrics.GetTaskRejections()
	if len(rejections) != 1 || rejections[0] != "discarded" {
		t.Errorf("rejections = %v, want [discarded]", rejections)
	}
}

// =============================================================================
// ExecutorConfig
// =============================================================================

func TestDefaultExecutorConfig(t *testing.T) {
	cfg := DefaultExecutorConfig()

	if cfg.Name != "executor" {
		t.Errorf("Name = %q, want executor", cfg.Name)
	}
	if cfg.InvokeTimeout != DefaultInvokeTimeout || cfg.ReleaseTimeout != DefaultReleaseTimeout {
		t.Errorf("timeouts = %v/%v", cfg.InvokeTimeout, cfg.ReleaseTimeout)
	}
	if _, ok := cfg.Logger.(*NoOpLogger); !ok {
		t.Errorf("Logger = %T, want *NoOpLogger", cfg.Logger)
	}
	if _, ok := cfg.Metrics.(*NilMetrics); !ok {
		t.Errorf("Metrics = %T, want *NilMetrics", cfg.Metrics)
	}
}

// TestExecutorConfig_PartialConfig verifies that zero fields keep defaults
func TestExecutorConfig_PartialConfig(t *testing.T) {
	var nilCfg *ExecutorConfig
	if got := nilCfg.withDefaults(); got.Name != "executor" {
		t.Errorf("nil config Name = %q", got.Name)
	}

	metrics := NewTestMetrics()
	got := (&ExecutorConfig{InvokeTimeout: time.Second, Metrics: metrics}).withDefaults()

	if got.InvokeTimeout != time.Second {
		t.Errorf("InvokeTimeout = %v, want 1s", got.InvokeTimeout)
	}
	if got.ReleaseTimeout != DefaultReleaseTimeout {
		t.Errorf("ReleaseTimeout = %v, want default", got.ReleaseTimeout)
	}
	if got.Metrics != Metrics(metrics) {
		t.Error("custom Metrics not kept")
	}
	if got.HistoryCapacity != defaultTaskHistoryCapacity {
		t.Errorf("HistoryCapacity = %d", got.HistoryCapacity)
	}
}

// =============================================================================
// Logger
// =============================================================================

func TestDefaultLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := &DefaultLogger{logger: log.New(&buf, "", 0)}

	l.Warn("executor failure", F("executor", "gl"), F("kind", KindTimeout))

	want := "[WARN] executor failure {executor: gl, kind: timeout}\n"
	if got := buf.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

// TestExecutor_NilListenerLogs verifies the fallback listener
func TestExecutor_NilListenerLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := &DefaultLogger{logger: log.New(&buf, "", 0)}
	exec := NewTaskExecutorWithConfig(NewSingleThreadEngine(), true, nil,
		&ExecutorConfig{Name: "gl", Logger: logger})

	exec.Invoke(context.Background(), func(ctx context.Context) error { return errors.New("lost context") })
	if err := exec.Release(context.Background(), nil); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if !strings.Contains(buf.String(), "[ERROR] unhandled executor failure") {
		t.Errorf("log output missing fallback entry:\n%s", buf.String())
	}
}

// TestExecutor_NilListenerDefaultConfig verifies that a nil listener with no
// configured logger still reports the failure through the standard logger
func TestExecutor_NilListenerDefaultConfig(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	exec := NewTaskExecutor(NewSingleThreadEngine(), true, nil)
	exec.Invoke(context.Background(), func(ctx context.Context) error { return errors.New("lost context") })
	if err := exec.Release(context.Background(), nil); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[ERROR] unhandled executor failure") || !strings.Contains(out, "lost context") {
		t.Errorf("log output missing fallback entry:\n%s", out)
	}
}
