package frameexecutor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestGlobalWorker_Lifecycle(t *testing.T) {
	InitGlobalWorker()
	first := GetGlobalWorker()
	InitGlobalWorker()
	if GetGlobalWorker() != first {
		t.Fatal("InitGlobalWorker should be idempotent")
	}
	if first.Name() != "global-worker" {
		t.Errorf("Name() = %q, want global-worker", first.Name())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ShutdownGlobalWorker(ctx); err != nil {
		t.Fatalf("ShutdownGlobalWorker failed: %v", err)
	}
	if !first.IsTerminated() {
		t.Error("worker should be terminated")
	}
	if err := ShutdownGlobalWorker(ctx); err != nil {
		t.Errorf("second ShutdownGlobalWorker = %v, want nil", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("GetGlobalWorker after shutdown should panic")
		}
	}()
	GetGlobalWorker()
}

// TestCreateExecutor_SharesWorker verifies executors on the global worker
// Main test items:
// 1. Two executors run their tasks on the same goroutine
// 2. Releasing one leaves the other usable
func TestCreateExecutor_SharesWorker(t *testing.T) {
	InitGlobalWorker()
	defer ShutdownGlobalWorker(context.Background())

	a := CreateExecutor(nil, &ExecutorConfig{Name: "a"})
	b := CreateExecutor(nil, &ExecutorConfig{Name: "b"})

	var aOnB atomic.Bool
	done := make(chan struct{})
	a.Submit(func(ctx context.Context) error {
		aOnB.Store(b.IsWorkerThread())
		close(done)
		return nil
	})
	<-done
	if !aOnB.Load() {
		t.Error("executors on the global worker should share the goroutine")
	}

	if err := a.Release(context.Background(), nil); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	ran := make(chan struct{})
	b.Submit(func(ctx context.Context) error {
		close(ran)
		return nil
	})
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("executor b stopped working after a was released")
	}
}

func TestNewExecutor_OwnsWorker(t *testing.T) {
	exec := NewExecutor(nil, &ExecutorConfig{Name: "gl"})

	var released atomic.Bool
	if err := exec.Release(context.Background(), func(ctx context.Context) error {
		released.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !released.Load() {
		t.Error("release task did not run before Release returned")
	}
	if !exec.Stats().OwnsEngine {
		t.Error("OwnsEngine = false, want true")
	}
}
