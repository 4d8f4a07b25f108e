package dirtscan

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Stop()

	if pool.NumWorkers() != 4 {
		t.Fatalf("NumWorkers = %d, expected 4", pool.NumWorkers())
	}

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		pool.Schedule(func() {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		})
	}
	wg.Wait()

	if ran != 200 {
		t.Errorf("Ran %d tasks, expected 200", ran)
	}
}

func TestWorkerPoolDefaultSize(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Stop()
	if pool.NumWorkers() < 1 {
		t.Errorf("Default pool should have at least 1 worker, got %d", pool.NumWorkers())
	}
}

func TestWorkerPoolStopIdempotent(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Stop()
	pool.Stop()
}
