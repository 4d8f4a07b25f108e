package dirtscan

import (
	"runtime"
	"sync"
)

// WorkerPool is the scheduling contract the orchestrator relies on: a
// fire-and-forget Schedule that runs the task on some worker, and a queryable
// worker count used to size shards. Any pool honouring those two promises can
// be plugged in through Options.
type WorkerPool interface {
	Schedule(task func())
	NumWorkers() int
}

// workerPool is a fixed-size goroutine pool fed by a buffered task channel.
type workerPool struct {
	tasks   chan func()
	workers int
	stop    sync.Once
}

// NewWorkerPool starts a pool with the given number of workers; workers <= 0
// means runtime.NumCPU().
func NewWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &workerPool{
		tasks:   make(chan func(), 128),
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *workerPool) run() {
	for task := range p.tasks {
		task()
	}
}

// Schedule queues a task for execution on an arbitrary worker. It never
// rejects work; it blocks if the queue is full.
func (p *workerPool) Schedule(task func()) {
	p.tasks <- task
}

// NumWorkers returns the pool's fixed worker count.
func (p *workerPool) NumWorkers() int {
	return p.workers
}

// Stop shuts the workers down once queued tasks have drained. Scheduling
// after Stop panics.
func (p *workerPool) Stop() {
	p.stop.Do(func() { close(p.tasks) })
}

var (
	globalPool     *workerPool
	globalPoolOnce sync.Once
)

// GlobalWorkerPool returns the process-wide shared pool, started on first
// use with one worker per CPU.
func GlobalWorkerPool() WorkerPool {
	globalPoolOnce.Do(func() {
		globalPool = NewWorkerPool(0)
	})
	return globalPool
}
