package monitor

import (
	"context"
	"sync"
)

// DefaultWorkers is the number of concurrent checks when none is configured.
const DefaultWorkers = 8

// task is one job check queued for the worker pool.
type task struct {
	index int
	job   Job
}

// workerPool runs a fixed number of goroutines that consume tasks.
type workerPool struct {
	size int
	wg   sync.WaitGroup
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = DefaultWorkers
	}
	return &workerPool{size: size}
}

// start launches the workers. They exit when inbox is closed.
func (p *workerPool) start(ctx context.Context, inbox <-chan task, handler func(context.Context, task)) {
	for range p.size {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range inbox {
				handler(ctx, t)
			}
		}()
	}
}

func (p *workerPool) wait() {
	p.wg.Wait()
}
