package worker

import (
	"context"
	"runtime"
	"sync"

	"github.com/alde/epaper-relay/pkg/progress"
)

// Job is one unit of render work, usually a single display page (small screens make for small jobs).
type Job interface {
	Process(ctx context.Context) error
	ID() string
}

// Result contains the outcome of processing a job
type Result struct {
	JobID string
	Error error
}

// Pool runs jobs on a fixed number of goroutines.
type Pool struct {
	workerCount int
	jobs        chan Job
	results     chan Result
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	progress    *progress.Tracker
}

// NewPool creates a pool bound to ctx. A non-positive workerCount uses one
// worker per CPU.
func NewPool(ctx context.Context, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workerCount: workerCount,
		jobs:        make(chan Job, workerCount*2),
		results:     make(chan Result, workerCount*2),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// NewPoolWithProgress creates a pool that reports to tracker. The tracker
// must have been created for the same worker count.
func NewPoolWithProgress(ctx context.Context, workerCount int, tracker *progress.Tracker) *Pool {
	p := NewPool(ctx, workerCount)
	p.progress = tracker
	return p
}

// Start begins processing jobs
func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop waits for queued jobs to finish and closes the results channel.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
	p.cancel()

	if p.progress != nil {
		p.progress.Finish()
	}
}

// ForceStop cancels running jobs and shuts the pool down without draining
// the queue (jobs still queued are dropped, not failed).
func (p *Pool) ForceStop() {
	p.cancel()
	close(p.jobs)
	p.wg.Wait()
	close(p.results)

	if p.progress != nil {
		p.progress.Finish()
	}
}

// Submit queues a job. It returns the context error without queueing once
// the pool has been cancelled.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Results returns the results channel
func (p *Pool) Results() <-chan Result {
	return p.results
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}

			if p.progress != nil {
				p.progress.Start(id, job.ID())
			}

			err := job.Process(p.ctx)

			if p.progress != nil {
				p.progress.Done(id, job.ID(), err)
			}

			p.results <- Result{
				JobID: job.ID(),
				Error: err,
			}

		case <-p.ctx.Done():
			return
		}
	}
}

// WorkerCount returns the number of workers in the pool
func (p *Pool) WorkerCount() int {
	return p.workerCount
}

// Run processes jobs on a new pool and returns one result per finished job,
// in completion order. Once ctx is cancelled it stops submitting and force
// stops the pool, so queued jobs never start.
func Run(ctx context.Context, workerCount int, jobs []Job, tracker *progress.Tracker) []Result {
	var pool *Pool
	if tracker != nil {
		pool = NewPoolWithProgress(ctx, workerCount, tracker)
	} else {
		pool = NewPool(ctx, workerCount)
	}
	pool.Start()

	go func() {
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				pool.ForceStop()
				return
			}
		}
		pool.Stop()
	}()

	results := make([]Result, 0, len(jobs))
	for res := range pool.Results() {
		results = append(results, res)
	}
	return results
}
