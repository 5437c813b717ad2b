package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool is shut down")

// Job is one unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Failure is reported on the error channel when a job returns an error or panics.
type Failure struct {
	Job string
	Err error
}

func (f Failure) Error() string { return fmt.Sprintf("job %s: %v", f.Job, f.Err) }
func (f Failure) Unwrap() error { return f.Err }

// Pool runs jobs on a fixed set of goroutines. Job failures go to an error channel drained by a
// supervisor goroutine, which logs each one and hands it to OnFailure.
type Pool struct {
	jobs     chan Job
	failures chan Failure
	log      *slog.Logger

	onFailure func(Failure)

	mu       sync.RWMutex
	closed   bool
	stopping chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	workers    sync.WaitGroup
	supervisor sync.WaitGroup
}

type Options struct {
	Workers   int
	QueueSize int
	Logger    *slog.Logger
	OnFailure func(Failure)
}

func New(opts Options) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = opts.Workers * 16
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:      make(chan Job, opts.QueueSize),
		failures:  make(chan Failure, opts.Workers),
		log:       opts.Logger,
		onFailure: opts.OnFailure,
		stopping:  make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	p.supervisor.Add(1)
	go p.supervise()

	for i := 0; i < opts.Workers; i++ {
		p.workers.Add(1)
		go p.work()
	}
	return p
}

// Submit queues job, blocking while the queue is full until ctx is done or the pool starts
// shutting down.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.stopping:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. If ctx expires first the
// running jobs see their context cancelled and Shutdown returns ctx.Err() without waiting for
// them to return.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		// Wakes submitters blocked on a full queue so they drop the read lock.
		close(p.stopping)

		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		go func() {
			p.workers.Wait()
			close(p.failures)
			p.supervisor.Wait()
			close(p.done)
		}()
	})

	select {
	case <-p.done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) work() {
	defer p.workers.Done()
	for job := range p.jobs {
		if err := p.run(job); err != nil {
			p.failures <- Failure{Job: job.Name, Err: err}
		}
	}
}

func (p *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(p.ctx)
}

func (p *Pool) supervise() {
	defer p.supervisor.Done()
	for f := range p.failures {
		p.log.Error("background job failed", "job", f.Job, "error", f.Err)
		if p.onFailure != nil {
			p.onFailure(f)
		}
	}
}
