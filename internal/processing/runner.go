// Package processing runs upload jobs inside the API process when no Redis
// queue is configured. Delayed jobs wait on timers; due jobs go through a
// buffered channel drained by a fixed pool of goroutines.
package processing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dharsanguruparan/VaultForm/internal/queue"
)

// ErrQueueFull is returned when the job buffer has no room.
var ErrQueueFull = errors.New("processing queue full")

// HandlerFunc executes one job.
type HandlerFunc func(ctx context.Context, job queue.Job) error

// Runner is an in-process queue.Scheduler.
type Runner struct {
	handle  HandlerFunc
	queue   chan queue.Job
	workers int
	now     func() time.Time

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	wg     sync.WaitGroup
}

var _ queue.Scheduler = (*Runner)(nil)

// New builds a Runner with queue capacity tied to worker count.
func New(handle HandlerFunc, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		handle:  handle,
		queue:   make(chan queue.Job, workers*16),
		workers: workers,
		now:     time.Now,
		timers:  make(map[*time.Timer]struct{}),
	}
}

// Start launches worker goroutines. They exit, and pending timers are
// stopped, when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		for t := range r.timers {
			t.Stop()
		}
		r.timers = make(map[*time.Timer]struct{})
		r.mu.Unlock()
	}()
}

// Wait blocks until every worker has returned.
func (r *Runner) Wait() { r.wg.Wait() }

// Schedule runs job now or arms a timer for its RunAt.
func (r *Runner) Schedule(_ context.Context, job queue.Job) error {
	delay := job.RunAt.Sub(r.now())
	if job.RunAt.IsZero() || delay <= 0 {
		return r.enqueue(job)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, timer)
		r.mu.Unlock()
		if err := r.enqueue(job); err != nil {
			log.Error().Err(err).Str("task", job.Type).Str("upload_id", job.Payload.UploadID).Msg("dropping delayed job")
		}
	})
	r.timers[timer] = struct{}{}
	return nil
}

// Pending reports how many delayed jobs are still waiting on their timers.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *Runner) enqueue(job queue.Job) error {
	select {
	case r.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.queue:
			logger := log.With().Str("task", job.Type).Str("upload_id", job.Payload.UploadID).Logger()
			if err := r.handle(ctx, job); err != nil {
				logger.Error().Err(err).Msg("job failed")
				continue
			}
			logger.Debug().Msg("job done")
		}
	}
}
