// Package queue is the in-process, best-effort job dispatcher used to
// push side effects (notification and mail delivery) off the request
// path. Jobs are not durable: a process crash loses whatever was
// queued, which the platform explicitly tolerates.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts is how many times a job handler may fail before
// the job is dropped.
const DefaultMaxAttempts = 3

// Job is one queued unit of work.
type Job struct {
	ID          string
	Type        string
	Payload     any
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	ProcessAt   time.Time
}

// Handler processes one job payload. Returning an error schedules a
// retry with exponential backoff until MaxAttempts is reached.
type Handler func(ctx context.Context, payload any) error

// Dispatcher drains jobs on demand: every enqueue triggers a drain
// pass unless one is already running, and a deferred job re-arms a
// timer for its due time. There is one drain goroutine at a time, so
// handlers never run concurrently with each other.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.Mutex
	jobs     []*Job
	handlers map[string]Handler
	draining bool
	stopped  bool
	timer    *time.Timer

	wg sync.WaitGroup

	// now is swappable in tests.
	now func() time.Time
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
}

// Register installs the handler for a job type. Jobs enqueued with a
// type that has no handler are silently discarded during the drain.
func (d *Dispatcher) Register(jobType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[jobType] = h
}

// Enqueue adds a job due immediately and returns its id.
func (d *Dispatcher) Enqueue(jobType string, payload any) string {
	return d.EnqueueAfter(jobType, payload, 0)
}

// EnqueueAfter adds a job due after delay.
func (d *Dispatcher) EnqueueAfter(jobType string, payload any, delay time.Duration) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ""
	}

	now := d.now()
	job := &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     payload,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
		ProcessAt:   now.Add(delay),
	}
	d.jobs = append(d.jobs, job)
	d.kickLocked()
	return job.ID
}

// Stop prevents further enqueues and waits for the in-flight drain
// pass to finish. Jobs still queued are abandoned.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Pending reports how many jobs are queued. Mostly for tests and
// readiness introspection.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

// kickLocked starts a drain goroutine if none is running. Callers hold d.mu.
func (d *Dispatcher) kickLocked() {
	if d.draining || d.stopped {
		return
	}
	d.draining = true
	d.wg.Add(1)
	go d.drain()
}

func (d *Dispatcher) drain() {
	defer d.wg.Done()
	ctx := context.Background()

	for {
		job, handler, wait := d.next()
		if job == nil {
			if wait > 0 {
				d.rearm(wait)
			}
			return
		}

		if handler == nil {
			d.logger.Warn("dropping job with no registered handler",
				"job_id", job.ID, "job_type", job.Type)
			d.remove(job.ID)
			continue
		}

		if err := handler(ctx, job.Payload); err != nil {
			d.retry(job, err)
			continue
		}
		d.remove(job.ID)
	}
}

// next picks the first due job. When nothing is due it flips off the
// draining flag and reports how long until the earliest deferred job,
// all under one lock so an enqueue cannot slip between the check and
// the flag.
func (d *Dispatcher) next() (*Job, Handler, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.draining = false
		return nil, nil, 0
	}

	now := d.now()
	var earliest time.Time
	for _, j := range d.jobs {
		if !j.ProcessAt.After(now) {
			return j, d.handlers[j.Type], 0
		}
		if earliest.IsZero() || j.ProcessAt.Before(earliest) {
			earliest = j.ProcessAt
		}
	}

	d.draining = false
	if earliest.IsZero() {
		return nil, nil, 0
	}
	return nil, nil, earliest.Sub(now)
}

func (d *Dispatcher) retry(job *Job, cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	job.Attempts++
	if job.Attempts >= job.MaxAttempts {
		d.logger.Error("job failed permanently",
			"job_id", job.ID, "job_type", job.Type,
			"attempts", job.Attempts, "error", cause)
		d.removeLocked(job.ID)
		return
	}

	backoff := time.Duration(1<<uint(job.Attempts)) * time.Second
	job.ProcessAt = d.now().Add(backoff)
	d.logger.Warn("job failed, retrying",
		"job_id", job.ID, "job_type", job.Type,
		"attempt", job.Attempts, "backoff", backoff, "error", cause)
}

func (d *Dispatcher) rearm(wait time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(wait, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.kickLocked()
	})
}

func (d *Dispatcher) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(id)
}

func (d *Dispatcher) removeLocked(id string) {
	for i, j := range d.jobs {
		if j.ID == id {
			d.jobs = append(d.jobs[:i], d.jobs[i+1:]...)
			return
		}
	}
}
