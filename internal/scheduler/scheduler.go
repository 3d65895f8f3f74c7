// Package scheduler runs the background jobs (invoice collection, revenue
// verification) on fixed intervals with single-flight semantics: a job never
// runs twice concurrently, whether triggered by the clock or by hand.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"fiscalwatch/internal/platform/metrics"
	dErrors "fiscalwatch/pkg/domain-errors"
)

// Trigger records how a job run was started.
type Trigger string

const (
	TriggerScheduled Trigger = "SCHEDULED"
	TriggerManual    Trigger = "MANUAL"
	TriggerStartup   Trigger = "STARTUP"
)

// JobFunc is one unit of scheduled work. Errors are logged, never retried.
type JobFunc func(ctx context.Context) error

type job struct {
	id       string
	name     string
	interval time.Duration
	fn       JobFunc

	running atomic.Bool
	entryID cron.EntryID

	mu          sync.Mutex
	lastStarted time.Time
	lastTrigger Trigger
	lastError   string
}

// JobStatus is a point-in-time snapshot of one registered job.
type JobStatus struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Interval    string    `json:"interval"`
	Running     bool      `json:"running"`
	NextRun     time.Time `json:"next_run,omitzero"`
	LastStarted time.Time `json:"last_started,omitzero"`
	LastTrigger Trigger   `json:"last_trigger,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// Status describes the scheduler and all its jobs.
type Status struct {
	State string      `json:"state"`
	Jobs  []JobStatus `json:"jobs"`
}

// TriggerResult reports a manual trigger. A busy job is not an error: the
// caller learns the run was skipped.
type TriggerResult struct {
	JobID   string `json:"job_id"`
	Started bool   `json:"started"`
	Message string `json:"message"`
}

type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	jobs    []*job
	byID    map[string]*job
	started bool
}

type Option func(*Scheduler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func New(logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:   cron.New(),
		logger: logger,
		byID:   map[string]*job{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(id, name string, interval time.Duration, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot register jobs after start")
	}
	if _, dup := s.byID[id]; dup {
		return dErrors.Newf(dErrors.CodeConflict, "job %q already registered", id)
	}
	if interval <= 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "job %q needs a positive interval", id)
	}
	j := &job{id: id, name: name, interval: interval, fn: fn}
	s.jobs = append(s.jobs, j)
	s.byID[id] = j
	return nil
}

// Start schedules every registered job and kicks off an immediate run of
// each, so a fresh deployment does not wait a full interval for data.
//
// Jobs run on their own context, detached from ctx: shutdown stops future
// firings (Stop) but never cancels a run already in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return dErrors.New(dErrors.CodeInvariantViolation, "scheduler already started")
	}
	jobCtx := context.WithoutCancel(ctx)
	for _, j := range s.jobs {
		entryID, err := s.cron.AddFunc("@every "+j.interval.String(), func() {
			s.run(jobCtx, j, TriggerScheduled)
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to schedule job "+j.id)
		}
		j.entryID = entryID
		go s.run(jobCtx, j, TriggerStartup)
	}
	s.cron.Start()
	s.started = true
	s.logger.InfoContext(ctx, "scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts scheduling without waiting for in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cron.Stop()
	s.started = false
	s.logger.Info("scheduler stopped")
}

// TriggerManual starts a job out of schedule. When the job is already
// running the trigger is reported as skipped, not failed.
func (s *Scheduler) TriggerManual(ctx context.Context, jobID string) (TriggerResult, error) {
	s.mu.Lock()
	j, ok := s.byID[jobID]
	s.mu.Unlock()
	if !ok {
		return TriggerResult{}, dErrors.Newf(dErrors.CodeNotFound, "unknown job %q", jobID)
	}
	if !j.running.CompareAndSwap(false, true) {
		s.skip(ctx, j, TriggerManual)
		return TriggerResult{
			JobID:   jobID,
			Started: false,
			Message: "job is already running",
		}, nil
	}
	// The run outlives the triggering request: keep the caller's values
	// (request id) but not its cancellation.
	go s.execute(context.WithoutCancel(ctx), j, TriggerManual)
	return TriggerResult{JobID: jobID, Started: true, Message: "job started"}, nil
}

// Status snapshots every job. Next-run times come from the cron entries and
// are zero before Start.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := "stopped"
	if s.started {
		state = "running"
	}
	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		js := JobStatus{
			ID:       j.id,
			Name:     j.name,
			Interval: j.interval.String(),
			Running:  j.running.Load(),
		}
		if s.started {
			js.NextRun = s.cron.Entry(j.entryID).Next
		}
		j.mu.Lock()
		js.LastStarted = j.lastStarted
		js.LastTrigger = j.lastTrigger
		js.LastError = j.lastError
		j.mu.Unlock()
		statuses = append(statuses, js)
	}
	return Status{State: state, Jobs: statuses}
}

// run acquires the single-flight guard, skipping when the job is busy.
func (s *Scheduler) run(ctx context.Context, j *job, trigger Trigger) {
	if !j.running.CompareAndSwap(false, true) {
		s.skip(ctx, j, trigger)
		return
	}
	s.execute(ctx, j, trigger)
}

// execute runs the job body. The caller must have won the running guard.
func (s *Scheduler) execute(ctx context.Context, j *job, trigger Trigger) {
	defer j.running.Store(false)

	started := time.Now()
	j.mu.Lock()
	j.lastStarted = started
	j.lastTrigger = trigger
	j.mu.Unlock()

	s.logger.InfoContext(ctx, "job started", "job", j.id, "trigger", string(trigger))
	err := j.fn(ctx)

	j.mu.Lock()
	j.lastError = ""
	if err != nil {
		j.lastError = err.Error()
	}
	j.mu.Unlock()

	if err != nil {
		s.logger.ErrorContext(ctx, "job failed",
			"job", j.id, "trigger", string(trigger),
			"duration", time.Since(started), "error", err)
		return
	}
	s.logger.InfoContext(ctx, "job finished",
		"job", j.id, "trigger", string(trigger), "duration", time.Since(started))
}

func (s *Scheduler) skip(ctx context.Context, j *job, trigger Trigger) {
	if s.metrics != nil {
		s.metrics.SchedulerSkips.WithLabelValues(j.id).Inc()
	}
	s.logger.WarnContext(ctx, "job already running, skipping trigger",
		"job", j.id, "trigger", string(trigger))
}
