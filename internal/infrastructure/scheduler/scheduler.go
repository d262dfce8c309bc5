package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// JobStatus represents the outcome of a job's latest run
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is a named unit of periodic work
type Job struct {
	Name string
	// Interval is the delay between the end of one run and the start of the next
	Interval time.Duration
	// Timeout bounds a single run; the runner default applies when zero
	Timeout time.Duration
	// InitialDelay postpones the first run
	InitialDelay time.Duration
	Run          func(ctx context.Context) error
}

// JobState is a snapshot of a job's run history
type JobState struct {
	Name        string
	Status      JobStatus
	Runs        int
	Failures    int
	LastError   string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Config holds runner configuration
type Config struct {
	JobTimeout time.Duration
}

// DefaultConfig returns default runner configuration
func DefaultConfig() Config {
	return Config{JobTimeout: 5 * time.Minute}
}

// Runner runs registered jobs on fixed delays. A job never overlaps itself;
// different jobs run concurrently.
type Runner struct {
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	jobs    []Job
	states  map[string]*JobState
	running bool
}

// NewRunner creates a new runner
func NewRunner(config Config, logger *zap.Logger) *Runner {
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config: config,
		logger: logger,
		states: make(map[string]*JobState),
	}
}

// Register adds a job. It must be called before Run.
func (r *Runner) Register(job Job) error {
	if job.Name == "" || job.Run == nil || job.Interval <= 0 {
		return fmt.Errorf("%w: job %q needs a name, a run func and a positive interval", ErrInvalidConfig, job.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrRunnerStarted
	}
	if _, dup := r.states[job.Name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	r.jobs = append(r.jobs, job)
	r.states[job.Name] = &JobState{Name: job.Name, Status: JobStatusPending}
	return nil
}

// Run blocks until ctx is cancelled, running every registered job on its own goroutine
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRunnerStarted
	}
	r.running = true
	jobs := append([]Job(nil), r.jobs...)
	r.mu.Unlock()

	r.logger.Info("scheduler started", zap.Int("jobs", len(jobs)), zap.Duration("job_timeout", r.config.JobTimeout))

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			r.loop(gctx, job)
			return nil
		})
	}
	err := g.Wait()
	r.logger.Info("scheduler stopped")
	return err
}

func (r *Runner) loop(ctx context.Context, job Job) {
	timer := time.NewTimer(job.InitialDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		r.runOnce(ctx, job)
		timer.Reset(job.Interval)
	}
}

// runOnce executes one run with a timeout, recording its outcome. Panics are
// contained to the run.
func (r *Runner) runOnce(ctx context.Context, job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = r.config.JobTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := r.logger.With(zap.String("job", job.Name))
	started := time.Now()
	r.update(job.Name, func(s *JobState) {
		s.Status = JobStatusRunning
		s.StartedAt = &started
	})

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				log.Error("job panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return job.Run(runCtx)
	}()

	completed := time.Now()
	r.update(job.Name, func(s *JobState) {
		s.Runs++
		s.CompletedAt = &completed
		if err != nil {
			s.Status = JobStatusFailed
			s.Failures++
			s.LastError = err.Error()
			return
		}
		s.Status = JobStatusSuccess
		s.LastError = ""
	})

	if err != nil {
		if ctx.Err() != nil {
			log.Debug("job interrupted by shutdown", zap.Error(err))
			return
		}
		log.Error("job failed", zap.Error(err), zap.Duration("duration", completed.Sub(started)))
		return
	}
	log.Debug("job completed", zap.Duration("duration", completed.Sub(started)))
}

func (r *Runner) update(name string, fn func(*JobState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[name]; ok {
		fn(s)
	}
}

// Snapshot returns the state of every job in registration order
func (r *Runner) Snapshot() []JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobState, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, *r.states[j.Name])
	}
	return out
}
