package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"growi_syncer/internal/domain"
	"growi_syncer/internal/source/growi"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context, req domain.SyncRequest) (*domain.SyncSummary, error)
}

// Job is one recurring synchronization. StartDate and EndDate of Request
// are replaced on every run by the trailing window of WindowDays days
// ending today.
type Job struct {
	Name       string
	Schedule   string
	WindowDays int
	Request    domain.SyncRequest
}

type Options struct {
	Location   *time.Location
	RunTimeout time.Duration
	RunOnStart bool
}

type Scheduler struct {
	cron   *cron.Cron
	syncer Syncer
	logger *slog.Logger
	loc    *time.Location
	opts   Options
	jobs   []Job
	now    func() time.Time
	wg     sync.WaitGroup
}

func New(syncer Syncer, opts Options, logger *slog.Logger) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 30 * time.Minute
	}

	cl := cronLogger{logger: logger.With("component", "cron")}
	c := cron.New(
		cron.WithLocation(opts.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:   c,
		syncer: syncer,
		logger: logger,
		loc:    opts.Location,
		opts:   opts,
		now:    time.Now,
	}
}

// AddJob registers a job. It must be called before Start.
func (s *Scheduler) AddJob(job Job) error {
	if _, err := cron.ParseStandard(job.Schedule); err != nil {
		return fmt.Errorf("parse schedule of job %s: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start runs the jobs until ctx is cancelled, then waits for running jobs
// to return. Runs of the same job never overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	ids := make([]cron.EntryID, 0, len(s.jobs))
	for _, job := range s.jobs {
		id, err := s.cron.AddJob(job.Schedule, cron.FuncJob(func() { s.run(ctx, job) }))
		if err != nil {
			return fmt.Errorf("schedule job %s: %w", job.Name, err)
		}
		ids = append(ids, id)
		s.logger.Info("scheduled job", "job", job.Name, "schedule", job.Schedule, "window_days", job.WindowDays)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(ids), "timezone", s.loc.String())

	if s.opts.RunOnStart {
		for _, id := range ids {
			wrapped := s.cron.Entry(id).WrappedJob
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				wrapped.Run()
			}()
		}
	}

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}

	req := job.Request
	req.StartDate, req.EndDate = TrailingWindow(s.now().In(s.loc), job.WindowDays)

	runCtx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	logger := s.logger.With("job", job.Name)
	logger.Info("starting job", "start_date", req.StartDate, "end_date", req.EndDate)

	summary, err := s.syncer.Sync(runCtx, req)
	if err != nil {
		logger.Error("job failed", "error", err)
		return
	}

	logger.Info("job completed",
		"run_id", summary.RunID,
		"pages_fetched", summary.PagesFetched,
		"rows_fetched", summary.RowsFetched,
		"rows_inserted", summary.RowsInserted,
		"duration", summary.Duration,
	)
}

// TrailingWindow returns the partner-formatted dates of the days-long
// window that ends on the calendar day of now.
func TrailingWindow(now time.Time, days int) (start, end string) {
	if days < 1 {
		days = 1
	}
	first := now.AddDate(0, 0, -(days - 1))
	return first.Format(growi.DateLayout), now.Format(growi.DateLayout)
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
