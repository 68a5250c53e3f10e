package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"growi_syncer/internal/config"
	"growi_syncer/internal/domain"
	"growi_syncer/internal/scheduler"
)

func runDaemon(cmd *cobra.Command, _ []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := a.cfg.Sync.Location()
	if err != nil {
		return err
	}

	sched := scheduler.New(a.syncer, scheduler.Options{
		Location:   loc,
		RunTimeout: a.cfg.Sync.RunTimeout,
		RunOnStart: a.cfg.Sync.RunOnStart,
	}, a.logger)

	for _, job := range a.cfg.Sync.Jobs {
		if err := sched.AddJob(schedulerJob(a.cfg.Growi, job)); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("starting growi syncer", "version", version, "jobs", len(a.cfg.Sync.Jobs))

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func schedulerJob(g config.GrowiConfig, job config.JobConfig) scheduler.Job {
	return scheduler.Job{
		Name:       job.Name,
		Schedule:   job.Schedule,
		WindowDays: job.WindowDays,
		Request: domain.SyncRequest{
			Variant:    job.Variant,
			Credential: g.Credential(job.Variant),
			PerPage:    job.PerPage,
			Limit:      job.Limit,
			IncludeGMV: job.IncludeGMV,
			MaxPages:   job.MaxPages,
			PageDelay:  job.PageDelay,
		},
	}
}
