// Package scheduler wires up the cron jobs that reset the rate-limit
// counters: daily at midnight and hourly on the hour.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DailySpec  = "@midnight"
	HourlySpec = "@hourly"
)

// Resetter zeroes the counters of a period.
type Resetter interface {
	ResetDaily(ctx context.Context) error
	ResetHourly(ctx context.Context) error
}

// Scheduler wraps robfig/cron and owns the reset jobs.
type Scheduler struct {
	cron     *cron.Cron
	resetter Resetter
	log      *slog.Logger

	dailyID  cron.EntryID
	hourlyID cron.EntryID
}

// New creates a Scheduler evaluating its specs in loc (time.Local when nil).
func New(resetter Resetter, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	cronLog := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		resetter: resetter,
		log:      logger,
	}
}

// Start registers the jobs and starts the scheduler. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	var err error
	s.dailyID, err = s.cron.AddFunc(DailySpec, func() { s.run(ctx, "daily", s.resetter.ResetDaily) })
	if err != nil {
		return fmt.Errorf("cron.AddFunc %s: %w", DailySpec, err)
	}
	s.hourlyID, err = s.cron.AddFunc(HourlySpec, func() { s.run(ctx, "hourly", s.resetter.ResetHourly) })
	if err != nil {
		return fmt.Errorf("cron.AddFunc %s: %w", HourlySpec, err)
	}

	s.cron.Start()
	s.log.Info("scheduler started", "daily", DailySpec, "hourly", HourlySpec,
		"nextDaily", s.cron.Entry(s.dailyID).Next)
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, name string, reset func(context.Context) error) {
	if err := reset(ctx); err != nil {
		s.log.Error("counter reset failed", "period", name, "err", err)
		return
	}
	s.log.Debug("counter reset", "period", name)
}
