package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JustinTDCT/SerialDesk/internal/jobs"
	"github.com/JustinTDCT/SerialDesk/internal/logger"
	"github.com/JustinTDCT/SerialDesk/internal/maintenance"
)

// Scheduler dispatches a fixed list of maintenance tasks on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher jobs.Dispatcher
	tasks      []string
	timeout    time.Duration
	log        *logger.Logger
}

// New validates the schedule and task names. The schedule takes the standard
// five fields or a descriptor such as @hourly.
func New(schedule string, tasks []string, d jobs.Dispatcher, log *logger.Logger) (*Scheduler, error) {
	for _, t := range tasks {
		if !maintenance.Known(t) {
			return nil, fmt.Errorf("scheduler: %w: %s", maintenance.ErrUnknownTask, t)
		}
	}
	s := &Scheduler{
		cron:       cron.New(),
		dispatcher: d,
		tasks:      tasks,
		timeout:    10 * time.Minute,
		log:        log.Named("scheduler"),
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("scheduler: invalid MAINTENANCE_SCHEDULE %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("maintenance scheduler started", "tasks", s.tasks)
}

// Stop waits for a running tick to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.log.Info("maintenance scheduler stopped")
}

// Next reports when the schedule fires next.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(time.Now())
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	for _, task := range s.tasks {
		out, err := s.dispatcher.Dispatch(ctx, task)
		if err != nil {
			s.log.Error("scheduled task failed", "task", task, "error", err)
			continue
		}
		s.log.Info("scheduled task dispatched", "task", task, "queued", out.Queued, "job_id", out.JobID)
	}
}
