package jobs

import (
	"context"
	"time"

	"milltownabc/internal/logger"
	"milltownabc/internal/metrics"

	"github.com/robfig/cron/v3"
)

const (
	ScheduleTopUpSpec = "0 3 * * *"
	QueueSampleSpec   = "@every 30s"

	jobTimeout = 2 * time.Minute
)

type ScheduleGenerator interface {
	EnsureSchedule(ctx context.Context) (int, error)
}

type QueueMeter interface {
	QueueLength(ctx context.Context) (int64, error)
}

// Scheduler owns the periodic work of the process: topping up the rolling
// class schedule and sampling the email backlog.
type Scheduler struct {
	cron     *cron.Cron
	schedule ScheduleGenerator
	queue    QueueMeter
}

func NewScheduler(loc *time.Location, schedule ScheduleGenerator, queue QueueMeter) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		queue:    queue,
	}

	if _, err := s.cron.AddFunc(ScheduleTopUpSpec, s.TopUpSchedule); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(QueueSampleSpec, s.SampleQueue); err != nil {
		return nil, err
	}

	return s, nil
}

// Start runs one top-up straight away, then hands over to cron.
func (s *Scheduler) Start() {
	s.TopUpSchedule()
	s.cron.Start()
	logger.Info("Job scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for running jobs or ctx, whichever is first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) TopUpSchedule() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	created, err := s.schedule.EnsureSchedule(ctx)
	if err != nil {
		logger.Error("Scheduled class generation failed", "error", err)
		metrics.RecordBackgroundTask("schedule_top_up", "failed")
		return
	}

	logger.Info("Scheduled class generation finished", "created", created)
	metrics.RecordBackgroundTask("schedule_top_up", "ok")
}

func (s *Scheduler) SampleQueue() {
	if s.queue == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := s.queue.QueueLength(ctx)
	if err != nil {
		logger.Warn("Failed to read email queue length", "error", err)
		return
	}

	metrics.SetEmailQueueLength(n)
}
