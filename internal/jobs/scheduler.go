package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"gradportrait/internal/tasks"
)

type Publisher interface {
	Publish(ctx context.Context, payload tasks.TaskPayload) error
}

type Scheduler struct {
	cron      *cron.Cron
	queue     Publisher
	sweepSpec string
	log       zerolog.Logger
}

// NewScheduler enqueues periodic maintenance tasks. sweepSpec is a cron
// expression with a leading seconds field.
func NewScheduler(queue Publisher, sweepSpec string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:      c,
		queue:     queue,
		sweepSpec: sweepSpec,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.sweepSpec, s.enqueueSweep); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler jobs still running at shutdown")
	}
}

func (s *Scheduler) enqueueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.Publish(ctx, tasks.TaskPayload{Type: tasks.TypeSweepUploads}); err != nil {
		s.log.Error().Err(err).Msg("enqueue upload sweep failed")
	}
}
