package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Sweeper evicts expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// Scheduler periodically sweeps idle directory sessions.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		sweeper:   sweeper,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the sweep job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(func() {
		removed := s.sweeper.Sweep()
		s.logger.Debug("session sweep completed", zap.Int("removed", removed))
	})
	if err != nil {
		return err
	}

	s.logger.Info("session sweeper scheduled", zap.Duration("interval", interval))
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
