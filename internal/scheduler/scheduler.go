package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the daily summary on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc
	spec       string
	reportFunc func(ctx context.Context) error
	log        zerolog.Logger
}

// New creates a scheduler evaluating spec in loc. An empty spec disables it.
func New(spec string, loc *time.Location, log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		ctx:    ctx,
		cancel: cancel,
		spec:   spec,
		log:    log,
	}
}

func (s *Scheduler) SetReportFunction(f func(ctx context.Context) error) {
	s.reportFunc = f
}

func (s *Scheduler) Start() error {
	if s.reportFunc == nil || s.spec == "" {
		s.log.Info().Msg("daily report disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, s.runReport)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.spec).Msg("scheduler started")
	return nil
}

func (s *Scheduler) runReport() {
	s.log.Info().Msg("daily report triggered")
	if err := s.reportFunc(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("daily report failed")
	}
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info().Msg("scheduler stopped")
}

// IsRunning reports whether the report job is scheduled.
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
