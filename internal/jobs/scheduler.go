package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Trimmer interface {
	Trim(ctx context.Context) (int64, error)
}

type Schedules struct {
	UpstreamHealth string
	AuditTrim      string
}

// Scheduler runs the portal's periodic jobs: an upstream reachability probe
// and trimming of the audit stream.
type Scheduler struct {
	cron      *cron.Cron
	schedules Schedules
	upstream  Pinger
	audit     Trimmer
	log       zerolog.Logger

	// healthy starts true so the first failed probe is logged as a transition.
	healthy atomic.Bool
}

func NewScheduler(schedules Schedules, upstream Pinger, audit Trimmer, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		schedules: schedules,
		upstream:  upstream,
		audit:     audit,
		log:       log.With().Str("component", "jobs").Logger(),
	}
	s.healthy.Store(true)
	return s
}

func (s *Scheduler) Start() error {
	if s.upstream != nil && s.schedules.UpstreamHealth != "" {
		if _, err := s.cron.AddFunc(s.schedules.UpstreamHealth, s.probeUpstream); err != nil {
			return err
		}
	}
	if s.audit != nil && s.schedules.AuditTrim != "" {
		if _, err := s.cron.AddFunc(s.schedules.AuditTrim, s.trimAudit); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs, at most five seconds.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

// UpstreamHealthy reports the result of the last probe.
func (s *Scheduler) UpstreamHealthy() bool {
	return s.healthy.Load()
}

func (s *Scheduler) probeUpstream() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.upstream.Ping(ctx)
	was := s.healthy.Swap(err == nil)
	switch {
	case err != nil && was:
		s.log.Error().Err(err).Msg("upstream became unreachable")
	case err == nil && !was:
		s.log.Info().Msg("upstream reachable again")
	}
}

func (s *Scheduler) trimAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.audit.Trim(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("trim audit stream failed")
		return
	}
	s.log.Info().Int64("removed", n).Msg("audit stream trimmed")
}
