package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/cinefluent/pkg/icron"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

// Scheduler runs the periodic sweep on a cron expression.
type Scheduler struct {
	svc      *Service
	cronExpr string
	cron     *cron.Cron
	flight   singleflight.Group
}

func NewScheduler(svc *Service, cronExpr string) (*Scheduler, error) {
	if err := icron.Validate(cronExpr); err != nil {
		return nil, err
	}
	return &Scheduler{
		svc:      svc,
		cronExpr: cronExpr,
		cron:     cron.New(cron.WithParser(icron.Parser)),
	}, nil
}

// Run schedules the sweep and blocks until ctx is done. Overlapping
// triggers are collapsed into the sweep already running.
func (s *Scheduler) Run(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cronExpr, func() {
		_, _, _ = s.flight.Do("sweep", func() (any, error) {
			if _, err := s.svc.Sweep(ctx); err != nil {
				log.Error("Scheduled sweep failed: %v", err)
			}
			return nil, nil
		})
	})
	if err != nil {
		return err
	}

	if info, err := icron.GetTriggerInfo(s.cronExpr, time.Now()); err == nil {
		log.Info("Sweep scheduled with %q, next run in %s", s.cronExpr, info.TimeUntilNext.Round(time.Second))
	}
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
