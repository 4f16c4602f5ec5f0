package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Specs take five fields, or six with leading seconds, and the @-descriptors.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler runs jobs on cron specs. A job that is still running when its
// next tick arrives is skipped, never run twice at once.
type Scheduler struct {
	cron   *cron.Cron
	logger cron.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger cron.Logger) *Scheduler {
	if logger == nil {
		logger = cron.DiscardLogger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Validate checks a spec without scheduling anything.
func Validate(spec string) error {
	_, err := parser.Parse(spec)
	return err
}

// AddJob schedules job. The context passed to it is cancelled by Stop.
func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil {
			s.logger.Error(err, "scheduled job failed", "spec", spec)
		}
	})
	return err
}

// Next returns the next activation time across all jobs, or the zero time.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
}
