package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"forum-sync/models"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type runFunc func(ctx context.Context) (*models.RunContext, error)

type scheduler struct {
	cron *cron.Cron
	job  cron.Job
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// cronLogger adapts zerolog to cron's logging interface.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// startScheduler runs run on every tick of spec. A tick that fires while the
// previous run is still going is skipped.
func startScheduler(ctx context.Context, spec string, run runFunc, log zerolog.Logger) (*scheduler, error) {
	logger := cronLogger{log: log}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		log.Info().Msg("Running scheduled sync...")
		if _, err := run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled sync failed")
		}
	}))

	c := cron.New(cron.WithLogger(logger))
	c.Schedule(sched, job)
	c.Start()
	log.Info().Str("schedule", spec).Time("next", sched.Next(time.Now())).Msg("Cron job scheduled")

	return &scheduler{cron: c, job: job, log: log}, nil
}

// runNow starts a run outside the schedule, sharing its overlap guard.
func (s *scheduler) runNow() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
}

// stop halts the schedule and waits for a running sync to return.
func (s *scheduler) stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
}
