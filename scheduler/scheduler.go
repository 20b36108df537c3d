// Package scheduler runs one-shot jobs at a wall-clock time, outside the lifetime of the
// request that registered them. Jobs live in memory only and are lost on restart.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

type Config struct {
	JobTimeout time.Duration `envconfig:"JOB_TIMEOUT" split_words:"true" default:"1m"`
}

// Action is the work a job performs when it fires.
type Action func(ctx context.Context) error

type Scheduler struct {
	cron   *cronlib.Cron
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu   sync.Mutex
	jobs map[string]cronlib.EntryID
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func New(cfg Config, opts ...Option) *Scheduler {
	logger := log.With().Str("component", "scheduler").Logger()
	adapter := cronLogger{logger: logger}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cronlib.New(
			cronlib.WithLogger(adapter),
			cronlib.WithChain(cronlib.Recover(adapter)),
		),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		jobs:       make(map[string]cronlib.EntryID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop stops firing new jobs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancelBase()

	select {
	case <-done.Done():
		s.logger.Info().Int("pending", s.Pending()).Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduler stop timed out with jobs still running")
		return ctx.Err()
	}
}

// Schedule registers action to run once at runAt and returns the job id. runAt must be
// strictly in the future; otherwise nothing is registered and the error wraps ErrScheduling.
func (s *Scheduler) Schedule(name string, runAt time.Time, action Action) (string, error) {
	if action == nil {
		return "", errors.New("scheduler: action is required")
	}
	now := s.now()
	if !runAt.After(now) {
		return "", fmt.Errorf("%w: run_at %s is not after now %s", contractx.ErrScheduling,
			runAt.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	jobID := uuid.NewString()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "job"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID := s.cron.Schedule(&onceSchedule{runAt: runAt}, cronlib.FuncJob(func() {
		s.run(jobID, name, action)
	}))
	s.jobs[jobID] = entryID

	s.logger.Info().
		Str("job_id", jobID).
		Str("job", name).
		Time("run_at", runAt).
		Msg("job scheduled")
	return jobID, nil
}

// Pending returns the number of registered jobs that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) run(jobID string, name string, action Action) {
	defer s.forget(jobID)

	ctx := s.baseCtx
	if s.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
	}

	logger := s.logger.With().Str("job_id", jobID).Str("job", name).Logger()
	started := time.Now()
	if err := action(ctx); err != nil {
		logger.Error().Err(err).Dur("took", time.Since(started)).Msg("job failed")
		return
	}
	logger.Info().Dur("took", time.Since(started)).Msg("job finished")
}

func (s *Scheduler) forget(jobID string) {
	s.mu.Lock()
	entryID, ok := s.jobs[jobID]
	delete(s.jobs, jobID)
	s.mu.Unlock()

	if ok {
		s.cron.Remove(entryID)
	}
}

// onceSchedule yields runAt on its first use and never again.
type onceSchedule struct {
	mu    sync.Mutex
	runAt time.Time
	used  bool
}

func (o *onceSchedule) Next(time.Time) time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.used {
		return time.Time{}
	}
	o.used = true
	return o.runAt
}

type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
