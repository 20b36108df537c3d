package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
	openrouterx "github.com/tanpawarit/habit-elevate/pkg/openrouter"
)

const (
	BusyMessage    = "The assistant is busy right now. Please try again in a moment."
	TimeoutMessage = "The assistant took too long to answer. Please try again."
)

type Config struct {
	MaxAttempts     int           `envconfig:"MAX_ATTEMPTS" split_words:"true" default:"3"`
	BaseDelay       time.Duration `envconfig:"BASE_DELAY" split_words:"true" default:"2s"`
	ExchangeTimeout time.Duration `envconfig:"EXCHANGE_TIMEOUT" split_words:"true" default:"2m"`
}

func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1", contractx.ErrValidation)
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("%w: base delay must be >= 0", contractx.ErrValidation)
	}
	return nil
}

type Request struct {
	Message    string
	UserID     string
	HabitFocus string
}

type Option func(*Responder)

// WithSleep replaces the delay between rate-limited attempts. The function must return early
// with ctx.Err() when ctx is done.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Responder) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

func WithRateLimitClassifier(fn func(error) bool) Option {
	return func(r *Responder) {
		if fn != nil {
			r.isRateLimited = fn
		}
	}
}

// Responder runs one chat exchange per request and reports it as a stream of events.
type Responder struct {
	factory contractx.AgentFactory
	cfg     Config

	isRateLimited func(error) bool
	sleep         func(ctx context.Context, d time.Duration) error
}

func New(factory contractx.AgentFactory, cfg Config, opts ...Option) (*Responder, error) {
	if factory == nil {
		return nil, errors.New("agent factory is required")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Responder{
		factory:       factory,
		cfg:           cfg,
		isRateLimited: defaultRateLimited,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Stream starts the exchange and returns its events. The channel is closed after the terminal
// event, or early when ctx is cancelled.
func (r *Responder) Stream(ctx context.Context, req Request) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		r.produce(ctx, req, out)
	}()
	return out
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRateLimited
	outcomeTimeout
	outcomeFailed
)

type attemptOutcome struct {
	kind outcomeKind
	text string
	err  error
}

func (r *Responder) produce(ctx context.Context, req Request, out chan<- StreamEvent) {
	logger := log.With().Str("user_id", req.UserID).Logger()

	emit := func(ev StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(statusEvent(contractx.StatusThinking, "Processing your request...")) {
		return
	}

	runCtx := ctx
	if r.cfg.ExchangeTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.ExchangeTimeout)
		defer cancel()
	}
	runCtx = contractx.WithStatus(runCtx, func(kind contractx.StatusKind, message string) {
		emit(statusEvent(kind, message))
	})

	agent, err := r.factory.ForUser(runCtx, req.UserID, contractx.AgentOptions{HabitFocus: req.HabitFocus})
	if err != nil {
		logger.Error().Err(err).Msg("build agent failed")
		emit(errorEvent(err.Error()))
		return
	}

	delays := r.newBackOff()
	for attempt := 1; ; attempt++ {
		outcome := r.attempt(runCtx, agent, req.Message)

		switch outcome.kind {
		case outcomeSuccess:
			if !emit(statusEvent(contractx.StatusGeneratingUI, "Preparing the response...")) {
				return
			}
			if !emit(contentEvent(outcome.text)) {
				return
			}
			emit(doneEvent())
			return

		case outcomeRateLimited:
			if attempt >= r.cfg.MaxAttempts {
				logger.Warn().Err(outcome.err).Int("attempt", attempt).Msg("rate limited, attempts exhausted")
				emit(errorEvent(BusyMessage))
				return
			}
			delay := delays.NextBackOff()
			logger.Warn().Err(outcome.err).Int("attempt", attempt).Dur("delay", delay).Msg("rate limited, retrying")
			if !emit(statusEvent(contractx.StatusRetrying, fmt.Sprintf("High demand, retrying in %s...", delay))) {
				return
			}
			if err := r.sleep(runCtx, delay); err != nil {
				if ctx.Err() != nil {
					logger.Debug().Msg("client went away during retry delay")
					return
				}
				emit(errorEvent(TimeoutMessage))
				return
			}

		case outcomeTimeout:
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(outcome.err).Int("attempt", attempt).Msg("exchange deadline exceeded")
			emit(errorEvent(TimeoutMessage))
			return

		default:
			logger.Error().Err(outcome.err).Int("attempt", attempt).Msg("agent run failed")
			emit(errorEvent(outcome.err.Error()))
			return
		}
	}
}

func (r *Responder) attempt(ctx context.Context, agent contractx.Agent, message string) attemptOutcome {
	text, err := agent.Run(ctx, message)
	switch {
	case err == nil:
		return attemptOutcome{kind: outcomeSuccess, text: strings.TrimSpace(text)}
	case ctx.Err() != nil:
		return attemptOutcome{kind: outcomeTimeout, err: err}
	case r.isRateLimited(err):
		return attemptOutcome{kind: outcomeRateLimited, err: err}
	default:
		return attemptOutcome{kind: outcomeFailed, err: err}
	}
}

func (r *Responder) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = r.cfg.BaseDelay << r.cfg.MaxAttempts
	b.Reset()
	return b
}

func defaultRateLimited(err error) bool {
	return errors.Is(err, contractx.ErrRateLimited) || openrouterx.IsRateLimited(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
