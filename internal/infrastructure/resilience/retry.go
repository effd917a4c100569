package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"ChatDigest/internal/ports"
)

// Config bounds the retries of one outbound call.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Permanent marks an error that must not be retried (4xx responses, bad input).
type Permanent struct {
	Err error
}

func (e *Permanent) Error() string { return e.Err.Error() }
func (e *Permanent) Unwrap() error { return e.Err }

// IsPermanent reports whether err, or anything it wraps, is *Permanent.
func IsPermanent(err error) bool {
	var p *Permanent
	return errors.As(err, &p)
}

func normalize(cfg Config) Config {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

// NewPolicy builds an exponential backoff policy. Cancellation and
// permanent errors end the attempts immediately; once retries run out the
// last failure is returned as is.
func NewPolicy[R any](cfg Config) retrypolicy.RetryPolicy[R] {
	cfg = normalize(cfg)
	return retrypolicy.NewBuilder[R]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ R, err error) bool {
			if err == nil {
				return false
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return !IsPermanent(err)
		}).
		ReturnLastFailure().
		Build()
}

// Do runs fn under a policy built from cfg.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := failsafe.With(NewPolicy[any](cfg)).WithContext(ctx).Get(func() (any, error) {
		return nil, fn()
	})
	return err
}

// RetryingGenerator retries a summarization backend.
type RetryingGenerator struct {
	next     ports.Generator
	executor failsafe.Executor[string]
	logger   *slog.Logger
}

var _ ports.Generator = (*RetryingGenerator)(nil)

// NewRetryingGenerator returns next unchanged when cfg allows no retries.
func NewRetryingGenerator(next ports.Generator, cfg Config, logger *slog.Logger) ports.Generator {
	if next == nil || cfg.MaxRetries <= 0 {
		return next
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy := NewPolicy[string](cfg)
	return &RetryingGenerator{next: next, executor: failsafe.With(policy), logger: logger}
}

// Generate calls the wrapped generator until it succeeds or retries run out.
func (g *RetryingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	attempt := 0
	return g.executor.WithContext(ctx).Get(func() (string, error) {
		attempt++
		text, err := g.next.Generate(ctx, prompt)
		if err != nil {
			g.logger.Debug("generate attempt failed", "attempt", attempt, "error", err)
		}
		return text, err
	})
}
