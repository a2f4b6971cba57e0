// Package availability implements the cooperative, advisory exclusion with
// the external writer of the served file: the writer creates a marker file
// while it rewrites the data, and readers wait for the marker to go away.
//
// The protocol is racy by construction. Absence of the marker at check time
// does not guarantee the file stays stable through the following read.
package availability

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/clock"
)

// ErrResourceBusy is returned when the marker stayed present for the whole
// retry budget.
var ErrResourceBusy = errors.New("resource busy")

const (
	DefaultRetries = 5
	DefaultDelay   = time.Second
)

// BusyChecker reports whether the writer currently holds the resource.
type BusyChecker interface {
	Busy() (bool, error)
}

// MarkerFile treats the existence of Path as "busy". The file is only ever
// stat'ed, never created or removed. A stat failure other than not-exist
// is reported as busy along with the error.
type MarkerFile struct {
	Path string
}

func (m MarkerFile) Busy() (bool, error) {
	_, err := os.Stat(m.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return true, err
	}
}

// Policy is a fixed-interval retry budget: one initial check followed by
// up to Retries re-checks, each Delay apart.
type Policy struct {
	Retries int
	Delay   time.Duration
}

// DefaultPolicy returns 5 retries, 1s apart.
func DefaultPolicy() Policy {
	return Policy{Retries: DefaultRetries, Delay: DefaultDelay}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", p.Retries)
	}
	if p.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %s", p.Delay)
	}
	return nil
}

// MaxWait is the worst-case time AwaitAvailable blocks.
func (p Policy) MaxWait() time.Duration {
	return time.Duration(p.Retries) * p.Delay
}

// Coordinator waits for a BusyChecker to report the resource free.
type Coordinator struct {
	checker BusyChecker
	policy  Policy
	clock   clock.Clock
	logger  zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used between checks.
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clock = clock.OrReal(c) }
}

// WithLogger sets the logger used for wait messages.
func WithLogger(l zerolog.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(checker BusyChecker, policy Policy, opts ...Option) (*Coordinator, error) {
	if checker == nil {
		return nil, fmt.Errorf("busy checker is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	co := &Coordinator{
		checker: checker,
		policy:  policy,
		clock:   clock.NewRealClock(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(co)
	}
	return co, nil
}

// Policy returns the configured retry policy.
func (co *Coordinator) Policy() Policy { return co.policy }

// AwaitAvailable returns nil as soon as a check finds the resource free.
// It returns the number of delays it waited through, and ErrResourceBusy
// if every check including the last found the marker present. A cancelled
// ctx ends the wait with ctx.Err().
func (co *Coordinator) AwaitAvailable(ctx context.Context) (int, error) {
	waits := 0
	var lastErr error

	check := func() error {
		busy, err := co.checker.Busy()
		if err != nil {
			lastErr = err
		}
		if busy {
			return ErrResourceBusy
		}
		return nil
	}
	notify := func(_ error, next time.Duration) {
		waits++
		co.logger.Info().
			Int("retry", waits).
			Int("max_retries", co.policy.Retries).
			Dur("delay", next).
			Msg("busy marker present, waiting")
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(co.policy.Delay), uint64(co.policy.Retries)),
		ctx,
	)
	err := backoff.RetryNotifyWithTimer(check, b, notify, &clockTimer{clock: co.clock})
	if err == nil {
		return waits, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return waits, ctxErr
	}
	if lastErr != nil {
		return waits, fmt.Errorf("%w: %v", ErrResourceBusy, lastErr)
	}
	return waits, ErrResourceBusy
}

// clockTimer adapts clock.Clock to backoff.Timer.
type clockTimer struct {
	clock clock.Clock
	ch    <-chan time.Time
}

func (t *clockTimer) Start(d time.Duration) { t.ch = t.clock.After(d) }

func (t *clockTimer) Stop() {}

func (t *clockTimer) C() <-chan time.Time { return t.ch }
