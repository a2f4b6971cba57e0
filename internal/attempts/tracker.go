// Package attempts counts failed authentication attempts per client origin
// and decides when an origin is locked out.
package attempts

import (
	"context"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/storage"
)

// DefaultThreshold is the number of failures that locks an origin out.
const DefaultThreshold = 5

// Tracker records failures and successes per origin on top of a Storage.
//
// With a zero window a lockout is permanent for the lifetime of the
// counters (process lifetime for the memory backend). A positive window
// expires an origin's counter that long after its first failure.
type Tracker struct {
	store     storage.Storage
	threshold int
	window    time.Duration
}

// New creates a Tracker. threshold <= 0 falls back to DefaultThreshold.
func New(store storage.Storage, threshold int, window time.Duration) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window < 0 {
		return nil, fmt.Errorf("lockout window must not be negative, got %s", window)
	}
	return &Tracker{store: store, threshold: threshold, window: window}, nil
}

// Threshold returns the failure count at which an origin is locked out.
func (t *Tracker) Threshold() int { return t.threshold }

// RecordFailure increments the origin's failure count and returns it.
func (t *Tracker) RecordFailure(ctx context.Context, origin string) (int, error) {
	n, err := t.store.Increment(ctx, origin, 1, t.window)
	if err != nil {
		return 0, fmt.Errorf("recording failure for %s: %w", origin, err)
	}
	return int(n), nil
}

// RecordSuccess resets the origin's failure count to zero.
func (t *Tracker) RecordSuccess(ctx context.Context, origin string) error {
	if err := t.store.Delete(ctx, origin); err != nil {
		return fmt.Errorf("resetting failures for %s: %w", origin, err)
	}
	return nil
}

// Failures returns the origin's current failure count.
func (t *Tracker) Failures(ctx context.Context, origin string) (int, error) {
	n, err := t.store.Counter(ctx, origin)
	if err != nil {
		return 0, fmt.Errorf("reading failures for %s: %w", origin, err)
	}
	return int(n), nil
}

// IsLockedOut reports whether the origin reached the threshold.
func (t *Tracker) IsLockedOut(ctx context.Context, origin string) (bool, error) {
	n, err := t.Failures(ctx, origin)
	if err != nil {
		return false, err
	}
	return n >= t.threshold, nil
}
