package admission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/attempts"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/storage"
)

var ctx = context.Background()

const (
	allowed = "192.168.50.1"
	user    = "admin"
	pass    = "K7$mP9!xL2qJ4"
)

var good = Credential{Username: user, Password: pass}.Header()

// spyTracker wraps a real tracker and counts calls.
type spyTracker struct {
	inner *attempts.Tracker
	calls int
	err   error
}

func (s *spyTracker) RecordFailure(ctx context.Context, origin string) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.inner.RecordFailure(ctx, origin)
}

func (s *spyTracker) RecordSuccess(ctx context.Context, origin string) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return s.inner.RecordSuccess(ctx, origin)
}

func (s *spyTracker) IsLockedOut(ctx context.Context, origin string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.inner.IsLockedOut(ctx, origin)
}

func newGate(t *testing.T) (*Gate, *spyTracker) {
	t.Helper()
	tr, err := attempts.New(storage.NewMemoryStorage(nil), attempts.DefaultThreshold, 0)
	require.NoError(t, err)
	spy := &spyTracker{inner: tr}

	al, err := ParseAllowlist([]string{allowed})
	require.NoError(t, err)

	g, err := NewGate(al, PlainVerifier{Username: user, Password: pass}, spy)
	require.NoError(t, err)
	return g, spy
}

func TestGate_Allow(t *testing.T) {
	g, _ := newGate(t)
	res := g.Admit(ctx, allowed, good)
	assert.Equal(t, Allow, res.Decision)
	assert.NoError(t, res.Err)
}

func TestGate_UnknownOriginNeverTouchesTracker(t *testing.T) {
	g, spy := newGate(t)

	for _, header := range []string{good, "", "Basic garbage", basic("admin:wrong")} {
		res := g.Admit(ctx, "10.0.0.9", header)
		assert.Equal(t, DenyOrigin, res.Decision)
	}
	assert.Zero(t, spy.calls)
}

func TestGate_MissingCredential(t *testing.T) {
	g, spy := newGate(t)
	res := g.Admit(ctx, allowed, "")
	assert.Equal(t, DenyNoCredential, res.Decision)
	assert.Zero(t, spy.calls)
}

func TestGate_BadCredentialCountsFailure(t *testing.T) {
	g, _ := newGate(t)

	res := g.Admit(ctx, allowed, basic("admin:wrong"))
	assert.Equal(t, DenyBadCredential, res.Decision)
	assert.Equal(t, 1, res.Failures)
	assert.NoError(t, res.Err)

	res = g.Admit(ctx, allowed, "Basic %%%")
	assert.Equal(t, DenyBadCredential, res.Decision)
	assert.Equal(t, 2, res.Failures)
	assert.ErrorIs(t, res.Err, ErrMalformedCredential)
}

func TestGate_LockoutBeatsCorrectCredential(t *testing.T) {
	g, _ := newGate(t)

	for i := 1; i <= attempts.DefaultThreshold; i++ {
		res := g.Admit(ctx, allowed, basic("admin:wrong"))
		require.Equal(t, DenyBadCredential, res.Decision)
		require.Equal(t, i, res.Failures)
	}

	res := g.Admit(ctx, allowed, good)
	assert.Equal(t, DenyLockedOut, res.Decision)
}

func TestGate_SuccessResetsCount(t *testing.T) {
	g, spy := newGate(t)

	for i := 0; i < attempts.DefaultThreshold-1; i++ {
		g.Admit(ctx, allowed, basic("admin:wrong"))
	}
	require.Equal(t, Allow, g.Admit(ctx, allowed, good).Decision)

	res := g.Admit(ctx, allowed, basic("admin:wrong"))
	assert.Equal(t, 1, res.Failures)
	assert.Equal(t, Allow, g.Admit(ctx, allowed, good).Decision)

	n, err := spy.inner.Failures(ctx, allowed)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGate_TrackerErrorFailsClosed(t *testing.T) {
	g, spy := newGate(t)
	spy.err = errors.New("redis unavailable")

	res := g.Admit(ctx, allowed, good)
	assert.Equal(t, DenyBadCredential, res.Decision)
	assert.ErrorIs(t, res.Err, spy.err)
}

func TestNewGate_RequiresDependencies(t *testing.T) {
	al, _ := ParseAllowlist(nil)
	_, err := NewGate(nil, PlainVerifier{}, &spyTracker{})
	assert.Error(t, err)
	_, err = NewGate(al, nil, &spyTracker{})
	assert.Error(t, err)
	_, err = NewGate(al, PlainVerifier{}, nil)
	assert.Error(t, err)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "ALLOW", Allow.String())
	assert.Equal(t, "DENY_LOCKED_OUT", DenyLockedOut.String())
	assert.Equal(t, "Decision(42)", Decision(42).String())
}
