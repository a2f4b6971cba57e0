// Package admission decides whether a request may proceed, based on the
// client origin and the presented Basic credential.
package admission

import (
	"context"
	"fmt"
)

// Decision is the outcome of Gate.Admit.
type Decision int

const (
	Allow Decision = iota
	DenyOrigin
	DenyNoCredential
	DenyBadCredential
	DenyLockedOut
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "ALLOW"
	case DenyOrigin:
		return "DENY_ORIGIN"
	case DenyNoCredential:
		return "DENY_NO_CREDENTIAL"
	case DenyBadCredential:
		return "DENY_BAD_CREDENTIAL"
	case DenyLockedOut:
		return "DENY_LOCKED_OUT"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// AttemptTracker is the failure bookkeeping the gate consults.
type AttemptTracker interface {
	RecordFailure(ctx context.Context, origin string) (int, error)
	RecordSuccess(ctx context.Context, origin string) error
	IsLockedOut(ctx context.Context, origin string) (bool, error)
}

// Result carries the decision plus details for logging. Failures is the
// origin's failure count after a recorded failure, 0 otherwise. Err holds a
// decode, verification or tracker error; it never changes a deny into an
// allow.
type Result struct {
	Decision Decision
	Failures int
	Err      error
}

// Gate composes the origin allowlist and credential check.
type Gate struct {
	allowlist *Allowlist
	verifier  Verifier
	tracker   AttemptTracker
}

// NewGate creates a Gate. All arguments are required.
func NewGate(allowlist *Allowlist, verifier Verifier, tracker AttemptTracker) (*Gate, error) {
	if allowlist == nil {
		return nil, fmt.Errorf("allowlist is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("attempt tracker is required")
	}
	return &Gate{allowlist: allowlist, verifier: verifier, tracker: tracker}, nil
}

// Admit decides for one request. The origin check runs first and touches
// neither the header nor the tracker. Once an origin is locked out, even a
// correct credential is refused.
func (g *Gate) Admit(ctx context.Context, origin, authorization string) Result {
	if !g.allowlist.Contains(origin) {
		return Result{Decision: DenyOrigin}
	}
	if authorization == "" {
		return Result{Decision: DenyNoCredential}
	}

	locked, err := g.tracker.IsLockedOut(ctx, origin)
	if err != nil {
		return Result{Decision: DenyBadCredential, Err: err}
	}
	if locked {
		return Result{Decision: DenyLockedOut}
	}

	cred, err := ParseBasic(authorization)
	if err != nil {
		return g.fail(ctx, origin, err)
	}

	ok, err := g.verifier.Verify(cred)
	if err != nil {
		return g.fail(ctx, origin, err)
	}
	if !ok {
		return g.fail(ctx, origin, nil)
	}

	return Result{Decision: Allow, Err: g.tracker.RecordSuccess(ctx, origin)}
}

func (g *Gate) fail(ctx context.Context, origin string, cause error) Result {
	n, err := g.tracker.RecordFailure(ctx, origin)
	if err != nil && cause == nil {
		cause = err
	}
	return Result{Decision: DenyBadCredential, Failures: n, Err: cause}
}
