package rbac

import (
	"context"

	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/shared"
)

// TokenVerifier checks a bearer token and names the session it belongs to.
type TokenVerifier interface {
	Verify(token string) (shared.SessionClaims, error)
}

// SessionLookup reads the live identity of a session.
type SessionLookup interface {
	Lookup(ctx context.Context, sessionID string) (shared.Identity, bool, error)
}

// DecisionRecorder counts route guard outcomes.
type DecisionRecorder interface {
	RecordAccessDecision(module, outcome string)
}

// Principal is the resolved view of the current request.
type Principal struct {
	Actor         *access.Actor
	Capabilities  access.CapabilityMap
	Authenticated bool
}

// Role returns the effective role, customer when anonymous.
func (p Principal) Role() access.Role {
	return p.Actor.EffectiveRole()
}
