package access

import "time"

// Actor is the authenticated principal as the console sees it.
type Actor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// EffectiveRole returns the actor role, customer when the role is unknown.
func (a *Actor) EffectiveRole() Role {
	if a == nil {
		return RoleCustomer
	}
	return ParseRole(string(a.Role))
}

// Resolver computes effective capability maps against a policy.
type Resolver struct {
	policy Policy
}

// NewResolver builds a resolver over a copy of policy. A nil policy falls
// back to the default table.
func NewResolver(policy Policy) *Resolver {
	if policy == nil {
		policy = defaultPolicy
	}
	return &Resolver{policy: policy.Clone()}
}

var defaultResolver = NewResolver(nil)

// DefaultResolver returns the resolver over the built-in policy.
func DefaultResolver() *Resolver {
	return defaultResolver
}

// Policy returns a copy of the resolver policy.
func (r *Resolver) Policy() Policy {
	return r.policy.Clone()
}

// Baseline returns the policy row for role without any server overrides.
func (r *Resolver) Baseline(role Role) CapabilityMap {
	return r.policy.Row(ParseRole(string(role)))
}

// Resolve starts from the policy row for role and replaces each module that
// the normalized payload names. Overrides are wholesale per module; flags are
// never merged.
func (r *Resolver) Resolve(role Role, raw any) CapabilityMap {
	caps := r.Baseline(role)
	for module, c := range Normalize(raw) {
		caps.set(module, c)
	}
	return caps
}

// ResolveActor resolves for actor. A nil actor gets the customer baseline and
// the payload is ignored.
func (r *Resolver) ResolveActor(actor *Actor, raw any) CapabilityMap {
	if actor == nil {
		return r.Baseline(RoleCustomer)
	}
	return r.Resolve(actor.EffectiveRole(), raw)
}

// Resolve uses the default policy.
func Resolve(role Role, raw any) CapabilityMap {
	return defaultResolver.Resolve(role, raw)
}

// ResolveActor uses the default policy.
func ResolveActor(actor *Actor, raw any) CapabilityMap {
	return defaultResolver.ResolveActor(actor, raw)
}
