package access

import "context"

type ctxKey int

const (
	actorKey ctxKey = iota
	capabilitiesKey
)

// ContextWithActor stores the authenticated actor.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor stored by ContextWithActor.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorKey).(*Actor)
	return actor, ok && actor != nil
}

// ContextWithCapabilities stores the resolved capability map of the request.
func ContextWithCapabilities(ctx context.Context, caps CapabilityMap) context.Context {
	return context.WithValue(ctx, capabilitiesKey, caps)
}

// CapabilitiesFromContext returns the resolved map, or the customer baseline
// when none was stored.
func CapabilitiesFromContext(ctx context.Context) CapabilityMap {
	if caps, ok := ctx.Value(capabilitiesKey).(CapabilityMap); ok {
		return caps
	}
	return defaultResolver.Baseline(RoleCustomer)
}
