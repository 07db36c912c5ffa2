package rbac

import (
	"encoding/json"
	"fmt"

	"github.com/freshcart/console/internal/access"
)

// Service bundles the resolver, the route gate and the dashboard menu.
type Service struct {
	resolver *access.Resolver
	gate     access.Gate
	menu     []access.MenuItem
}

// NewService constructs a Service. A nil resolver uses the default policy.
func NewService(resolver *access.Resolver) (*Service, error) {
	if resolver == nil {
		resolver = access.DefaultResolver()
	}
	menu, err := access.DefaultMenu()
	if err != nil {
		return nil, fmt.Errorf("rbac: load menu: %w", err)
	}
	return &Service{resolver: resolver, menu: menu}, nil
}

// Resolve builds the principal for actor and its raw permission payload.
func (s *Service) Resolve(actor *access.Actor, payload json.RawMessage) Principal {
	var raw any
	if len(payload) > 0 {
		raw = payload
	}
	return Principal{
		Actor:         actor,
		Capabilities:  s.resolver.ResolveActor(actor, raw),
		Authenticated: actor != nil,
	}
}

// Check runs the route guard.
func (s *Service) Check(p Principal, rule access.RouteRule, requested string) access.Decision {
	return s.gate.Check(p.Actor, p.Capabilities, rule, requested)
}

// Menu returns the entries visible to the principal.
func (s *Service) Menu(p Principal) []access.MenuItem {
	return access.FilterMenu(s.menu, p.Role(), p.Capabilities)
}

// Baseline returns the default capability map of role.
func (s *Service) Baseline(role access.Role) access.CapabilityMap {
	return s.resolver.Baseline(role)
}

// Screens returns every menu entry, visible or not.
func (s *Service) Screens() []access.MenuItem {
	out := make([]access.MenuItem, len(s.menu))
	copy(out, s.menu)
	return out
}
