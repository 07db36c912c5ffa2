package roles

import (
	"github.com/freshcart/console/internal/access"
	"github.com/freshcart/console/internal/shared"
)

// Service exposes the default role policy.
type Service struct {
	resolver *access.Resolver
}

// NewService builds Service instance. A nil resolver uses the default policy.
func NewService(resolver *access.Resolver) *Service {
	if resolver == nil {
		resolver = access.DefaultResolver()
	}
	return &Service{resolver: resolver}
}

// ListRoles returns every role in declaration order.
func (s *Service) ListRoles() []Role {
	out := make([]Role, 0, len(access.Roles()))
	for _, role := range access.Roles() {
		out = append(out, s.summary(role))
	}
	return out
}

// GetRole returns the default capabilities of the named role. Unlike the
// resolver it does not fall back to customer for unknown names.
func (s *Service) GetRole(name string) (Detail, error) {
	role := access.Role(name)
	if !role.Valid() {
		return Detail{}, shared.ErrNotFound
	}
	return Detail{Role: s.summary(role), Capabilities: s.resolver.Baseline(role)}, nil
}

func (s *Service) summary(role access.Role) Role {
	caps := s.resolver.Baseline(role)
	visible := 0
	for _, module := range access.Modules() {
		if caps.Get(module).Visible() {
			visible++
		}
	}
	return Role{Name: role, LandingPath: role.LandingPath(), Modules: visible}
}
