package access

import "strings"

// Role identifies one of the fixed actor categories of the console.
type Role string

// Supported roles.
const (
	RoleAdmin         Role = "admin"
	RoleManager       Role = "manager"
	RoleShopOwner     Role = "shop_owner"
	RoleDeliveryAgent Role = "delivery_agent"
	RoleSupport       Role = "support"
	RoleCustomer      Role = "customer"
)

var allRoles = []Role{
	RoleAdmin,
	RoleManager,
	RoleShopOwner,
	RoleDeliveryAgent,
	RoleSupport,
	RoleCustomer,
}

// Roles returns every role in declaration order.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole maps a raw role string to a Role. Empty or unknown values map to
// RoleCustomer, the most restrictive baseline.
func ParseRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role.Valid() {
		return role
	}
	return RoleCustomer
}

// Valid reports whether r is one of the six declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleShopOwner, RoleDeliveryAgent, RoleSupport, RoleCustomer:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// LandingPath is where an actor of this role lands after login, and where a
// route guard sends an actor whose role is outside a route's allow-list.
func (r Role) LandingPath() string {
	switch r {
	case RoleCustomer:
		return "/customer"
	case RoleDeliveryAgent:
		return "/dashboard/delivery"
	case RoleSupport:
		return "/dashboard/tickets"
	case RoleAdmin, RoleManager, RoleShopOwner:
		return "/dashboard"
	}
	return RoleCustomer.LandingPath()
}

// roleIn reports whether role is listed in allowed.
func roleIn(role Role, allowed []Role) bool {
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}
