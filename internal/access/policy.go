package access

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Policy maps every role to its default capability per module.
type Policy map[Role]map[Module]Capability

// ErrPolicyIncomplete is returned by Policy.Validate when the table has gaps.
var ErrPolicyIncomplete = errors.New("access: policy incomplete")

// The default table below lists one entry per module for each role. The
// expression fails to compile when a module is added without revisiting it.
func _() {
	var x [1]struct{}
	_ = x[moduleCount-14]
}

var defaultPolicy = Policy{
	RoleCustomer: {
		ModuleUsers:         NoAccess,
		ModuleShops:         ReadOnly,
		ModuleProducts:      ReadOnly,
		ModuleOrders:        Full,
		ModulePayments:      ReadOnly,
		ModuleTickets:       Full,
		ModuleAnalytics:     NoAccess,
		ModuleSettings:      NoAccess,
		ModuleDelivery:      ReadOnly,
		ModuleMap:           ReadOnly,
		ModuleNotifications: Full,
		ModuleLogs:          NoAccess,
		ModulePermission:    NoAccess,
		ModuleRoles:         NoAccess,
	},
	RoleShopOwner: {
		ModuleUsers:         NoAccess,
		ModuleShops:         NoDelete,
		ModuleProducts:      Full,
		ModuleOrders:        NoDelete,
		ModulePayments:      ReadOnly,
		ModuleTickets:       ReadOnly,
		ModuleAnalytics:     Full,
		ModuleSettings:      NoAccess,
		ModuleDelivery:      NoAccess,
		ModuleMap:           NoAccess,
		ModuleNotifications: Full,
		ModuleLogs:          NoAccess,
		ModulePermission:    NoAccess,
		ModuleRoles:         ReadOnly,
	},
	RoleAdmin: {
		ModuleUsers:         Full,
		ModuleShops:         Full,
		ModuleProducts:      Full,
		ModuleOrders:        Full,
		ModulePayments:      Full,
		ModuleTickets:       Full,
		ModuleAnalytics:     Full,
		ModuleSettings:      Full,
		ModuleDelivery:      Full,
		ModuleMap:           Full,
		ModuleNotifications: Full,
		ModuleLogs:          Full,
		ModulePermission:    Full,
		ModuleRoles:         Full,
	},
	RoleManager: {
		ModuleUsers:         ReadOnly,
		ModuleShops:         Full,
		ModuleProducts:      Full,
		ModuleOrders:        Full,
		ModulePayments:      Full,
		ModuleTickets:       ReadOnly,
		ModuleAnalytics:     Full,
		ModuleSettings:      ReadOnly,
		ModuleDelivery:      Full,
		ModuleMap:           Full,
		ModuleNotifications: Full,
		ModuleLogs:          ReadOnly,
		ModulePermission:    Full,
		ModuleRoles:         Full,
	},
	RoleDeliveryAgent: {
		ModuleUsers:         NoAccess,
		ModuleShops:         NoAccess,
		ModuleProducts:      NoAccess,
		ModuleOrders:        ReadOnly,
		ModulePayments:      NoAccess,
		ModuleTickets:       NoAccess,
		ModuleAnalytics:     NoAccess,
		ModuleSettings:      NoAccess,
		ModuleDelivery:      Full,
		ModuleMap:           Full,
		ModuleNotifications: ReadOnly,
		ModuleLogs:          NoAccess,
		ModulePermission:    NoAccess,
		ModuleRoles:         NoAccess,
	},
	RoleSupport: {
		ModuleUsers:         ReadOnly,
		ModuleShops:         NoAccess,
		ModuleProducts:      NoAccess,
		ModuleOrders:        ReadOnly,
		ModulePayments:      NoAccess,
		ModuleTickets:       Full,
		ModuleAnalytics:     NoAccess,
		ModuleSettings:      NoAccess,
		ModuleDelivery:      NoAccess,
		ModuleMap:           NoAccess,
		ModuleNotifications: Full,
		ModuleLogs:          NoAccess,
		ModulePermission:    NoAccess,
		ModuleRoles:         NoAccess,
	},
}

func init() {
	if err := defaultPolicy.Validate(); err != nil {
		panic(err)
	}
}

// DefaultPolicy returns a deep copy of the built-in table.
func DefaultPolicy() Policy {
	return defaultPolicy.Clone()
}

// Clone deep-copies the policy.
func (p Policy) Clone() Policy {
	out := make(Policy, len(p))
	for role, row := range p {
		copied := make(map[Module]Capability, len(row))
		for module, c := range row {
			copied[module] = c
		}
		out[role] = copied
	}
	return out
}

// Validate reports every missing (role, module) entry, every undeclared role
// and every undeclared module key in the table.
func (p Policy) Validate() error {
	var problems []string
	for _, role := range Roles() {
		row, ok := p[role]
		if !ok {
			problems = append(problems, fmt.Sprintf("role %s: missing", role))
			continue
		}
		for _, module := range Modules() {
			if _, ok := row[module]; !ok {
				problems = append(problems, fmt.Sprintf("role %s: module %s missing", role, module))
			}
		}
		for module := range row {
			if !module.Valid() {
				problems = append(problems, fmt.Sprintf("role %s: %s undeclared", role, module))
			}
		}
	}
	for role := range p {
		if !role.Valid() {
			problems = append(problems, fmt.Sprintf("role %q: undeclared", string(role)))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrPolicyIncomplete, strings.Join(problems, "; "))
}

// Lookup returns the default capability of role on module. Undeclared roles
// use the customer row and gaps yield NoAccess.
func (p Policy) Lookup(role Role, module Module) Capability {
	if !role.Valid() {
		role = RoleCustomer
	}
	row, ok := p[role]
	if !ok {
		return NoAccess
	}
	c, ok := row[module]
	if !ok {
		return NoAccess
	}
	return c
}

// Row returns the total capability map for role under this policy.
func (p Policy) Row(role Role) CapabilityMap {
	var caps CapabilityMap
	for _, module := range Modules() {
		caps.set(module, p.Lookup(role, module))
	}
	return caps
}
