package access

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithoutPayloadMatchesPolicy(t *testing.T) {
	policy := DefaultPolicy()
	for _, role := range Roles() {
		caps := Resolve(role, nil)
		for _, module := range Modules() {
			assert.Equal(t, policy.Lookup(role, module), caps.Get(module), "%s/%s", role, module)
		}
	}
}

func TestResolveOverrideIsWholesale(t *testing.T) {
	caps := Resolve(RoleAdmin, `[{"module":"canAccessUsers","canRead":true}]`)

	assert.Equal(t, Capability{Read: true}, caps.Get(ModuleUsers))
	assert.Equal(t, Full, caps.Get(ModuleShops))
}

func TestResolveOverrideCanGrant(t *testing.T) {
	caps := Resolve(RoleCustomer, []RawPermission{{Module: "canAccessLogs", CanView: true}})

	assert.True(t, caps.Can(ModuleLogs, ActionView))
	assert.False(t, caps.Can(ModuleLogs, ActionRead))
}

func TestResolveGarbagePayloadFallsBack(t *testing.T) {
	assert.Equal(t, Resolve(RoleManager, nil), Resolve(RoleManager, "{{"))
	assert.Equal(t, Resolve(RoleManager, nil), Resolve(RoleManager, `[]`))
}

func TestResolveSingleModuleOverlay(t *testing.T) {
	payload := `[{"module":"canAccessOrders","canRead":true,"canAdd":false,"canUpdate":false,"canDelete":false,"canView":true}]`
	for _, role := range Roles() {
		baseline := Resolve(role, nil)
		caps := Resolve(role, payload)
		assert.Equal(t, Capability{Read: true, View: true}, caps.Get(ModuleOrders), "%s", role)
		for _, module := range Modules() {
			if module == ModuleOrders {
				continue
			}
			assert.Equal(t, baseline.Get(module), caps.Get(module), "%s/%s", role, module)
		}
	}
}

func TestResolveMalformedEqualsEmpty(t *testing.T) {
	for _, role := range Roles() {
		none := Resolve(role, nil)
		assert.Equal(t, none, Resolve(role, "not-json"), "%s", role)
		assert.Equal(t, none, Resolve(role, "[]"), "%s", role)
		assert.Equal(t, none, Resolve(role, []any{}), "%s", role)
	}
}

func TestResolveUnknownRoleUsesCustomer(t *testing.T) {
	assert.Equal(t, Resolve(RoleCustomer, nil), Resolve(Role("root"), nil))
}

func TestResolveActorNilIgnoresPayload(t *testing.T) {
	caps := ResolveActor(nil, `[{"module":"canAccessUsers","canRead":true}]`)
	assert.Equal(t, Resolve(RoleCustomer, nil), caps)
}

func TestResolverPolicyGapIsNoAccess(t *testing.T) {
	policy := DefaultPolicy()
	delete(policy[RoleAdmin], ModuleLogs)
	resolver := NewResolver(policy)

	assert.Equal(t, NoAccess, resolver.Resolve(RoleAdmin, nil).Get(ModuleLogs))
}

func TestFlagsStayIndependent(t *testing.T) {
	caps := Resolve(RoleSupport, `[{"module":"canAccessSettings","canUpdate":true}]`)

	assert.True(t, CanAccess(caps, ModuleSettings, ActionUpdate))
	assert.False(t, CanAccess(caps, ModuleSettings, ActionRead))
	assert.False(t, CanAccess(caps, Module(-1), ActionRead))
	assert.False(t, CanAccess(caps, ModuleSettings, Action("approve")))
}

func TestCapabilityMapJSON(t *testing.T) {
	data, err := json.Marshal(Resolve(RoleDeliveryAgent, nil))
	require.NoError(t, err)

	var decoded map[string]Capability
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, len(Modules()))
	assert.Equal(t, ReadOnly, decoded["canAccessOrders"])
	assert.Equal(t, Full, decoded["canAccessMap"])
}
