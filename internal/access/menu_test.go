package access

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(items []MenuItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Title)
	}
	return out
}

func TestDefaultMenuLoads(t *testing.T) {
	items, err := DefaultMenu()
	require.NoError(t, err)
	require.Len(t, items, 14)
	assert.Equal(t, "Overview", items[0].Title)
	assert.False(t, items[0].HasModule)
	assert.Equal(t, ModuleSettings, items[6].Module)
}

func TestFilterMenuPerRole(t *testing.T) {
	items, err := DefaultMenu()
	require.NoError(t, err)

	cases := map[Role][]string{
		RoleAdmin: {"Overview", "Shops", "Products", "Orders", "Users", "Payments", "Coupons", "Delivery", "Map", "Tickets", "Analytics", "Notifications", "Logs", "Settings"},
		RoleManager:       {"Overview", "Shops", "Products", "Orders", "Users", "Notifications"},
		RoleShopOwner:     {"Overview", "Shops", "Products"},
		RoleDeliveryAgent: {"Overview", "Orders", "Delivery", "Map"},
		RoleSupport:       {"Overview", "Users", "Tickets", "Notifications"},
		RoleCustomer:      {"Overview"},
	}
	for role, want := range cases {
		got := FilterMenu(items, role, Resolve(role, nil))
		assert.Equal(t, want, titles(got), "role %s", role)
	}
}

func TestFilterMenuViewOnlyIsVisible(t *testing.T) {
	items, err := DefaultMenu()
	require.NoError(t, err)

	caps := Resolve(RoleSupport, `[{"module":"canAccessTickets","canView":true}]`)
	assert.Contains(t, titles(FilterMenu(items, RoleSupport, caps)), "Tickets")

	caps = Resolve(RoleSupport, `[{"module":"canAccessTickets","canAdd":true,"canUpdate":true,"canDelete":true}]`)
	assert.NotContains(t, titles(FilterMenu(items, RoleSupport, caps)), "Tickets")
}

func TestFilterMenuCapabilityCannotBypassRoles(t *testing.T) {
	items, err := DefaultMenu()
	require.NoError(t, err)

	caps := Resolve(RoleCustomer, `[{"module":"canAccessLogs","canRead":true}]`)
	assert.NotContains(t, titles(FilterMenu(items, RoleCustomer, caps)), "Logs")
}

func TestFilterMenuHandBuiltEntries(t *testing.T) {
	items := []MenuItem{
		{Title: "Orders", URL: "/dashboard/orders", Module: ModuleOrders, HasModule: true, AllowedRoles: []Role{RoleAdmin, RoleManager, RoleDeliveryAgent}},
		{Title: "Payments", URL: "/dashboard/payments", Module: ModulePayments, HasModule: true},
	}
	caps := Resolve(RoleDeliveryAgent, nil)
	require.True(t, caps.Get(ModuleOrders).Read)
	require.Equal(t, NoAccess, caps.Get(ModulePayments))

	assert.Equal(t, []string{"Orders"}, titles(FilterMenu(items, RoleDeliveryAgent, caps)))
}

func TestParseMenuRejectsUnknownNames(t *testing.T) {
	_, err := ParseMenu([]byte("- title: X\n  url: /x\n  module: canAccessCoupons\n"))
	require.ErrorIs(t, err, ErrInvalidMenu)

	_, err = ParseMenu([]byte("- title: X\n  url: /x\n  roles: [root]\n"))
	require.ErrorIs(t, err, ErrInvalidMenu)

	_, err = ParseMenu([]byte("- url: /x\n"))
	require.ErrorIs(t, err, ErrInvalidMenu)

	_, err = ParseMenu([]byte("title: [unterminated"))
	require.ErrorIs(t, err, ErrInvalidMenu)
}

func TestMenuItemJSON(t *testing.T) {
	items, err := DefaultMenu()
	require.NoError(t, err)

	data, err := json.Marshal(items[:2])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"Overview","url":"/dashboard"},{"title":"Shops","url":"/dashboard/shops","module":"canAccessShops","roles":["admin","manager","shop_owner"]}]`, string(data))
}

func TestMenuItemRule(t *testing.T) {
	items, err := DefaultMenu()
	require.NoError(t, err)

	byTitle := map[string]MenuItem{}
	for _, item := range items {
		byTitle[item.Title] = item
	}
	overview := byTitle["Overview"].Rule()
	assert.False(t, overview.HasModule)
	assert.Empty(t, overview.AllowedRoles)

	tickets := byTitle["Tickets"].Rule()
	assert.Equal(t, RouteRule{Module: ModuleTickets, HasModule: true, Action: ActionRead, AllowedRoles: []Role{RoleAdmin, RoleSupport}}, tickets)

	support := &Actor{ID: "8", Role: RoleSupport}
	assert.True(t, Gate{}.Check(support, Resolve(RoleSupport, nil), tickets, "/dashboard/tickets").Allowed())
	assert.Equal(t, OutcomeLanding, Gate{}.Check(support, Resolve(RoleSupport, nil), byTitle["Logs"].Rule(), "/dashboard/logs").Outcome)
}
