package access

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Module is a functional area of the console subject to access control. The
// set is closed; adding a module requires updating every role in the default
// policy table.
type Module int

// Known modules. moduleCount must stay last.
const (
	ModuleUsers Module = iota
	ModuleShops
	ModuleProducts
	ModuleOrders
	ModulePayments
	ModuleTickets
	ModuleAnalytics
	ModuleSettings
	ModuleDelivery
	ModuleMap
	ModuleNotifications
	ModuleLogs
	ModulePermission
	ModuleRoles
	moduleCount
)

var moduleKeys = [moduleCount]string{
	ModuleUsers:         "canAccessUsers",
	ModuleShops:         "canAccessShops",
	ModuleProducts:      "canAccessProducts",
	ModuleOrders:        "canAccessOrders",
	ModulePayments:      "canAccessPayments",
	ModuleTickets:       "canAccessTickets",
	ModuleAnalytics:     "canAccessAnalytics",
	ModuleSettings:      "canAccessSettings",
	ModuleDelivery:      "canAccessDelivery",
	ModuleMap:           "canAccessMap",
	ModuleNotifications: "canAccessNotifications",
	ModuleLogs:          "canAccessLogs",
	ModulePermission:    "canAccessPermission",
	ModuleRoles:         "canAccessRoles",
}

var modulesByKey = func() map[string]Module {
	index := make(map[string]Module, 2*int(moduleCount))
	for m := Module(0); m < moduleCount; m++ {
		key := moduleKeys[m]
		if key == "" {
			panic(fmt.Sprintf("access: module %d has no key", int(m)))
		}
		index[key] = m
		index[foldKey(key)] = m
	}
	return index
}()

// Modules returns every known module in declaration order.
func Modules() []Module {
	out := make([]Module, 0, moduleCount)
	for m := Module(0); m < moduleCount; m++ {
		out = append(out, m)
	}
	return out
}

// ParseModule resolves a wire key such as "canAccessOrders". Exact matches are
// tried first, then a case-insensitive match.
func ParseModule(raw string) (Module, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if m, ok := modulesByKey[raw]; ok {
		return m, true
	}
	m, ok := modulesByKey[foldKey(raw)]
	return m, ok
}

// Valid reports whether m is a declared module.
func (m Module) Valid() bool {
	return m >= 0 && m < moduleCount
}

// String returns the wire key of the module.
func (m Module) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Module(%d)", int(m))
	}
	return moduleKeys[m]
}

// MarshalText encodes the module as its wire key.
func (m Module) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("access: invalid module %d", int(m))
	}
	return []byte(moduleKeys[m]), nil
}

// UnmarshalText decodes a wire key.
func (m *Module) UnmarshalText(text []byte) error {
	parsed, ok := ParseModule(string(text))
	if !ok {
		return fmt.Errorf("access: unknown module %q", string(text))
	}
	*m = parsed
	return nil
}

// foldKey applies Unicode case folding. A Caser keeps state, so one is built
// per call.
func foldKey(s string) string {
	return cases.Fold().String(s)
}
