package access

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is one of the five capability flags.
type Action string

// Supported actions.
const (
	ActionRead   Action = "read"
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionView   Action = "view"
)

// Actions lists every action.
func Actions() []Action {
	return []Action{ActionRead, ActionAdd, ActionUpdate, ActionDelete, ActionView}
}

// ParseAction resolves a case-insensitive action name.
func ParseAction(raw string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch action {
	case ActionRead, ActionAdd, ActionUpdate, ActionDelete, ActionView:
		return action, nil
	}
	return "", fmt.Errorf("access: unknown action %q", raw)
}

// Capability is the five-flag permission record for one module. Flags are
// independent: update without read is representable and honoured as given.
type Capability struct {
	Read   bool `json:"read" yaml:"read"`
	Add    bool `json:"add" yaml:"add"`
	Update bool `json:"update" yaml:"update"`
	Delete bool `json:"delete" yaml:"delete"`
	View   bool `json:"view" yaml:"view"`
}

// Presets used to assemble the default policy table.
var (
	Full     = Capability{Read: true, Add: true, Update: true, Delete: true, View: true}
	ReadOnly = Capability{Read: true, View: true}
	NoAccess = Capability{}
	NoDelete = Capability{Read: true, Update: true, View: true}
)

// Allows reports whether the flag for action is set. Unknown actions are
// never allowed.
func (c Capability) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return c.Read
	case ActionAdd:
		return c.Add
	case ActionUpdate:
		return c.Update
	case ActionDelete:
		return c.Delete
	case ActionView:
		return c.View
	}
	return false
}

// Any reports whether at least one flag is set.
func (c Capability) Any() bool {
	return c.Read || c.Add || c.Update || c.Delete || c.View
}

// Visible reports whether a module with this capability appears in navigation.
func (c Capability) Visible() bool {
	return c.Read || c.View
}

// CapabilityMap is the effective, total Module→Capability mapping for one
// actor. The zero value grants nothing.
type CapabilityMap struct {
	entries [moduleCount]Capability
}

// Get returns the capability for module. Undeclared modules get NoAccess.
func (m CapabilityMap) Get(module Module) Capability {
	if !module.Valid() {
		return NoAccess
	}
	return m.entries[module]
}

// Can reports whether action is permitted on module.
func (m CapabilityMap) Can(module Module, action Action) bool {
	return m.Get(module).Allows(action)
}

// Modules returns the modules covered by the map, which is every module.
func (m CapabilityMap) Modules() []Module {
	return Modules()
}

// ToMap copies the entries into a plain map keyed by module.
func (m CapabilityMap) ToMap() map[Module]Capability {
	out := make(map[Module]Capability, moduleCount)
	for i, c := range m.entries {
		out[Module(i)] = c
	}
	return out
}

// MarshalJSON encodes the map as {"canAccessUsers": {...}, ...}.
func (m CapabilityMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

func (m *CapabilityMap) set(module Module, c Capability) {
	if module.Valid() {
		m.entries[module] = c
	}
}

// CanAccess reports whether action on module is permitted by caps.
func CanAccess(caps CapabilityMap, module Module, action Action) bool {
	return caps.Can(module, action)
}
