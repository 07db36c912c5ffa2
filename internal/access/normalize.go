package access

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RawPermission is one server-provided permission record in its canonical
// wire form.
type RawPermission struct {
	Module    string `json:"module" validate:"required"`
	CanRead   bool   `json:"canRead"`
	CanAdd    bool   `json:"canAdd"`
	CanUpdate bool   `json:"canUpdate"`
	CanDelete bool   `json:"canDelete"`
	CanView   bool   `json:"canView"`
}

// Capability converts the record flags.
func (r RawPermission) Capability() Capability {
	return Capability{
		Read:   r.CanRead,
		Add:    r.CanAdd,
		Update: r.CanUpdate,
		Delete: r.CanDelete,
		View:   r.CanView,
	}
}

// RawPermissionFor builds the canonical record for module and c.
func RawPermissionFor(module Module, c Capability) RawPermission {
	return RawPermission{
		Module:    module.String(),
		CanRead:   c.Read,
		CanAdd:    c.Add,
		CanUpdate: c.Update,
		CanDelete: c.Delete,
		CanView:   c.View,
	}
}

// EncodePayload renders records as a persisted permission payload. No
// records encode as nil.
func EncodePayload(records []RawPermission) (json.RawMessage, error) {
	if len(records) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("access: encode payload: %w", err)
	}
	return data, nil
}

// Overrides is a partial Module→Capability mapping taken from server
// records. A nil Overrides means nothing usable was supplied.
type Overrides map[Module]Capability

// Records renders the overrides as canonical records in module order.
func (o Overrides) Records() []RawPermission {
	out := make([]RawPermission, 0, len(o))
	for _, module := range Modules() {
		if c, ok := o[module]; ok {
			out = append(out, RawPermissionFor(module, c))
		}
	}
	return out
}

// Normalize turns an untrusted permission payload into Overrides. It accepts
// JSON text (string, []byte, json.RawMessage), []RawPermission, and the
// generic decoded forms []map[string]any and []any. A JSON string holding
// JSON is unwrapped once. Records with a missing or unknown module are
// skipped, missing or non-boolean flags read as false and a later record for
// the same module replaces an earlier one. Anything that is not a list, fails
// to parse or yields no usable record returns nil.
func Normalize(raw any) Overrides {
	switch v := raw.(type) {
	case nil:
		return nil
	case Overrides:
		return finish(cloneOverrides(v))
	case string:
		return normalizeJSON([]byte(v), true)
	case []byte:
		return normalizeJSON(v, true)
	case json.RawMessage:
		return normalizeJSON(v, true)
	case []RawPermission:
		out := make(Overrides, len(v))
		for _, record := range v {
			if module, ok := ParseModule(record.Module); ok {
				out[module] = record.Capability()
			}
		}
		return finish(out)
	case []map[string]any:
		out := make(Overrides, len(v))
		for _, record := range v {
			if module, c, ok := normalizeRecord(record); ok {
				out[module] = c
			}
		}
		return finish(out)
	case []any:
		return normalizeList(v)
	}
	return nil
}

func normalizeJSON(data []byte, unwrap bool) Overrides {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil
	}
	switch v := decoded.(type) {
	case []any:
		return normalizeList(v)
	case string:
		if unwrap {
			return normalizeJSON([]byte(v), false)
		}
	}
	return nil
}

func normalizeList(items []any) Overrides {
	out := make(Overrides, len(items))
	for _, item := range items {
		switch record := item.(type) {
		case map[string]any:
			if module, c, ok := normalizeRecord(record); ok {
				out[module] = c
			}
		case RawPermission:
			if module, ok := ParseModule(record.Module); ok {
				out[module] = record.Capability()
			}
		}
	}
	return finish(out)
}

const (
	flagRead = iota
	flagAdd
	flagUpdate
	flagDelete
	flagView
	flagCount
)

var flagKeys = map[string]int{
	"read":   flagRead,
	"add":    flagAdd,
	"update": flagUpdate,
	"delete": flagDelete,
	"view":   flagView,
}

// normalizeRecord reads one generic record. Prefixed keys ("canRead") take
// precedence over bare ones ("read") when both are present.
func normalizeRecord(record map[string]any) (Module, Capability, bool) {
	var (
		module   Module
		found    bool
		prefixed [flagCount]*bool
		bare     [flagCount]*bool
	)
	for key, value := range record {
		name := normalizeKey(key)
		if name == "module" {
			module, found = moduleValue(value)
			continue
		}
		target := &bare
		if strings.HasPrefix(name, "can") {
			if _, isFlag := flagKeys[name]; !isFlag {
				name = strings.TrimPrefix(name, "can")
				target = &prefixed
			}
		}
		idx, ok := flagKeys[name]
		if !ok {
			continue
		}
		b, _ := value.(bool)
		target[idx] = &b
	}
	if !found {
		return 0, Capability{}, false
	}
	flag := func(idx int) bool {
		if prefixed[idx] != nil {
			return *prefixed[idx]
		}
		if bare[idx] != nil {
			return *bare[idx]
		}
		return false
	}
	return module, Capability{
		Read:   flag(flagRead),
		Add:    flag(flagAdd),
		Update: flag(flagUpdate),
		Delete: flag(flagDelete),
		View:   flag(flagView),
	}, true
}

func moduleValue(value any) (Module, bool) {
	switch v := value.(type) {
	case string:
		return ParseModule(v)
	case map[string]any:
		for key, name := range v {
			if normalizeKey(key) != "name" {
				continue
			}
			if s, ok := name.(string); ok {
				return ParseModule(s)
			}
		}
	}
	return 0, false
}

var keySeparators = strings.NewReplacer("_", "", "-", "", " ", "", ".", "")

func normalizeKey(key string) string {
	return foldKey(keySeparators.Replace(strings.TrimSpace(key)))
}

func cloneOverrides(in Overrides) Overrides {
	out := make(Overrides, len(in))
	for module, c := range in {
		if module.Valid() {
			out[module] = c
		}
	}
	return out
}

func finish(out Overrides) Overrides {
	if len(out) == 0 {
		return nil
	}
	return out
}
