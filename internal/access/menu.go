package access

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed menu.yaml
var defaultMenuDoc []byte

// ErrInvalidMenu is returned when a menu document names an unknown module or
// role, or misses a title or URL.
var ErrInvalidMenu = errors.New("access: invalid menu")

// MenuItem is one navigation entry.
type MenuItem struct {
	Title        string
	URL          string
	Module       Module
	HasModule    bool
	AllowedRoles []Role
}

// MarshalJSON omits the module of entries that have none.
func (m MenuItem) MarshalJSON() ([]byte, error) {
	out := struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Module string `json:"module,omitempty"`
		Roles  []Role `json:"roles,omitempty"`
	}{Title: m.Title, URL: m.URL, Roles: m.AllowedRoles}
	if m.HasModule {
		out.Module = m.Module.String()
	}
	return json.Marshal(out)
}

// Rule is the route guard of the screen behind the entry: its role
// allow-list plus read on its module.
func (m MenuItem) Rule() RouteRule {
	return RouteRule{
		Module:       m.Module,
		HasModule:    m.HasModule,
		Action:       ActionRead,
		AllowedRoles: m.AllowedRoles,
	}
}

type menuEntry struct {
	Title  string   `yaml:"title"`
	URL    string   `yaml:"url"`
	Module string   `yaml:"module"`
	Roles  []string `yaml:"roles"`
}

// ParseMenu decodes a YAML menu document. Module and role names must be
// declared ones.
func ParseMenu(doc []byte) ([]MenuItem, error) {
	var entries []menuEntry
	if err := yaml.Unmarshal(doc, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMenu, err)
	}
	items := make([]MenuItem, 0, len(entries))
	for i, entry := range entries {
		title := strings.TrimSpace(entry.Title)
		url := strings.TrimSpace(entry.URL)
		if title == "" || url == "" {
			return nil, fmt.Errorf("%w: entry %d needs title and url", ErrInvalidMenu, i)
		}
		item := MenuItem{Title: title, URL: url}
		if name := strings.TrimSpace(entry.Module); name != "" {
			module, ok := ParseModule(name)
			if !ok {
				return nil, fmt.Errorf("%w: entry %q: unknown module %q", ErrInvalidMenu, title, name)
			}
			item.Module = module
			item.HasModule = true
		}
		for _, raw := range entry.Roles {
			role := Role(strings.ToLower(strings.TrimSpace(raw)))
			if !role.Valid() {
				return nil, fmt.Errorf("%w: entry %q: unknown role %q", ErrInvalidMenu, title, raw)
			}
			item.AllowedRoles = append(item.AllowedRoles, role)
		}
		items = append(items, item)
	}
	return items, nil
}

// DefaultMenu returns the embedded dashboard menu.
func DefaultMenu() ([]MenuItem, error) {
	return ParseMenu(defaultMenuDoc)
}

// FilterMenu keeps the entries visible to role under caps. Entries without a
// module always show. Otherwise the role must be allowed, when the entry
// restricts roles, and the module capability must grant read or view.
func FilterMenu(items []MenuItem, role Role, caps CapabilityMap) []MenuItem {
	role = ParseRole(string(role))
	visible := make([]MenuItem, 0, len(items))
	for _, item := range items {
		if !item.HasModule {
			visible = append(visible, item)
			continue
		}
		if len(item.AllowedRoles) > 0 && !roleIn(role, item.AllowedRoles) {
			continue
		}
		if caps.Get(item.Module).Visible() {
			visible = append(visible, item)
		}
	}
	return visible
}
