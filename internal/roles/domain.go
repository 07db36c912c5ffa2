package roles

import "github.com/freshcart/console/internal/access"

// Role is the catalogue view of one console role.
type Role struct {
	Name        access.Role `json:"name"`
	LandingPath string      `json:"landing_path"`
	// Modules counts modules the role can see by default.
	Modules int `json:"visible_modules"`
}

// Detail adds the default capability map of the role.
type Detail struct {
	Role
	Capabilities access.CapabilityMap `json:"capabilities"`
}
