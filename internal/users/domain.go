package users

import (
	"errors"
	"time"

	"github.com/freshcart/console/internal/access"
)

// ErrInvalidPermissions reports a permission update the service refused.
var ErrInvalidPermissions = errors.New("users: invalid permission records")

// User represents a console account for management.
type User struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone,omitempty"`
	Role      access.Role `json:"role"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ListFilter narrows the user listing.
type ListFilter struct {
	Role   access.Role
	Search string
	Limit  int
	Offset int
}

// Detail is a user together with its stored permission records and the
// capabilities they resolve to.
type Detail struct {
	User         User
	Records      []access.RawPermission
	Capabilities access.CapabilityMap
}

// PermissionsUpdate replaces the stored records of one user.
type PermissionsUpdate struct {
	UserID  int64
	Records []access.RawPermission
	Actor   *access.Actor
}
