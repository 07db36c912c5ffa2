package auth

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/freshcart/console/internal/access"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	Role         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor projects the account onto the access model. Unknown role strings
// resolve to customer.
func (u *User) Actor() access.Actor {
	return access.Actor{
		ID:        strconv.FormatInt(u.ID, 10),
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      access.ParseRole(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// LoginInput carries credentials and the session being authenticated.
type LoginInput struct {
	Email     string
	Password  string
	SessionID string
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

// LoginResult is what a successful login hands to the transport layer.
type LoginResult struct {
	User         *User
	Actor        access.Actor
	Permissions  json.RawMessage
	Capabilities access.CapabilityMap
}

// LandingPath is where the client should go after login.
func (r LoginResult) LandingPath() string {
	return r.Actor.Role.LandingPath()
}
