package users

import "time"

// User is a staff account as listed in the back office. Password hashes never leave the repository.
type User struct {
	UUID             string     `json:"uuid"`
	Nickname         string     `json:"nickname"`
	Email            string     `json:"email"`
	Firstname        string     `json:"firstname,omitempty"`
	Lastname         string     `json:"lastname,omitempty"`
	Avatar           string     `json:"avatar,omitempty"`
	Activated        bool       `json:"is_activated"`
	RegistrationDate time.Time  `json:"registration_date"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	Role             *Role      `json:"role,omitempty"`
	Connected        bool       `json:"connected"`
}

// Role is the role summary attached to a user when listing with roles.
type Role struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Color     string `json:"color,omitempty"`
	CanAccess bool   `json:"can_access"`
}

// ListOption selects the shape of a user listing.
type ListOption string

// Supported listing options.
const (
	ListAll      ListOption = "all"
	ListWithRole ListOption = "role"
)
