package roles

// Role is a role as listed in the back office, with the codes it currently grants.
type Role struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Color       string   `json:"color,omitempty"`
	CanAccess   bool     `json:"can_access"`
	Permissions []string `json:"permissions"`
}
