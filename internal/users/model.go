package users

import "time"

// Role names carried on user records.
const (
	RoleAdmin             = "admin"
	RoleBenchmarkingAdmin = "benchmarking_admin"
	RoleAnalyst           = "analyst"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasRole reports whether u satisfies required; admin satisfies every role.
func (u User) HasRole(required string) bool {
	return u.Role == RoleAdmin || (required != "" && u.Role == required)
}
