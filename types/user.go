package types

import "time"

// Supported user roles.
const (
	RoleUser          = "user"
	RoleAdmin         = "admin"
	RoleExaminer      = "examiner"
	RoleTrafficPolice = "traffic_police"
)

// User represents an account known to the licensing system.
// Accounts are owned by the external identity provider; this record only
// carries what is needed to reference the person and authorize requests.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Name is the user's full name as printed on the license.
	Name string `json:"name" db:"name"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level within the system
	// (e.g., "admin", "examiner", "traffic_police", "user").
	Role string `json:"role" db:"role"`

	// CreatedAt is the timestamp when the user record was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user record.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasRole reports whether the user holds role. Admins hold every role.
func (u User) HasRole(role string) bool {
	return u.Role == role || u.Role == RoleAdmin
}
