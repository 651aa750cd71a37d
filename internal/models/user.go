package models

import "time"

// UserRole is the closed set of roles understood by the API.
type UserRole string

const (
	RoleSuperAdmin  UserRole = "superadmin"
	RoleSchoolAdmin UserRole = "school_admin"
)

// Valid reports whether the role is one of the two known variants.
func (r UserRole) Valid() bool {
	return r == RoleSuperAdmin || r == RoleSchoolAdmin
}

// User represents a credential principal stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	SchoolID     *string   `db:"school_id" json:"school,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserDetail joins a user with their bound school's name.
type UserDetail struct {
	User
	SchoolName *string `db:"school_name" json:"school_name,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role  *UserRole
	Page  int
	Limit int
}
