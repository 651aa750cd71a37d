package models

import "time"

// School represents an institution that owns classrooms and students.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Email     string    `db:"email" json:"email,omitempty"`
	Website   string    `db:"website" json:"website,omitempty"`
	Logo      string    `db:"logo" json:"logo,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SchoolFilter encapsulates allowed search parameters for listing schools.
type SchoolFilter struct {
	Search string
	Page   int
	Limit  int
}
