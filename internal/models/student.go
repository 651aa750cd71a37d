package models

import "time"

// Student represents a learner enrolled at a school, optionally
// assigned to one of its classrooms.
type Student struct {
	ID          string     `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	Email       string     `db:"email" json:"email"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      string     `db:"gender" json:"gender,omitempty"`
	Phone       string     `db:"phone" json:"phone,omitempty"`
	Address     string     `db:"address" json:"address,omitempty"`
	SchoolID    string     `db:"school_id" json:"school"`
	ClassroomID *string    `db:"classroom_id" json:"classroom"`
	EnrolledAt  time.Time  `db:"enrolled_at" json:"enrolled_at"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// TransferRecord is one immutable entry in a student's transfer history.
type TransferRecord struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"-"`
	FromSchoolID    string    `db:"from_school_id" json:"from_school"`
	ToSchoolID      string    `db:"to_school_id" json:"to_school"`
	FromClassroomID *string   `db:"from_classroom_id" json:"from_classroom"`
	ToClassroomID   *string   `db:"to_classroom_id" json:"to_classroom"`
	Note            string    `db:"note" json:"note,omitempty"`
	TransferredAt   time.Time `db:"transferred_at" json:"transferred_at"`
}

// StudentDetail joins a student with denormalized school/classroom
// names and, on single reads, the transfer history.
type StudentDetail struct {
	Student
	SchoolName      string           `db:"school_name" json:"school_name"`
	ClassroomName   *string          `db:"classroom_name" json:"classroom_name,omitempty"`
	TransferHistory []TransferRecord `db:"-" json:"transfer_history,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	SchoolID    string
	ClassroomID string
	Search      string
	Page        int
	Limit       int
}
