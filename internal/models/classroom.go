package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Resource is a named classroom asset with a quantity.
type Resource struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ResourceList stores classroom resources as a jsonb column.
type ResourceList []Resource

// Value implements driver.Valuer.
func (r ResourceList) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *ResourceList) Scan(src interface{}) error {
	if src == nil {
		*r = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("resources: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, r)
}

// Classroom represents a room owned by exactly one school.
// Name is unique within its school; capacity is always >= 1.
type Classroom struct {
	ID        string       `db:"id" json:"id"`
	Name      string       `db:"name" json:"name"`
	SchoolID  string       `db:"school_id" json:"school"`
	Capacity  int          `db:"capacity" json:"capacity"`
	Resources ResourceList `db:"resources" json:"resources"`
	Active    bool         `db:"active" json:"active"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// ClassroomDetail extends Classroom with the owning school's name.
type ClassroomDetail struct {
	Classroom
	SchoolName string `db:"school_name" json:"school_name"`
}

// ClassroomFilter defines filter criteria for listing classrooms.
type ClassroomFilter struct {
	SchoolID string
	Search   string
	Page     int
	Limit    int
}
