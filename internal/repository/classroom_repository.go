package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/andriyansah/school-api/internal/models"
)

// ClassroomRepository manages persistence for classroom records.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs a ClassroomRepository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns classrooms joined with their school name.
func (r *ClassroomRepository) List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, int, error) {
	base := "FROM classrooms c JOIN schools s ON s.id = c.school_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("c.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page, limit := normalizePage(filter.Page, filter.Limit)
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT c.id, c.name, c.school_id, c.capacity, c.resources, c.active, c.created_at, c.updated_at,
        s.name AS school_name
        %s ORDER BY c.created_at DESC LIMIT %d OFFSET %d`, base, limit, offset)

	var classrooms []models.ClassroomDetail
	if err := r.db.SelectContext(ctx, &classrooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classrooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classrooms: %w", err)
	}
	return classrooms, total, nil
}

// FindByID fetches a classroom joined with its school name.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.ClassroomDetail, error) {
	const query = `SELECT c.id, c.name, c.school_id, c.capacity, c.resources, c.active, c.created_at, c.updated_at,
        s.name AS school_name
        FROM classrooms c JOIN schools s ON s.id = c.school_id
        WHERE c.id = $1`
	var detail models.ClassroomDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByName checks if a classroom name is taken within a school,
// optionally excluding an ID.
func (r *ClassroomRepository) ExistsByName(ctx context.Context, name, schoolID, excludeID string) (bool, error) {
	query := "SELECT 1 FROM classrooms WHERE LOWER(name) = LOWER($1) AND school_id = $2"
	args := []interface{}{name, schoolID}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check classroom name: %w", err)
	}
	return true, nil
}

// Create inserts a new classroom record.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = now
	}
	classroom.UpdatedAt = now
	const query = `INSERT INTO classrooms (id, name, school_id, capacity, resources, active, created_at, updated_at)
        VALUES (:id, :name, :school_id, :capacity, :resources, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// Update modifies an existing classroom. The owning school never changes.
func (r *ClassroomRepository) Update(ctx context.Context, classroom *models.Classroom) error {
	classroom.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classrooms SET name = :name, capacity = :capacity, resources = :resources,
        active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("update classroom: %w", err)
	}
	return nil
}

// Delete removes a classroom record.
func (r *ClassroomRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classrooms WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListStudents returns the active students currently assigned to a classroom.
func (r *ClassroomRepository) ListStudents(ctx context.Context, classroomID string) ([]models.Student, error) {
	const query = `SELECT id, first_name, last_name, email, date_of_birth, gender, phone, address,
        school_id, classroom_id, enrolled_at, active, created_at, updated_at
        FROM students WHERE classroom_id = $1 AND active = true ORDER BY last_name, first_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classroomID); err != nil {
		return nil, fmt.Errorf("list classroom students: %w", err)
	}
	return students, nil
}
