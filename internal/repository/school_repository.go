package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/andriyansah/school-api/internal/models"
)

// ErrSchoolInUse signals a delete blocked by classrooms or students
// that still reference the school.
var ErrSchoolInUse = errors.New("school still referenced")

// SchoolRepository manages persistence for school records.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns schools matching the provided filters.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	base := "FROM schools"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page, limit := normalizePage(filter.Page, filter.Limit)
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT id, name, address, phone, email, website, logo, active, created_at, updated_at
        %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, limit, offset)

	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}
	return schools, total, nil
}

// FindByID fetches a school by ID.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	const query = `SELECT id, name, address, phone, email, website, logo, active, created_at, updated_at
        FROM schools WHERE id = $1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// ExistsByName checks if a school with the given name exists, optionally excluding an ID.
func (r *SchoolRepository) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM schools WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check school name: %w", err)
	}
	return true, nil
}

// Create inserts a new school record.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if school.CreatedAt.IsZero() {
		school.CreatedAt = now
	}
	school.UpdatedAt = now
	const query = `INSERT INTO schools (id, name, address, phone, email, website, logo, active, created_at, updated_at)
        VALUES (:id, :name, :address, :phone, :email, :website, :logo, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// Update modifies an existing school.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = :name, address = :address, phone = :phone, email = :email,
        website = :website, logo = :logo, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}

// Delete removes a school record. The foreign keys from classrooms and
// students restrict the delete while rows still reference the school.
func (r *SchoolRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schools WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrSchoolInUse
		}
		return fmt.Errorf("delete school: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}
