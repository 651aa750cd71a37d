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

// UserRepository provides database access for credential principals.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `u.id, u.username, u.email, u.password_hash, u.role, u.school_id, u.active, u.created_at, u.updated_at,
        s.name AS school_name`

const userJoins = `FROM users u LEFT JOIN schools s ON s.id = u.school_id`

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.UserDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE LOWER(u.email) = LOWER($1) LIMIT 1", userColumns, userJoins)
	var user models.UserDetail
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.UserDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE u.id = $1 LIMIT 1", userColumns, userJoins)
	var user models.UserDetail
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ExistsByUsernameOrEmail checks whether either unique field is taken.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, username, email); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check user uniqueness: %w", err)
	}
	return true, nil
}

// ExistsByRole reports whether any user holds the given role.
func (r *UserRepository) ExistsByRole(ctx context.Context, role models.UserRole) (bool, error) {
	const query = `SELECT 1 FROM users WHERE role = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, role); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check role: %w", err)
	}
	return true, nil
}

// Create inserts a new user record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	const query = `INSERT INTO users (id, username, email, password_hash, role, school_id, active, created_at, updated_at)
        VALUES (:id, :username, :email, :password_hash, :role, :school_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// List returns users matching the filter, never exposing password hashes
// beyond the struct's json handling.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, int, error) {
	base := userJoins
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("u.role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page, limit := normalizePage(filter.Page, filter.Limit)
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT %s %s ORDER BY u.created_at DESC LIMIT %d OFFSET %d", userColumns, base, limit, offset)

	var users []models.UserDetail
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}
