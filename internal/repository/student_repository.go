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

	"github.com/andriyansah/school-api/internal/models"
)

// Sentinel errors surfaced by the transactional capacity guard.
var (
	ErrClassroomFull    = errors.New("classroom capacity reached")
	ErrClassroomMissing = errors.New("classroom not found")
)

// StudentRepository manages persistence for student records and
// their transfer history.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.first_name, s.last_name, s.email, s.date_of_birth, s.gender, s.phone, s.address,
        s.school_id, s.classroom_id, s.enrolled_at, s.active, s.created_at, s.updated_at,
        sc.name AS school_name, c.name AS classroom_name`

const studentJoins = `FROM students s
        JOIN schools sc ON sc.id = s.school_id
        LEFT JOIN classrooms c ON c.id = s.classroom_id`

// List returns students joined with school/classroom names.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := studentJoins
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("s.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.ClassroomID != "" {
		conditions = append(conditions, fmt.Sprintf("s.classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d OR LOWER(s.email) LIKE $%d)", idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page, limit := normalizePage(filter.Page, filter.Limit)
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT %s %s ORDER BY s.created_at DESC LIMIT %d OFFSET %d", studentColumns, base, limit, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE s.id = $1", studentColumns, studentJoins)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsByEmail checks if a student with the given email exists,
// optionally excluding an ID.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student email: %w", err)
	}
	return true, nil
}

// CountInClassroom counts active students assigned to a classroom,
// excluding an optional student ID.
func (r *StudentRepository) CountInClassroom(ctx context.Context, classroomID string, excludeID string) (int, error) {
	query := "SELECT COUNT(*) FROM students WHERE classroom_id = $1 AND active = true"
	args := []interface{}{classroomID}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count classroom students: %w", err)
	}
	return count, nil
}

// Create inserts a new student record. When a classroom is assigned the
// insert runs inside a transaction that locks the classroom row and
// re-checks capacity, so concurrent enrollments cannot overshoot it.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.EnrolledAt.IsZero() {
		student.EnrolledAt = now
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	const query = `INSERT INTO students (id, first_name, last_name, email, date_of_birth, gender, phone, address,
        school_id, classroom_id, enrolled_at, active, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :email, :date_of_birth, :gender, :phone, :address,
        :school_id, :classroom_id, :enrolled_at, :active, :created_at, :updated_at)`

	if student.ClassroomID == nil {
		if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
			return fmt.Errorf("create student: %w", err)
		}
		return nil
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockAndCheckCapacity(ctx, tx, *student.ClassroomID, ""); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
			return fmt.Errorf("create student: %w", err)
		}
		return nil
	})
}

// Update modifies an existing student. When a classroom is assigned the
// update is guarded the same way as Create, excluding the student's own
// seat from the count.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, email = :email,
        date_of_birth = :date_of_birth, gender = :gender, phone = :phone, address = :address,
        classroom_id = :classroom_id, active = :active, updated_at = :updated_at WHERE id = :id`

	if student.ClassroomID == nil {
		if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		return nil
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockAndCheckCapacity(ctx, tx, *student.ClassroomID, student.ID); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, query, student); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		return nil
	})
}

// Transfer reassigns a student's school/classroom and appends the audit
// entry in the same transaction, so the two writes land or fail together.
func (r *StudentRepository) Transfer(ctx context.Context, student *models.Student, record *models.TransferRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.StudentID = student.ID
	if record.TransferredAt.IsZero() {
		record.TransferredAt = time.Now().UTC()
	}
	student.UpdatedAt = time.Now().UTC()

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if student.ClassroomID != nil {
			if err := lockAndCheckCapacity(ctx, tx, *student.ClassroomID, student.ID); err != nil {
				return err
			}
		}
		const update = `UPDATE students SET school_id = :school_id, classroom_id = :classroom_id,
            updated_at = :updated_at WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, update, student); err != nil {
			return fmt.Errorf("transfer student: %w", err)
		}
		const insert = `INSERT INTO student_transfers (id, student_id, from_school_id, to_school_id,
            from_classroom_id, to_classroom_id, note, transferred_at)
            VALUES (:id, :student_id, :from_school_id, :to_school_id, :from_classroom_id, :to_classroom_id, :note, :transferred_at)`
		if _, err := tx.NamedExecContext(ctx, insert, record); err != nil {
			return fmt.Errorf("append transfer history: %w", err)
		}
		return nil
	})
}

// ListTransfers returns a student's transfer history, oldest first.
func (r *StudentRepository) ListTransfers(ctx context.Context, studentID string) ([]models.TransferRecord, error) {
	const query = `SELECT id, student_id, from_school_id, to_school_id, from_classroom_id, to_classroom_id, note, transferred_at
        FROM student_transfers WHERE student_id = $1 ORDER BY transferred_at ASC`
	var records []models.TransferRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return records, nil
}

// Delete removes a student record. Transfer history rows go with it.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM students WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *StudentRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockAndCheckCapacity takes a row lock on the classroom and verifies the
// active occupant count is still below capacity. The lock serializes
// concurrent assignments to the same classroom.
func lockAndCheckCapacity(ctx context.Context, tx *sqlx.Tx, classroomID string, excludeID string) error {
	var capacity int
	if err := tx.GetContext(ctx, &capacity, `SELECT capacity FROM classrooms WHERE id = $1 FOR UPDATE`, classroomID); err != nil {
		if err == sql.ErrNoRows {
			return ErrClassroomMissing
		}
		return fmt.Errorf("lock classroom: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM students WHERE classroom_id = $1 AND active = true`
	args := []interface{}{classroomID}
	if excludeID != "" {
		countQuery += " AND id <> $2"
		args = append(args, excludeID)
	}
	var count int
	if err := tx.GetContext(ctx, &count, countQuery, args...); err != nil {
		return fmt.Errorf("count classroom students: %w", err)
	}
	if count >= capacity {
		return ErrClassroomFull
	}
	return nil
}
