package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/andriyansah/school-api/internal/models"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "first_name", "last_name", "email", "date_of_birth", "gender", "phone", "address",
		"school_id", "classroom_id", "enrolled_at", "active", "created_at", "updated_at",
		"school_name", "classroom_name",
	})
}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := studentRows().
		AddRow("stu-1", "Ada", "Lovelace", "ada@example.com", nil, "female", "", "",
			"school-1", "room-1", time.Now(), true, time.Now(), time.Now(),
			"North High", "Room A")
	mock.ExpectQuery("(?s)SELECT .+FROM students s").
		WithArgs("stu-1").
		WillReturnRows(rows)

	detail, err := repo.FindByID(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, "Ada", detail.FirstName)
	require.Equal(t, "North High", detail.SchoolName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCountInClassroomExcludesSelf(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE classroom_id = $1 AND active = true AND id <> $2")).
		WithArgs("room-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountInClassroom(context.Background(), "room-1", "stu-1")
	require.NoError(t, err)
	require.Equal(t, 4, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateWithoutClassroom(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(0, 1))

	student := &models.Student{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", SchoolID: "school-1", Active: true}
	require.NoError(t, repo.Create(context.Background(), student))
	require.NotEmpty(t, student.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateLocksClassroom(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM classrooms WHERE id = $1 FOR UPDATE")).
		WithArgs("room-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE classroom_id = $1 AND active = true")).
		WithArgs("room-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	classroom := "room-1"
	student := &models.Student{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", SchoolID: "school-1", ClassroomID: &classroom, Active: true}
	require.NoError(t, repo.Create(context.Background(), student))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateFullClassroom(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM classrooms WHERE id = $1 FOR UPDATE")).
		WithArgs("room-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE classroom_id = $1 AND active = true")).
		WithArgs("room-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	classroom := "room-1"
	student := &models.Student{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", SchoolID: "school-1", ClassroomID: &classroom, Active: true}
	err := repo.Create(context.Background(), student)
	require.ErrorIs(t, err, ErrClassroomFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateMissingClassroom(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM classrooms WHERE id = $1 FOR UPDATE")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	classroom := "ghost"
	student := &models.Student{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", SchoolID: "school-1", ClassroomID: &classroom, Active: true}
	err := repo.Create(context.Background(), student)
	require.ErrorIs(t, err, ErrClassroomMissing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateExcludesOwnSeat(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM classrooms WHERE id = $1 FOR UPDATE")).
		WithArgs("room-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE classroom_id = $1 AND active = true AND id <> $2")).
		WithArgs("room-1", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(29))
	mock.ExpectExec("UPDATE students SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	classroom := "room-1"
	student := &models.Student{ID: "stu-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", SchoolID: "school-1", ClassroomID: &classroom, Active: true}
	require.NoError(t, repo.Update(context.Background(), student))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryTransferWritesBothRows(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE students SET school_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO student_transfers").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	student := &models.Student{ID: "stu-1", SchoolID: "school-2", ClassroomID: nil}
	record := &models.TransferRecord{FromSchoolID: "school-1", ToSchoolID: "school-2"}
	require.NoError(t, repo.Transfer(context.Background(), student, record))
	require.Equal(t, "stu-1", record.StudentID)
	require.NotEmpty(t, record.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryTransferRollsBackWhenHistoryFails(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE students SET school_id").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO student_transfers").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	student := &models.Student{ID: "stu-1", SchoolID: "school-2"}
	record := &models.TransferRecord{FromSchoolID: "school-1", ToSchoolID: "school-2"}
	require.Error(t, repo.Transfer(context.Background(), student, record))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListTransfersOrdered(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "from_school_id", "to_school_id", "from_classroom_id", "to_classroom_id", "note", "transferred_at"}).
		AddRow("tr-1", "stu-1", "school-1", "school-2", nil, nil, "", time.Now().Add(-time.Hour)).
		AddRow("tr-2", "stu-1", "school-2", "school-3", nil, nil, "moved again", time.Now())
	mock.ExpectQuery("(?s)SELECT .+FROM student_transfers WHERE student_id = \\$1 ORDER BY transferred_at ASC").
		WithArgs("stu-1").
		WillReturnRows(rows)

	records, err := repo.ListTransfers(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "tr-1", records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
