package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/andriyansah/school-api/internal/models"
)

func newClassroomRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func classroomRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "school_id", "capacity", "resources", "active", "created_at", "updated_at", "school_name"})
}

func TestClassroomRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newClassroomRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	rows := classroomRows().
		AddRow("room-1", "Room A", "school-1", 30, []byte(`[{"name":"projector","quantity":1}]`), true, time.Now(), time.Now(), "North High")
	mock.ExpectQuery("(?s)SELECT c.id, c.name, c.school_id, c.capacity, c.resources.+WHERE c.id = \\$1").
		WithArgs("room-1").
		WillReturnRows(rows)

	detail, err := repo.FindByID(context.Background(), "room-1")
	require.NoError(t, err)
	require.Equal(t, 30, detail.Capacity)
	require.Equal(t, "North High", detail.SchoolName)
	require.Len(t, detail.Resources, 1)
	require.Equal(t, "projector", detail.Resources[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryListSearchesByName(t *testing.T) {
	db, mock, cleanup := newClassroomRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	rows := classroomRows().
		AddRow("room-1", "Room A", "school-1", 30, []byte(`[]`), true, time.Now(), time.Now(), "North High")
	mock.ExpectQuery("(?s)SELECT c.id, c.name.+LOWER\\(c.name\\) LIKE \\$2").
		WithArgs("school-1", "%room a%").
		WillReturnRows(rows)
	mock.ExpectQuery("(?s)SELECT COUNT\\(\\*\\).+LOWER\\(c.name\\) LIKE \\$2").
		WithArgs("school-1", "%room a%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	classrooms, total, err := repo.List(context.Background(), models.ClassroomFilter{SchoolID: "school-1", Search: "Room A"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, classrooms, 1)
	require.Equal(t, "Room A", classrooms[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryExistsByNamePerSchool(t *testing.T) {
	db, mock, cleanup := newClassroomRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM classrooms WHERE LOWER(name) = LOWER($1) AND school_id = $2 LIMIT 1")).
		WithArgs("Room A", "school-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByName(context.Background(), "Room A", "school-1", "")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryCreateSerializesResources(t *testing.T) {
	db, mock, cleanup := newClassroomRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	mock.ExpectExec("INSERT INTO classrooms").
		WillReturnResult(sqlmock.NewResult(0, 1))

	classroom := &models.Classroom{
		Name:      "Room A",
		SchoolID:  "school-1",
		Capacity:  30,
		Resources: models.ResourceList{{Name: "projector", Quantity: 1}},
		Active:    true,
	}
	require.NoError(t, repo.Create(context.Background(), classroom))
	require.NotEmpty(t, classroom.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassroomRepositoryListStudents(t *testing.T) {
	db, mock, cleanup := newClassroomRepoMock(t)
	defer cleanup()
	repo := NewClassroomRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "first_name", "last_name", "email", "date_of_birth", "gender", "phone", "address",
		"school_id", "classroom_id", "enrolled_at", "active", "created_at", "updated_at",
	}).AddRow("stu-1", "Ada", "Lovelace", "ada@example.com", nil, "female", "", "",
		"school-1", "room-1", time.Now(), true, time.Now(), time.Now())
	mock.ExpectQuery("(?s)SELECT id, first_name, last_name.+FROM students WHERE classroom_id = \\$1 AND active = true").
		WithArgs("room-1").
		WillReturnRows(rows)

	students, err := repo.ListStudents(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
