package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core/student"
)

func TestStudentRepository_Create(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		dbErr   error
		wantErr error
	}{
		{name: "username taken", dbErr: &pq.Error{Code: pqUniqueViolation, Constraint: "students_username_key"}, wantErr: student.ErrUsernameExists},
		{name: "email taken", dbErr: &pq.Error{Code: pqUniqueViolation, Constraint: "students_email_key"}, wantErr: student.ErrEmailExists},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery(quoted("INSERT INTO students")).WillReturnError(tc.dbErr)

			_, err := NewStudentRepository(db).Create(context.Background(), student.Student{
				Username: "ada", Email: "ada@example.com", CreatedAt: now, UpdatedAt: now,
			})
			assert.Equal(t, tc.wantErr, err)
		})
	}

	t.Run("created", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(quoted("INSERT INTO students (username,email,full_name,password_hash,avatar_color,total_score,created_at,updated_at)")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		s, err := NewStudentRepository(db).Create(context.Background(), student.Student{
			Username: "ada", Email: "ada@example.com", CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), s.ID)
	})
}

func TestStudentRepository_CheckUniqueness(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)
	cols := []string{"username", "email"}

	mock.ExpectQuery(quoted("SELECT username, email FROM students WHERE (username = $1 OR email = $2) AND deleted_at IS NULL AND id <> $3")).
		WithArgs("ada", "ada@example.com", int64(5)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("bob", "ada@example.com"))
	mock.ExpectQuery(quoted("FROM students")).
		WillReturnRows(sqlmock.NewRows(cols))

	assert.Equal(t, student.ErrEmailExists, repo.CheckUniqueness(context.Background(), "ada", "ada@example.com", 5))
	assert.NoError(t, repo.CheckUniqueness(context.Background(), "ada", "ada@example.com", 0))
}

func TestStudentRepository_Update_notFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(quoted("UPDATE students SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewStudentRepository(db).Update(context.Background(), student.Student{ID: 3, Username: "ada"})
	assert.Equal(t, student.ErrNotFound, err)
}

func TestStudentRepository_Query(t *testing.T) {
	db, mock := newMockDB(t)
	fixedNow := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return fixedNow }
	t.Cleanup(func() { nowFunc = func() time.Time { return time.Now().UTC() } })

	active := true
	since := fixedNow.Add(-student.ActiveWindow)
	mock.ExpectQuery(quoted("SELECT COUNT(*) FROM students WHERE deleted_at IS NULL AND last_active >= $1")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(quoted("FROM students WHERE deleted_at IS NULL AND last_active >= $1 ORDER BY id ASC")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(studentColumns).
			AddRow(1, "ada", "ada@example.com", "Ada", []byte("hash"), "#fff", 120, fixedNow, fixedNow, fixedNow))

	students, total, err := NewStudentRepository(db).Query(context.Background(), &student.QueryFilter{IsActive: &active}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, students, 1)
	require.NotNil(t, students[0].LastActive)
	assert.Equal(t, 120, students[0].TotalScore)
}

func TestStudentRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(quoted("UPDATE students SET deleted_at = $1, updated_at = $2 WHERE id IN ($3,$4) AND deleted_at IS NULL")).
		WithArgs(at, at, int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := NewStudentRepository(db).Delete(context.Background(), []int64{1, 2}, at)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStudentRepository_QuerySearchEscapesWildcards(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(quoted("SELECT COUNT(*) FROM students WHERE deleted_at IS NULL AND (username ILIKE $1 OR email ILIKE $2 OR full_name ILIKE $3)")).
		WithArgs(`%ada\_l%`, `%ada\_l%`, `%ada\_l%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(quoted("FROM students WHERE deleted_at IS NULL AND (username ILIKE $1 OR email ILIKE $2 OR full_name ILIKE $3)")).
		WithArgs(`%ada\_l%`, `%ada\_l%`, `%ada\_l%`).
		WillReturnRows(sqlmock.NewRows(studentColumns))

	_, total, err := NewStudentRepository(db).Query(context.Background(), &student.QueryFilter{Search: "ada_l"}, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
}
