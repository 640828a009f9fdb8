package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core/admin"
)

func TestAdminRepository_GetByUsernameOrEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAdminRepository(db)
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(quoted("FROM admins WHERE (username = $1 OR email = $2)")).
		WithArgs("root@example.com", "root@example.com").
		WillReturnRows(sqlmock.NewRows(adminColumns).
			AddRow(1, "Root", "root", "root@example.com", []byte("hash"), true, created, created, nil))
	mock.ExpectQuery(quoted("FROM admins")).
		WithArgs("nobody", "nobody").
		WillReturnRows(sqlmock.NewRows(adminColumns))

	adm, err := repo.GetByUsernameOrEmail(context.Background(), "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, "root", adm.Username)
	assert.Nil(t, adm.LastLogin)

	_, err = repo.GetByUsernameOrEmail(context.Background(), "nobody")
	assert.Equal(t, admin.ErrNotFound, err)
}

func TestAdminRepository_UpdateOrCreate(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(quoted("ON CONFLICT (username) DO UPDATE SET")).
		WithArgs("Root", "root", "root@example.com", []byte("new"), true, now, now).
		WillReturnRows(sqlmock.NewRows(adminColumns).
			AddRow(1, "Root", "root", "root@example.com", []byte("new"), true, created, now, created))

	adm, err := NewAdminRepository(db).UpdateOrCreate(context.Background(), admin.Admin{
		Name: "Root", Username: "root", Email: "root@example.com", PasswordHash: []byte("new"),
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), adm.ID)
	assert.Equal(t, created, adm.CreatedAt)
	require.NotNil(t, adm.LastLogin)
}

func TestAdminRepository_SetLastLogin(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAdminRepository(db)
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(quoted("UPDATE admins SET last_login = $1 WHERE id = $2")).
		WithArgs(at, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(quoted("UPDATE admins SET last_login = $1 WHERE id = $2")).
		WithArgs(at, int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SetLastLogin(context.Background(), 1, at))
	assert.Equal(t, admin.ErrNotFound, repo.SetLastLogin(context.Background(), 9, at))
}
