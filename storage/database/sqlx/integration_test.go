package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/admin"
	"github.com/jsacademy/console/core/student"
	sqlxrepos "github.com/jsacademy/console/storage/database/sqlx"
	testutil "github.com/jsacademy/console/tests"
)

func TestAdminRepository_postgres(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewAdminRepository(db)
	ctx := context.Background()

	adm := testutil.CreateAdmin(t, repo, "Grace", "grace", "grace@jsacademy.dev", "s3cret-pass", true)
	assert.NotZero(t, adm.ID)

	got, err := repo.GetByUsernameOrEmail(ctx, "grace@jsacademy.dev")
	require.NoError(t, err)
	assert.Equal(t, adm.ID, got.ID)
	assert.NoError(t, got.CheckPassword("s3cret-pass"))

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.SetLastLogin(ctx, adm.ID, at))
	got, err = repo.GetByID(ctx, adm.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))

	again := testutil.CreateAdmin(t, repo, "Grace H", "grace", "grace@jsacademy.org", "another-pass", false)
	assert.Equal(t, adm.ID, again.ID)
	assert.Equal(t, "grace@jsacademy.org", again.Email)
	assert.False(t, again.IsActive)

	_, err = repo.GetByID(ctx, adm.ID+100)
	assert.Equal(t, admin.ErrNotFound, errors.Cause(err))
}

func TestStudentRepository_postgres(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewStudentRepository(db)
	ctx := context.Background()

	ada := testutil.CreateStudent(t, repo, "ada", "ada@jsacademy.dev", "Ada Lovelace")
	bob := testutil.CreateStudent(t, repo, "bob", "bob@jsacademy.dev", "Bob")

	err := repo.CheckUniqueness(ctx, "ada", "someone@jsacademy.dev", 0)
	assert.Equal(t, student.ErrUsernameExists, errors.Cause(err))
	err = repo.CheckUniqueness(ctx, "someone", "bob@jsacademy.dev", 0)
	assert.Equal(t, student.ErrEmailExists, errors.Cause(err))
	assert.NoError(t, repo.CheckUniqueness(ctx, "ada", "ada@jsacademy.dev", ada.ID))

	page := core.Page{Number: 1, Size: 10}
	items, total, err := repo.Query(ctx, &student.QueryFilter{Search: "love"}, nil, &page)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, ada.ID, items[0].ID)

	deleted, err := repo.Delete(ctx, []int64{bob.ID, bob.ID + 100}, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	_, err = repo.GetByID(ctx, bob.ID)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))

	// usernames of soft-deleted students can be reused
	testutil.CreateStudent(t, repo, "bob", "bob@jsacademy.dev", "Bob again")
}
