package admin_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/admin"
	inmemdb "github.com/jsacademy/console/storage/database/inmem"
)

func newService(t *testing.T) (admin.Service, admin.Repository) {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewAdminRepository(db)
	return admin.NewService(repo), repo
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	adm, err := svc.UpdateOrCreate(ctx, admin.NewAdmin{Name: "Grace", Username: " Grace ", Email: "Grace@Example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "grace", adm.Username)
	assert.Equal(t, "grace@example.com", adm.Email)
	assert.True(t, adm.IsActive)
	assert.Nil(t, adm.LastLogin)

	tests := []struct {
		name    string
		login   string
		pwd     string
		wantErr error
	}{
		{"by username", "grace", "s3cret-pass", nil},
		{"by email", "GRACE@example.com", "s3cret-pass", nil},
		{"wrong password", "grace", "nope", admin.ErrAuthenticationFailed},
		{"unknown login", "ada", "s3cret-pass", admin.ErrAuthenticationFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.Authenticate(ctx, tc.login, tc.pwd)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, adm.ID, got.ID)
			assert.NotNil(t, got.LastLogin)
		})
	}

	stored, err := repo.GetByID(ctx, adm.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)

	stored.IsActive = false
	_, err = repo.UpdateOrCreate(ctx, stored)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "grace", "s3cret-pass")
	assert.Equal(t, admin.ErrAccountDeactivated, err)
}

func TestService_UpdateOrCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	first, err := svc.UpdateOrCreate(ctx, admin.NewAdmin{Username: "ops", Email: "ops@example.com", Password: "password-1"})
	require.NoError(t, err)
	again, err := svc.UpdateOrCreate(ctx, admin.NewAdmin{Username: "ops", Email: "ops@example.org", Password: "password-2"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "ops@example.org", again.Email)

	_, err = svc.Authenticate(ctx, "ops", "password-1")
	assert.Equal(t, admin.ErrAuthenticationFailed, err)
	_, err = svc.Authenticate(ctx, "ops", "password-2")
	assert.NoError(t, err)

	require.NoError(t, svc.SetPassword(ctx, "ops@example.org", "password-3"))
	_, err = svc.Authenticate(ctx, "ops", "password-3")
	assert.NoError(t, err)
	assert.Equal(t, admin.ErrNotFound, svc.SetPassword(ctx, "nobody", "password-3"))
}

func TestNewAdmin_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	na := admin.NewAdmin{Username: "bad name", Email: "x@example.com", Password: "short"}
	err := na.Validate(validate)
	require.Error(t, err)
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	assert.ElementsMatch(t, []string{"username", "password"}, fields)
}
