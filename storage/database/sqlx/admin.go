package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/admin"
)

var adminColumns = []string{
	"id", "name", "username", "email", "password_hash", "is_active", "created_at", "updated_at", "last_login",
}

type adminRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r adminRow) unboil() admin.Admin {
	return admin.Admin{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    utcPtr(r.LastLogin),
	}
}

type adminRepository struct {
	baseRepository
}

var _ admin.Repository = (*adminRepository)(nil) // interface compliance check

func NewAdminRepository(exec core.DBExecutor) *adminRepository {
	return &adminRepository{baseRepository{exec: exec}}
}

func (repo adminRepository) getAdmin(ctx context.Context, where sq.Sqlizer) (admin.Admin, error) {
	var row adminRow
	q := psql.Select(adminColumns...).From("admins").Where(where)
	if err := repo.get(ctx, repo.exec, &row, q); err != nil {
		return admin.Admin{}, trapNoRowsErr(err, admin.ErrNotFound, "finding admin")
	}
	return row.unboil(), nil
}

func (repo adminRepository) GetByID(ctx context.Context, id int64) (admin.Admin, error) {
	return repo.getAdmin(ctx, sq.Eq{"id": id})
}

func (repo adminRepository) GetByUsernameOrEmail(ctx context.Context, login string) (admin.Admin, error) {
	return repo.getAdmin(ctx, sq.Or{sq.Eq{"username": login}, sq.Eq{"email": login}})
}

func (repo adminRepository) UpdateOrCreate(ctx context.Context, adm admin.Admin) (admin.Admin, error) {
	q := psql.Insert("admins").
		Columns("name", "username", "email", "password_hash", "is_active", "created_at", "updated_at").
		Values(adm.Name, adm.Username, adm.Email, adm.PasswordHash, adm.IsActive, adm.CreatedAt, adm.UpdatedAt).
		Suffix(`ON CONFLICT (username) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id, name, username, email, password_hash, is_active, created_at, updated_at, last_login`)

	var row adminRow
	if err := repo.get(ctx, repo.exec, &row, q); err != nil {
		return admin.Admin{}, errors.Wrap(err, "upserting admin")
	}
	return row.unboil(), nil
}

func (repo adminRepository) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	n, err := repo.execute(ctx, repo.exec, psql.Update("admins").Set("last_login", at).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if n == 0 {
		return admin.ErrNotFound
	}
	return nil
}
