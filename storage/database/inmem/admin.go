package inmemdb

import (
	"context"
	"time"

	"github.com/jsacademy/console/core/admin"
)

type adminRepository struct {
	db *DB
}

func NewAdminRepository(db *DB) admin.Repository {
	return &adminRepository{db: db}
}

func (repo *adminRepository) GetByID(_ context.Context, id int64) (admin.Admin, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if adm, ok := repo.db.data.admins[id]; ok {
		return *adm, nil
	}
	return admin.Admin{}, admin.ErrNotFound
}

func (repo *adminRepository) GetByUsernameOrEmail(_ context.Context, login string) (admin.Admin, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, adm := range repo.db.data.admins {
		if adm.Username == login || adm.Email == login {
			return *adm, nil
		}
	}
	return admin.Admin{}, admin.ErrNotFound
}

func (repo *adminRepository) UpdateOrCreate(_ context.Context, adm admin.Admin) (admin.Admin, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, row := range repo.db.data.admins {
		if row.Username == adm.Username {
			adm.ID, adm.CreatedAt, adm.LastLogin = row.ID, row.CreatedAt, row.LastLogin
			*row = adm
			return adm, nil
		}
	}
	adm.ID = repo.db.data.nextPK()
	repo.db.data.admins[adm.ID] = &adm
	return adm, nil
}

func (repo *adminRepository) SetLastLogin(_ context.Context, id int64, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	adm, ok := repo.db.data.admins[id]
	if !ok {
		return admin.ErrNotFound
	}
	adm.LastLogin = &at
	return nil
}
