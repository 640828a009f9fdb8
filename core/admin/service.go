package admin

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
)

var (
	ErrNotFound             = errors.New("admin not found")
	ErrAuthenticationFailed = errors.New("invalid username or password")
	ErrAccountDeactivated   = errors.New("this account is deactivated")

	nowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	Repository interface {
		GetByID(ctx context.Context, id int64) (Admin, error)
		// GetByUsernameOrEmail matches `login` against both the username and the email.
		GetByUsernameOrEmail(ctx context.Context, login string) (Admin, error)
		// UpdateOrCreate inserts the account, or updates the one holding the same username.
		UpdateOrCreate(ctx context.Context, adm Admin) (Admin, error)
		SetLastLogin(ctx context.Context, id int64, at time.Time) error
	}

	Service interface {
		// Authenticate checks the credentials of an active account and records the login.
		Authenticate(ctx context.Context, login, pwd string) (Admin, error)
		GetByID(ctx context.Context, id int64) (Admin, error)
		GetByUsernameOrEmail(ctx context.Context, login string) (Admin, error)
		UpdateOrCreate(ctx context.Context, na NewAdmin) (Admin, error)
		SetPassword(ctx context.Context, login, pwd string) error
		SetLastLogin(ctx context.Context, adm Admin) (Admin, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Authenticate(ctx context.Context, login, pwd string) (Admin, error) {
	adm, err := svc.repo.GetByUsernameOrEmail(ctx, core.CleanString(login, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Admin{}, ErrAuthenticationFailed
		}
		return Admin{}, errors.Wrap(err, "finding admin by username or email")
	}
	if err := adm.CheckPassword(pwd); err != nil {
		return Admin{}, ErrAuthenticationFailed
	}
	if !adm.IsActive {
		return Admin{}, ErrAccountDeactivated
	}
	return svc.SetLastLogin(ctx, adm)
}

func (svc *service) GetByID(ctx context.Context, id int64) (Admin, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, login string) (Admin, error) {
	return svc.repo.GetByUsernameOrEmail(ctx, core.CleanString(login, true /* lower */))
}

func (svc *service) UpdateOrCreate(ctx context.Context, na NewAdmin) (Admin, error) {
	now := nowFunc()
	adm := Admin{
		Name:      na.Name,
		Username:  core.CleanString(na.Username, true /* lower */),
		Email:     core.CleanString(na.Email, true /* lower */),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := adm.SetPassword(na.Password); err != nil {
		return Admin{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateOrCreate(ctx, adm)
}

func (svc *service) SetPassword(ctx context.Context, login, pwd string) error {
	adm, err := svc.GetByUsernameOrEmail(ctx, login)
	if err != nil {
		return err
	}
	if err := adm.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	adm.UpdatedAt = nowFunc()
	_, err = svc.repo.UpdateOrCreate(ctx, adm)
	return err
}

func (svc *service) SetLastLogin(ctx context.Context, adm Admin) (Admin, error) {
	now := nowFunc()
	if err := svc.repo.SetLastLogin(ctx, adm.ID, now); err != nil {
		return Admin{}, errors.Wrap(err, "setting last login")
	}
	adm.LastLogin = &now
	return adm, nil
}
