package student

import (
	"context"
	"io"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
)

var (
	// errors
	ErrNotFound       = errors.New("student not found")
	ErrEmailExists    = errors.New("a student with this email already exists")
	ErrUsernameExists = errors.New("a student with this username already exists")

	nowFunc = func() time.Time { return time.Now().UTC() }
)

const passwordResetTemplate = "student_password_reset"

type (
	// Repository persists students. Reads never return soft-deleted students.
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when a live student other than
		// excludeID already uses username or email.
		CheckUniqueness(ctx context.Context, username, email string, excludeID int64, exec ...core.DBExecutor) error
		Create(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		Update(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		GetByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Student, error)
		GetByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Page, exec ...core.DBExecutor) ([]Student, int, error)
		// Delete soft-deletes the given students and returns how many were live.
		Delete(ctx context.Context, ids []int64, at time.Time, exec ...core.DBExecutor) (int, error)
		SetPassword(ctx context.Context, id int64, hash []byte, at time.Time, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, username, email string, excludeID ...int64) error
		Create(ctx context.Context, ns NewStudent) (CreatedStudent, error)
		Update(ctx context.Context, id int64, us UpdateStudent) (Student, error)
		GetByID(ctx context.Context, id int64) (Student, error)
		GetByUsername(ctx context.Context, username string) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) (core.PageResult[Student], error)
		Delete(ctx context.Context, ids ...int64) (int, error)
		// ResetPassword sets a new random password and returns it. The plaintext is not kept anywhere;
		// with notify it is also mailed to the student.
		ResetPassword(ctx context.Context, id int64, notify bool) (string, error)
		ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error)
	}

	service struct {
		repo     Repository
		validate *validator.Validate
		mailSvc  core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate, mailSvc core.EmailService) Service {
	return &service{repo: repo, validate: validate, mailSvc: mailSvc}
}

func (svc *service) CheckUniqueness(ctx context.Context, username, email string, excludeID ...int64) error {
	var excl int64
	if len(excludeID) > 0 {
		excl = excludeID[0]
	}
	if err := svc.repo.CheckUniqueness(ctx, username, email, excl); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ns NewStudent) (CreatedStudent, error) {
	var generated string
	if ns.Password == "" {
		pwd, err := GeneratePassword()
		if err != nil {
			return CreatedStudent{}, errors.Wrap(err, "generating password")
		}
		ns.Password, generated = pwd, pwd
	}
	if ns.AvatarColor == "" {
		ns.AvatarColor = AvatarColor(ns.Username)
	}

	now := nowFunc()
	std := Student{
		Username:    ns.Username,
		Email:       ns.Email,
		FullName:    ns.FullName,
		AvatarColor: ns.AvatarColor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := std.SetPassword(ns.Password); err != nil {
		return CreatedStudent{}, errors.Wrap(err, "hashing password")
	}
	std, err := svc.repo.Create(ctx, std)
	if err != nil {
		return CreatedStudent{}, err
	}
	return CreatedStudent{Student: std, Password: generated}, nil
}

func (svc *service) Update(ctx context.Context, id int64, us UpdateStudent) (Student, error) {
	std, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if us.Username != "" {
		std.Username = us.Username
	}
	if us.Email != "" {
		std.Email = us.Email
	}
	if us.FullName != nil {
		std.FullName = *us.FullName
	}
	if us.AvatarColor != "" {
		std.AvatarColor = us.AvatarColor
	}
	if us.Password != "" {
		if err := std.SetPassword(us.Password); err != nil {
			return Student{}, errors.Wrap(err, "hashing password")
		}
	}
	std.UpdatedAt = nowFunc()
	return svc.repo.Update(ctx, std)
}

func (svc *service) GetByID(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *service) GetByUsername(ctx context.Context, username string) (Student, error) {
	return svc.repo.GetByUsername(ctx, core.CleanString(username, true /* lower */))
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page core.Page) (core.PageResult[Student], error) {
	page.Clean()
	students, total, err := svc.repo.Query(ctx, filter, ordering, &page)
	if err != nil {
		return core.PageResult[Student]{}, err
	}
	return core.NewPageResult(students, total, page), nil
}

func (svc *service) Delete(ctx context.Context, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.Delete(ctx, ids, nowFunc())
}

func (svc *service) ResetPassword(ctx context.Context, id int64, notify bool) (string, error) {
	std, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	pwd, err := GeneratePassword()
	if err != nil {
		return "", errors.Wrap(err, "generating password")
	}
	if err := std.SetPassword(pwd); err != nil {
		return "", errors.Wrap(err, "hashing password")
	}
	if err := svc.repo.SetPassword(ctx, std.ID, std.PasswordHash, nowFunc()); err != nil {
		return "", errors.Wrap(err, "saving password")
	}

	if notify && svc.mailSvc != nil {
		svc.sendPasswordResetMail(std, pwd)
	}
	return pwd, nil
}

func (svc *service) sendPasswordResetMail(std Student, pwd string) {
	name := std.FullName
	if name == "" {
		name = std.Username
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: std.FullName, Address: std.Email}},
		Subject:      "Your password has been reset",
		TemplateName: passwordResetTemplate,
		TemplateData: map[string]interface{}{
			"Name":     name,
			"Username": std.Username,
			"Password": pwd,
		},
	})
}
