package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/student"
)

var (
	studentColumns = []string{
		"id", "username", "email", "full_name", "password_hash", "avatar_color",
		"total_score", "last_active", "created_at", "updated_at",
	}
	studentOrderings = map[string]string{
		"id":          "id",
		"username":    "username",
		"email":       "email",
		"full_name":   "full_name",
		"total_score": "total_score",
		"last_active": "last_active",
		"created_at":  "created_at",
	}

	// nowFunc is the clock of the activity filters.
	nowFunc = func() time.Time { return time.Now().UTC() }
)

type studentRow struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	FullName     string    `db:"full_name"`
	PasswordHash []byte    `db:"password_hash"`
	AvatarColor  string    `db:"avatar_color"`
	TotalScore   int       `db:"total_score"`
	LastActive   null.Time `db:"last_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r studentRow) unboil() student.Student {
	s := student.Student{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		FullName:     r.FullName,
		PasswordHash: r.PasswordHash,
		AvatarColor:  r.AvatarColor,
		TotalScore:   r.TotalScore,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastActive.Valid {
		t := r.LastActive.Time.UTC()
		s.LastActive = &t
	}
	return s
}

type studentRepository struct {
	baseRepository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{baseRepository{exec: exec}}
}

// trapUniqueErr maps the unique constraints of the students table to the domain errors.
func (repo studentRepository) trapUniqueErr(err error, msg string) error {
	if constraint, ok := uniqueViolation(err); ok {
		switch {
		case strings.Contains(constraint, "username"):
			return student.ErrUsernameExists
		case strings.Contains(constraint, "email"):
			return student.ErrEmailExists
		}
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int64, exec ...core.DBExecutor) error {
	q := psql.Select("username", "email").From("students").
		Where(sq.Or{sq.Eq{"username": username}, sq.Eq{"email": email}}).
		Where("deleted_at IS NULL")
	if excludeID != 0 {
		q = q.Where(sq.NotEq{"id": excludeID})
	}

	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	if err := repo.selectAll(ctx, repo.getExec(exec), &taken, q); err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	for _, t := range taken {
		if username != "" && t.Username == username {
			return student.ErrUsernameExists
		}
	}
	for _, t := range taken {
		if email != "" && t.Email == email {
			return student.ErrEmailExists
		}
	}
	return nil
}

func (repo studentRepository) Create(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	q := psql.Insert("students").
		Columns("username", "email", "full_name", "password_hash", "avatar_color", "total_score", "created_at", "updated_at").
		Values(s.Username, s.Email, s.FullName, s.PasswordHash, s.AvatarColor, s.TotalScore, s.CreatedAt, s.UpdatedAt).
		Suffix("RETURNING id")
	if err := repo.get(ctx, repo.getExec(exec), &s.ID, q); err != nil {
		return student.Student{}, repo.trapUniqueErr(err, "inserting student")
	}
	return s, nil
}

func (repo studentRepository) Update(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	exe := repo.getExec(exec)
	q := psql.Update("students").
		SetMap(map[string]interface{}{
			"username":      s.Username,
			"email":         s.Email,
			"full_name":     s.FullName,
			"password_hash": s.PasswordHash,
			"avatar_color":  s.AvatarColor,
			"updated_at":    s.UpdatedAt,
		}).
		Where(sq.Eq{"id": s.ID}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, exe, q)
	if err != nil {
		return student.Student{}, repo.trapUniqueErr(err, "updating student")
	}
	if n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetByID(ctx, s.ID, exe)
}

func (repo studentRepository) getStudent(ctx context.Context, exec core.DBExecutor, where sq.Sqlizer) (student.Student, error) {
	var row studentRow
	q := psql.Select(studentColumns...).From("students").Where(where).Where("deleted_at IS NULL")
	if err := repo.get(ctx, exec, &row, q); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return row.unboil(), nil
}

func (repo studentRepository) GetByID(ctx context.Context, id int64, exec ...core.DBExecutor) (student.Student, error) {
	return repo.getStudent(ctx, repo.getExec(exec), sq.Eq{"id": id})
}

func (repo studentRepository) GetByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (student.Student, error) {
	return repo.getStudent(ctx, repo.getExec(exec), sq.Eq{"username": username})
}

func filterStudents(q sq.SelectBuilder, filter *student.QueryFilter) sq.SelectBuilder {
	q = q.Where("deleted_at IS NULL")
	if filter == nil {
		return q
	}
	// students with Username, Email or FullName matching the search keyword
	if filter.Search != "" {
		val := ilike(filter.Search)
		q = q.Where(sq.Or{sq.ILike{"username": val}, sq.ILike{"email": val}, sq.ILike{"full_name": val}})
	}
	if filter.IsActive != nil {
		since := nowFunc().Add(-student.ActiveWindow)
		if *filter.IsActive {
			q = q.Where(sq.GtOrEq{"last_active": since})
		} else {
			q = q.Where(sq.Or{sq.Eq{"last_active": nil}, sq.Lt{"last_active": since}})
		}
	}
	if !filter.CreatedFrom.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.Time})
	}
	if !filter.CreatedTo.IsZero() {
		q = q.Where(sq.Lt{"created_at": filter.CreatedTo.AddDate(0, 0, 1)})
	}
	return q
}

func (repo studentRepository) Query(
	ctx context.Context,
	filter *student.QueryFilter,
	ordering []core.DBOrdering,
	page *core.Page,
	exec ...core.DBExecutor,
) ([]student.Student, int, error) {
	exe := repo.getExec(exec)
	total, err := repo.count(ctx, exe, filterStudents(psql.Select("COUNT(*)").From("students"), filter))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting students")
	}

	q := filterStudents(psql.Select(studentColumns...).From("students"), filter)
	q = paginate(orderBy(q, ordering, studentOrderings, "id ASC"), page)
	var rows []studentRow
	if err := repo.selectAll(ctx, exe, &rows, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.unboil())
	}
	return students, total, nil
}

func (repo studentRepository) Delete(ctx context.Context, ids []int64, at time.Time, exec ...core.DBExecutor) (int, error) {
	q := psql.Update("students").
		Set("deleted_at", at).Set("updated_at", at).
		Where(sq.Eq{"id": ids}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	return n, nil
}

func (repo studentRepository) SetPassword(ctx context.Context, id int64, hash []byte, at time.Time, exec ...core.DBExecutor) error {
	q := psql.Update("students").
		Set("password_hash", hash).Set("updated_at", at).
		Where(sq.Eq{"id": id}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return errors.Wrap(err, "setting student password")
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}
