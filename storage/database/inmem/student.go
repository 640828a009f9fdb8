package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/student"
)

type studentRepository struct {
	db *DB
}

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) live() []*studentRow {
	rows := make([]*studentRow, 0, len(repo.db.data.students))
	for _, row := range repo.db.data.students {
		if row.deletedAt.IsZero() {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func (repo *studentRepository) CheckUniqueness(_ context.Context, username, email string, excludeID int64, _ ...core.DBExecutor) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, row := range repo.live() {
		if row.ID == excludeID {
			continue
		}
		if username != "" && row.Username == username {
			return student.ErrUsernameExists
		}
		if email != "" && row.Email == email {
			return student.ErrEmailExists
		}
	}
	return nil
}

func (repo *studentRepository) Create(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s.ID = repo.db.data.nextPK()
	repo.db.data.students[s.ID] = &studentRow{Student: s}
	return s, nil
}

func (repo *studentRepository) Update(_ context.Context, s student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.data.students[s.ID]
	if !ok || !row.deletedAt.IsZero() {
		return student.Student{}, student.ErrNotFound
	}
	s.CreatedAt, s.TotalScore, s.LastActive = row.CreatedAt, row.TotalScore, row.LastActive
	row.Student = s
	return s, nil
}

func (repo *studentRepository) GetByID(_ context.Context, id int64, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	row, ok := repo.db.data.students[id]
	if !ok || !row.deletedAt.IsZero() {
		return student.Student{}, student.ErrNotFound
	}
	return row.Student, nil
}

func (repo *studentRepository) GetByUsername(_ context.Context, username string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, row := range repo.live() {
		if row.Username == username {
			return row.Student, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) Query(
	_ context.Context,
	filter *student.QueryFilter,
	_ []core.DBOrdering,
	page *core.Page,
	_ ...core.DBExecutor,
) ([]student.Student, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	now := time.Now().UTC()
	students := make([]student.Student, 0)
	for _, row := range repo.live() {
		if filter != nil {
			if filter.Search != "" && !containsFold(row.Username, filter.Search) &&
				!containsFold(row.Email, filter.Search) && !containsFold(row.FullName, filter.Search) {
				continue
			}
			if filter.IsActive != nil && row.IsActive(now) != *filter.IsActive {
				continue
			}
			if !filter.CreatedFrom.IsZero() && row.CreatedAt.Before(filter.CreatedFrom.Time) {
				continue
			}
			if !filter.CreatedTo.IsZero() && !row.CreatedAt.Before(filter.CreatedTo.AddDate(0, 0, 1)) {
				continue
			}
		}
		students = append(students, row.Student)
	}
	return paginate(students, page), len(students), nil
}

func (repo *studentRepository) Delete(_ context.Context, ids []int64, at time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if row, ok := repo.db.data.students[id]; ok && row.deletedAt.IsZero() {
			row.deletedAt = at
			n++
		}
	}
	return n, nil
}

func (repo *studentRepository) SetPassword(_ context.Context, id int64, hash []byte, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.data.students[id]
	if !ok || !row.deletedAt.IsZero() {
		return student.ErrNotFound
	}
	row.PasswordHash = hash
	row.UpdatedAt = at
	return nil
}
