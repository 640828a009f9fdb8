package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/progress"
	"github.com/jsacademy/console/core/student"
)

type progressRepository struct {
	db *DB
}

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) UpsertProgress(_ context.Context, p progress.Progress, _ ...core.DBExecutor) (progress.Progress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, row := range repo.db.data.progress {
		if row.StudentID != p.StudentID || row.LessonID != p.LessonID {
			continue
		}
		row.LastAccessed = p.LastAccessed
		if p.IsCompleted && !row.IsCompleted {
			row.IsCompleted = true
			row.CompletedAt = p.CompletedAt
		}
		return *row, nil
	}

	p.ID = repo.db.data.nextPK()
	repo.db.data.progress[p.ID] = &p
	return p, nil
}

func (repo *progressRepository) CreateAttempt(_ context.Context, a progress.Attempt, _ ...core.DBExecutor) (progress.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = repo.db.data.nextPK()
	repo.db.data.attempts = append(repo.db.data.attempts, a)
	return a, nil
}

func (repo *progressRepository) QueryAttempts(_ context.Context, filter *progress.AttemptFilter, page *core.Page, _ ...core.DBExecutor) ([]progress.Attempt, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attempts := make([]progress.Attempt, 0)
	for _, a := range repo.db.data.attempts {
		if filter != nil {
			if filter.StudentID != 0 && a.StudentID != filter.StudentID {
				continue
			}
			if filter.QuizID != 0 && a.QuizID != filter.QuizID {
				continue
			}
			if filter.IsCorrect != nil && a.IsCorrect != *filter.IsCorrect {
				continue
			}
			if !filter.From.IsZero() && a.AttemptedAt.Before(filter.From.Time) {
				continue
			}
			if !filter.To.IsZero() && !a.AttemptedAt.Before(filter.To.AddDate(0, 0, 1)) {
				continue
			}
		}
		if quiz, ok := repo.db.data.quizzes[a.QuizID]; ok {
			a.Question = quiz.Question
		}
		attempts = append(attempts, a)
	}
	sort.SliceStable(attempts, func(i, j int) bool { return attempts[i].ID > attempts[j].ID })
	return paginate(attempts, page), len(attempts), nil
}

func (repo *progressRepository) AddScore(_ context.Context, studentID int64, points int, at time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.data.students[studentID]
	if !ok || !row.deletedAt.IsZero() {
		return 0, student.ErrNotFound
	}
	row.TotalScore += points
	row.LastActive = &at
	return row.TotalScore, nil
}

func (repo *progressRepository) TouchStudent(_ context.Context, studentID int64, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.data.students[studentID]
	if !ok || !row.deletedAt.IsZero() {
		return student.ErrNotFound
	}
	row.LastActive = &at
	return nil
}

func (repo *progressRepository) TopicProgress(_ context.Context, studentID int64, _ ...core.DBExecutor) ([]progress.TopicProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	completed := make(map[int64]bool)
	for _, p := range repo.db.data.progress {
		if p.StudentID == studentID && p.IsCompleted {
			completed[p.LessonID] = true
		}
	}

	byTopic := make(map[int64]*progress.TopicProgress)
	for _, t := range repo.db.data.topics {
		if t.deletedAt.IsZero() {
			byTopic[t.ID] = &progress.TopicProgress{TopicID: t.ID, TopicName: t.Name}
		}
	}
	for _, l := range repo.db.data.lessons {
		tp, ok := byTopic[l.TopicID]
		if !ok || !l.deletedAt.IsZero() {
			continue
		}
		tp.TotalLessons++
		if completed[l.ID] {
			tp.CompletedLessons++
		}
	}

	topics := make([]progress.TopicProgress, 0, len(byTopic))
	for _, tp := range byTopic {
		topics = append(topics, *tp)
	}
	sort.Slice(topics, func(i, j int) bool {
		ti, tj := repo.db.data.topics[topics[i].TopicID], repo.db.data.topics[topics[j].TopicID]
		if ti.Order == tj.Order {
			return ti.ID < tj.ID
		}
		return ti.Order < tj.Order
	})
	return topics, nil
}

func (repo *progressRepository) AttemptTotals(_ context.Context, studentID int64, _ ...core.DBExecutor) (progress.AttemptTotals, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var totals progress.AttemptTotals
	for _, a := range repo.db.data.attempts {
		if a.StudentID != studentID {
			continue
		}
		totals.Attempts++
		if a.IsCorrect {
			totals.Correct++
		}
	}
	return totals, nil
}
