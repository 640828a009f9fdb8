package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/progress"
	"github.com/jsacademy/console/core/student"
)

type (
	progressRow struct {
		ID           int64     `db:"id"`
		StudentID    int64     `db:"student_id"`
		LessonID     int64     `db:"lesson_id"`
		IsCompleted  bool      `db:"is_completed"`
		StartedAt    time.Time `db:"started_at"`
		LastAccessed time.Time `db:"last_accessed"`
		CompletedAt  null.Time `db:"completed_at"`
	}

	attemptRow struct {
		ID               int64     `db:"id"`
		StudentID        int64     `db:"student_id"`
		QuizID           int64     `db:"quiz_id"`
		Question         string    `db:"question"`
		SelectedOptionID int64     `db:"selected_option_id"`
		IsCorrect        bool      `db:"is_correct"`
		TimeSpent        int       `db:"time_spent"`
		AttemptedAt      time.Time `db:"attempted_at"`
	}

	topicProgressRow struct {
		TopicID          int64  `db:"topic_id"`
		TopicName        string `db:"topic_name"`
		TotalLessons     int    `db:"total_lessons"`
		CompletedLessons int    `db:"completed_lessons"`
	}
)

func (r progressRow) unboil() progress.Progress {
	p := progress.Progress{
		ID:           r.ID,
		StudentID:    r.StudentID,
		LessonID:     r.LessonID,
		IsCompleted:  r.IsCompleted,
		StartedAt:    r.StartedAt.UTC(),
		LastAccessed: r.LastAccessed.UTC(),
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time.UTC()
		p.CompletedAt = &t
	}
	return p
}

func (r attemptRow) unboil() progress.Attempt {
	return progress.Attempt{
		ID:               r.ID,
		StudentID:        r.StudentID,
		QuizID:           r.QuizID,
		Question:         r.Question,
		SelectedOptionID: r.SelectedOptionID,
		IsCorrect:        r.IsCorrect,
		TimeSpent:        r.TimeSpent,
		AttemptedAt:      r.AttemptedAt.UTC(),
	}
}

type progressRepository struct {
	baseRepository
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(exec core.DBExecutor) *progressRepository {
	return &progressRepository{baseRepository{exec: exec}}
}

// UpsertProgress relies on the (student_id, lesson_id) unique key. A completed row keeps
// is_completed and its first completed_at.
func (repo progressRepository) UpsertProgress(ctx context.Context, p progress.Progress, exec ...core.DBExecutor) (progress.Progress, error) {
	q := psql.Insert("student_progress").
		Columns("student_id", "lesson_id", "is_completed", "started_at", "last_accessed", "completed_at").
		Values(p.StudentID, p.LessonID, p.IsCompleted, p.StartedAt, p.LastAccessed, null.TimeFromPtr(p.CompletedAt)).
		Suffix(`ON CONFLICT (student_id, lesson_id) DO UPDATE SET
			last_accessed = EXCLUDED.last_accessed,
			is_completed = student_progress.is_completed OR EXCLUDED.is_completed,
			completed_at = COALESCE(student_progress.completed_at, EXCLUDED.completed_at)
		RETURNING id, student_id, lesson_id, is_completed, started_at, last_accessed, completed_at`)

	var row progressRow
	if err := repo.get(ctx, repo.getExec(exec), &row, q); err != nil {
		return progress.Progress{}, errors.Wrap(err, "upserting progress")
	}
	return row.unboil(), nil
}

func (repo progressRepository) CreateAttempt(ctx context.Context, a progress.Attempt, exec ...core.DBExecutor) (progress.Attempt, error) {
	q := psql.Insert("student_quiz_attempts").
		Columns("student_id", "quiz_id", "selected_option_id", "is_correct", "time_spent", "attempted_at").
		Values(a.StudentID, a.QuizID, a.SelectedOptionID, a.IsCorrect, a.TimeSpent, a.AttemptedAt).
		Suffix("RETURNING id")
	if err := repo.get(ctx, repo.getExec(exec), &a.ID, q); err != nil {
		return progress.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return a, nil
}

func filterAttempts(q sq.SelectBuilder, filter *progress.AttemptFilter) sq.SelectBuilder {
	if filter == nil {
		return q
	}
	if filter.StudentID != 0 {
		q = q.Where(sq.Eq{"a.student_id": filter.StudentID})
	}
	if filter.QuizID != 0 {
		q = q.Where(sq.Eq{"a.quiz_id": filter.QuizID})
	}
	if filter.IsCorrect != nil {
		q = q.Where(sq.Eq{"a.is_correct": *filter.IsCorrect})
	}
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"a.attempted_at": filter.From.Time})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.Lt{"a.attempted_at": filter.To.AddDate(0, 0, 1)})
	}
	return q
}

// QueryAttempts lists attempts newest first. Attempts on soft-deleted quizzes are kept.
func (repo progressRepository) QueryAttempts(ctx context.Context, filter *progress.AttemptFilter, page *core.Page, exec ...core.DBExecutor) ([]progress.Attempt, int, error) {
	exe := repo.getExec(exec)
	total, err := repo.count(ctx, exe, filterAttempts(psql.Select("COUNT(*)").From("student_quiz_attempts a"), filter))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting attempts")
	}

	q := psql.Select(
		"a.id", "a.student_id", "a.quiz_id", "q.question", "a.selected_option_id",
		"a.is_correct", "a.time_spent", "a.attempted_at",
	).From("student_quiz_attempts a").Join("quizzes q ON q.id = a.quiz_id")
	q = paginate(filterAttempts(q, filter).OrderBy("a.attempted_at DESC", "a.id DESC"), page)

	var rows []attemptRow
	if err := repo.selectAll(ctx, exe, &rows, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying attempts")
	}
	attempts := make([]progress.Attempt, 0, len(rows))
	for _, r := range rows {
		attempts = append(attempts, r.unboil())
	}
	return attempts, total, nil
}

func (repo progressRepository) AddScore(ctx context.Context, studentID int64, points int, at time.Time, exec ...core.DBExecutor) (int, error) {
	q := psql.Update("students").
		Set("total_score", sq.Expr("total_score + ?", points)).
		Set("last_active", at).
		Where(sq.Eq{"id": studentID}).Where("deleted_at IS NULL").
		Suffix("RETURNING total_score")
	var total int
	if err := repo.get(ctx, repo.getExec(exec), &total, q); err != nil {
		return 0, trapNoRowsErr(err, student.ErrNotFound, "adding score")
	}
	return total, nil
}

func (repo progressRepository) TouchStudent(ctx context.Context, studentID int64, at time.Time, exec ...core.DBExecutor) error {
	q := psql.Update("students").Set("last_active", at).Where(sq.Eq{"id": studentID}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return errors.Wrap(err, "touching student")
	}
	if n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo progressRepository) TopicProgress(ctx context.Context, studentID int64, exec ...core.DBExecutor) ([]progress.TopicProgress, error) {
	q := psql.Select(
		"t.id AS topic_id",
		"t.name AS topic_name",
		"COUNT(l.id) AS total_lessons",
		"COUNT(p.id) AS completed_lessons",
	).
		From("topics t").
		LeftJoin("lessons l ON l.topic_id = t.id AND l.deleted_at IS NULL").
		LeftJoin("student_progress p ON p.lesson_id = l.id AND p.is_completed AND p.student_id = ?", studentID).
		Where("t.deleted_at IS NULL").
		GroupBy("t.id", "t.name", "t.topic_order").
		OrderBy("t.topic_order", "t.id")

	var rows []topicProgressRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying topic progress")
	}
	topics := make([]progress.TopicProgress, 0, len(rows))
	for _, r := range rows {
		topics = append(topics, progress.TopicProgress{
			TopicID:          r.TopicID,
			TopicName:        r.TopicName,
			TotalLessons:     r.TotalLessons,
			CompletedLessons: r.CompletedLessons,
		})
	}
	return topics, nil
}

func (repo progressRepository) AttemptTotals(ctx context.Context, studentID int64, exec ...core.DBExecutor) (progress.AttemptTotals, error) {
	var totals struct {
		Attempts int `db:"attempts"`
		Correct  int `db:"correct"`
	}
	q := psql.Select("COUNT(*) AS attempts", "COUNT(*) FILTER (WHERE is_correct) AS correct").
		From("student_quiz_attempts").Where(sq.Eq{"student_id": studentID})
	if err := repo.get(ctx, repo.getExec(exec), &totals, q); err != nil {
		return progress.AttemptTotals{}, errors.Wrap(err, "counting attempts")
	}
	return progress.AttemptTotals{Attempts: totals.Attempts, Correct: totals.Correct}, nil
}
