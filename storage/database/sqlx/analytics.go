package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/analytics"
	"github.com/jsacademy/console/core/content"
)

// Every time bound below is [$1, $2).
const (
	liveLessonsSQL = `lessons l JOIN topics t ON t.id = l.topic_id WHERE l.deleted_at IS NULL AND t.deleted_at IS NULL`

	overviewSQL = `SELECT
	(SELECT COUNT(*) FROM students WHERE deleted_at IS NULL) AS total_students,
	(SELECT COUNT(*) FROM students WHERE deleted_at IS NULL AND created_at >= $1 AND created_at < $2) AS new_students,
	(SELECT COUNT(DISTINCT student_id) FROM (
		SELECT student_id FROM student_progress WHERE last_accessed >= $1 AND last_accessed < $2
		UNION
		SELECT student_id FROM student_quiz_attempts WHERE attempted_at >= $1 AND attempted_at < $2
	) active) AS active_students,
	(SELECT COUNT(*) FROM topics WHERE deleted_at IS NULL) AS total_topics,
	(SELECT COUNT(*) FROM ` + liveLessonsSQL + `) AS total_lessons,
	(SELECT COUNT(*) FROM quizzes q WHERE q.deleted_at IS NULL AND EXISTS (SELECT 1 FROM ` + liveLessonsSQL + ` AND l.id = q.lesson_id)) AS total_quizzes,
	(SELECT COUNT(*) FROM student_progress WHERE started_at >= $1 AND started_at < $2) AS lessons_started,
	(SELECT COUNT(*) FROM student_progress WHERE is_completed AND completed_at >= $1 AND completed_at < $2) AS lessons_completed,
	(SELECT COUNT(*) FROM student_quiz_attempts WHERE attempted_at >= $1 AND attempted_at < $2) AS quiz_attempts,
	(SELECT COUNT(*) FROM student_quiz_attempts WHERE is_correct AND attempted_at >= $1 AND attempted_at < $2) AS correct_attempts,
	(SELECT COALESCE(SUM(time_spent), 0) FROM student_quiz_attempts WHERE attempted_at >= $1 AND attempted_at < $2) AS total_time_spent`

	topicStatsSQL = `SELECT t.id AS topic_id, t.name AS topic_name,
	(SELECT COUNT(*) FROM lessons l WHERE l.topic_id = t.id AND l.deleted_at IS NULL) AS lessons,
	(SELECT COUNT(DISTINCT p.student_id) FROM student_progress p JOIN lessons l ON l.id = p.lesson_id
		WHERE l.topic_id = t.id AND p.last_accessed >= $1 AND p.last_accessed < $2) AS students,
	(SELECT COUNT(*) FROM student_progress p JOIN lessons l ON l.id = p.lesson_id
		WHERE l.topic_id = t.id AND p.started_at >= $1 AND p.started_at < $2) AS lessons_started,
	(SELECT COUNT(*) FROM student_progress p JOIN lessons l ON l.id = p.lesson_id
		WHERE l.topic_id = t.id AND p.is_completed AND p.completed_at >= $1 AND p.completed_at < $2) AS lessons_completed,
	(SELECT COUNT(*) FROM student_quiz_attempts a JOIN quizzes q ON q.id = a.quiz_id JOIN lessons l ON l.id = q.lesson_id
		WHERE l.topic_id = t.id AND a.attempted_at >= $1 AND a.attempted_at < $2) AS quiz_attempts,
	(SELECT COUNT(*) FROM student_quiz_attempts a JOIN quizzes q ON q.id = a.quiz_id JOIN lessons l ON l.id = q.lesson_id
		WHERE l.topic_id = t.id AND a.is_correct AND a.attempted_at >= $1 AND a.attempted_at < $2) AS correct_attempts
FROM topics t
WHERE t.deleted_at IS NULL
ORDER BY t.topic_order, t.id`

	dailyActivitySQL = `SELECT to_char(day, 'YYYY-MM-DD') AS date,
	COUNT(DISTINCT student_id) AS active_students,
	COUNT(*) FILTER (WHERE kind = 'started') AS lessons_started,
	COUNT(*) FILTER (WHERE kind = 'completed') AS lessons_completed,
	COUNT(*) FILTER (WHERE kind = 'attempt') AS quiz_attempts,
	COUNT(*) FILTER (WHERE kind = 'attempt' AND is_correct) AS correct_attempts
FROM (
	SELECT student_id, date_trunc('day', last_accessed AT TIME ZONE 'UTC') AS day, 'accessed' AS kind, false AS is_correct
		FROM student_progress WHERE last_accessed >= $1 AND last_accessed < $2
	UNION ALL
	SELECT student_id, date_trunc('day', started_at AT TIME ZONE 'UTC'), 'started', false
		FROM student_progress WHERE started_at >= $1 AND started_at < $2
	UNION ALL
	SELECT student_id, date_trunc('day', completed_at AT TIME ZONE 'UTC'), 'completed', false
		FROM student_progress WHERE is_completed AND completed_at >= $1 AND completed_at < $2
	UNION ALL
	SELECT student_id, date_trunc('day', attempted_at AT TIME ZONE 'UTC'), 'attempt', is_correct
		FROM student_quiz_attempts WHERE attempted_at >= $1 AND attempted_at < $2
) events
GROUP BY day
ORDER BY day`

	completionPaceSQL = `SELECT s.id AS student_id, s.username,
	(SELECT COUNT(*) FROM student_progress cp JOIN lessons l ON l.id = cp.lesson_id JOIN topics t ON t.id = l.topic_id
		WHERE cp.student_id = s.id AND cp.is_completed AND l.deleted_at IS NULL AND t.deleted_at IS NULL) AS completed_lessons,
	COUNT(p.id) AS completions,
	(SELECT MIN(fp.started_at) FROM student_progress fp WHERE fp.student_id = s.id) AS first_started_at,
	MAX(p.completed_at) AS last_completed_at
FROM students s
JOIN student_progress p ON p.student_id = s.id
WHERE s.deleted_at IS NULL AND p.is_completed AND p.completed_at >= $1 AND p.completed_at < $2
GROUP BY s.id, s.username
ORDER BY s.id`
)

type (
	studentActivityRow struct {
		StudentID        int64     `db:"student_id"`
		TotalScore       int       `db:"total_score"`
		LastActive       null.Time `db:"last_active"`
		CreatedAt        time.Time `db:"created_at"`
		LastActivity     null.Time `db:"last_activity"`
		CompletedLessons int       `db:"completed_lessons"`
	}

	quizPerformanceRow struct {
		QuizID         int64  `db:"quiz_id"`
		Question       string `db:"question"`
		LessonID       int64  `db:"lesson_id"`
		LessonTitle    string `db:"lesson_title"`
		TopicName      string `db:"topic_name"`
		Difficulty     string `db:"difficulty"`
		Attempts       int    `db:"attempts"`
		Correct        int    `db:"correct"`
		Students       int    `db:"students"`
		TotalTimeSpent int    `db:"total_time_spent"`
	}

	completionPaceRow struct {
		StudentID        int64     `db:"student_id"`
		Username         string    `db:"username"`
		CompletedLessons int       `db:"completed_lessons"`
		Completions      int       `db:"completions"`
		FirstStartedAt   time.Time `db:"first_started_at"`
		LastCompletedAt  time.Time `db:"last_completed_at"`
	}
)

func (r studentActivityRow) unboil() analytics.StudentActivity {
	return analytics.StudentActivity{
		StudentID:        r.StudentID,
		TotalScore:       r.TotalScore,
		LastActive:       utcPtr(r.LastActive),
		CreatedAt:        r.CreatedAt.UTC(),
		LastActivity:     utcPtr(r.LastActivity),
		CompletedLessons: r.CompletedLessons,
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

type analyticsRepository struct {
	baseRepository
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(exec core.DBExecutor) *analyticsRepository {
	return &analyticsRepository{baseRepository{exec: exec}}
}

func (repo analyticsRepository) Overview(ctx context.Context, from, until time.Time) (analytics.Overview, error) {
	var row struct {
		TotalStudents    int `db:"total_students"`
		NewStudents      int `db:"new_students"`
		ActiveStudents   int `db:"active_students"`
		TotalTopics      int `db:"total_topics"`
		TotalLessons     int `db:"total_lessons"`
		TotalQuizzes     int `db:"total_quizzes"`
		LessonsStarted   int `db:"lessons_started"`
		LessonsCompleted int `db:"lessons_completed"`
		QuizAttempts     int `db:"quiz_attempts"`
		CorrectAttempts  int `db:"correct_attempts"`
		TotalTimeSpent   int `db:"total_time_spent"`
	}
	if err := repo.get(ctx, repo.exec, &row, sq.Expr(overviewSQL, from, until)); err != nil {
		return analytics.Overview{}, errors.Wrap(err, "counting overview")
	}
	return analytics.Overview{
		TotalStudents:    row.TotalStudents,
		NewStudents:      row.NewStudents,
		ActiveStudents:   row.ActiveStudents,
		TotalTopics:      row.TotalTopics,
		TotalLessons:     row.TotalLessons,
		TotalQuizzes:     row.TotalQuizzes,
		LessonsStarted:   row.LessonsStarted,
		LessonsCompleted: row.LessonsCompleted,
		QuizAttempts:     row.QuizAttempts,
		CorrectAttempts:  row.CorrectAttempts,
		TotalTimeSpent:   row.TotalTimeSpent,
	}, nil
}

func (repo analyticsRepository) TopicStats(ctx context.Context, from, until time.Time) ([]analytics.TopicStats, error) {
	var rows []struct {
		TopicID          int64  `db:"topic_id"`
		TopicName        string `db:"topic_name"`
		Lessons          int    `db:"lessons"`
		Students         int    `db:"students"`
		LessonsStarted   int    `db:"lessons_started"`
		LessonsCompleted int    `db:"lessons_completed"`
		QuizAttempts     int    `db:"quiz_attempts"`
		CorrectAttempts  int    `db:"correct_attempts"`
	}
	if err := repo.selectAll(ctx, repo.exec, &rows, sq.Expr(topicStatsSQL, from, until)); err != nil {
		return nil, errors.Wrap(err, "counting topic stats")
	}
	stats := make([]analytics.TopicStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, analytics.TopicStats{
			TopicID:          r.TopicID,
			TopicName:        r.TopicName,
			Lessons:          r.Lessons,
			Students:         r.Students,
			LessonsStarted:   r.LessonsStarted,
			LessonsCompleted: r.LessonsCompleted,
			QuizAttempts:     r.QuizAttempts,
			CorrectAttempts:  r.CorrectAttempts,
		})
	}
	return stats, nil
}

func (repo analyticsRepository) studentActivity() sq.SelectBuilder {
	return psql.Select(
		"s.id AS student_id", "s.total_score", "s.last_active", "s.created_at",
		`GREATEST(
			(SELECT MAX(p.last_accessed) FROM student_progress p WHERE p.student_id = s.id),
			(SELECT MAX(a.attempted_at) FROM student_quiz_attempts a WHERE a.student_id = s.id)
		) AS last_activity`,
		`(SELECT COUNT(*) FROM student_progress p, `+liveLessonsSQL+` AND l.id = p.lesson_id
			AND p.student_id = s.id AND p.is_completed) AS completed_lessons`,
	).From("students s").Where("s.deleted_at IS NULL").OrderBy("s.id")
}

func (repo analyticsRepository) queryStudentActivity(ctx context.Context, q sq.SelectBuilder) ([]analytics.StudentActivity, error) {
	var rows []studentActivityRow
	if err := repo.selectAll(ctx, repo.exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying student activity")
	}
	students := make([]analytics.StudentActivity, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.unboil())
	}
	return students, nil
}

func (repo analyticsRepository) StudentActivity(ctx context.Context) ([]analytics.StudentActivity, error) {
	return repo.queryStudentActivity(ctx, repo.studentActivity())
}

func (repo analyticsRepository) SignupActivity(ctx context.Context, from, until time.Time) ([]analytics.StudentActivity, error) {
	q := repo.studentActivity().Where(sq.GtOrEq{"s.created_at": from}).Where(sq.Lt{"s.created_at": until})
	return repo.queryStudentActivity(ctx, q)
}

func (repo analyticsRepository) LiveLessonCount(ctx context.Context) (int, error) {
	n, err := repo.count(ctx, repo.exec, psql.Select("COUNT(*)").From(liveLessonsSQL))
	if err != nil {
		return 0, errors.Wrap(err, "counting lessons")
	}
	return n, nil
}

func (repo analyticsRepository) DailyActivity(ctx context.Context, from, until time.Time) ([]analytics.DailyActivity, error) {
	var rows []struct {
		Date             string `db:"date"`
		ActiveStudents   int    `db:"active_students"`
		LessonsStarted   int    `db:"lessons_started"`
		LessonsCompleted int    `db:"lessons_completed"`
		QuizAttempts     int    `db:"quiz_attempts"`
		CorrectAttempts  int    `db:"correct_attempts"`
	}
	if err := repo.selectAll(ctx, repo.exec, &rows, sq.Expr(dailyActivitySQL, from, until)); err != nil {
		return nil, errors.Wrap(err, "counting daily activity")
	}
	days := make([]analytics.DailyActivity, 0, len(rows))
	for _, r := range rows {
		days = append(days, analytics.DailyActivity{
			Date:             r.Date,
			ActiveStudents:   r.ActiveStudents,
			LessonsStarted:   r.LessonsStarted,
			LessonsCompleted: r.LessonsCompleted,
			QuizAttempts:     r.QuizAttempts,
			CorrectAttempts:  r.CorrectAttempts,
		})
	}
	return days, nil
}

func (repo analyticsRepository) QuizPerformance(ctx context.Context, from, until time.Time, filter analytics.QuizFilter) ([]analytics.QuizPerformance, error) {
	q := psql.Select(
		"q.id AS quiz_id", "q.question", "q.lesson_id", "l.title AS lesson_title", "t.name AS topic_name", "q.difficulty",
		"COUNT(a.id) AS attempts",
		"COUNT(a.id) FILTER (WHERE a.is_correct) AS correct",
		"COUNT(DISTINCT a.student_id) AS students",
		"COALESCE(SUM(a.time_spent), 0) AS total_time_spent",
	).
		From("student_quiz_attempts a").
		Join("quizzes q ON q.id = a.quiz_id").
		Join("lessons l ON l.id = q.lesson_id").
		Join("topics t ON t.id = l.topic_id").
		Where(sq.GtOrEq{"a.attempted_at": from}).
		Where(sq.Lt{"a.attempted_at": until}).
		Where("q.deleted_at IS NULL AND l.deleted_at IS NULL AND t.deleted_at IS NULL")
	if filter.Difficulty != "" {
		q = q.Where(sq.Eq{"q.difficulty": string(filter.Difficulty)})
	}
	if filter.TopicID != 0 {
		q = q.Where(sq.Eq{"l.topic_id": filter.TopicID})
	}
	q = q.GroupBy("q.id", "q.question", "q.lesson_id", "l.title", "t.name", "q.difficulty").OrderBy("q.id")

	var rows []quizPerformanceRow
	if err := repo.selectAll(ctx, repo.exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting quiz performance")
	}
	quizzes := make([]analytics.QuizPerformance, 0, len(rows))
	for _, r := range rows {
		quizzes = append(quizzes, analytics.QuizPerformance{
			QuizID:         r.QuizID,
			Question:       r.Question,
			LessonID:       r.LessonID,
			LessonTitle:    r.LessonTitle,
			TopicName:      r.TopicName,
			Difficulty:     content.Difficulty(r.Difficulty),
			Attempts:       r.Attempts,
			Correct:        r.Correct,
			Students:       r.Students,
			TotalTimeSpent: r.TotalTimeSpent,
		})
	}
	return quizzes, nil
}

func (repo analyticsRepository) CompletionPace(ctx context.Context, from, until time.Time) ([]analytics.CompletionPace, error) {
	var rows []completionPaceRow
	if err := repo.selectAll(ctx, repo.exec, &rows, sq.Expr(completionPaceSQL, from, until)); err != nil {
		return nil, errors.Wrap(err, "querying completion pace")
	}
	paces := make([]analytics.CompletionPace, 0, len(rows))
	for _, r := range rows {
		paces = append(paces, analytics.CompletionPace{
			StudentID:        r.StudentID,
			Username:         r.Username,
			CompletedLessons: r.CompletedLessons,
			Completions:      r.Completions,
			FirstStartedAt:   r.FirstStartedAt.UTC(),
			LastCompletedAt:  r.LastCompletedAt.UTC(),
		})
	}
	return paces, nil
}
