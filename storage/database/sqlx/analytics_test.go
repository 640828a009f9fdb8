package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core/analytics"
	"github.com/jsacademy/console/core/content"
)

var (
	rangeFrom  = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rangeUntil = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
)

func TestAnalyticsRepository_Overview(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(quoted("FROM quizzes q WHERE q.deleted_at IS NULL AND EXISTS (SELECT 1 FROM lessons l JOIN topics t ON t.id = l.topic_id " +
		"WHERE l.deleted_at IS NULL AND t.deleted_at IS NULL AND l.id = q.lesson_id)) AS total_quizzes")).
		WithArgs(rangeFrom, rangeUntil).
		WillReturnRows(sqlmock.NewRows([]string{
			"total_students", "new_students", "active_students", "total_topics", "total_lessons", "total_quizzes",
			"lessons_started", "lessons_completed", "quiz_attempts", "correct_attempts", "total_time_spent",
		}).AddRow(10, 2, 5, 3, 12, 8, 9, 4, 20, 15, 600))

	ov, err := NewAnalyticsRepository(db).Overview(context.Background(), rangeFrom, rangeUntil)
	require.NoError(t, err)
	assert.Equal(t, analytics.Overview{
		TotalStudents:    10,
		NewStudents:      2,
		ActiveStudents:   5,
		TotalTopics:      3,
		TotalLessons:     12,
		TotalQuizzes:     8,
		LessonsStarted:   9,
		LessonsCompleted: 4,
		QuizAttempts:     20,
		CorrectAttempts:  15,
		TotalTimeSpent:   600,
	}, ov)
}

func TestAnalyticsRepository_StudentActivity(t *testing.T) {
	db, mock := newMockDB(t)
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"student_id", "total_score", "last_active", "created_at", "last_activity", "completed_lessons"}

	mock.ExpectQuery(quoted("FROM students s WHERE s.deleted_at IS NULL ORDER BY s.id")).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 300, created.AddDate(0, 0, 3), created, created.AddDate(0, 0, 3), 5).
			AddRow(2, 0, nil, created, nil, 0))
	mock.ExpectQuery(quoted("FROM students s WHERE s.deleted_at IS NULL AND s.created_at >= $1 AND s.created_at < $2")).
		WithArgs(rangeFrom, rangeUntil).
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewAnalyticsRepository(db)
	students, err := repo.StudentActivity(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	require.NotNil(t, students[0].LastActivity)
	assert.Equal(t, 5, students[0].CompletedLessons)
	assert.Nil(t, students[1].LastActive)
	assert.Nil(t, students[1].LastActivity)

	signups, err := repo.SignupActivity(context.Background(), rangeFrom, rangeUntil)
	require.NoError(t, err)
	assert.NotNil(t, signups)
	assert.Empty(t, signups)
}

func TestAnalyticsRepository_QuizPerformance(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(quoted("WHERE a.attempted_at >= $1 AND a.attempted_at < $2 AND q.deleted_at IS NULL AND l.deleted_at IS NULL AND t.deleted_at IS NULL AND q.difficulty = $3 AND l.topic_id = $4 GROUP BY")).
		WithArgs(rangeFrom, rangeUntil, "hard", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{
			"quiz_id", "question", "lesson_id", "lesson_title", "topic_name", "difficulty",
			"attempts", "correct", "students", "total_time_spent",
		}).AddRow(3, "What is hoisting?", 7, "Scope", "Basics", "hard", 4, 1, 3, 80))

	quizzes, err := NewAnalyticsRepository(db).QuizPerformance(
		context.Background(), rangeFrom, rangeUntil,
		analytics.QuizFilter{Difficulty: content.DifficultyHard, TopicID: 4},
	)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, content.DifficultyHard, quizzes[0].Difficulty)
	assert.Equal(t, 80, quizzes[0].TotalTimeSpent)
}

func TestAnalyticsRepository_DailyActivity(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(quoted("GROUP BY day ORDER BY day")).
		WithArgs(rangeFrom, rangeUntil).
		WillReturnRows(sqlmock.NewRows([]string{
			"date", "active_students", "lessons_started", "lessons_completed", "quiz_attempts", "correct_attempts",
		}).
			AddRow("2024-03-04", 2, 3, 1, 4, 2).
			AddRow("2024-03-06", 1, 0, 1, 0, 0))

	days, err := NewAnalyticsRepository(db).DailyActivity(context.Background(), rangeFrom, rangeUntil)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-03-06", days[1].Date)
	assert.Equal(t, 4, days[0].QuizAttempts)
}

func TestAnalyticsRepository_LiveLessonCount(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(quoted("SELECT COUNT(*) FROM lessons l JOIN topics t ON t.id = l.topic_id WHERE l.deleted_at IS NULL AND t.deleted_at IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	n, err := NewAnalyticsRepository(db).LiveLessonCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}
