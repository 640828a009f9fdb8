package progress_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/content"
	"github.com/jsacademy/console/core/progress"
	"github.com/jsacademy/console/core/student"
	inmemdb "github.com/jsacademy/console/storage/database/inmem"
)

type fixture struct {
	progress progress.Service
	content  content.Service
	students student.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)

	contentRepo := inmemdb.NewContentRepository(db)
	studentRepo := inmemdb.NewStudentRepository(db)
	return fixture{
		progress: progress.NewService(db, inmemdb.NewProgressRepository(db), contentRepo, studentRepo),
		content:  content.NewService(db, contentRepo),
		students: student.NewService(studentRepo, validator.New(), nil),
	}
}

// seed creates a topic with two lessons, a hard quiz on the first one, and a student.
func (f fixture) seed(t *testing.T) (studentID int64, lessonIDs []int64, quiz content.Quiz) {
	t.Helper()
	ctx := context.Background()

	topic, err := f.content.CreateTopic(ctx, content.NewTopic{Name: "Basics"})
	require.NoError(t, err)
	for _, title := range []string{"Variables", "Types"} {
		id, err := f.content.SaveLesson(ctx, content.SaveLesson{TopicID: topic.ID, Title: title, ContentType: content.ContentTheory}, 0)
		require.NoError(t, err)
		lessonIDs = append(lessonIDs, id)
	}
	quizID, err := f.content.SaveQuiz(ctx, content.SaveQuiz{
		LessonID:    lessonIDs[0],
		Question:    "typeof null?",
		Explanation: "a historical bug",
		Difficulty:  content.DifficultyHard,
		Options:     []content.OptionInput{{Text: "null"}, {Text: "object", IsCorrect: true}},
	}, 0)
	require.NoError(t, err)
	quiz, err = f.content.GetQuiz(ctx, quizID)
	require.NoError(t, err)

	std, err := f.students.Create(ctx, student.NewStudent{Username: "ada", Email: "ada@example.com"})
	require.NoError(t, err)
	return std.ID, lessonIDs, quiz
}

func TestService_RecordProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	studentID, lessons, _ := f.seed(t)

	p, err := f.progress.RecordProgress(ctx, progress.RecordProgress{StudentID: studentID, LessonID: lessons[0]})
	require.NoError(t, err)
	assert.False(t, p.IsCompleted)
	assert.Nil(t, p.CompletedAt)

	done, err := f.progress.RecordProgress(ctx, progress.RecordProgress{StudentID: studentID, LessonID: lessons[0], Completed: true})
	require.NoError(t, err)
	assert.Equal(t, p.ID, done.ID)
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.CompletedAt)
	firstCompletion := *done.CompletedAt

	// reopening a completed lesson keeps it completed
	again, err := f.progress.RecordProgress(ctx, progress.RecordProgress{StudentID: studentID, LessonID: lessons[0]})
	require.NoError(t, err)
	assert.True(t, again.IsCompleted)
	assert.Equal(t, firstCompletion, *again.CompletedAt)

	std, err := f.students.GetByID(ctx, studentID)
	require.NoError(t, err)
	assert.NotNil(t, std.LastActive)

	_, err = f.progress.RecordProgress(ctx, progress.RecordProgress{StudentID: 999, LessonID: lessons[0]})
	assertValidationField(t, err, "student_id")
	_, err = f.progress.RecordProgress(ctx, progress.RecordProgress{StudentID: studentID, LessonID: 999})
	assertValidationField(t, err, "lesson_id")
}

func TestService_RecordAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	studentID, _, quiz := f.seed(t)
	correct, ok := quiz.CorrectOption()
	require.True(t, ok)
	wrong := quiz.Options[0]

	res, err := f.progress.RecordAttempt(ctx, progress.RecordAttempt{StudentID: studentID, QuizID: quiz.ID, SelectedOptionID: wrong.ID, TimeSpent: 12})
	require.NoError(t, err)
	assert.False(t, res.Attempt.IsCorrect)
	assert.Zero(t, res.Points)
	assert.Zero(t, res.TotalScore)
	assert.Equal(t, correct.ID, res.CorrectOptionID)
	assert.Equal(t, "a historical bug", res.Explanation)

	res, err = f.progress.RecordAttempt(ctx, progress.RecordAttempt{StudentID: studentID, QuizID: quiz.ID, SelectedOptionID: correct.ID, TimeSpent: 8})
	require.NoError(t, err)
	assert.True(t, res.Attempt.IsCorrect)
	assert.Equal(t, 30, res.Points)
	assert.Equal(t, 30, res.TotalScore)

	_, err = f.progress.RecordAttempt(ctx, progress.RecordAttempt{StudentID: studentID, QuizID: quiz.ID, SelectedOptionID: 424242})
	assertValidationField(t, err, "selected_option_id")

	attempts, err := f.progress.QueryAttempts(ctx, &progress.AttemptFilter{StudentID: studentID}, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts.Total)
	assert.True(t, attempts.Items[0].IsCorrect, "latest attempt first")
}

func TestService_StudentReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	studentID, lessons, quiz := f.seed(t)
	correct, _ := quiz.CorrectOption()

	_, err := f.progress.RecordProgress(ctx, progress.RecordProgress{StudentID: studentID, LessonID: lessons[0], Completed: true})
	require.NoError(t, err)
	_, err = f.progress.RecordAttempt(ctx, progress.RecordAttempt{StudentID: studentID, QuizID: quiz.ID, SelectedOptionID: correct.ID})
	require.NoError(t, err)

	report, err := f.progress.StudentReport(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalLessons)
	assert.Equal(t, 1, report.CompletedLessons)
	assert.Equal(t, 50.0, report.CompletionRate)
	assert.Equal(t, 100.0, report.Accuracy)
	require.Len(t, report.Topics, 1)
	assert.Equal(t, 50.0, report.Topics[0].CompletionRate)

	// soft-deleting content leaves the ledger intact
	require.NoError(t, f.content.DeleteQuiz(ctx, quiz.ID))
	require.NoError(t, f.content.DeleteLesson(ctx, lessons[0]))

	report, err = f.progress.StudentReport(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.QuizAttempts)
	assert.Len(t, report.RecentAttempts, 1)
	assert.Equal(t, 1, report.TotalLessons)

	attempts, err := f.progress.QueryAttempts(ctx, &progress.AttemptFilter{QuizID: quiz.ID}, core.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts.Total)
}

func TestService_StudentReportEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	std, err := f.students.Create(ctx, student.NewStudent{Username: "newbie", Email: "newbie@example.com"})
	require.NoError(t, err)

	report, err := f.progress.StudentReport(ctx, std.ID)
	require.NoError(t, err)
	assert.Zero(t, report.CompletionRate)
	assert.Zero(t, report.Accuracy)
	assert.Equal(t, []progress.TopicProgress{}, report.Topics)
	assert.Equal(t, []progress.Attempt{}, report.RecentAttempts)

	_, err = f.progress.StudentReport(ctx, 999)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
}

func TestService_RecordAttemptOnDeletedLesson(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	studentID, lessons, quiz := f.seed(t)
	correct, _ := quiz.CorrectOption()

	_, err := f.progress.RecordAttempt(ctx, progress.RecordAttempt{StudentID: studentID, QuizID: quiz.ID, SelectedOptionID: correct.ID})
	require.NoError(t, err)
	require.NoError(t, f.content.DeleteLesson(ctx, lessons[0]))

	_, err = f.progress.RecordAttempt(ctx, progress.RecordAttempt{StudentID: studentID, QuizID: quiz.ID, SelectedOptionID: correct.ID})
	assertValidationField(t, err, "quiz_id")

	std, err := f.students.GetByID(ctx, studentID)
	require.NoError(t, err)
	assert.Equal(t, 30, std.TotalScore)

	// history stays queryable
	attempts, err := f.progress.QueryAttempts(ctx, &progress.AttemptFilter{StudentID: studentID}, core.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, attempts.Total)
	assert.Equal(t, "typeof null?", attempts.Items[0].Question)
}

func assertValidationField(t *testing.T, err error, field string) {
	t.Helper()
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "want *core.ValidationError, got %v", err)
	assert.Equal(t, field, verr.Fields[0].Field)
}
