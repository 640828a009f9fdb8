package progress

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/student"
)

const recentAttemptsLimit = 10

// Progress is the single ledger row of a student on a lesson.
type Progress struct {
	ID           int64      `json:"id"`
	StudentID    int64      `json:"student_id"`
	LessonID     int64      `json:"lesson_id"`
	IsCompleted  bool       `json:"is_completed"`
	StartedAt    time.Time  `json:"started_at"`    // UTC
	LastAccessed time.Time  `json:"last_accessed"` // UTC
	CompletedAt  *time.Time `json:"completed_at"`  // UTC
}

// Attempt is an immutable quiz answer.
type Attempt struct {
	ID               int64     `json:"id"`
	StudentID        int64     `json:"student_id"`
	QuizID           int64     `json:"quiz_id"`
	Question         string    `json:"question,omitempty"`
	SelectedOptionID int64     `json:"selected_option_id"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpent        int       `json:"time_spent"` // seconds
	AttemptedAt      time.Time `json:"attempted_at"`
}

type RecordProgress struct {
	StudentID int64 `json:"student_id" validate:"required,gt=0"`
	LessonID  int64 `json:"lesson_id" validate:"required,gt=0"`
	Completed bool  `json:"completed"`
}

func (rp *RecordProgress) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type RecordAttempt struct {
	StudentID        int64 `json:"student_id" validate:"required,gt=0"`
	QuizID           int64 `json:"quiz_id" validate:"required,gt=0"`
	SelectedOptionID int64 `json:"selected_option_id" validate:"required,gt=0"`
	TimeSpent        int   `json:"time_spent" validate:"gte=0,max=86400"`
}

func (ra *RecordAttempt) Validate(validate *validator.Validate) error {
	return validate.Struct(ra)
}

type AttemptResult struct {
	Attempt         Attempt `json:"attempt"`
	Points          int     `json:"points"`
	TotalScore      int     `json:"total_score"`
	CorrectOptionID int64   `json:"correct_option_id"`
	Explanation     string  `json:"explanation"`
}

type AttemptFilter struct {
	StudentID int64     `query:"student_id"`
	QuizID    int64     `query:"quiz_id"`
	IsCorrect *bool     `query:"is_correct"`
	From      core.Date `query:"start_date"`
	To        core.Date `query:"end_date"`
}

type TopicProgress struct {
	TopicID          int64   `json:"topic_id"`
	TopicName        string  `json:"topic_name"`
	TotalLessons     int     `json:"total_lessons"`
	CompletedLessons int     `json:"completed_lessons"`
	CompletionRate   float64 `json:"completion_rate"` // percent
}

// AttemptTotals counts every attempt of a student, including those on soft-deleted quizzes.
type AttemptTotals struct {
	Attempts int `json:"attempts"`
	Correct  int `json:"correct"`
}

type StudentReport struct {
	Student          student.Student `json:"student"`
	TotalLessons     int             `json:"total_lessons"`
	CompletedLessons int             `json:"completed_lessons"`
	CompletionRate   float64         `json:"completion_rate"` // percent
	QuizAttempts     int             `json:"quiz_attempts"`
	CorrectAttempts  int             `json:"correct_attempts"`
	Accuracy         float64         `json:"accuracy"` // percent
	Topics           []TopicProgress `json:"topics"`
	RecentAttempts   []Attempt       `json:"recent_attempts"`
}
