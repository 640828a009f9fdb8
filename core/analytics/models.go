package analytics

import (
	"time"

	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/content"
)

// Segment thresholds
const (
	HighScore   = 500
	MediumScore = 200

	ActiveDays = 7
	AtRiskDays = 30

	FastPace   = 0.75
	SteadyPace = 0.25
)

// Segment names
const (
	SegmentHigh   = "high"
	SegmentMedium = "medium"
	SegmentLow    = "low"

	SegmentActive   = "active"
	SegmentAtRisk   = "at_risk"
	SegmentInactive = "inactive"

	SegmentFast   = "fast"
	SegmentSteady = "steady"
	SegmentSlow   = "slow"
)

var errRangeOrder = errors.New("start_date must not be after end_date")

// DateRange selects whole days, End included.
type DateRange struct {
	Start core.Date `query:"start_date" json:"start_date"`
	End   core.Date `query:"end_date" json:"end_date"`
}

// Normalize fills the missing bounds: End defaults to today and Start to End minus defaultDays-1.
func (dr *DateRange) Normalize(defaultDays int, now time.Time) error {
	if defaultDays < 1 {
		defaultDays = 1
	}
	if dr.End.IsZero() {
		dr.End = core.Date{Time: core.StartOfDay(now)}
	} else {
		dr.End = core.Date{Time: core.StartOfDay(dr.End.Time)}
	}
	if dr.Start.IsZero() {
		dr.Start = core.Date{Time: dr.End.AddDate(0, 0, -(defaultDays - 1))}
	} else {
		dr.Start = core.Date{Time: core.StartOfDay(dr.Start.Time)}
	}
	if dr.Start.After(dr.End.Time) {
		return core.NewValidationError(errRangeOrder, core.FieldError{Field: "start_date", Error: errRangeOrder.Error()})
	}
	return nil
}

// From is the inclusive lower bound of the range.
func (dr DateRange) From() time.Time { return dr.Start.Time }

// Until is the exclusive upper bound of the range: the day after End.
func (dr DateRange) Until() time.Time { return dr.End.AddDate(0, 0, 1) }

func (dr DateRange) Days() int {
	return int(dr.Until().Sub(dr.From()).Hours() / 24)
}

type Overview struct {
	TotalStudents    int     `json:"total_students"`
	NewStudents      int     `json:"new_students"`
	ActiveStudents   int     `json:"active_students"`
	TotalTopics      int     `json:"total_topics"`
	TotalLessons     int     `json:"total_lessons"`
	TotalQuizzes     int     `json:"total_quizzes"`
	LessonsStarted   int     `json:"lessons_started"`
	LessonsCompleted int     `json:"lessons_completed"`
	CompletionRate   float64 `json:"completion_rate"` // percent
	QuizAttempts     int     `json:"quiz_attempts"`
	CorrectAttempts  int     `json:"correct_attempts"`
	Accuracy         float64 `json:"accuracy"` // percent
	TotalTimeSpent   int     `json:"total_time_spent"`
	AvgTimeSpent     float64 `json:"avg_time_spent"`
}

type TopicStats struct {
	TopicID          int64   `json:"topic_id"`
	TopicName        string  `json:"topic_name"`
	Lessons          int     `json:"lessons"`
	Students         int     `json:"students"`
	LessonsStarted   int     `json:"lessons_started"`
	LessonsCompleted int     `json:"lessons_completed"`
	CompletionRate   float64 `json:"completion_rate"` // percent
	QuizAttempts     int     `json:"quiz_attempts"`
	CorrectAttempts  int     `json:"correct_attempts"`
	Accuracy         float64 `json:"accuracy"` // percent
}

type SegmentCount struct {
	Segment  string  `json:"segment"`
	Students int     `json:"students"`
	Percent  float64 `json:"percent"`
}

type Segments struct {
	TotalStudents int            `json:"total_students"`
	Performance   []SegmentCount `json:"performance"`
	Engagement    []SegmentCount `json:"engagement"`
	Pace          []SegmentCount `json:"pace"`
}

// StudentActivity is the per-student input of segmentation.
type StudentActivity struct {
	StudentID        int64
	TotalScore       int
	LastActive       *time.Time
	CreatedAt        time.Time
	LastActivity     *time.Time // latest ledger row
	CompletedLessons int
}

type RetentionCohort struct {
	Cohort      string  `json:"cohort"` // week start, 2006-01-02
	Students    int     `json:"students"`
	Retained7   int     `json:"retained_7d"`
	Retained30  int     `json:"retained_30d"`
	Retention7  float64 `json:"retention_7d"`  // percent
	Retention30 float64 `json:"retention_30d"` // percent
}

type DailyActivity struct {
	Date             string  `json:"date"`
	ActiveStudents   int     `json:"active_students"`
	LessonsStarted   int     `json:"lessons_started"`
	LessonsCompleted int     `json:"lessons_completed"`
	QuizAttempts     int     `json:"quiz_attempts"`
	CorrectAttempts  int     `json:"correct_attempts"`
	Accuracy         float64 `json:"accuracy"` // percent
}

type QuizFilter struct {
	Difficulty content.Difficulty `query:"difficulty"`
	TopicID    int64              `query:"topic_id"`
}

func (f *QuizFilter) Clean() {
	f.Difficulty = content.Difficulty(core.CleanString(string(f.Difficulty), true /* lower */))
}

type QuizPerformance struct {
	QuizID         int64              `json:"quiz_id"`
	Question       string             `json:"question"`
	LessonID       int64              `json:"lesson_id"`
	LessonTitle    string             `json:"lesson_title"`
	TopicName      string             `json:"topic_name"`
	Difficulty     content.Difficulty `json:"difficulty"`
	Attempts       int                `json:"attempts"`
	Correct        int                `json:"correct"`
	Students       int                `json:"students"`
	Accuracy       float64            `json:"accuracy"` // percent
	TotalTimeSpent int                `json:"total_time_spent"`
	AvgTimeSpent   float64            `json:"avg_time_spent"`
	ExpectedPoints float64            `json:"expected_points"`
}

// CompletionPace is the completion history of one student who completed at least one lesson in a range.
type CompletionPace struct {
	StudentID        int64
	Username         string
	CompletedLessons int // all time, live lessons only
	Completions      int // within the range
	FirstStartedAt   time.Time
	LastCompletedAt  time.Time
}

type StudentProjection struct {
	StudentID        int64   `json:"student_id"`
	Username         string  `json:"username"`
	CompletedLessons int     `json:"completed_lessons"`
	RemainingLessons int     `json:"remaining_lessons"`
	AvgDaysPerLesson float64 `json:"avg_days_per_lesson"`
	ProjectedDays    float64 `json:"projected_days"`
}

// Projections are historical averages scaled by the remaining lessons. They are not forecasts.
type Projections struct {
	LiveLessons           int                 `json:"live_lessons"`
	Completions           int                 `json:"completions"`
	AvgDaysPerLesson      float64             `json:"avg_days_per_lesson"`
	AvgRemainingLessons   float64             `json:"avg_remaining_lessons"`
	ProjectedDaysToFinish float64             `json:"projected_days_to_finish"`
	Students              []StudentProjection `json:"students"`
}

type Dashboard struct {
	Range          DateRange         `json:"range"`
	Overview       Overview          `json:"overview"`
	Topics         []TopicStats      `json:"topics"`
	Segments       Segments          `json:"segments"`
	Activity       []DailyActivity   `json:"activity"`
	HardestQuizzes []QuizPerformance `json:"hardest_quizzes"`
	Projections    Projections       `json:"projections"`
}
