package content

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jsacademy/console/core"
)

type ContentType string

const (
	ContentTheory   ContentType = "theory"
	ContentSyntax   ContentType = "syntax"
	ContentExample  ContentType = "example"
	ContentExercise ContentType = "exercise"
)

var ContentTypes = []ContentType{ContentTheory, ContentSyntax, ContentExample, ContentExercise}

func (ct ContentType) IsValid() bool {
	for _, t := range ContentTypes {
		if ct == t {
			return true
		}
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var (
	Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

	difficultyPoints = map[Difficulty]int{
		DifficultyEasy:   10,
		DifficultyMedium: 20,
		DifficultyHard:   30,
	}
)

func (d Difficulty) IsValid() bool {
	_, ok := difficultyPoints[d]
	return ok
}

// Points is what a correct answer to a quiz of this difficulty adds to a student's total score.
func (d Difficulty) Points() int {
	return difficultyPoints[d]
}

const (
	MinQuizOptions = 2
	MaxQuizOptions = 10
)

type Topic struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	IsActive    bool      `json:"is_active"`
	LessonCount int       `json:"lesson_count"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Lesson struct {
	ID          int64       `json:"id"`
	TopicID     int64       `json:"topic_id"`
	TopicName   string      `json:"topic_name,omitempty"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Order       int         `json:"order"`
	ContentType ContentType `json:"content_type"`
	IsActive    bool        `json:"is_active"`
	HasQuiz     bool        `json:"has_quiz"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

type Quiz struct {
	ID          int64        `json:"id"`
	LessonID    int64        `json:"lesson_id"`
	LessonTitle string       `json:"lesson_title,omitempty"`
	Question    string       `json:"question"`
	Explanation string       `json:"explanation"`
	Difficulty  Difficulty   `json:"difficulty"`
	IsActive    bool         `json:"is_active"`
	Options     []QuizOption `json:"options"`
	CreatedAt   time.Time    `json:"created_at"` // UTC
	UpdatedAt   time.Time    `json:"updated_at"` // UTC
}

// CorrectOption returns the option flagged correct, if any.
func (q Quiz) CorrectOption() (QuizOption, bool) {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt, true
		}
	}
	return QuizOption{}, false
}

type QuizOption struct {
	ID        int64  `json:"id"`
	QuizID    int64  `json:"quiz_id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Order     int    `json:"order"`
}

// LessonData is a lesson with its live quiz, if it has one.
type LessonData struct {
	Lesson Lesson `json:"lesson"`
	Quiz   *Quiz  `json:"quiz"`
}

type OptionStats struct {
	OptionID  int64  `json:"option_id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Picks     int    `json:"picks"`
}

type QuizStats struct {
	QuizID       int64         `json:"quiz_id"`
	Attempts     int           `json:"attempts"`
	Correct      int           `json:"correct"`
	Accuracy     float64       `json:"accuracy"` // percent
	AvgTimeSpent float64       `json:"avg_time_spent"`
	Options      []OptionStats `json:"options"`
}

// NewTopic contains information needed to create a new Topic.
type NewTopic struct {
	Name        string `json:"name" validate:"required,notblank,max=200"`
	Description string `json:"description"`
	Order       int    `json:"order" validate:"gte=0"`
	IsActive    *bool  `json:"is_active"`
}

func (nt *NewTopic) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

// UpdateTopic defines what information may be provided to modify an existing Topic.
// Empty fields keep their current value.
type UpdateTopic struct {
	Name        string  `json:"name" validate:"max=200"`
	Description *string `json:"description"`
	Order       int     `json:"order" validate:"gte=0"`
	IsActive    *bool   `json:"is_active"`
}

func (ut *UpdateTopic) Validate(validate *validator.Validate) error {
	ut.Name = core.CleanString(ut.Name)
	if ut.Description != nil {
		desc := core.CleanString(*ut.Description)
		ut.Description = &desc
	}
	return validate.Struct(ut)
}

type SaveLesson struct {
	TopicID     int64       `json:"topic_id" validate:"required,gt=0"`
	Title       string      `json:"title" validate:"required,notblank,max=200"`
	Content     string      `json:"content"`
	Order       int         `json:"order" validate:"gte=0"`
	ContentType ContentType `json:"content_type" validate:"required,content_type"`
	IsActive    *bool       `json:"is_active"`
	Quiz        *SaveQuiz   `json:"quiz" validate:"omitempty"`
}

func (sl *SaveLesson) Validate(validate *validator.Validate) error {
	sl.Title = core.CleanString(sl.Title)
	sl.ContentType = ContentType(core.CleanString(string(sl.ContentType), true /* lower */))
	if sl.Quiz != nil {
		sl.Quiz.clean()
	}
	return validate.Struct(sl)
}

// SaveQuiz upserts a quiz and fully replaces its options.
// LessonID is ignored when the quiz is embedded in a SaveLesson.
type SaveQuiz struct {
	LessonID    int64         `json:"lesson_id" validate:"gte=0"`
	Question    string        `json:"question" validate:"required,notblank"`
	Explanation string        `json:"explanation"`
	Difficulty  Difficulty    `json:"difficulty" validate:"required,difficulty"`
	IsActive    *bool         `json:"is_active"`
	Options     []OptionInput `json:"options" validate:"required,min=2,max=10,one_correct,dive"`
}

type OptionInput struct {
	Text      string `json:"text" validate:"required,notblank,max=500"`
	IsCorrect bool   `json:"is_correct"`
}

func (sq *SaveQuiz) clean() {
	sq.Question = core.CleanString(sq.Question)
	sq.Explanation = core.CleanString(sq.Explanation)
	sq.Difficulty = Difficulty(core.CleanString(string(sq.Difficulty), true /* lower */))
	for i := range sq.Options {
		sq.Options[i].Text = core.CleanString(sq.Options[i].Text)
	}
}

func (sq *SaveQuiz) Validate(validate *validator.Validate) error {
	sq.clean()
	if err := validate.Struct(sq); err != nil {
		return err
	}
	if sq.LessonID == 0 {
		return core.NewFieldValidationError("lesson_id", "this field is required")
	}
	return nil
}

// checkOptions enforces the option rules on input that did not go through Validate.
func (sq *SaveQuiz) checkOptions() error {
	if n := len(sq.Options); n < MinQuizOptions || n > MaxQuizOptions {
		return core.NewFieldValidationError("options", errOptionCount.Error())
	}
	if countCorrect(sq.Options) != 1 {
		return core.NewFieldValidationError("options", oneCorrectText)
	}
	return nil
}

func countCorrect(opts []OptionInput) int {
	var n int
	for _, opt := range opts {
		if opt.IsCorrect {
			n++
		}
	}
	return n
}

type BulkOperation string

const (
	BulkActivate   BulkOperation = "activate"
	BulkDeactivate BulkOperation = "deactivate"
	BulkDelete     BulkOperation = "delete"
	BulkMoveTopic  BulkOperation = "move_topic"
)

type BulkLessonUpdate struct {
	Operation     BulkOperation `json:"operation" validate:"required"`
	IDs           []int64       `json:"ids" validate:"required,min=1,dive,gt=0"`
	TargetTopicID int64         `json:"target_topic_id" validate:"gte=0"`
}

func (bu *BulkLessonUpdate) Validate(validate *validator.Validate) error {
	bu.Operation = BulkOperation(core.CleanString(string(bu.Operation), true /* lower */))
	return validate.Struct(bu)
}

// LessonChange is the single column change a bulk operation applies to every matched lesson.
type LessonChange struct {
	IsActive  *bool
	TopicID   int64
	DeletedAt time.Time
	UpdatedAt time.Time
}

type ReorderTopics struct {
	IDs []int64 `json:"ids" validate:"required,min=1"`
}

func (rt *ReorderTopics) Validate(validate *validator.Validate) error {
	return validate.Struct(rt)
}

type TopicFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (f *TopicFilter) Clean() {
	f.Search = core.CleanString(f.Search)
}

type LessonFilter struct {
	TopicID     int64       `query:"topic_id"`
	ContentType ContentType `query:"content_type"`
	IsActive    *bool       `query:"is_active"`
	Search      string      `query:"search"`
}

func (f *LessonFilter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.ContentType = ContentType(core.CleanString(string(f.ContentType), true /* lower */))
}

type QuizFilter struct {
	LessonID   int64      `query:"lesson_id"`
	TopicID    int64      `query:"topic_id"`
	Difficulty Difficulty `query:"difficulty"`
	IsActive   *bool      `query:"is_active"`
	Search     string     `query:"search"`
}

func (f *QuizFilter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.Difficulty = Difficulty(core.CleanString(string(f.Difficulty), true /* lower */))
}
