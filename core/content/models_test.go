package content

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func fieldTags(err error) map[string]string {
	tags := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			tags[fe.Field()] = fe.Tag()
		}
	}
	return tags
}

func TestSaveLesson_Validate(t *testing.T) {
	validate := newValidator()
	opts := []OptionInput{{Text: "a", IsCorrect: true}, {Text: "b"}}

	tests := []struct {
		name     string
		input    SaveLesson
		wantTags map[string]string
	}{
		{
			name:     "valid",
			input:    SaveLesson{TopicID: 1, Title: " Intro ", ContentType: "Theory"},
			wantTags: map[string]string{},
		},
		{
			name:     "blank title",
			input:    SaveLesson{TopicID: 1, Title: "   ", ContentType: ContentTheory},
			wantTags: map[string]string{"title": "required"},
		},
		{
			name:     "bad content type",
			input:    SaveLesson{TopicID: 1, Title: "t", ContentType: "video"},
			wantTags: map[string]string{"content_type": "content_type"},
		},
		{
			name:     "missing topic",
			input:    SaveLesson{Title: "t", ContentType: ContentTheory},
			wantTags: map[string]string{"topic_id": "required"},
		},
		{
			name: "embedded quiz without correct option",
			input: SaveLesson{TopicID: 1, Title: "t", ContentType: ContentTheory, Quiz: &SaveQuiz{
				Question: "q", Difficulty: DifficultyEasy, Options: []OptionInput{{Text: "a"}, {Text: "b"}},
			}},
			wantTags: map[string]string{"options": "one_correct"},
		},
		{
			name: "embedded quiz with bad difficulty",
			input: SaveLesson{TopicID: 1, Title: "t", ContentType: ContentTheory, Quiz: &SaveQuiz{
				Question: "q", Difficulty: "insane", Options: opts,
			}},
			wantTags: map[string]string{"difficulty": "difficulty"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate(validate)
			assert.Equal(t, tt.wantTags, fieldTags(err))
			if len(tt.wantTags) == 0 {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveLesson_ValidateCleans(t *testing.T) {
	sl := SaveLesson{TopicID: 1, Title: "  Intro ", ContentType: " THEORY "}
	require.NoError(t, sl.Validate(newValidator()))
	assert.Equal(t, "Intro", sl.Title)
	assert.Equal(t, ContentTheory, sl.ContentType)
}

func TestSaveQuiz_Validate(t *testing.T) {
	validate := newValidator()

	sq := SaveQuiz{
		Question:   "q",
		Difficulty: DifficultyHard,
		Options:    []OptionInput{{Text: "a", IsCorrect: true}, {Text: "b"}},
	}
	err := sq.Validate(validate)
	require.Error(t, err)
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "lesson_id", verr.Fields[0].Field)

	sq.LessonID = 3
	assert.NoError(t, sq.Validate(validate))

	opts := make([]OptionInput, MaxQuizOptions+1)
	opts[0].IsCorrect = true
	for i := range opts {
		opts[i].Text = "x"
	}
	sq.Options = opts
	assert.Equal(t, map[string]string{"options": "max"}, fieldTags(sq.Validate(validate)))

	sq.Options = []OptionInput{{Text: "a", IsCorrect: true}, {Text: " "}}
	assert.Equal(t, map[string]string{"text": "required"}, fieldTags(sq.Validate(validate)))
}

func TestDifficulty_Points(t *testing.T) {
	assert.Equal(t, 10, DifficultyEasy.Points())
	assert.Equal(t, 20, DifficultyMedium.Points())
	assert.Equal(t, 30, DifficultyHard.Points())
	assert.Equal(t, 0, Difficulty("nope").Points())
}
