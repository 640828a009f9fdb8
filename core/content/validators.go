package content

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
)

var (
	contentTypeTag  = "content_type"
	contentTypeText = "invalid content type, must be one of theory, syntax, example, exercise"

	difficultyTag  = "difficulty"
	difficultyText = "invalid difficulty, must be one of easy, medium, hard"

	oneCorrectTag  = "one_correct"
	oneCorrectText = "exactly one option must be marked as correct"

	errOptionCount = fmt.Errorf("a quiz must have between %d and %d options", MinQuizOptions, MaxQuizOptions)

	errUnknownOperation = errors.New("unknown operation")
	errNoTargetTopic    = errors.New("target_topic_id is required to move lessons")
)

// InitValidators registers the content validation tags on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(contentTypeTag, contentTypeValidation)
	core.RegisterCustomTranslation(validate, translator, contentTypeTag, contentTypeText)

	_ = validate.RegisterValidation(difficultyTag, difficultyValidation)
	core.RegisterCustomTranslation(validate, translator, difficultyTag, difficultyText)

	_ = validate.RegisterValidation(oneCorrectTag, oneCorrectValidation)
	core.RegisterCustomTranslation(validate, translator, oneCorrectTag, oneCorrectText)
}

func contentTypeValidation(fl validator.FieldLevel) bool {
	return ContentType(fl.Field().String()).IsValid()
}

func difficultyValidation(fl validator.FieldLevel) bool {
	return Difficulty(fl.Field().String()).IsValid()
}

// oneCorrectValidation checks that exactly one OptionInput is flagged correct.
func oneCorrectValidation(fl validator.FieldLevel) bool {
	if opts, ok := fl.Field().Interface().([]OptionInput); ok {
		return countCorrect(opts) == 1
	}
	return false
}
