package content

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
)

var (
	// errors
	ErrTopicNotFound  = errors.New("topic not found")
	ErrLessonNotFound = errors.New("lesson not found")
	ErrQuizNotFound   = errors.New("quiz not found")

	nowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	// Repository persists the content tree. Every method runs on the optional executor
	// (a transaction) when one is given, on the repository's own DB otherwise.
	// Reads never return soft-deleted rows.
	Repository interface {
		CreateTopic(ctx context.Context, topic Topic, exec ...core.DBExecutor) (Topic, error)
		UpdateTopic(ctx context.Context, topic Topic, exec ...core.DBExecutor) (Topic, error)
		GetTopicByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Topic, error)
		QueryTopics(ctx context.Context, filter *TopicFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Topic, error)
		DeleteTopic(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error
		NextTopicOrder(ctx context.Context, exec ...core.DBExecutor) (int, error)
		// SetTopicOrder returns ErrTopicNotFound when id matches no live topic.
		SetTopicOrder(ctx context.Context, id int64, order int, exec ...core.DBExecutor) error

		CreateLesson(ctx context.Context, lesson Lesson, exec ...core.DBExecutor) (Lesson, error)
		UpdateLesson(ctx context.Context, lesson Lesson, exec ...core.DBExecutor) (Lesson, error)
		GetLessonByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Lesson, error)
		// QueryLessons returns one page of lessons (all of them when page is nil) and the total match count.
		// Lessons of soft-deleted topics are left out.
		QueryLessons(ctx context.Context, filter *LessonFilter, ordering []core.DBOrdering, page *core.Page, exec ...core.DBExecutor) ([]Lesson, int, error)
		DeleteLesson(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error
		NextLessonOrder(ctx context.Context, topicID int64, exec ...core.DBExecutor) (int, error)
		// UpdateLessons applies change to the live lessons in ids with a single statement and returns the rows matched.
		UpdateLessons(ctx context.Context, ids []int64, change LessonChange, exec ...core.DBExecutor) (int, error)

		CreateQuiz(ctx context.Context, quiz Quiz, exec ...core.DBExecutor) (Quiz, error)
		UpdateQuiz(ctx context.Context, quiz Quiz, exec ...core.DBExecutor) (Quiz, error)
		GetQuizByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Quiz, error)
		// GetLessonQuiz returns the most recent live quiz of a lesson.
		GetLessonQuiz(ctx context.Context, lessonID int64, exec ...core.DBExecutor) (Quiz, error)
		QueryQuizzes(ctx context.Context, filter *QuizFilter, ordering []core.DBOrdering, page *core.Page, exec ...core.DBExecutor) ([]Quiz, int, error)
		DeleteQuiz(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error
		// ReplaceQuizOptions deletes every option of the quiz then inserts options as given.
		ReplaceQuizOptions(ctx context.Context, quizID int64, options []QuizOption, exec ...core.DBExecutor) ([]QuizOption, error)
		// GetQuizStats returns raw attempt counts, Accuracy is left for the caller.
		GetQuizStats(ctx context.Context, quizID int64, exec ...core.DBExecutor) (QuizStats, error)
	}

	Service interface {
		CreateTopic(ctx context.Context, nt NewTopic) (Topic, error)
		UpdateTopic(ctx context.Context, id int64, ut UpdateTopic) (Topic, error)
		GetTopic(ctx context.Context, id int64) (Topic, error)
		QueryTopics(ctx context.Context, filter *TopicFilter, ordering []core.DBOrdering) ([]Topic, error)
		DeleteTopic(ctx context.Context, id int64) error
		TopicLessons(ctx context.Context, topicID int64) ([]Lesson, error)
		ReorderTopics(ctx context.Context, ids []int64) error

		SaveLesson(ctx context.Context, sl SaveLesson, lessonID int64) (int64, error)
		GetLesson(ctx context.Context, id int64) (Lesson, error)
		GetLessonData(ctx context.Context, id int64) (LessonData, error)
		QueryLessons(ctx context.Context, filter *LessonFilter, ordering []core.DBOrdering, page core.Page) (core.PageResult[Lesson], error)
		DeleteLesson(ctx context.Context, id int64) error
		BulkUpdateLessons(ctx context.Context, bu BulkLessonUpdate) (int, error)

		SaveQuiz(ctx context.Context, sq SaveQuiz, quizID int64) (int64, error)
		GetQuiz(ctx context.Context, id int64) (Quiz, error)
		QueryQuizzes(ctx context.Context, filter *QuizFilter, ordering []core.DBOrdering, page core.Page) (core.PageResult[Quiz], error)
		DeleteQuiz(ctx context.Context, id int64) error
		QuizStats(ctx context.Context, id int64) (QuizStats, error)
	}

	service struct {
		txr  core.Transactor
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(txr core.Transactor, repo Repository) Service {
	return &service{txr: txr, repo: repo}
}

func boolOr(b *bool, dflt bool) bool {
	if b == nil {
		return dflt
	}
	return *b
}

// Topics

func (svc *service) CreateTopic(ctx context.Context, nt NewTopic) (Topic, error) {
	var topic Topic
	err := svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		order := nt.Order
		if order == 0 {
			next, err := svc.repo.NextTopicOrder(ctx, tx)
			if err != nil {
				return errors.Wrap(err, "getting next topic order")
			}
			order = next
		}

		now := nowFunc()
		created, err := svc.repo.CreateTopic(ctx, Topic{
			Name:        nt.Name,
			Description: nt.Description,
			Order:       order,
			IsActive:    boolOr(nt.IsActive, true),
			CreatedAt:   now,
			UpdatedAt:   now,
		}, tx)
		if err != nil {
			return errors.Wrap(err, "creating topic")
		}
		topic = created
		return nil
	})
	return topic, err
}

func (svc *service) UpdateTopic(ctx context.Context, id int64, ut UpdateTopic) (Topic, error) {
	topic, err := svc.repo.GetTopicByID(ctx, id)
	if err != nil {
		return Topic{}, err
	}
	if ut.Name != "" {
		topic.Name = ut.Name
	}
	if ut.Description != nil {
		topic.Description = *ut.Description
	}
	if ut.Order > 0 {
		topic.Order = ut.Order
	}
	topic.IsActive = boolOr(ut.IsActive, topic.IsActive)
	topic.UpdatedAt = nowFunc()
	return svc.repo.UpdateTopic(ctx, topic)
}

func (svc *service) GetTopic(ctx context.Context, id int64) (Topic, error) {
	return svc.repo.GetTopicByID(ctx, id)
}

func (svc *service) QueryTopics(ctx context.Context, filter *TopicFilter, ordering []core.DBOrdering) ([]Topic, error) {
	return svc.repo.QueryTopics(ctx, filter, ordering)
}

func (svc *service) DeleteTopic(ctx context.Context, id int64) error {
	return svc.repo.DeleteTopic(ctx, id, nowFunc())
}

func (svc *service) TopicLessons(ctx context.Context, topicID int64) ([]Lesson, error) {
	if _, err := svc.repo.GetTopicByID(ctx, topicID); err != nil {
		return nil, err
	}
	lessons, _, err := svc.repo.QueryLessons(
		ctx,
		&LessonFilter{TopicID: topicID},
		[]core.DBOrdering{{Field: "order", Ascending: true}},
		nil,
	)
	return lessons, err
}

// ReorderTopics sets topic_order = index+1 for every id, in the given order. Nothing is written
// unless every id is a live topic.
func (svc *service) ReorderTopics(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return core.NewFieldValidationError("ids", "at least one topic id is required")
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return core.NewFieldValidationError("ids", fmt.Sprintf("invalid topic id %d", id))
		}
		if seen[id] {
			return core.NewFieldValidationError("ids", fmt.Sprintf("duplicate topic id %d", id))
		}
		seen[id] = true
	}

	return svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		for idx, id := range ids {
			if err := svc.repo.SetTopicOrder(ctx, id, idx+1, tx); err != nil {
				if errors.Cause(err) == ErrTopicNotFound {
					return core.NewFieldValidationError("ids", fmt.Sprintf("topic %d not found", id))
				}
				return errors.Wrapf(err, "setting order of topic %d", id)
			}
		}
		return nil
	})
}

// Lessons

// SaveLesson creates (lessonID == 0) or updates a lesson, and its quiz when one is embedded,
// in a single transaction.
func (svc *service) SaveLesson(ctx context.Context, sl SaveLesson, lessonID int64) (int64, error) {
	if sl.Quiz != nil {
		if err := sl.Quiz.checkOptions(); err != nil {
			return 0, err
		}
	}

	err := svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		if err := svc.checkTopic(ctx, "topic_id", sl.TopicID, tx); err != nil {
			return err
		}

		now := nowFunc()
		lesson := Lesson{
			ID:          lessonID,
			TopicID:     sl.TopicID,
			Title:       sl.Title,
			Content:     sl.Content,
			Order:       sl.Order,
			ContentType: sl.ContentType,
			IsActive:    boolOr(sl.IsActive, true),
			UpdatedAt:   now,
		}

		if lessonID == 0 {
			if lesson.Order == 0 {
				next, err := svc.repo.NextLessonOrder(ctx, sl.TopicID, tx)
				if err != nil {
					return errors.Wrap(err, "getting next lesson order")
				}
				lesson.Order = next
			}
			lesson.CreatedAt = now
			created, err := svc.repo.CreateLesson(ctx, lesson, tx)
			if err != nil {
				return errors.Wrap(err, "creating lesson")
			}
			lessonID = created.ID
		} else {
			current, err := svc.repo.GetLessonByID(ctx, lessonID, tx)
			if err != nil {
				return err
			}
			lesson.IsActive = boolOr(sl.IsActive, current.IsActive)
			if lesson.Order == 0 {
				if current.TopicID == sl.TopicID {
					lesson.Order = current.Order
				} else if lesson.Order, err = svc.repo.NextLessonOrder(ctx, sl.TopicID, tx); err != nil {
					return errors.Wrap(err, "getting next lesson order")
				}
			}
			if _, err := svc.repo.UpdateLesson(ctx, lesson, tx); err != nil {
				return errors.Wrap(err, "updating lesson")
			}
		}

		if sl.Quiz == nil {
			return nil
		}
		var quizID int64
		existing, err := svc.repo.GetLessonQuiz(ctx, lessonID, tx)
		switch errors.Cause(err) {
		case nil:
			quizID = existing.ID
		case ErrQuizNotFound:
		default:
			return errors.Wrap(err, "getting lesson quiz")
		}
		_, err = svc.saveQuiz(ctx, tx, *sl.Quiz, lessonID, quizID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return lessonID, nil
}

func (svc *service) checkTopic(ctx context.Context, field string, id int64, exec ...core.DBExecutor) error {
	if _, err := svc.repo.GetTopicByID(ctx, id, exec...); err != nil {
		if errors.Cause(err) == ErrTopicNotFound {
			return core.NewFieldValidationError(field, ErrTopicNotFound.Error())
		}
		return errors.Wrap(err, "getting topic")
	}
	return nil
}

func (svc *service) GetLesson(ctx context.Context, id int64) (Lesson, error) {
	return svc.repo.GetLessonByID(ctx, id)
}

func (svc *service) GetLessonData(ctx context.Context, id int64) (LessonData, error) {
	lesson, err := svc.repo.GetLessonByID(ctx, id)
	if err != nil {
		return LessonData{}, err
	}
	data := LessonData{Lesson: lesson}

	quiz, err := svc.repo.GetLessonQuiz(ctx, id)
	switch errors.Cause(err) {
	case nil:
		data.Quiz = &quiz
	case ErrQuizNotFound:
	default:
		return LessonData{}, errors.Wrap(err, "getting lesson quiz")
	}
	return data, nil
}

func (svc *service) QueryLessons(ctx context.Context, filter *LessonFilter, ordering []core.DBOrdering, page core.Page) (core.PageResult[Lesson], error) {
	page.Clean()
	lessons, total, err := svc.repo.QueryLessons(ctx, filter, ordering, &page)
	if err != nil {
		return core.PageResult[Lesson]{}, err
	}
	return core.NewPageResult(lessons, total, page), nil
}

func (svc *service) DeleteLesson(ctx context.Context, id int64) error {
	return svc.repo.DeleteLesson(ctx, id, nowFunc())
}

// BulkUpdateLessons applies one operation to every lesson in bu.IDs and returns the rows matched.
func (svc *service) BulkUpdateLessons(ctx context.Context, bu BulkLessonUpdate) (int, error) {
	if len(bu.IDs) == 0 {
		return 0, core.NewFieldValidationError("ids", "at least one lesson id is required")
	}

	now := nowFunc()
	change := LessonChange{UpdatedAt: now}
	switch bu.Operation {
	case BulkActivate:
		active := true
		change.IsActive = &active
	case BulkDeactivate:
		active := false
		change.IsActive = &active
	case BulkDelete:
		change.DeletedAt = now
	case BulkMoveTopic:
		if bu.TargetTopicID <= 0 {
			return 0, core.NewValidationError(errNoTargetTopic, core.FieldError{Field: "target_topic_id", Error: errNoTargetTopic.Error()})
		}
		change.TopicID = bu.TargetTopicID
	default:
		return 0, core.NewValidationError(
			errUnknownOperation,
			core.FieldError{Field: "operation", Error: fmt.Sprintf("%s %q", errUnknownOperation, bu.Operation)},
		)
	}

	var count int
	err := svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		if change.TopicID != 0 {
			if err := svc.checkTopic(ctx, "target_topic_id", change.TopicID, tx); err != nil {
				return err
			}
		}
		n, err := svc.repo.UpdateLessons(ctx, bu.IDs, change, tx)
		if err != nil {
			return errors.Wrapf(err, "applying %s to lessons", bu.Operation)
		}
		count = n
		return nil
	})
	return count, err
}

// Quizzes

// SaveQuiz creates (quizID == 0) or updates a quiz and fully replaces its options, in a single transaction.
func (svc *service) SaveQuiz(ctx context.Context, sq SaveQuiz, quizID int64) (int64, error) {
	if err := sq.checkOptions(); err != nil {
		return 0, err
	}

	err := svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetLessonByID(ctx, sq.LessonID, tx); err != nil {
			if errors.Cause(err) == ErrLessonNotFound {
				return core.NewFieldValidationError("lesson_id", ErrLessonNotFound.Error())
			}
			return errors.Wrap(err, "getting lesson")
		}
		id, err := svc.saveQuiz(ctx, tx, sq, sq.LessonID, quizID)
		if err != nil {
			return err
		}
		quizID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return quizID, nil
}

func (svc *service) saveQuiz(ctx context.Context, tx core.DBExecutor, sq SaveQuiz, lessonID, quizID int64) (int64, error) {
	now := nowFunc()
	quiz := Quiz{
		ID:          quizID,
		LessonID:    lessonID,
		Question:    sq.Question,
		Explanation: sq.Explanation,
		Difficulty:  sq.Difficulty,
		IsActive:    boolOr(sq.IsActive, true),
		UpdatedAt:   now,
	}

	var err error
	if quizID == 0 {
		quiz.CreatedAt = now
		if quiz, err = svc.repo.CreateQuiz(ctx, quiz, tx); err != nil {
			return 0, errors.Wrap(err, "creating quiz")
		}
	} else {
		current, err := svc.repo.GetQuizByID(ctx, quizID, tx)
		if err != nil {
			return 0, err
		}
		quiz.IsActive = boolOr(sq.IsActive, current.IsActive)
		if quiz, err = svc.repo.UpdateQuiz(ctx, quiz, tx); err != nil {
			return 0, errors.Wrap(err, "updating quiz")
		}
	}

	opts := make([]QuizOption, len(sq.Options))
	for i, in := range sq.Options {
		opts[i] = QuizOption{
			QuizID:    quiz.ID,
			Text:      in.Text,
			IsCorrect: in.IsCorrect,
			Order:     i + 1,
		}
	}
	if _, err := svc.repo.ReplaceQuizOptions(ctx, quiz.ID, opts, tx); err != nil {
		return 0, errors.Wrap(err, "replacing quiz options")
	}
	return quiz.ID, nil
}

func (svc *service) GetQuiz(ctx context.Context, id int64) (Quiz, error) {
	return svc.repo.GetQuizByID(ctx, id)
}

func (svc *service) QueryQuizzes(ctx context.Context, filter *QuizFilter, ordering []core.DBOrdering, page core.Page) (core.PageResult[Quiz], error) {
	page.Clean()
	quizzes, total, err := svc.repo.QueryQuizzes(ctx, filter, ordering, &page)
	if err != nil {
		return core.PageResult[Quiz]{}, err
	}
	return core.NewPageResult(quizzes, total, page), nil
}

func (svc *service) DeleteQuiz(ctx context.Context, id int64) error {
	return svc.repo.DeleteQuiz(ctx, id, nowFunc())
}

func (svc *service) QuizStats(ctx context.Context, id int64) (QuizStats, error) {
	if _, err := svc.repo.GetQuizByID(ctx, id); err != nil {
		return QuizStats{}, err
	}
	stats, err := svc.repo.GetQuizStats(ctx, id)
	if err != nil {
		return QuizStats{}, errors.Wrap(err, "getting quiz stats")
	}
	stats.QuizID = id
	stats.Accuracy = core.Percent(float64(stats.Correct), float64(stats.Attempts))
	stats.AvgTimeSpent = core.Round(stats.AvgTimeSpent, 2)
	if stats.Options == nil {
		stats.Options = []OptionStats{}
	}
	return stats, nil
}
