package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core/content"
)

type contentApi struct {
	svc      content.Service
	validate *validator.Validate
}

func registerContentAPI(g *echo.Group, svc content.Service, validate *validator.Validate) {
	api := contentApi{svc: svc, validate: validate}

	tg := g.Group("/topics")
	tg.GET("", api.queryTopics)
	tg.POST("", api.createTopic)
	tg.POST("/reorder", api.reorderTopics)
	tg.GET("/:id", api.retrieveTopic)
	tg.PUT("/:id", api.updateTopic)
	tg.DELETE("/:id", api.destroyTopic)
	tg.GET("/:id/lessons", api.topicLessons)

	lg := g.Group("/lessons")
	lg.GET("", api.queryLessons)
	lg.POST("", api.createLesson)
	lg.POST("/bulk", api.bulkUpdateLessons)
	lg.GET("/:id", api.retrieveLesson)
	lg.PUT("/:id", api.updateLesson)
	lg.DELETE("/:id", api.destroyLesson)

	qg := g.Group("/quizzes")
	qg.GET("", api.queryQuizzes)
	qg.POST("", api.createQuiz)
	qg.GET("/:id", api.retrieveQuiz)
	qg.PUT("/:id", api.updateQuiz)
	qg.DELETE("/:id", api.destroyQuiz)
	qg.GET("/:id/stats", api.quizStats)
}

// Topics

func (api *contentApi) queryTopics(ctx echo.Context) error {
	filter := new(content.TopicFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	filter.Clean()

	topics, err := api.svc.QueryTopics(ctx.Request().Context(), filter, bindOrdering(ctx))
	if err != nil {
		return errors.Wrap(err, "querying topics")
	}
	if topics == nil {
		topics = []content.Topic{}
	}
	return ok(ctx, topics)
}

func (api *contentApi) createTopic(ctx echo.Context) error {
	var data content.NewTopic
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	topic, err := api.svc.CreateTopic(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating topic")
	}
	return created(ctx, topic, "topic created")
}

func (api *contentApi) reorderTopics(ctx echo.Context) error {
	var data content.ReorderTopics
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to ReorderTopics")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ReorderTopics(ctx.Request().Context(), data.IDs); err != nil {
		return errors.Wrap(err, "reordering topics")
	}
	return ok(ctx, nil, "topics reordered")
}

func (api *contentApi) retrieveTopic(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	topic, err := api.svc.GetTopic(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting topic")
	}
	return ok(ctx, topic)
}

func (api *contentApi) updateTopic(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	var data content.UpdateTopic
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateTopic")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	topic, err := api.svc.UpdateTopic(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating topic")
	}
	return ok(ctx, topic, "topic updated")
}

func (api *contentApi) destroyTopic(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteTopic(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting topic")
	}
	return ok(ctx, nil, "topic deleted")
}

func (api *contentApi) topicLessons(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	lessons, err := api.svc.TopicLessons(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "listing topic lessons")
	}
	if lessons == nil {
		lessons = []content.Lesson{}
	}
	return ok(ctx, lessons)
}

// Lessons

func (api *contentApi) queryLessons(ctx echo.Context) error {
	filter := new(content.LessonFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	filter.Clean()
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.QueryLessons(ctx.Request().Context(), filter, bindOrdering(ctx), page)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	return ok(ctx, res)
}

func (api *contentApi) saveLesson(ctx echo.Context, lessonID int64) (content.LessonData, error) {
	var data content.SaveLesson
	if err := bindBody(ctx, &data); err != nil {
		return content.LessonData{}, errors.Wrap(err, "binding to SaveLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return content.LessonData{}, err
	}

	id, err := api.svc.SaveLesson(ctx.Request().Context(), data, lessonID)
	if err != nil {
		return content.LessonData{}, errors.Wrap(err, "saving lesson")
	}
	ld, err := api.svc.GetLessonData(ctx.Request().Context(), id)
	return ld, errors.Wrap(err, "getting lesson data")
}

func (api *contentApi) createLesson(ctx echo.Context) error {
	ld, err := api.saveLesson(ctx, 0)
	if err != nil {
		return err
	}
	return created(ctx, ld, "lesson created")
}

func (api *contentApi) updateLesson(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ld, err := api.saveLesson(ctx, id)
	if err != nil {
		return err
	}
	return ok(ctx, ld, "lesson updated")
}

func (api *contentApi) bulkUpdateLessons(ctx echo.Context) error {
	var data content.BulkLessonUpdate
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to BulkLessonUpdate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.BulkUpdateLessons(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "bulk updating lessons")
	}
	return ok(ctx, map[string]int{"updated": n})
}

func (api *contentApi) retrieveLesson(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	ld, err := api.svc.GetLessonData(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting lesson data")
	}
	return ok(ctx, ld)
}

func (api *contentApi) destroyLesson(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteLesson(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ok(ctx, nil, "lesson deleted")
}

// Quizzes

func (api *contentApi) queryQuizzes(ctx echo.Context) error {
	filter := new(content.QuizFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	filter.Clean()
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.QueryQuizzes(ctx.Request().Context(), filter, bindOrdering(ctx), page)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	return ok(ctx, res)
}

func (api *contentApi) saveQuiz(ctx echo.Context, quizID int64) (content.Quiz, error) {
	var data content.SaveQuiz
	if err := bindBody(ctx, &data); err != nil {
		return content.Quiz{}, errors.Wrap(err, "binding to SaveQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return content.Quiz{}, err
	}

	id, err := api.svc.SaveQuiz(ctx.Request().Context(), data, quizID)
	if err != nil {
		return content.Quiz{}, errors.Wrap(err, "saving quiz")
	}
	quiz, err := api.svc.GetQuiz(ctx.Request().Context(), id)
	return quiz, errors.Wrap(err, "getting quiz")
}

func (api *contentApi) createQuiz(ctx echo.Context) error {
	quiz, err := api.saveQuiz(ctx, 0)
	if err != nil {
		return err
	}
	return created(ctx, quiz, "quiz created")
}

func (api *contentApi) updateQuiz(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	quiz, err := api.saveQuiz(ctx, id)
	if err != nil {
		return err
	}
	return ok(ctx, quiz, "quiz updated")
}

func (api *contentApi) retrieveQuiz(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	quiz, err := api.svc.GetQuiz(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	return ok(ctx, quiz)
}

func (api *contentApi) destroyQuiz(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteQuiz(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ok(ctx, nil, "quiz deleted")
}

func (api *contentApi) quizStats(ctx echo.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.QuizStats(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting quiz stats")
	}
	return ok(ctx, stats)
}
