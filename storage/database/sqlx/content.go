package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/content"
)

var (
	topicOrderings = map[string]string{
		"id":         "t.id",
		"name":       "t.name",
		"order":      "t.topic_order",
		"created_at": "t.created_at",
		"updated_at": "t.updated_at",
	}
	lessonOrderings = map[string]string{
		"id":         "l.id",
		"title":      "l.title",
		"order":      "l.lesson_order",
		"topic":      "t.topic_order",
		"created_at": "l.created_at",
		"updated_at": "l.updated_at",
	}
	quizOrderings = map[string]string{
		"id":         "q.id",
		"difficulty": "q.difficulty",
		"created_at": "q.created_at",
		"updated_at": "q.updated_at",
	}
)

type (
	topicRow struct {
		ID          int64     `db:"id"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		Order       int       `db:"topic_order"`
		IsActive    bool      `db:"is_active"`
		LessonCount int       `db:"lesson_count"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	lessonRow struct {
		ID          int64     `db:"id"`
		TopicID     int64     `db:"topic_id"`
		TopicName   string    `db:"topic_name"`
		Title       string    `db:"title"`
		Content     string    `db:"content"`
		Order       int       `db:"lesson_order"`
		ContentType string    `db:"content_type"`
		IsActive    bool      `db:"is_active"`
		HasQuiz     bool      `db:"has_quiz"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	quizRow struct {
		ID          int64     `db:"id"`
		LessonID    int64     `db:"lesson_id"`
		LessonTitle string    `db:"lesson_title"`
		Question    string    `db:"question"`
		Explanation string    `db:"explanation"`
		Difficulty  string    `db:"difficulty"`
		IsActive    bool      `db:"is_active"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	optionRow struct {
		ID        int64  `db:"id"`
		QuizID    int64  `db:"quiz_id"`
		Text      string `db:"option_text"`
		IsCorrect bool   `db:"is_correct"`
		Order     int    `db:"option_order"`
		Picks     int    `db:"picks"`
	}

	quizStatsRow struct {
		Attempts  int `db:"attempts"`
		Correct   int `db:"correct"`
		TimeSpent int `db:"time_spent"`
	}
)

func (r topicRow) unboil() content.Topic {
	return content.Topic{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Order:       r.Order,
		IsActive:    r.IsActive,
		LessonCount: r.LessonCount,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r lessonRow) unboil() content.Lesson {
	return content.Lesson{
		ID:          r.ID,
		TopicID:     r.TopicID,
		TopicName:   r.TopicName,
		Title:       r.Title,
		Content:     r.Content,
		Order:       r.Order,
		ContentType: content.ContentType(r.ContentType),
		IsActive:    r.IsActive,
		HasQuiz:     r.HasQuiz,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r quizRow) unboil(options []content.QuizOption) content.Quiz {
	if options == nil {
		options = []content.QuizOption{}
	}
	return content.Quiz{
		ID:          r.ID,
		LessonID:    r.LessonID,
		LessonTitle: r.LessonTitle,
		Question:    r.Question,
		Explanation: r.Explanation,
		Difficulty:  content.Difficulty(r.Difficulty),
		IsActive:    r.IsActive,
		Options:     options,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r optionRow) unboil() content.QuizOption {
	return content.QuizOption{ID: r.ID, QuizID: r.QuizID, Text: r.Text, IsCorrect: r.IsCorrect, Order: r.Order}
}

type contentRepository struct {
	baseRepository
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(exec core.DBExecutor) *contentRepository {
	return &contentRepository{baseRepository{exec: exec}}
}

// Topics

func (repo contentRepository) selectTopics() sq.SelectBuilder {
	return psql.Select(
		"t.id", "t.name", "t.description", "t.topic_order", "t.is_active", "t.created_at", "t.updated_at",
		"(SELECT COUNT(*) FROM lessons l WHERE l.topic_id = t.id AND l.deleted_at IS NULL) AS lesson_count",
	).From("topics t").Where("t.deleted_at IS NULL")
}

func (repo contentRepository) CreateTopic(ctx context.Context, topic content.Topic, exec ...core.DBExecutor) (content.Topic, error) {
	q := psql.Insert("topics").
		Columns("name", "description", "topic_order", "is_active", "created_at", "updated_at").
		Values(topic.Name, topic.Description, topic.Order, topic.IsActive, topic.CreatedAt, topic.UpdatedAt).
		Suffix("RETURNING id")
	if err := repo.get(ctx, repo.getExec(exec), &topic.ID, q); err != nil {
		return content.Topic{}, errors.Wrap(err, "inserting topic")
	}
	topic.LessonCount = 0
	return topic, nil
}

func (repo contentRepository) UpdateTopic(ctx context.Context, topic content.Topic, exec ...core.DBExecutor) (content.Topic, error) {
	exe := repo.getExec(exec)
	q := psql.Update("topics").
		SetMap(map[string]interface{}{
			"name":        topic.Name,
			"description": topic.Description,
			"topic_order": topic.Order,
			"is_active":   topic.IsActive,
			"updated_at":  topic.UpdatedAt,
		}).
		Where(sq.Eq{"id": topic.ID}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, exe, q)
	if err != nil {
		return content.Topic{}, errors.Wrap(err, "updating topic")
	}
	if n == 0 {
		return content.Topic{}, content.ErrTopicNotFound
	}
	return repo.GetTopicByID(ctx, topic.ID, exe)
}

func (repo contentRepository) GetTopicByID(ctx context.Context, id int64, exec ...core.DBExecutor) (content.Topic, error) {
	var row topicRow
	if err := repo.get(ctx, repo.getExec(exec), &row, repo.selectTopics().Where(sq.Eq{"t.id": id})); err != nil {
		return content.Topic{}, trapNoRowsErr(err, content.ErrTopicNotFound, "finding topic by ID")
	}
	return row.unboil(), nil
}

func (repo contentRepository) QueryTopics(ctx context.Context, filter *content.TopicFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]content.Topic, error) {
	q := repo.selectTopics()
	if filter != nil {
		if filter.Search != "" {
			val := ilike(filter.Search)
			q = q.Where(sq.Or{sq.ILike{"t.name": val}, sq.ILike{"t.description": val}})
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"t.is_active": *filter.IsActive})
		}
	}
	q = orderBy(q, ordering, topicOrderings, "t.topic_order ASC", "t.id ASC")

	var rows []topicRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying topics")
	}
	topics := make([]content.Topic, 0, len(rows))
	for _, r := range rows {
		topics = append(topics, r.unboil())
	}
	return topics, nil
}

func (repo contentRepository) DeleteTopic(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error {
	q := psql.Update("topics").
		Set("deleted_at", at).Set("updated_at", at).
		Where(sq.Eq{"id": id}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return errors.Wrap(err, "deleting topic")
	}
	if n == 0 {
		return content.ErrTopicNotFound
	}
	return nil
}

func (repo contentRepository) NextTopicOrder(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var next int
	q := psql.Select("COALESCE(MAX(topic_order), 0) + 1").From("topics").Where("deleted_at IS NULL")
	if err := repo.get(ctx, repo.getExec(exec), &next, q); err != nil {
		return 0, errors.Wrap(err, "getting next topic order")
	}
	return next, nil
}

func (repo contentRepository) SetTopicOrder(ctx context.Context, id int64, order int, exec ...core.DBExecutor) error {
	q := psql.Update("topics").Set("topic_order", order).Where(sq.Eq{"id": id}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return errors.Wrap(err, "setting topic order")
	}
	if n == 0 {
		return content.ErrTopicNotFound
	}
	return nil
}

// Lessons

func (repo contentRepository) selectLessons(columns ...string) sq.SelectBuilder {
	if len(columns) == 0 {
		columns = []string{
			"l.id", "l.topic_id", "t.name AS topic_name", "l.title", "l.content", "l.lesson_order",
			"l.content_type", "l.is_active", "l.created_at", "l.updated_at",
			"EXISTS (SELECT 1 FROM quizzes q WHERE q.lesson_id = l.id AND q.deleted_at IS NULL) AS has_quiz",
		}
	}
	return psql.Select(columns...).
		From("lessons l").
		Join("topics t ON t.id = l.topic_id").
		Where("l.deleted_at IS NULL")
}

func (repo contentRepository) CreateLesson(ctx context.Context, lesson content.Lesson, exec ...core.DBExecutor) (content.Lesson, error) {
	exe := repo.getExec(exec)
	q := psql.Insert("lessons").
		Columns("topic_id", "title", "content", "lesson_order", "content_type", "is_active", "created_at", "updated_at").
		Values(lesson.TopicID, lesson.Title, lesson.Content, lesson.Order, string(lesson.ContentType), lesson.IsActive, lesson.CreatedAt, lesson.UpdatedAt).
		Suffix("RETURNING id")
	var id int64
	if err := repo.get(ctx, exe, &id, q); err != nil {
		return content.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return repo.GetLessonByID(ctx, id, exe)
}

func (repo contentRepository) UpdateLesson(ctx context.Context, lesson content.Lesson, exec ...core.DBExecutor) (content.Lesson, error) {
	exe := repo.getExec(exec)
	q := psql.Update("lessons").
		SetMap(map[string]interface{}{
			"topic_id":     lesson.TopicID,
			"title":        lesson.Title,
			"content":      lesson.Content,
			"lesson_order": lesson.Order,
			"content_type": string(lesson.ContentType),
			"is_active":    lesson.IsActive,
			"updated_at":   lesson.UpdatedAt,
		}).
		Where(sq.Eq{"id": lesson.ID}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, exe, q)
	if err != nil {
		return content.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n == 0 {
		return content.Lesson{}, content.ErrLessonNotFound
	}
	return repo.GetLessonByID(ctx, lesson.ID, exe)
}

func (repo contentRepository) GetLessonByID(ctx context.Context, id int64, exec ...core.DBExecutor) (content.Lesson, error) {
	var row lessonRow
	if err := repo.get(ctx, repo.getExec(exec), &row, repo.selectLessons().Where(sq.Eq{"l.id": id})); err != nil {
		return content.Lesson{}, trapNoRowsErr(err, content.ErrLessonNotFound, "finding lesson by ID")
	}
	return row.unboil(), nil
}

func filterLessons(q sq.SelectBuilder, filter *content.LessonFilter) sq.SelectBuilder {
	q = q.Where("t.deleted_at IS NULL")
	if filter == nil {
		return q
	}
	if filter.TopicID != 0 {
		q = q.Where(sq.Eq{"l.topic_id": filter.TopicID})
	}
	if filter.ContentType != "" {
		q = q.Where(sq.Eq{"l.content_type": string(filter.ContentType)})
	}
	if filter.IsActive != nil {
		q = q.Where(sq.Eq{"l.is_active": *filter.IsActive})
	}
	if filter.Search != "" {
		q = q.Where(sq.ILike{"l.title": ilike(filter.Search)})
	}
	return q
}

func (repo contentRepository) QueryLessons(
	ctx context.Context,
	filter *content.LessonFilter,
	ordering []core.DBOrdering,
	page *core.Page,
	exec ...core.DBExecutor,
) ([]content.Lesson, int, error) {
	exe := repo.getExec(exec)
	total, err := repo.count(ctx, exe, filterLessons(repo.selectLessons("COUNT(*)"), filter))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting lessons")
	}

	q := filterLessons(repo.selectLessons(), filter)
	q = paginate(orderBy(q, ordering, lessonOrderings, "t.topic_order ASC", "l.lesson_order ASC", "l.id ASC"), page)
	var rows []lessonRow
	if err := repo.selectAll(ctx, exe, &rows, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]content.Lesson, 0, len(rows))
	for _, r := range rows {
		lessons = append(lessons, r.unboil())
	}
	return lessons, total, nil
}

func (repo contentRepository) DeleteLesson(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error {
	q := psql.Update("lessons").
		Set("deleted_at", at).Set("updated_at", at).
		Where(sq.Eq{"id": id}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	if n == 0 {
		return content.ErrLessonNotFound
	}
	return nil
}

func (repo contentRepository) NextLessonOrder(ctx context.Context, topicID int64, exec ...core.DBExecutor) (int, error) {
	var next int
	q := psql.Select("COALESCE(MAX(lesson_order), 0) + 1").From("lessons").
		Where(sq.Eq{"topic_id": topicID}).Where("deleted_at IS NULL")
	if err := repo.get(ctx, repo.getExec(exec), &next, q); err != nil {
		return 0, errors.Wrap(err, "getting next lesson order")
	}
	return next, nil
}

func (repo contentRepository) UpdateLessons(ctx context.Context, ids []int64, change content.LessonChange, exec ...core.DBExecutor) (int, error) {
	q := psql.Update("lessons").Set("updated_at", change.UpdatedAt)
	if change.IsActive != nil {
		q = q.Set("is_active", *change.IsActive)
	}
	if change.TopicID != 0 {
		q = q.Set("topic_id", change.TopicID)
	}
	if !change.DeletedAt.IsZero() {
		q = q.Set("deleted_at", change.DeletedAt)
	}
	q = q.Where(sq.Eq{"id": ids}).Where("deleted_at IS NULL")

	n, err := repo.execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return 0, errors.Wrap(err, "updating lessons")
	}
	return n, nil
}

// Quizzes

func (repo contentRepository) selectQuizzes(columns ...string) sq.SelectBuilder {
	if len(columns) == 0 {
		columns = []string{
			"q.id", "q.lesson_id", "l.title AS lesson_title", "q.question", "q.explanation", "q.difficulty",
			"q.is_active", "q.created_at", "q.updated_at",
		}
	}
	// quizzes of deleted lessons or topics are gone too
	return psql.Select(columns...).
		From("quizzes q").
		Join("lessons l ON l.id = q.lesson_id").
		Join("topics t ON t.id = l.topic_id").
		Where("q.deleted_at IS NULL AND l.deleted_at IS NULL AND t.deleted_at IS NULL")
}

// quizOptions loads the options of the given quizzes, grouped by quiz.
func (repo contentRepository) quizOptions(ctx context.Context, exec core.DBExecutor, quizIDs ...int64) (map[int64][]content.QuizOption, error) {
	grouped := make(map[int64][]content.QuizOption, len(quizIDs))
	if len(quizIDs) == 0 {
		return grouped, nil
	}
	q := psql.Select("id", "quiz_id", "option_text", "is_correct", "option_order").
		From("quiz_options").
		Where(sq.Eq{"quiz_id": quizIDs}).
		OrderBy("quiz_id", "option_order", "id")
	var rows []optionRow
	if err := repo.selectAll(ctx, exec, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying quiz options")
	}
	for _, r := range rows {
		grouped[r.QuizID] = append(grouped[r.QuizID], r.unboil())
	}
	return grouped, nil
}

func (repo contentRepository) getQuiz(ctx context.Context, exec core.DBExecutor, where sq.Sqlizer, orderBy ...string) (content.Quiz, error) {
	var row quizRow
	q := repo.selectQuizzes().Where(where).OrderBy(orderBy...).Limit(1)
	if err := repo.get(ctx, exec, &row, q); err != nil {
		return content.Quiz{}, trapNoRowsErr(err, content.ErrQuizNotFound, "finding quiz")
	}
	options, err := repo.quizOptions(ctx, exec, row.ID)
	if err != nil {
		return content.Quiz{}, err
	}
	return row.unboil(options[row.ID]), nil
}

func (repo contentRepository) CreateQuiz(ctx context.Context, quiz content.Quiz, exec ...core.DBExecutor) (content.Quiz, error) {
	exe := repo.getExec(exec)
	q := psql.Insert("quizzes").
		Columns("lesson_id", "question", "explanation", "difficulty", "is_active", "created_at", "updated_at").
		Values(quiz.LessonID, quiz.Question, quiz.Explanation, string(quiz.Difficulty), quiz.IsActive, quiz.CreatedAt, quiz.UpdatedAt).
		Suffix("RETURNING id")
	var id int64
	if err := repo.get(ctx, exe, &id, q); err != nil {
		return content.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return repo.GetQuizByID(ctx, id, exe)
}

func (repo contentRepository) UpdateQuiz(ctx context.Context, quiz content.Quiz, exec ...core.DBExecutor) (content.Quiz, error) {
	exe := repo.getExec(exec)
	q := psql.Update("quizzes").
		SetMap(map[string]interface{}{
			"lesson_id":   quiz.LessonID,
			"question":    quiz.Question,
			"explanation": quiz.Explanation,
			"difficulty":  string(quiz.Difficulty),
			"is_active":   quiz.IsActive,
			"updated_at":  quiz.UpdatedAt,
		}).
		Where(sq.Eq{"id": quiz.ID}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, exe, q)
	if err != nil {
		return content.Quiz{}, errors.Wrap(err, "updating quiz")
	}
	if n == 0 {
		return content.Quiz{}, content.ErrQuizNotFound
	}
	return repo.GetQuizByID(ctx, quiz.ID, exe)
}

func (repo contentRepository) GetQuizByID(ctx context.Context, id int64, exec ...core.DBExecutor) (content.Quiz, error) {
	return repo.getQuiz(ctx, repo.getExec(exec), sq.Eq{"q.id": id})
}

func (repo contentRepository) GetLessonQuiz(ctx context.Context, lessonID int64, exec ...core.DBExecutor) (content.Quiz, error) {
	return repo.getQuiz(ctx, repo.getExec(exec), sq.Eq{"q.lesson_id": lessonID}, "q.id DESC")
}

func filterQuizzes(q sq.SelectBuilder, filter *content.QuizFilter) sq.SelectBuilder {
	if filter == nil {
		return q
	}
	if filter.LessonID != 0 {
		q = q.Where(sq.Eq{"q.lesson_id": filter.LessonID})
	}
	if filter.TopicID != 0 {
		q = q.Where(sq.Eq{"l.topic_id": filter.TopicID})
	}
	if filter.Difficulty != "" {
		q = q.Where(sq.Eq{"q.difficulty": string(filter.Difficulty)})
	}
	if filter.IsActive != nil {
		q = q.Where(sq.Eq{"q.is_active": *filter.IsActive})
	}
	if filter.Search != "" {
		q = q.Where(sq.ILike{"q.question": ilike(filter.Search)})
	}
	return q
}

func (repo contentRepository) QueryQuizzes(
	ctx context.Context,
	filter *content.QuizFilter,
	ordering []core.DBOrdering,
	page *core.Page,
	exec ...core.DBExecutor,
) ([]content.Quiz, int, error) {
	exe := repo.getExec(exec)
	total, err := repo.count(ctx, exe, filterQuizzes(repo.selectQuizzes("COUNT(*)"), filter))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting quizzes")
	}

	q := paginate(orderBy(filterQuizzes(repo.selectQuizzes(), filter), ordering, quizOrderings, "q.id ASC"), page)
	var rows []quizRow
	if err := repo.selectAll(ctx, exe, &rows, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying quizzes")
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	options, err := repo.quizOptions(ctx, exe, ids...)
	if err != nil {
		return nil, 0, err
	}
	quizzes := make([]content.Quiz, 0, len(rows))
	for _, r := range rows {
		quizzes = append(quizzes, r.unboil(options[r.ID]))
	}
	return quizzes, total, nil
}

func (repo contentRepository) DeleteQuiz(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error {
	q := psql.Update("quizzes").
		Set("deleted_at", at).Set("updated_at", at).
		Where(sq.Eq{"id": id}).Where("deleted_at IS NULL")
	n, err := repo.execute(ctx, repo.getExec(exec), q)
	if err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	if n == 0 {
		return content.ErrQuizNotFound
	}
	return nil
}

func (repo contentRepository) ReplaceQuizOptions(ctx context.Context, quizID int64, options []content.QuizOption, exec ...core.DBExecutor) ([]content.QuizOption, error) {
	exe := repo.getExec(exec)
	if _, err := repo.execute(ctx, exe, psql.Delete("quiz_options").Where(sq.Eq{"quiz_id": quizID})); err != nil {
		return nil, errors.Wrap(err, "deleting quiz options")
	}
	if len(options) == 0 {
		return []content.QuizOption{}, nil
	}

	q := psql.Insert("quiz_options").Columns("quiz_id", "option_text", "is_correct", "option_order")
	for _, opt := range options {
		q = q.Values(quizID, opt.Text, opt.IsCorrect, opt.Order)
	}
	q = q.Suffix("RETURNING id, quiz_id, option_text, is_correct, option_order")

	var rows []optionRow
	if err := repo.selectAll(ctx, exe, &rows, q); err != nil {
		return nil, errors.Wrap(err, "inserting quiz options")
	}
	saved := make([]content.QuizOption, 0, len(rows))
	for _, r := range rows {
		saved = append(saved, r.unboil())
	}
	return saved, nil
}

func (repo contentRepository) GetQuizStats(ctx context.Context, quizID int64, exec ...core.DBExecutor) (content.QuizStats, error) {
	exe := repo.getExec(exec)

	var totals quizStatsRow
	q := psql.Select(
		"COUNT(*) AS attempts",
		"COUNT(*) FILTER (WHERE is_correct) AS correct",
		"COALESCE(SUM(time_spent), 0) AS time_spent",
	).From("student_quiz_attempts").Where(sq.Eq{"quiz_id": quizID})
	if err := repo.get(ctx, exe, &totals, q); err != nil {
		return content.QuizStats{}, errors.Wrap(err, "counting quiz attempts")
	}

	var rows []optionRow
	oq := psql.Select(
		"o.id", "o.quiz_id", "o.option_text", "o.is_correct", "o.option_order",
		"(SELECT COUNT(*) FROM student_quiz_attempts a WHERE a.selected_option_id = o.id) AS picks",
	).From("quiz_options o").Where(sq.Eq{"o.quiz_id": quizID}).OrderBy("o.option_order", "o.id")
	if err := repo.selectAll(ctx, exe, &rows, oq); err != nil {
		return content.QuizStats{}, errors.Wrap(err, "counting option picks")
	}

	stats := content.QuizStats{
		QuizID:   quizID,
		Attempts: totals.Attempts,
		Correct:  totals.Correct,
		Options:  make([]content.OptionStats, 0, len(rows)),
	}
	if totals.Attempts > 0 {
		stats.AvgTimeSpent = float64(totals.TimeSpent) / float64(totals.Attempts)
	}
	for _, r := range rows {
		stats.Options = append(stats.Options, content.OptionStats{OptionID: r.ID, Text: r.Text, IsCorrect: r.IsCorrect, Picks: r.Picks})
	}
	return stats, nil
}
