package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/content"
)

type contentRepository struct {
	db *DB
}

func NewContentRepository(db *DB) content.Repository {
	return &contentRepository{db: db}
}

func (repo *contentRepository) tables() *tableSet {
	return repo.db.data
}

// Topics

func (repo *contentRepository) CreateTopic(_ context.Context, topic content.Topic, _ ...core.DBExecutor) (content.Topic, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	topic.ID = repo.tables().nextPK()
	repo.tables().topics[topic.ID] = &topicRow{Topic: topic}
	return topic, nil
}

func (repo *contentRepository) UpdateTopic(_ context.Context, topic content.Topic, _ ...core.DBExecutor) (content.Topic, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.tables().topics[topic.ID]
	if !ok || !row.deletedAt.IsZero() {
		return content.Topic{}, content.ErrTopicNotFound
	}
	topic.CreatedAt = row.CreatedAt
	row.Topic = topic
	return repo.topicWithCount(row), nil
}

func (repo *contentRepository) topicWithCount(row *topicRow) content.Topic {
	topic := row.Topic
	topic.LessonCount = 0
	for _, l := range repo.tables().lessons {
		if l.TopicID == topic.ID && l.deletedAt.IsZero() {
			topic.LessonCount++
		}
	}
	return topic
}

func (repo *contentRepository) GetTopicByID(_ context.Context, id int64, _ ...core.DBExecutor) (content.Topic, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	row, ok := repo.tables().topics[id]
	if !ok || !row.deletedAt.IsZero() {
		return content.Topic{}, content.ErrTopicNotFound
	}
	return repo.topicWithCount(row), nil
}

func (repo *contentRepository) QueryTopics(_ context.Context, filter *content.TopicFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]content.Topic, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	topics := make([]content.Topic, 0, len(repo.tables().topics))
	for _, row := range repo.tables().topics {
		if !row.deletedAt.IsZero() {
			continue
		}
		if filter != nil {
			if filter.IsActive != nil && row.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !containsFold(row.Name, filter.Search) && !containsFold(row.Description, filter.Search) {
				continue
			}
		}
		topics = append(topics, repo.topicWithCount(row))
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].Order == topics[j].Order {
			return topics[i].ID < topics[j].ID
		}
		return topics[i].Order < topics[j].Order
	})
	return topics, nil
}

func (repo *contentRepository) DeleteTopic(_ context.Context, id int64, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.tables().topics[id]
	if !ok || !row.deletedAt.IsZero() {
		return content.ErrTopicNotFound
	}
	row.deletedAt = at
	return nil
}

func (repo *contentRepository) NextTopicOrder(_ context.Context, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var max int
	for _, row := range repo.tables().topics {
		if row.deletedAt.IsZero() && row.Order > max {
			max = row.Order
		}
	}
	return max + 1, nil
}

func (repo *contentRepository) SetTopicOrder(_ context.Context, id int64, order int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.tables().topics[id]
	if !ok || !row.deletedAt.IsZero() {
		return content.ErrTopicNotFound
	}
	row.Order = order
	return nil
}

// Lessons

func (repo *contentRepository) lesson(row *lessonRow) content.Lesson {
	lesson := row.Lesson
	if topic, ok := repo.tables().topics[lesson.TopicID]; ok {
		lesson.TopicName = topic.Name
	}
	lesson.HasQuiz = false
	for _, q := range repo.tables().quizzes {
		if q.LessonID == lesson.ID && q.deletedAt.IsZero() {
			lesson.HasQuiz = true
			break
		}
	}
	return lesson
}

func (repo *contentRepository) CreateLesson(_ context.Context, lesson content.Lesson, _ ...core.DBExecutor) (content.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	lesson.ID = repo.tables().nextPK()
	row := &lessonRow{Lesson: lesson}
	repo.tables().lessons[lesson.ID] = row
	return repo.lesson(row), nil
}

func (repo *contentRepository) UpdateLesson(_ context.Context, lesson content.Lesson, _ ...core.DBExecutor) (content.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.tables().lessons[lesson.ID]
	if !ok || !row.deletedAt.IsZero() {
		return content.Lesson{}, content.ErrLessonNotFound
	}
	lesson.CreatedAt = row.CreatedAt
	row.Lesson = lesson
	return repo.lesson(row), nil
}

func (repo *contentRepository) GetLessonByID(_ context.Context, id int64, _ ...core.DBExecutor) (content.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	row, ok := repo.tables().lessons[id]
	if !ok || !row.deletedAt.IsZero() {
		return content.Lesson{}, content.ErrLessonNotFound
	}
	return repo.lesson(row), nil
}

func (repo *contentRepository) QueryLessons(
	_ context.Context,
	filter *content.LessonFilter,
	_ []core.DBOrdering,
	page *core.Page,
	_ ...core.DBExecutor,
) ([]content.Lesson, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	lessons := make([]content.Lesson, 0)
	for _, row := range repo.tables().lessons {
		if !row.deletedAt.IsZero() {
			continue
		}
		if topic, ok := repo.tables().topics[row.TopicID]; !ok || !topic.deletedAt.IsZero() {
			continue
		}
		if filter != nil {
			if filter.TopicID != 0 && row.TopicID != filter.TopicID {
				continue
			}
			if filter.ContentType != "" && row.ContentType != filter.ContentType {
				continue
			}
			if filter.IsActive != nil && row.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !containsFold(row.Title, filter.Search) {
				continue
			}
		}
		lessons = append(lessons, repo.lesson(row))
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].Order == lessons[j].Order {
			return lessons[i].ID < lessons[j].ID
		}
		return lessons[i].Order < lessons[j].Order
	})
	return paginate(lessons, page), len(lessons), nil
}

func (repo *contentRepository) DeleteLesson(_ context.Context, id int64, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.tables().lessons[id]
	if !ok || !row.deletedAt.IsZero() {
		return content.ErrLessonNotFound
	}
	row.deletedAt = at
	return nil
}

func (repo *contentRepository) NextLessonOrder(_ context.Context, topicID int64, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var max int
	for _, row := range repo.tables().lessons {
		if row.TopicID == topicID && row.deletedAt.IsZero() && row.Order > max {
			max = row.Order
		}
	}
	return max + 1, nil
}

func (repo *contentRepository) UpdateLessons(_ context.Context, ids []int64, change content.LessonChange, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	matched := make(map[int64]bool, len(ids))
	for _, id := range ids {
		row, ok := repo.tables().lessons[id]
		if !ok || !row.deletedAt.IsZero() || matched[id] {
			continue
		}
		matched[id] = true
		if change.IsActive != nil {
			row.IsActive = *change.IsActive
		}
		if change.TopicID != 0 {
			row.TopicID = change.TopicID
		}
		if !change.DeletedAt.IsZero() {
			row.deletedAt = change.DeletedAt
		}
		row.UpdatedAt = change.UpdatedAt
	}
	return len(matched), nil
}

// Quizzes

func (repo *contentRepository) quiz(row *quizRow) content.Quiz {
	quiz := row.Quiz
	if lesson, ok := repo.tables().lessons[quiz.LessonID]; ok {
		quiz.LessonTitle = lesson.Title
	}
	quiz.Options = append([]content.QuizOption{}, repo.tables().options[quiz.ID]...)
	return quiz
}

func (repo *contentRepository) CreateQuiz(_ context.Context, quiz content.Quiz, _ ...core.DBExecutor) (content.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	quiz.ID = repo.tables().nextPK()
	quiz.Options = nil
	row := &quizRow{Quiz: quiz}
	repo.tables().quizzes[quiz.ID] = row
	return repo.quiz(row), nil
}

func (repo *contentRepository) UpdateQuiz(_ context.Context, quiz content.Quiz, _ ...core.DBExecutor) (content.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.tables().quizzes[quiz.ID]
	if !ok || !repo.live(row) {
		return content.Quiz{}, content.ErrQuizNotFound
	}
	quiz.CreatedAt = row.CreatedAt
	quiz.Options = nil
	row.Quiz = quiz
	return repo.quiz(row), nil
}

// live reports whether the quiz, its lesson and the lesson's topic are all undeleted.
func (repo *contentRepository) live(row *quizRow) bool {
	if !row.deletedAt.IsZero() {
		return false
	}
	lesson, ok := repo.tables().lessons[row.LessonID]
	if !ok || !lesson.deletedAt.IsZero() {
		return false
	}
	topic, ok := repo.tables().topics[lesson.TopicID]
	return ok && topic.deletedAt.IsZero()
}

func (repo *contentRepository) GetQuizByID(_ context.Context, id int64, _ ...core.DBExecutor) (content.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	row, ok := repo.tables().quizzes[id]
	if !ok || !repo.live(row) {
		return content.Quiz{}, content.ErrQuizNotFound
	}
	return repo.quiz(row), nil
}

func (repo *contentRepository) GetLessonQuiz(_ context.Context, lessonID int64, _ ...core.DBExecutor) (content.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var latest *quizRow
	for _, row := range repo.tables().quizzes {
		if row.LessonID != lessonID || !repo.live(row) {
			continue
		}
		if latest == nil || row.ID > latest.ID {
			latest = row
		}
	}
	if latest == nil {
		return content.Quiz{}, content.ErrQuizNotFound
	}
	return repo.quiz(latest), nil
}

func (repo *contentRepository) QueryQuizzes(
	_ context.Context,
	filter *content.QuizFilter,
	_ []core.DBOrdering,
	page *core.Page,
	_ ...core.DBExecutor,
) ([]content.Quiz, int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	quizzes := make([]content.Quiz, 0)
	for _, row := range repo.tables().quizzes {
		if !repo.live(row) {
			continue
		}
		if filter != nil {
			if filter.LessonID != 0 && row.LessonID != filter.LessonID {
				continue
			}
			if filter.TopicID != 0 {
				lesson, ok := repo.tables().lessons[row.LessonID]
				if !ok || lesson.TopicID != filter.TopicID {
					continue
				}
			}
			if filter.Difficulty != "" && row.Difficulty != filter.Difficulty {
				continue
			}
			if filter.IsActive != nil && row.IsActive != *filter.IsActive {
				continue
			}
			if filter.Search != "" && !containsFold(row.Question, filter.Search) {
				continue
			}
		}
		quizzes = append(quizzes, repo.quiz(row))
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID < quizzes[j].ID })
	return paginate(quizzes, page), len(quizzes), nil
}

func (repo *contentRepository) DeleteQuiz(_ context.Context, id int64, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.tables().quizzes[id]
	if !ok || !row.deletedAt.IsZero() {
		return content.ErrQuizNotFound
	}
	row.deletedAt = at
	return nil
}

func (repo *contentRepository) ReplaceQuizOptions(_ context.Context, quizID int64, options []content.QuizOption, _ ...core.DBExecutor) ([]content.QuizOption, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.tables().quizzes[quizID]; !ok {
		return nil, content.ErrQuizNotFound
	}
	saved := make([]content.QuizOption, len(options))
	for i, opt := range options {
		opt.ID = repo.tables().nextPK()
		opt.QuizID = quizID
		saved[i] = opt
	}
	repo.tables().options[quizID] = saved
	return append([]content.QuizOption(nil), saved...), nil
}

func (repo *contentRepository) GetQuizStats(_ context.Context, quizID int64, _ ...core.DBExecutor) (content.QuizStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	picks := make(map[int64]int)
	stats := content.QuizStats{QuizID: quizID, Options: []content.OptionStats{}}
	var timeSpent int
	for _, a := range repo.tables().attempts {
		if a.QuizID != quizID {
			continue
		}
		stats.Attempts++
		if a.IsCorrect {
			stats.Correct++
		}
		timeSpent += a.TimeSpent
		picks[a.SelectedOptionID]++
	}
	if stats.Attempts > 0 {
		stats.AvgTimeSpent = float64(timeSpent) / float64(stats.Attempts)
	}
	for _, opt := range repo.tables().options[quizID] {
		stats.Options = append(stats.Options, content.OptionStats{
			OptionID:  opt.ID,
			Text:      opt.Text,
			IsCorrect: opt.IsCorrect,
			Picks:     picks[opt.ID],
		})
	}
	return stats, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func paginate[T any](items []T, page *core.Page) []T {
	if page == nil {
		return items
	}
	start := int(page.Offset())
	if start >= len(items) {
		return []T{}
	}
	end := start + int(page.Limit())
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
