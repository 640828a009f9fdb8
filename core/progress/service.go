package progress

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/content"
	"github.com/jsacademy/console/core/student"
)

var (
	errOptionNotInQuiz = errors.New("the selected option does not belong to this quiz")

	nowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	// Repository persists the ledger. Ledger rows are never filtered on the soft-delete state of
	// the lesson or quiz they point to.
	Repository interface {
		// UpsertProgress inserts the (student, lesson) row or updates it. Once completed, a row stays
		// completed and keeps its first completed_at.
		UpsertProgress(ctx context.Context, p Progress, exec ...core.DBExecutor) (Progress, error)
		CreateAttempt(ctx context.Context, a Attempt, exec ...core.DBExecutor) (Attempt, error)
		QueryAttempts(ctx context.Context, filter *AttemptFilter, page *core.Page, exec ...core.DBExecutor) ([]Attempt, int, error)
		// AddScore adds points to the student's total score, marks them active at `at` and returns the new total.
		AddScore(ctx context.Context, studentID int64, points int, at time.Time, exec ...core.DBExecutor) (int, error)
		TouchStudent(ctx context.Context, studentID int64, at time.Time, exec ...core.DBExecutor) error
		// TopicProgress counts live lessons and the student's completed ones, per live topic.
		TopicProgress(ctx context.Context, studentID int64, exec ...core.DBExecutor) ([]TopicProgress, error)
		AttemptTotals(ctx context.Context, studentID int64, exec ...core.DBExecutor) (AttemptTotals, error)
	}

	Service interface {
		RecordProgress(ctx context.Context, rp RecordProgress) (Progress, error)
		RecordAttempt(ctx context.Context, ra RecordAttempt) (AttemptResult, error)
		StudentReport(ctx context.Context, studentID int64) (StudentReport, error)
		QueryAttempts(ctx context.Context, filter *AttemptFilter, page core.Page) (core.PageResult[Attempt], error)
	}

	service struct {
		txr         core.Transactor
		repo        Repository
		contentRepo content.Repository
		studentRepo student.Repository
	}
)

var _ Service = (*service)(nil)

func NewService(txr core.Transactor, repo Repository, contentRepo content.Repository, studentRepo student.Repository) Service {
	return &service{
		txr:         txr,
		repo:        repo,
		contentRepo: contentRepo,
		studentRepo: studentRepo,
	}
}

func (svc *service) checkStudent(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	if _, err := svc.studentRepo.GetByID(ctx, id, exec...); err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return core.NewFieldValidationError("student_id", student.ErrNotFound.Error())
		}
		return errors.Wrap(err, "getting student")
	}
	return nil
}

func (svc *service) RecordProgress(ctx context.Context, rp RecordProgress) (Progress, error) {
	var prog Progress
	err := svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		if err := svc.checkStudent(ctx, rp.StudentID, tx); err != nil {
			return err
		}
		if _, err := svc.contentRepo.GetLessonByID(ctx, rp.LessonID, tx); err != nil {
			if errors.Cause(err) == content.ErrLessonNotFound {
				return core.NewFieldValidationError("lesson_id", content.ErrLessonNotFound.Error())
			}
			return errors.Wrap(err, "getting lesson")
		}

		now := nowFunc()
		p := Progress{
			StudentID:    rp.StudentID,
			LessonID:     rp.LessonID,
			IsCompleted:  rp.Completed,
			StartedAt:    now,
			LastAccessed: now,
		}
		if rp.Completed {
			p.CompletedAt = &now
		}
		saved, err := svc.repo.UpsertProgress(ctx, p, tx)
		if err != nil {
			return errors.Wrap(err, "saving progress")
		}
		if err := svc.repo.TouchStudent(ctx, rp.StudentID, now, tx); err != nil {
			return errors.Wrap(err, "updating last activity")
		}
		prog = saved
		return nil
	})
	return prog, err
}

// RecordAttempt grades the selected option, appends the attempt and credits the difficulty's
// points on a correct answer, in a single transaction.
func (svc *service) RecordAttempt(ctx context.Context, ra RecordAttempt) (AttemptResult, error) {
	var res AttemptResult
	err := svc.txr.RunInTx(ctx, func(tx core.DBExecutor) error {
		if err := svc.checkStudent(ctx, ra.StudentID, tx); err != nil {
			return err
		}
		quiz, err := svc.contentRepo.GetQuizByID(ctx, ra.QuizID, tx)
		if err != nil {
			if errors.Cause(err) == content.ErrQuizNotFound {
				return core.NewFieldValidationError("quiz_id", content.ErrQuizNotFound.Error())
			}
			return errors.Wrap(err, "getting quiz")
		}

		var (
			selected *content.QuizOption
			correct  int64
		)
		for i, opt := range quiz.Options {
			if opt.ID == ra.SelectedOptionID {
				selected = &quiz.Options[i]
			}
			if opt.IsCorrect {
				correct = opt.ID
			}
		}
		if selected == nil {
			return core.NewFieldValidationError("selected_option_id", errOptionNotInQuiz.Error())
		}

		now := nowFunc()
		attempt, err := svc.repo.CreateAttempt(ctx, Attempt{
			StudentID:        ra.StudentID,
			QuizID:           quiz.ID,
			SelectedOptionID: selected.ID,
			IsCorrect:        selected.IsCorrect,
			TimeSpent:        ra.TimeSpent,
			AttemptedAt:      now,
		}, tx)
		if err != nil {
			return errors.Wrap(err, "saving attempt")
		}
		attempt.Question = quiz.Question

		var points int
		if attempt.IsCorrect {
			points = quiz.Difficulty.Points()
		}
		total, err := svc.repo.AddScore(ctx, ra.StudentID, points, now, tx)
		if err != nil {
			return errors.Wrap(err, "updating score")
		}

		res = AttemptResult{
			Attempt:         attempt,
			Points:          points,
			TotalScore:      total,
			CorrectOptionID: correct,
			Explanation:     quiz.Explanation,
		}
		return nil
	})
	return res, err
}

func (svc *service) StudentReport(ctx context.Context, studentID int64) (StudentReport, error) {
	std, err := svc.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		return StudentReport{}, err
	}

	topics, err := svc.repo.TopicProgress(ctx, studentID)
	if err != nil {
		return StudentReport{}, errors.Wrap(err, "getting topic progress")
	}
	report := StudentReport{Student: std, Topics: make([]TopicProgress, 0, len(topics))}
	for _, tp := range topics {
		tp.CompletionRate = core.Percent(float64(tp.CompletedLessons), float64(tp.TotalLessons))
		report.TotalLessons += tp.TotalLessons
		report.CompletedLessons += tp.CompletedLessons
		report.Topics = append(report.Topics, tp)
	}
	report.CompletionRate = core.Percent(float64(report.CompletedLessons), float64(report.TotalLessons))

	totals, err := svc.repo.AttemptTotals(ctx, studentID)
	if err != nil {
		return StudentReport{}, errors.Wrap(err, "counting attempts")
	}
	report.QuizAttempts, report.CorrectAttempts = totals.Attempts, totals.Correct
	report.Accuracy = core.Percent(float64(totals.Correct), float64(totals.Attempts))

	recent, _, err := svc.repo.QueryAttempts(ctx, &AttemptFilter{StudentID: studentID}, &core.Page{Number: 1, Size: recentAttemptsLimit})
	if err != nil {
		return StudentReport{}, errors.Wrap(err, "getting recent attempts")
	}
	if recent == nil {
		recent = []Attempt{}
	}
	report.RecentAttempts = recent
	return report, nil
}

func (svc *service) QueryAttempts(ctx context.Context, filter *AttemptFilter, page core.Page) (core.PageResult[Attempt], error) {
	page.Clean()
	attempts, total, err := svc.repo.QueryAttempts(ctx, filter, &page)
	if err != nil {
		return core.PageResult[Attempt]{}, err
	}
	return core.NewPageResult(attempts, total, page), nil
}
