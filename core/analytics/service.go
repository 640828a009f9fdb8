package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
)

const hardestQuizzesLimit = 5

var (
	errUnknownDifficulty = errors.New("unknown difficulty")

	nowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	// Repository runs the aggregate queries. Time bounds are [from, until). Implementations
	// return raw counts and sums only.
	Repository interface {
		Overview(ctx context.Context, from, until time.Time) (Overview, error)
		TopicStats(ctx context.Context, from, until time.Time) ([]TopicStats, error)
		// StudentActivity lists every live student.
		StudentActivity(ctx context.Context) ([]StudentActivity, error)
		LiveLessonCount(ctx context.Context) (int, error)
		// SignupActivity lists the students who signed up within the bounds.
		SignupActivity(ctx context.Context, from, until time.Time) ([]StudentActivity, error)
		DailyActivity(ctx context.Context, from, until time.Time) ([]DailyActivity, error)
		// QuizPerformance lists the quizzes attempted within the bounds.
		QuizPerformance(ctx context.Context, from, until time.Time, filter QuizFilter) ([]QuizPerformance, error)
		CompletionPace(ctx context.Context, from, until time.Time) ([]CompletionPace, error)
	}

	Service interface {
		Overview(ctx context.Context, dr DateRange) (Overview, error)
		TopicRollups(ctx context.Context, dr DateRange) ([]TopicStats, error)
		Segments(ctx context.Context) (Segments, error)
		Retention(ctx context.Context, dr DateRange) ([]RetentionCohort, error)
		DailyActivity(ctx context.Context, dr DateRange) ([]DailyActivity, error)
		QuizPerformance(ctx context.Context, dr DateRange, filter QuizFilter) ([]QuizPerformance, error)
		Projections(ctx context.Context, dr DateRange) (Projections, error)
		Dashboard(ctx context.Context, dr DateRange) (Dashboard, error)
	}

	service struct {
		repo        Repository
		defaultDays int
	}
)

var _ Service = (*service)(nil)

// NewService returns the analytics service. Ranges missing a bound cover the last `defaultDays` days.
func NewService(repo Repository, defaultDays int) Service {
	return &service{repo: repo, defaultDays: defaultDays}
}

func (svc *service) normalize(dr *DateRange) error {
	return dr.Normalize(svc.defaultDays, nowFunc())
}

func (svc *service) Overview(ctx context.Context, dr DateRange) (Overview, error) {
	if err := svc.normalize(&dr); err != nil {
		return Overview{}, err
	}
	ov, err := svc.repo.Overview(ctx, dr.From(), dr.Until())
	if err != nil {
		return Overview{}, errors.Wrap(err, "counting overview")
	}
	ov.CompletionRate = core.Percent(float64(ov.LessonsCompleted), float64(ov.LessonsStarted))
	ov.Accuracy = core.Percent(float64(ov.CorrectAttempts), float64(ov.QuizAttempts))
	ov.AvgTimeSpent = core.Round(core.Ratio(float64(ov.TotalTimeSpent), float64(ov.QuizAttempts)), 2)
	return ov, nil
}

func (svc *service) TopicRollups(ctx context.Context, dr DateRange) ([]TopicStats, error) {
	if err := svc.normalize(&dr); err != nil {
		return nil, err
	}
	rows, err := svc.repo.TopicStats(ctx, dr.From(), dr.Until())
	if err != nil {
		return nil, errors.Wrap(err, "counting topic stats")
	}
	topics := make([]TopicStats, 0, len(rows))
	for _, ts := range rows {
		ts.CompletionRate = core.Percent(float64(ts.LessonsCompleted), float64(ts.LessonsStarted))
		ts.Accuracy = core.Percent(float64(ts.CorrectAttempts), float64(ts.QuizAttempts))
		topics = append(topics, ts)
	}
	return topics, nil
}

// Segments buckets every live student by score, recency of activity and share of live lessons completed.
func (svc *service) Segments(ctx context.Context) (Segments, error) {
	students, err := svc.repo.StudentActivity(ctx)
	if err != nil {
		return Segments{}, errors.Wrap(err, "getting student activity")
	}
	liveLessons, err := svc.repo.LiveLessonCount(ctx)
	if err != nil {
		return Segments{}, errors.Wrap(err, "counting lessons")
	}

	now := nowFunc()
	perf := newTally(SegmentHigh, SegmentMedium, SegmentLow)
	engagement := newTally(SegmentActive, SegmentAtRisk, SegmentInactive)
	pace := newTally(SegmentFast, SegmentSteady, SegmentSlow)
	for _, sa := range students {
		perf.add(performanceSegment(sa.TotalScore))
		engagement.add(engagementSegment(sa.LastActive, now))
		pace.add(paceSegment(sa.CompletedLessons, liveLessons))
	}

	total := len(students)
	return Segments{
		TotalStudents: total,
		Performance:   perf.counts(total),
		Engagement:    engagement.counts(total),
		Pace:          pace.counts(total),
	}, nil
}

func performanceSegment(score int) string {
	switch {
	case score >= HighScore:
		return SegmentHigh
	case score >= MediumScore:
		return SegmentMedium
	default:
		return SegmentLow
	}
}

func engagementSegment(lastActive *time.Time, now time.Time) string {
	if lastActive == nil {
		return SegmentInactive
	}
	switch idle := now.Sub(*lastActive); {
	case idle <= ActiveDays*24*time.Hour:
		return SegmentActive
	case idle <= AtRiskDays*24*time.Hour:
		return SegmentAtRisk
	default:
		return SegmentInactive
	}
}

func paceSegment(completed, liveLessons int) string {
	switch ratio := core.Ratio(float64(completed), float64(liveLessons)); {
	case ratio >= FastPace:
		return SegmentFast
	case ratio >= SteadyPace:
		return SegmentSteady
	default:
		return SegmentSlow
	}
}

// tally keeps the segments in declaration order, including empty ones.
type tally struct {
	names []string
	n     map[string]int
}

func newTally(names ...string) *tally {
	return &tally{names: names, n: make(map[string]int, len(names))}
}

func (t *tally) add(name string) { t.n[name]++ }

func (t *tally) counts(total int) []SegmentCount {
	counts := make([]SegmentCount, 0, len(t.names))
	for _, name := range t.names {
		counts = append(counts, SegmentCount{
			Segment:  name,
			Students: t.n[name],
			Percent:  core.Percent(float64(t.n[name]), float64(total)),
		})
	}
	return counts
}

// Retention groups the students who signed up in the range by signup week (weeks start on Monday).
// A student is retained after N days when their latest activity is at least N days after signup.
func (svc *service) Retention(ctx context.Context, dr DateRange) ([]RetentionCohort, error) {
	if err := svc.normalize(&dr); err != nil {
		return nil, err
	}
	signups, err := svc.repo.SignupActivity(ctx, dr.From(), dr.Until())
	if err != nil {
		return nil, errors.Wrap(err, "getting signup activity")
	}

	byWeek := make(map[string]*RetentionCohort)
	for _, sa := range signups {
		week := weekStart(sa.CreatedAt).Format(core.DateLayout)
		c, ok := byWeek[week]
		if !ok {
			c = &RetentionCohort{Cohort: week}
			byWeek[week] = c
		}
		c.Students++
		if sa.LastActivity == nil {
			continue
		}
		if !sa.LastActivity.Before(sa.CreatedAt.AddDate(0, 0, 7)) {
			c.Retained7++
		}
		if !sa.LastActivity.Before(sa.CreatedAt.AddDate(0, 0, 30)) {
			c.Retained30++
		}
	}

	cohorts := make([]RetentionCohort, 0, len(byWeek))
	for _, c := range byWeek {
		c.Retention7 = core.Percent(float64(c.Retained7), float64(c.Students))
		c.Retention30 = core.Percent(float64(c.Retained30), float64(c.Students))
		cohorts = append(cohorts, *c)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].Cohort < cohorts[j].Cohort })
	return cohorts, nil
}

func weekStart(t time.Time) time.Time {
	day := core.StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // days since Monday
	return day.AddDate(0, 0, -offset)
}

// DailyActivity returns the days of the range with any activity, oldest first.
func (svc *service) DailyActivity(ctx context.Context, dr DateRange) ([]DailyActivity, error) {
	if err := svc.normalize(&dr); err != nil {
		return nil, err
	}
	rows, err := svc.repo.DailyActivity(ctx, dr.From(), dr.Until())
	if err != nil {
		return nil, errors.Wrap(err, "counting daily activity")
	}
	days := make([]DailyActivity, 0, len(rows))
	for _, da := range rows {
		da.Accuracy = core.Percent(float64(da.CorrectAttempts), float64(da.QuizAttempts))
		days = append(days, da)
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

// QuizPerformance returns the quizzes attempted in the range, hardest (lowest accuracy) first.
func (svc *service) QuizPerformance(ctx context.Context, dr DateRange, filter QuizFilter) ([]QuizPerformance, error) {
	if err := svc.normalize(&dr); err != nil {
		return nil, err
	}
	filter.Clean()
	if filter.Difficulty != "" && !filter.Difficulty.IsValid() {
		return nil, core.NewFieldValidationError("difficulty", errUnknownDifficulty.Error())
	}

	rows, err := svc.repo.QuizPerformance(ctx, dr.From(), dr.Until(), filter)
	if err != nil {
		return nil, errors.Wrap(err, "counting quiz attempts")
	}
	quizzes := make([]QuizPerformance, 0, len(rows))
	for _, qp := range rows {
		ratio := core.Ratio(float64(qp.Correct), float64(qp.Attempts))
		qp.Accuracy = core.Round(ratio*100, 2)
		qp.AvgTimeSpent = core.Round(core.Ratio(float64(qp.TotalTimeSpent), float64(qp.Attempts)), 2)
		qp.ExpectedPoints = core.Round(ratio*float64(qp.Difficulty.Points()), 2)
		quizzes = append(quizzes, qp)
	}
	sort.SliceStable(quizzes, func(i, j int) bool {
		if quizzes[i].Accuracy == quizzes[j].Accuracy {
			return quizzes[i].Attempts > quizzes[j].Attempts
		}
		return quizzes[i].Accuracy < quizzes[j].Accuracy
	})
	return quizzes, nil
}

// Projections scales each student's historical days per completed lesson by the live lessons they
// have left. Only students who completed a lesson in the range are projected.
func (svc *service) Projections(ctx context.Context, dr DateRange) (Projections, error) {
	if err := svc.normalize(&dr); err != nil {
		return Projections{}, err
	}
	liveLessons, err := svc.repo.LiveLessonCount(ctx)
	if err != nil {
		return Projections{}, errors.Wrap(err, "counting lessons")
	}
	paces, err := svc.repo.CompletionPace(ctx, dr.From(), dr.Until())
	if err != nil {
		return Projections{}, errors.Wrap(err, "getting completion pace")
	}

	proj := Projections{LiveLessons: liveLessons, Students: make([]StudentProjection, 0, len(paces))}
	var (
		totalDays      float64
		totalCompleted int
		totalRemaining int
	)
	for _, p := range paces {
		days := p.LastCompletedAt.Sub(p.FirstStartedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		remaining := liveLessons - p.CompletedLessons
		if remaining < 0 {
			remaining = 0
		}
		avg := core.Ratio(days, float64(p.CompletedLessons))

		proj.Completions += p.Completions
		totalDays += days
		totalCompleted += p.CompletedLessons
		totalRemaining += remaining
		proj.Students = append(proj.Students, StudentProjection{
			StudentID:        p.StudentID,
			Username:         p.Username,
			CompletedLessons: p.CompletedLessons,
			RemainingLessons: remaining,
			AvgDaysPerLesson: core.Round(avg, 2),
			ProjectedDays:    core.Round(avg*float64(remaining), 2),
		})
	}

	avg := core.Ratio(totalDays, float64(totalCompleted))
	proj.AvgDaysPerLesson = core.Round(avg, 2)
	proj.AvgRemainingLessons = core.Round(core.Ratio(float64(totalRemaining), float64(len(paces))), 2)
	proj.ProjectedDaysToFinish = core.Round(avg*proj.AvgRemainingLessons, 2)
	sort.SliceStable(proj.Students, func(i, j int) bool {
		return proj.Students[i].ProjectedDays < proj.Students[j].ProjectedDays
	})
	return proj, nil
}

func (svc *service) Dashboard(ctx context.Context, dr DateRange) (Dashboard, error) {
	if err := svc.normalize(&dr); err != nil {
		return Dashboard{}, err
	}

	var (
		db  = Dashboard{Range: dr}
		err error
	)
	if db.Overview, err = svc.Overview(ctx, dr); err != nil {
		return Dashboard{}, err
	}
	if db.Topics, err = svc.TopicRollups(ctx, dr); err != nil {
		return Dashboard{}, err
	}
	if db.Segments, err = svc.Segments(ctx); err != nil {
		return Dashboard{}, err
	}
	if db.Activity, err = svc.DailyActivity(ctx, dr); err != nil {
		return Dashboard{}, err
	}
	quizzes, err := svc.QuizPerformance(ctx, dr, QuizFilter{})
	if err != nil {
		return Dashboard{}, err
	}
	if len(quizzes) > hardestQuizzesLimit {
		quizzes = quizzes[:hardestQuizzesLimit]
	}
	db.HardestQuizzes = quizzes
	if db.Projections, err = svc.Projections(ctx, dr); err != nil {
		return Dashboard{}, err
	}
	return db, nil
}
