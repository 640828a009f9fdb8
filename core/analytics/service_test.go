package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/content"
)

var testNow = time.Date(2024, 3, 20, 15, 0, 0, 0, time.UTC) // a Wednesday

type fakeRepo struct {
	overview    Overview
	topics      []TopicStats
	students    []StudentActivity
	liveLessons int
	signups     []StudentActivity
	days        []DailyActivity
	quizzes     []QuizPerformance
	paces       []CompletionPace

	from, until time.Time
	quizFilter  QuizFilter
}

func (r *fakeRepo) Overview(_ context.Context, from, until time.Time) (Overview, error) {
	r.from, r.until = from, until
	return r.overview, nil
}

func (r *fakeRepo) TopicStats(context.Context, time.Time, time.Time) ([]TopicStats, error) {
	return r.topics, nil
}

func (r *fakeRepo) StudentActivity(context.Context) ([]StudentActivity, error) {
	return r.students, nil
}

func (r *fakeRepo) LiveLessonCount(context.Context) (int, error) {
	return r.liveLessons, nil
}

func (r *fakeRepo) SignupActivity(context.Context, time.Time, time.Time) ([]StudentActivity, error) {
	return r.signups, nil
}

func (r *fakeRepo) DailyActivity(context.Context, time.Time, time.Time) ([]DailyActivity, error) {
	return r.days, nil
}

func (r *fakeRepo) QuizPerformance(_ context.Context, _, _ time.Time, filter QuizFilter) ([]QuizPerformance, error) {
	r.quizFilter = filter
	return r.quizzes, nil
}

func (r *fakeRepo) CompletionPace(context.Context, time.Time, time.Time) ([]CompletionPace, error) {
	return r.paces, nil
}

func newTestService(t *testing.T, repo *fakeRepo) Service {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return testNow }
	t.Cleanup(func() { nowFunc = orig })
	return NewService(repo, 30)
}

func date(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func daysAgo(n int) *time.Time {
	t := testNow.AddDate(0, 0, -n)
	return &t
}

func TestDateRange_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		in        DateRange
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		{"defaults", DateRange{}, "2024-02-20", "2024-03-20", false},
		{"start only", DateRange{Start: date("2024-03-01")}, "2024-03-01", "2024-03-20", false},
		{"end only", DateRange{End: date("2024-01-31")}, "2024-01-02", "2024-01-31", false},
		{"single day", DateRange{Start: date("2024-03-05"), End: date("2024-03-05")}, "2024-03-05", "2024-03-05", false},
		{"inverted", DateRange{Start: date("2024-03-06"), End: date("2024-03-05")}, "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dr := tc.in
			err := dr.Normalize(30, testNow)
			if tc.wantErr {
				var verr *core.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "start_date", verr.Fields[0].Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStart, dr.Start.String())
			assert.Equal(t, tc.wantEnd, dr.End.String())
		})
	}

	dr := DateRange{Start: date("2024-03-05"), End: date("2024-03-05")}
	require.NoError(t, dr.Normalize(30, testNow))
	assert.Equal(t, 1, dr.Days())
	assert.Equal(t, date("2024-03-06").Time, dr.Until())
}

func TestService_Overview(t *testing.T) {
	repo := &fakeRepo{overview: Overview{
		TotalStudents:    10,
		LessonsStarted:   8,
		LessonsCompleted: 2,
		QuizAttempts:     3,
		CorrectAttempts:  1,
		TotalTimeSpent:   100,
	}}
	svc := newTestService(t, repo)

	ov, err := svc.Overview(context.Background(), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 25.0, ov.CompletionRate)
	assert.Equal(t, 33.33, ov.Accuracy)
	assert.Equal(t, 33.33, ov.AvgTimeSpent)
	assert.Equal(t, date("2024-02-20").Time, repo.from)
	assert.Equal(t, date("2024-03-21").Time, repo.until)

	// empty tables
	repo.overview = Overview{}
	ov, err = svc.Overview(context.Background(), DateRange{})
	require.NoError(t, err)
	assert.Zero(t, ov.CompletionRate)
	assert.Zero(t, ov.Accuracy)
	assert.Zero(t, ov.AvgTimeSpent)
}

func TestService_Segments(t *testing.T) {
	repo := &fakeRepo{
		liveLessons: 4,
		students: []StudentActivity{
			{StudentID: 1, TotalScore: 500, LastActive: daysAgo(7), CompletedLessons: 3},
			{StudentID: 2, TotalScore: 499, LastActive: daysAgo(8), CompletedLessons: 1},
			{StudentID: 3, TotalScore: 200, LastActive: daysAgo(30), CompletedLessons: 0},
			{StudentID: 4, TotalScore: 199, LastActive: daysAgo(31), CompletedLessons: 4},
			{StudentID: 5},
		},
	}
	svc := newTestService(t, repo)

	seg, err := svc.Segments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, seg.TotalStudents)
	assert.Equal(t, []SegmentCount{
		{Segment: SegmentHigh, Students: 1, Percent: 20},
		{Segment: SegmentMedium, Students: 2, Percent: 40},
		{Segment: SegmentLow, Students: 2, Percent: 40},
	}, seg.Performance)
	assert.Equal(t, []SegmentCount{
		{Segment: SegmentActive, Students: 1, Percent: 20},
		{Segment: SegmentAtRisk, Students: 2, Percent: 40},
		{Segment: SegmentInactive, Students: 2, Percent: 40},
	}, seg.Engagement)
	assert.Equal(t, []SegmentCount{
		{Segment: SegmentFast, Students: 2, Percent: 40},
		{Segment: SegmentSteady, Students: 1, Percent: 20},
		{Segment: SegmentSlow, Students: 2, Percent: 40},
	}, seg.Pace)
}

func TestService_SegmentsEmpty(t *testing.T) {
	svc := newTestService(t, &fakeRepo{})

	seg, err := svc.Segments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, seg.TotalStudents)
	require.Len(t, seg.Pace, 3)
	for _, sc := range seg.Pace {
		assert.Zero(t, sc.Percent)
	}
}

func TestService_Retention(t *testing.T) {
	signup := func(created string, activeAfterDays int) StudentActivity {
		c := date(created).Time
		sa := StudentActivity{CreatedAt: c.Add(9 * time.Hour)}
		if activeAfterDays >= 0 {
			last := sa.CreatedAt.AddDate(0, 0, activeAfterDays)
			sa.LastActivity = &last
		}
		return sa
	}
	repo := &fakeRepo{signups: []StudentActivity{
		signup("2024-03-06", 30), // Wednesday, week of 03-04
		signup("2024-03-04", 7),
		signup("2024-03-10", -1), // Sunday, same week
		signup("2024-03-11", 6),  // Monday, next week
	}}
	svc := newTestService(t, repo)

	cohorts, err := svc.Retention(context.Background(), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []RetentionCohort{
		{Cohort: "2024-03-04", Students: 3, Retained7: 2, Retained30: 1, Retention7: 66.67, Retention30: 33.33},
		{Cohort: "2024-03-11", Students: 1},
	}, cohorts)

	repo.signups = nil
	cohorts, err = svc.Retention(context.Background(), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []RetentionCohort{}, cohorts)
}

func TestService_QuizPerformance(t *testing.T) {
	repo := &fakeRepo{quizzes: []QuizPerformance{
		{QuizID: 1, Difficulty: content.DifficultyEasy, Attempts: 4, Correct: 4, TotalTimeSpent: 40},
		{QuizID: 2, Difficulty: content.DifficultyHard, Attempts: 4, Correct: 1, TotalTimeSpent: 100},
		{QuizID: 3, Difficulty: content.DifficultyMedium, Attempts: 8, Correct: 2},
	}}
	svc := newTestService(t, repo)

	quizzes, err := svc.QuizPerformance(context.Background(), DateRange{}, QuizFilter{Difficulty: " HARD "})
	require.NoError(t, err)
	assert.Equal(t, content.DifficultyHard, repo.quizFilter.Difficulty)
	require.Len(t, quizzes, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{quizzes[0].QuizID, quizzes[1].QuizID, quizzes[2].QuizID})
	assert.Equal(t, 25.0, quizzes[1].Accuracy)
	assert.Equal(t, 25.0, quizzes[1].AvgTimeSpent)
	assert.Equal(t, 7.5, quizzes[1].ExpectedPoints)
	assert.Equal(t, 10.0, quizzes[2].ExpectedPoints)

	_, err = svc.QuizPerformance(context.Background(), DateRange{}, QuizFilter{Difficulty: "extreme"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "difficulty", verr.Fields[0].Field)
}

func TestService_Projections(t *testing.T) {
	started := testNow.AddDate(0, 0, -20)
	repo := &fakeRepo{
		liveLessons: 10,
		paces: []CompletionPace{
			{StudentID: 1, Username: "slow", CompletedLessons: 2, Completions: 1, FirstStartedAt: started, LastCompletedAt: started.AddDate(0, 0, 20)},
			{StudentID: 2, Username: "quick", CompletedLessons: 5, Completions: 5, FirstStartedAt: started, LastCompletedAt: started.AddDate(0, 0, 10)},
		},
	}
	svc := newTestService(t, repo)

	proj, err := svc.Projections(context.Background(), DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 10, proj.LiveLessons)
	assert.Equal(t, 6, proj.Completions)
	assert.Equal(t, 4.29, proj.AvgDaysPerLesson) // 30 days over 7 lessons
	assert.Equal(t, 6.5, proj.AvgRemainingLessons)
	require.Len(t, proj.Students, 2)
	assert.Equal(t, StudentProjection{
		StudentID: 2, Username: "quick", CompletedLessons: 5, RemainingLessons: 5, AvgDaysPerLesson: 2, ProjectedDays: 10,
	}, proj.Students[0])
	assert.Equal(t, 80.0, proj.Students[1].ProjectedDays)

	repo.paces = nil
	proj, err = svc.Projections(context.Background(), DateRange{})
	require.NoError(t, err)
	assert.Zero(t, proj.AvgDaysPerLesson)
	assert.Zero(t, proj.ProjectedDaysToFinish)
	assert.Equal(t, []StudentProjection{}, proj.Students)
}

func TestService_Dashboard(t *testing.T) {
	repo := &fakeRepo{}
	for i := int64(1); i <= 7; i++ {
		repo.quizzes = append(repo.quizzes, QuizPerformance{QuizID: i, Difficulty: content.DifficultyEasy, Attempts: 10, Correct: int(i)})
	}
	svc := newTestService(t, repo)

	db, err := svc.Dashboard(context.Background(), DateRange{Start: date("2024-03-01")})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", db.Range.Start.String())
	assert.Equal(t, "2024-03-20", db.Range.End.String())
	require.Len(t, db.HardestQuizzes, hardestQuizzesLimit)
	assert.Equal(t, int64(1), db.HardestQuizzes[0].QuizID)
	assert.Equal(t, []TopicStats{}, db.Topics)
	assert.Equal(t, []DailyActivity{}, db.Activity)

	_, err = svc.Dashboard(context.Background(), DateRange{Start: date("2024-03-21"), End: date("2024-03-20")})
	assert.Error(t, err)
}
