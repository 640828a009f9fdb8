package echoapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core/analytics"
)

type analyticsApi struct {
	svc analytics.Service
}

func registerAnalyticsAPI(g *echo.Group, svc analytics.Service) {
	api := analyticsApi{svc: svc}

	ag := g.Group("/analytics")
	ag.GET("/dashboard", api.ranged("dashboard", func(ctx context.Context, dr analytics.DateRange) (interface{}, error) {
		return svc.Dashboard(ctx, dr)
	}))
	ag.GET("/overview", api.ranged("overview", func(ctx context.Context, dr analytics.DateRange) (interface{}, error) {
		return svc.Overview(ctx, dr)
	}))
	ag.GET("/topics", api.ranged("topic rollups", func(ctx context.Context, dr analytics.DateRange) (interface{}, error) {
		return svc.TopicRollups(ctx, dr)
	}))
	ag.GET("/retention", api.ranged("retention", func(ctx context.Context, dr analytics.DateRange) (interface{}, error) {
		return svc.Retention(ctx, dr)
	}))
	ag.GET("/activity", api.ranged("daily activity", func(ctx context.Context, dr analytics.DateRange) (interface{}, error) {
		return svc.DailyActivity(ctx, dr)
	}))
	ag.GET("/projections", api.ranged("projections", func(ctx context.Context, dr analytics.DateRange) (interface{}, error) {
		return svc.Projections(ctx, dr)
	}))
	ag.GET("/segments", api.segments)
	ag.GET("/quizzes", api.quizPerformance)
}

// ranged binds `start_date` and `end_date` and renders the report computed by fn.
func (api *analyticsApi) ranged(
	name string,
	fn func(ctx context.Context, dr analytics.DateRange) (interface{}, error),
) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var dr analytics.DateRange
		if err := bindQuery(ctx, &dr); err != nil {
			return err
		}
		data, err := fn(ctx.Request().Context(), dr)
		if err != nil {
			return errors.Wrapf(err, "computing %s", name)
		}
		return ok(ctx, data)
	}
}

func (api *analyticsApi) segments(ctx echo.Context) error {
	segs, err := api.svc.Segments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing segments")
	}
	return ok(ctx, segs)
}

func (api *analyticsApi) quizPerformance(ctx echo.Context) error {
	var dr analytics.DateRange
	if err := bindQuery(ctx, &dr); err != nil {
		return err
	}
	filter := new(analytics.QuizFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	filter.Clean()

	perf, err := api.svc.QuizPerformance(ctx.Request().Context(), dr, *filter)
	if err != nil {
		return errors.Wrap(err, "computing quiz performance")
	}
	return ok(ctx, perf)
}
