package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core/progress"
)

type progressApi struct {
	svc      progress.Service
	validate *validator.Validate
}

func registerProgressAPI(g *echo.Group, svc progress.Service, validate *validator.Validate) {
	api := progressApi{svc: svc, validate: validate}

	pg := g.Group("/progress")
	pg.POST("/lessons", api.recordProgress)
	pg.POST("/attempts", api.recordAttempt)
	pg.GET("/attempts", api.queryAttempts)
}

func (api *progressApi) recordProgress(ctx echo.Context) error {
	var data progress.RecordProgress
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to RecordProgress")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prog, err := api.svc.RecordProgress(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording progress")
	}
	return ok(ctx, prog, "progress recorded")
}

func (api *progressApi) recordAttempt(ctx echo.Context) error {
	var data progress.RecordAttempt
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to RecordAttempt")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.RecordAttempt(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording attempt")
	}
	return created(ctx, res, "attempt recorded")
}

func (api *progressApi) queryAttempts(ctx echo.Context) error {
	filter := new(progress.AttemptFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.QueryAttempts(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	return ok(ctx, res)
}
