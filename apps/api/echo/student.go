package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/progress"
	"github.com/jsacademy/console/core/student"
)

const importFileField = "file"

type studentApi struct {
	svc         student.Service
	progressSvc progress.Service
	validate    *validator.Validate
}

func registerStudentAPI(g *echo.Group, svc student.Service, progressSvc progress.Service, validate *validator.Validate) {
	api := studentApi{svc: svc, progressSvc: progressSvc, validate: validate}

	sg := g.Group("/students")
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.DELETE("", api.destroyMultiple)
	sg.POST("/import", api.importCSV)

	// detail endpoints
	dg := sg.Group("/:id", objectMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/password-reset", api.resetPassword)
	dg.GET("/progress", api.report)
	dg.GET("/attempts", api.attempts)
}

// objectMiddleware loads the student of the `:id` path param into the request context.
func objectMiddleware(svc student.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := paramID(ctx)
			if err != nil {
				return err
			}
			std, err := svc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding student by ID")
			}
			ctx.Set("object", std)
			return next(ctx)
		}
	}
}

func contextStudent(ctx echo.Context) (student.Student, error) {
	std, ok := ctx.Get("object").(student.Student)
	if !ok {
		return student.Student{}, errors.New("student object not found in echo.Context")
	}
	return std, nil
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	filter.Clean()
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.Query(ctx.Request().Context(), filter, bindOrdering(ctx), page)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ok(ctx, res)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	std, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return created(ctx, std, "student created")
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	return ok(ctx, std)
}

func (api *studentApi) update(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}

	var data student.UpdateStudent
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, std, api.svc); err != nil {
		return err
	}

	std, err = api.svc.Update(ctx.Request().Context(), std.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ok(ctx, std, "student updated")
}

func (api *studentApi) destroy(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), std.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ok(ctx, nil, "student deleted")
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	ids, err := queryIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ok(ctx, map[string]int{"deleted": 0})
	}

	n, err := api.svc.Delete(ctx.Request().Context(), ids...)
	if err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ok(ctx, map[string]int{"deleted": n})
}

// PasswordResetResponse carries the new plaintext password. It is returned once and never stored.
type PasswordResetResponse struct {
	Password string `json:"password"`
	Notified bool   `json:"notified"`
}

func (api *studentApi) resetPassword(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	notify := queryBool(ctx, "notify")

	pwd, err := api.svc.ResetPassword(ctx.Request().Context(), std.ID, notify)
	if err != nil {
		return errors.Wrap(err, "resetting student password")
	}
	return ok(ctx, PasswordResetResponse{Password: pwd, Notified: notify}, "password reset")
}

func (api *studentApi) importCSV(ctx echo.Context) error {
	fh, err := ctx.FormFile(importFileField)
	if err != nil {
		return core.NewFieldValidationError(importFileField, "a CSV file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	res, err := api.svc.ImportCSV(ctx.Request().Context(), f)
	if err != nil {
		return errors.Wrap(err, "importing students")
	}
	return ok(ctx, res)
}

func (api *studentApi) report(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	rep, err := api.progressSvc.StudentReport(ctx.Request().Context(), std.ID)
	if err != nil {
		return errors.Wrap(err, "getting student report")
	}
	return ok(ctx, rep)
}

func (api *studentApi) attempts(ctx echo.Context) error {
	std, err := contextStudent(ctx)
	if err != nil {
		return err
	}
	filter := new(progress.AttemptFilter)
	if err := bindQuery(ctx, filter); err != nil {
		return err
	}
	filter.StudentID = std.ID
	page, err := bindPage(ctx)
	if err != nil {
		return err
	}

	res, err := api.progressSvc.QueryAttempts(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	return ok(ctx, res)
}
