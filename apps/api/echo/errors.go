package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/admin"
	"github.com/jsacademy/console/core/content"
	"github.com/jsacademy/console/core/student"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken         = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errInvalidID            = echo.NewHTTPError(http.StatusBadRequest, "invalid id")

	serverErrorMsg = "internal server error"
)

// domainStatus maps the domain sentinels to their HTTP status, and the uniqueness ones to their field.
func domainStatus(err error) (code int, field string, ok bool) {
	switch err {
	case content.ErrTopicNotFound, content.ErrLessonNotFound, content.ErrQuizNotFound,
		student.ErrNotFound, admin.ErrNotFound:
		return http.StatusNotFound, "", true
	case admin.ErrAuthenticationFailed:
		return http.StatusBadRequest, "", true
	case admin.ErrAccountDeactivated:
		return http.StatusForbidden, "", true
	case student.ErrUsernameExists:
		return http.StatusBadRequest, "username", true
	case student.ErrEmailExists:
		return http.StatusBadRequest, "email", true
	}
	return 0, "", false
}

// newAppHTTPErrorHandler returns an echo.HTTPErrorHandler rendering every error in the response envelope.
// signalShutdown is called whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		res := Response{Success: false}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				res.Message = msg
			} else {
				res.Message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			res.Message = "invalid input"
			res.Errors = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				res.Errors[vErr.Field()] = vErr.Translate(translator)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			res.Message = origErr.Error()
			if len(origErr.Fields) > 0 {
				res.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					res.Errors[fErr.Field] = fErr.Error
				}
			}
		default:
			if status, field, ok := domainStatus(cause); ok {
				code = status
				res.Message = cause.Error()
				if field != "" {
					res.Errors = map[string]string{field: cause.Error()}
				}
				break
			}

			// any other error is a server error
			res.Message = serverErrorMsg
			if ctx.Echo().Debug {
				res.Message = err.Error()
			}
			var args []interface{}
			args = append(args, err)
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				args = append(args, claims.admin())
			}
			logger.Error(serverErrorMsg+": "+err.Error(), args...)

			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, res)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
