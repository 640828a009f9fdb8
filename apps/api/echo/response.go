package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Response is the envelope of every JSON response.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
}

func respond(ctx echo.Context, code int, data interface{}, msg ...string) error {
	res := Response{Success: true, Data: data}
	if len(msg) > 0 {
		res.Message = msg[0]
	}
	return ctx.JSON(code, res)
}

func ok(ctx echo.Context, data interface{}, msg ...string) error {
	return respond(ctx, http.StatusOK, data, msg...)
}

func created(ctx echo.Context, data interface{}, msg ...string) error {
	return respond(ctx, http.StatusCreated, data, msg...)
}
