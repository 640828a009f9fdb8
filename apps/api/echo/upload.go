package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core"
	uploadsvc "github.com/jsacademy/console/services/upload"
)

const uploadFileField = "file"

type uploadApi struct {
	svc uploadsvc.Service
}

func registerUploadAPI(g *echo.Group, svc uploadsvc.Service) {
	api := uploadApi{svc: svc}

	g.POST("/uploads/images", api.uploadImage)
}

type UploadResponse struct {
	URL string `json:"url"`
}

func (api *uploadApi) uploadImage(ctx echo.Context) error {
	fh, err := ctx.FormFile(uploadFileField)
	if err != nil {
		return core.NewFieldValidationError(uploadFileField, "an image file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	url, err := api.svc.SaveImage(ctx.Request().Context(), fh.Filename, fh.Size, f)
	if err != nil {
		return errors.Wrap(err, "saving image")
	}
	return created(ctx, UploadResponse{URL: url}, "image uploaded")
}
