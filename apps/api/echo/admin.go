package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core/admin"
)

type authApi struct {
	issuer   tokenIssuer
	svc      admin.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, issuer tokenIssuer, svc admin.Service, validate *validator.Validate) {
	api := authApi{issuer: issuer, svc: svc, validate: validate}

	ag := g.Group("/auth")

	// TODO: rate limit `/login` per client IP
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, issuer.jwtMiddleware())
	ag.GET("/me", api.me, issuer.jwtMiddleware(), activeAdminMiddleware(svc))
}

type LoginResponse struct {
	Token string      `json:"token"`
	Admin admin.Admin `json:"admin"`
}

func (api *authApi) login(ctx echo.Context) error {
	var data admin.LoginCredentials
	if err := bindBody(ctx, &data); err != nil {
		return errors.Wrap(err, "binding to LoginCredentials")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	adm, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case admin.ErrAuthenticationFailed:
			return errAuthenticationFailed
		case admin.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.issuer.generateToken(api.issuer.claims(adm))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ok(ctx, LoginResponse{Token: token, Admin: adm}, "logged in")
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := api.issuer.refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	adm, err := getContextAdmin(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context admin")
	}
	return ok(ctx, LoginResponse{Token: token, Admin: adm})
}

func (api *authApi) me(ctx echo.Context) error {
	adm, err := getContextAdmin(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context admin")
	}
	return ok(ctx, adm)
}
