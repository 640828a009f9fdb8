package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jsacademy/console/core/admin"
)

const (
	contextClaimsKey = "claims"
	contextAdminKey  = "admin"
	tokenAudience    = "console"
)

var signingMethod = jwt.SigningMethodHS256

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
}

func (c Claims) adminID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// admin returns the account described by the claims, as reported to the logger.
func (c Claims) admin() admin.Admin {
	id, _ := c.adminID()
	return admin.Admin{ID: id, Username: c.Username, Email: c.Email}
}

// tokenIssuer signs and checks the admin tokens.
type tokenIssuer struct {
	issuer        string
	key           []byte
	expiry        time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

func (ti tokenIssuer) claims(adm admin.Admin, origIat ...int64) *Claims {
	now := ti.now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   strconv.FormatInt(adm.ID, 10),
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Username:     adm.Username,
		Email:        adm.Email,
	}
}

// generateToken generates a signed JWT token string representing the Claims.
func (ti tokenIssuer) generateToken(claims *Claims) (string, error) {
	ss, err := jwt.NewWithClaims(signingMethod, claims).SignedString(ti.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti tokenIssuer) parse(raw string) (*Claims, error) {
	claims := new(Claims)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{signingMethod.Alg()}))
	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return ti.key, nil
	})
	if err != nil || !token.Valid || !claims.VerifyAudience(tokenAudience, true) {
		return nil, errInvalidToken
	}
	return claims, nil
}

// jwtMiddleware authenticates the bearer token and stores its claims in the request context.
func (ti tokenIssuer) jwtMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			raw := strings.TrimPrefix(auth, "Bearer ")
			if auth == "" || raw == auth || raw == "" {
				return errUnauthorized
			}
			claims, err := ti.parse(raw)
			if err != nil {
				return err
			}
			ctx.Set(contextClaimsKey, *claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}

// getContextAdmin loads the authenticated admin once per request.
func getContextAdmin(ctx echo.Context, svc admin.Service) (admin.Admin, error) {
	if adm, ok := ctx.Get(contextAdminKey).(admin.Admin); ok {
		return adm, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return admin.Admin{}, err
	}
	id, err := claims.adminID()
	if err != nil {
		return admin.Admin{}, errInvalidToken
	}
	adm, err := svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == admin.ErrNotFound {
			return admin.Admin{}, errInvalidToken
		}
		return admin.Admin{}, errors.Wrap(err, "finding admin by ID")
	}
	ctx.Set(contextAdminKey, adm)
	return adm, nil
}

// activeAdminMiddleware rejects tokens of deactivated or deleted accounts.
func activeAdminMiddleware(svc admin.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			adm, err := getContextAdmin(ctx, svc)
			if err != nil {
				return err
			}
			if !adm.IsActive {
				return errAccountDeactivated
			}
			return next(ctx)
		}
	}
}

func (ti tokenIssuer) refreshToken(ctx echo.Context, svc admin.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	adm, err := getContextAdmin(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context admin")
	}
	if !adm.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshExpiry)
	if ti.now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := ti.generateToken(ti.claims(adm, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
