package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/admin"
	"github.com/jsacademy/console/core/analytics"
	"github.com/jsacademy/console/core/content"
	"github.com/jsacademy/console/core/progress"
	"github.com/jsacademy/console/core/student"
	uploadsvc "github.com/jsacademy/console/services/upload"
)

// requests bodies are small JSON documents, except uploads and CSV imports
const bodyLimit = "8M"

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		AdminSvc     admin.Service
		ContentSvc   content.Service
		StudentSvc   student.Service
		ProgressSvc  progress.Service
		AnalyticsSvc analytics.Service
		UploadSvc    uploadsvc.Service
	}

	Server interface {
		http.Handler
		Start() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(ctx context.Context) error
		Close() error
		GenerateToken(adm admin.Admin) (string, error)
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		issuer   tokenIssuer
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
		issuer: tokenIssuer{
			issuer:        opts.Conf.AppName,
			key:           []byte(opts.Conf.SecretKey),
			expiry:        opts.Conf.Server.JWTExpirationDelta,
			refreshExpiry: opts.Conf.Server.JWTRefreshExpirationDelta,
			now:           func() time.Time { return time.Now().UTC() },
		},
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.AllowedOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: conf.Server.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	s.app.Use(middleware.BodyLimit(bodyLimit))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	}

	s.app.GET("/", s.home)
	if up := conf.Uploads; (up.Backend == "" || up.Backend == "local") && strings.HasPrefix(up.BaseURL, "/") {
		s.app.Static(up.BaseURL, up.Dir)
	}

	v1 := s.app.Group("/v1")
	authed := []echo.MiddlewareFunc{s.issuer.jwtMiddleware(), activeAdminMiddleware(s.opts.AdminSvc)}

	registerAuthAPI(v1, s.issuer, s.opts.AdminSvc, s.opts.Validate)

	g := v1.Group("", authed...)
	registerContentAPI(g, s.opts.ContentSvc, s.opts.Validate)
	registerStudentAPI(g, s.opts.StudentSvc, s.opts.ProgressSvc, s.opts.Validate)
	registerProgressAPI(g, s.opts.ProgressSvc, s.opts.Validate)
	registerAnalyticsAPI(g, s.opts.AnalyticsSvc)
	registerUploadAPI(g, s.opts.UploadSvc)
}

// Start listens on the configured address. Errors other than a closed server are sent to Errors();
// SIGINT and SIGTERM are relayed to ShutdownSignal().
func (s *server) Start() error {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
			s.errors <- err
		}
	}()
	return nil
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- os.Interrupt:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// GenerateToken issues a fresh token for adm.
func (s *server) GenerateToken(adm admin.Admin) (string, error) {
	return s.issuer.generateToken(s.issuer.claims(adm))
}

func (s *server) home(ctx echo.Context) error {
	return ok(ctx, map[string]string{"name": s.opts.Conf.AppName, "build": s.opts.Conf.Build})
}
