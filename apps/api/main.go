package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // /debug/pprof on the debug server
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/jsacademy/console/apps/api/echo"
	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/admin"
	"github.com/jsacademy/console/core/analytics"
	"github.com/jsacademy/console/core/content"
	"github.com/jsacademy/console/core/progress"
	"github.com/jsacademy/console/core/student"
	appfs "github.com/jsacademy/console/fs"
	emailsvc "github.com/jsacademy/console/services/email"
	logsvc "github.com/jsacademy/console/services/logger"
	uploadsvc "github.com/jsacademy/console/services/upload"
	"github.com/jsacademy/console/storage/database"
	sqlxrepos "github.com/jsacademy/console/storage/database/sqlx"
)

// TODO: APM/Tracing
func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	// set up repositories
	txr := core.NewTransactor(db)
	adminRepo := sqlxrepos.NewAdminRepository(db)
	contentRepo := sqlxrepos.NewContentRepository(db)
	studentRepo := sqlxrepos.NewStudentRepository(db)
	progressRepo := sqlxrepos.NewProgressRepository(db)
	analyticsRepo := sqlxrepos.NewAnalyticsRepository(db)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	content.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, logger, conf.Debug)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf.AppName, conf.DefaultFromEmail, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	store, err := uploadsvc.NewStore(context.Background(), conf.Uploads)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up upload store: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	if conf.Server.DebugHost != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Options{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		AdminSvc:     admin.NewService(adminRepo),
		ContentSvc:   content.NewService(txr, contentRepo),
		StudentSvc:   student.NewService(studentRepo, validate, mailSvc),
		ProgressSvc:  progress.NewService(txr, progressRepo, contentRepo, studentRepo),
		AnalyticsSvc: analytics.NewService(analyticsRepo, conf.Analytics.DefaultRangeDays),
		UploadSvc:    uploadsvc.NewService(store, conf.Uploads.MaxSize, conf.Uploads.AllowedTypes),
	})

	if err = server.Start(); err != nil {
		logger.Fatal(fmt.Sprintf("starting server: %v", err), err)
	}

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}
