package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/jsacademy/console/core"
	"github.com/jsacademy/console/core/admin"
	"github.com/jsacademy/console/core/student"
	appfs "github.com/jsacademy/console/fs"
	emailsvc "github.com/jsacademy/console/services/email"
	logsvc "github.com/jsacademy/console/services/logger"
	"github.com/jsacademy/console/storage/database"
	sqlxrepos "github.com/jsacademy/console/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	core.ParseEmailTemplates(appfs.FS, logger, conf.Debug)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		adminSvc: admin.NewService(sqlxrepos.NewAdminRepository(db)),
		studentSvc: student.NewService(
			sqlxrepos.NewStudentRepository(db),
			validate,
			emailsvc.NewConsoleService(conf.AppName, conf.DefaultFromEmail, logger),
		),
		validate: validate,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}
