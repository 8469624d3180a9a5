package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/user"
	emailsvc "github.com/trezcool/ischoolgo/services/email"
	logsvc "github.com/trezcool/ischoolgo/services/logger"
	"github.com/trezcool/ischoolgo/storage/database"
	sqlxrepos "github.com/trezcool/ischoolgo/storage/database/sqlx"
)

var logger *logsvc.RollbarLogger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(database.Ping(context.Background(), db))

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	usrRepo := sqlxrepos.NewUserRepository(db)

	// start CLI
	cli := commandLine{
		db:         db,
		usrRepo:    usrRepo,
		usrSvc:     user.NewService(db, usrRepo, emailsvc.NewConsoleService(conf, logger), validate, conf),
		validate:   validate,
		translator: translator,
	}
	code := 0
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed: " + cli.describe(err))
		}
		code = 1
	}
	_ = db.Close()
	os.Exit(code)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
