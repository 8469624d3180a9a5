package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/ischoolgo/apps/api/echo"
	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/ai"
	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/group"
	"github.com/trezcool/ischoolgo/core/payment"
	"github.com/trezcool/ischoolgo/core/stats"
	"github.com/trezcool/ischoolgo/core/student"
	"github.com/trezcool/ischoolgo/core/user"
	emailsvc "github.com/trezcool/ischoolgo/services/email"
	"github.com/trezcool/ischoolgo/services/genai"
	logsvc "github.com/trezcool/ischoolgo/services/logger"
	"github.com/trezcool/ischoolgo/storage/database"
	sqlxrepos "github.com/trezcool/ischoolgo/storage/database/sqlx"
)

const dbSetupTimeout = 30 * time.Second

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	Translator    ut.Translator
	Tokens        *echoapi.TokenIssuer
	UserSvc       *user.Service
	StudentSvc    *student.Service
	GroupSvc      *group.Service
	AttendanceSvc *attendance.Service
	PaymentSvc    *payment.Service
	StatsSvc      *stats.Service
	AISvc         *ai.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(ctx, db); err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(
		p.Conf.Server.Host,
		nil, /* shutdown */
		&echoapi.Deps{
			Conf:          p.Conf,
			Logger:        p.Logger,
			Translator:    p.Translator,
			Tokens:        p.Tokens,
			UserSvc:       p.UserSvc,
			StudentSvc:    p.StudentSvc,
			GroupSvc:      p.GroupSvc,
			AttendanceSvc: p.AttendanceSvc,
			PaymentSvc:    p.PaymentSvc,
			StatsSvc:      p.StatsSvc,
			AISvc:         p.AISvc,
		},
	)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(genai.New))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(sqlxrepos.NewGroupRepository, dig.As(new(group.Repository))))
	must(c.Provide(sqlxrepos.NewAttendanceRepository, dig.As(new(attendance.Repository))))
	must(c.Provide(sqlxrepos.NewPaymentRepository, dig.As(new(payment.Repository))))
	must(c.Provide(sqlxrepos.NewStatsRepository, dig.As(new(stats.Repository))))
	must(c.Provide(sqlxrepos.NewFactsRepository, dig.As(new(ai.Repository))))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(group.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(payment.NewService))
	must(c.Provide(stats.NewService))
	must(c.Provide(ai.NewService))

	must(c.Provide(echoapi.NewTokenIssuer))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
