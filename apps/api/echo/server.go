package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/ischoolgo/core"
	"github.com/trezcool/ischoolgo/core/ai"
	"github.com/trezcool/ischoolgo/core/attendance"
	"github.com/trezcool/ischoolgo/core/group"
	"github.com/trezcool/ischoolgo/core/payment"
	"github.com/trezcool/ischoolgo/core/stats"
	"github.com/trezcool/ischoolgo/core/student"
	"github.com/trezcool/ischoolgo/core/user"
)

type Deps struct {
	Conf          *core.Config
	Logger        core.Logger
	Translator    ut.Translator
	Tokens        *TokenIssuer // built from Conf when nil
	UserSvc       *user.Service
	StudentSvc    *student.Service
	GroupSvc      *group.Service
	AttendanceSvc *attendance.Service
	PaymentSvc    *payment.Service
	StatsSvc      *stats.Service
	AISvc         *ai.Service
}

type Server struct {
	addr     string
	app      *echo.Echo
	deps     *Deps
	shutdown chan os.Signal
	errors   chan error
}

// NewServer sets up the API. `shutdown` receives the OS signals that stop the server; a channel is made when nil.
func NewServer(addr string, shutdown chan os.Signal, deps *Deps) *Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
	}
	if deps.Tokens == nil {
		deps.Tokens = NewTokenIssuer(deps.Conf)
	}
	s := &Server{
		addr:     addr,
		app:      echo.New(),
		deps:     deps,
		shutdown: shutdown,
		errors:   make(chan error, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	auth := authMiddleware(s.deps.Tokens, s.deps.UserSvc)

	registerUserAPI(v1, auth, s.deps.Tokens, s.deps.UserSvc)
	registerStudentAPI(v1, auth, s.deps.StudentSvc, s.deps.AttendanceSvc)
	registerGroupAPI(v1, auth, s.deps.GroupSvc, s.deps.AttendanceSvc)
	registerAttendanceAPI(v1, auth, s.deps.AttendanceSvc)
	registerPaymentAPI(v1, auth, s.deps.PaymentSvc)
	registerDashboardAPI(v1, auth, s.deps.StatsSvc)
	registerAIAPI(v1, auth, s.deps.AISvc)
}

// Start listens on the server address. Listener failures are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
