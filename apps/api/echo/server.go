package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/device"
	"github.com/easyspeak/console/core/invite"
	"github.com/easyspeak/console/core/library"
	"github.com/easyspeak/console/core/notification"
	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/school"
	"github.com/easyspeak/console/core/staff"
	"github.com/easyspeak/console/core/student"
)

type (
	ServerDeps struct {
		Conf   *core.Config
		Logger core.Logger

		StaffSvc        *staff.Service
		InviteSvc       *invite.Service
		OrgSvc          *org.Service
		SchoolSvc       *school.Service
		StudentSvc      *student.Service
		DeviceSvc       *device.Service
		AuditSvc        *audit.Service
		NotificationSvc *notification.Service
		LibrarySvc      *library.Service

		Validate   *validator.Validate
		Translator ut.Translator

		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	auth := jwtAuth{conf: conf}
	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(auth.middlewareConfig())

	registerAuthAPI(v1, jwt, auth, s.deps)
	registerStaffAPI(v1, jwt, s.deps)
	registerInviteAPI(v1, jwt, s.deps)
	registerOrgAPI(v1, jwt, s.deps)
	registerSchoolAPI(v1, jwt, s.deps)
	registerStudentAPI(v1, jwt, s.deps)
	registerDeviceAPI(v1, s.deps)
	registerAuditAPI(v1, jwt, s.deps)
	registerNotificationAPI(v1, jwt, s.deps)
	registerLibraryAPI(v1, jwt, s.deps)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

func (s *server) Errors() <-chan error            { return s.errs }
func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) signalShutdown() { s.shutdown <- syscall.SIGTERM }

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to EasySpeak Console API!")
}
