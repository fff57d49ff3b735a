package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/easyspeak/console/apps/api/echo"
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
	emailsvc "github.com/easyspeak/console/services/email"
	logsvc "github.com/easyspeak/console/services/logger"
	"github.com/easyspeak/console/storage/database"
	sqlxrepos "github.com/easyspeak/console/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err))
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close")
		}
	}()

	// prune clock: shared via redis when configured, per-process otherwise
	var pruneClock audit.PruneClock
	if conf.Redis.Addr != "" {
		pruneClock = audit.NewRedisPruneClock(redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		}))
	} else {
		pruneClock = audit.NewLocalPruneClock()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	auditSvc := audit.NewService(sqlxrepos.NewAuditRepository(db), pruneClock, conf, logger)
	orgSvc := org.NewService(sqlxrepos.NewOrgRepository(db), sqlxrepos.NewWipeRepository(db), auditSvc, conf, logger)
	inviteSvc := invite.NewService(sqlxrepos.NewInviteRepository(db), orgSvc, mailSvc, auditSvc, conf)
	staffSvc := staff.NewService(sqlxrepos.NewStaffRepository(db), inviteSvc, auditSvc, logger)
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db), auditSvc)
	studentSvc := student.NewService(sqlxrepos.NewStudentRepository(db), orgSvc, auditSvc)
	deviceSvc := device.NewService(sqlxrepos.NewPairingRepository(db), studentSvc, auditSvc, conf, logger)
	notificationSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), auditSvc)
	librarySvc := library.NewService(sqlxrepos.NewLibraryRepository(db), auditSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	staff.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error("debug server closed", err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			StaffSvc:        staffSvc,
			InviteSvc:       inviteSvc,
			OrgSvc:          orgSvc,
			SchoolSvc:       schoolSvc,
			StudentSvc:      studentSvc,
			DeviceSvc:       deviceSvc,
			AuditSvc:        auditSvc,
			NotificationSvc: notificationSvc,
			LibrarySvc:      librarySvc,
			Validate:        validate,
			Translator:      translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err))

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error("could not stop server gracefully", err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err))
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
