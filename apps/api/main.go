package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/coursegen/apps/api/echo"
	"github.com/trezcool/coursegen/core"
	"github.com/trezcool/coursegen/core/course"
	"github.com/trezcool/coursegen/core/ledger"
	emailsvc "github.com/trezcool/coursegen/services/email"
	logsvc "github.com/trezcool/coursegen/services/logger"
	redemptionsvc "github.com/trezcool/coursegen/services/redemption"
	textgensvc "github.com/trezcool/coursegen/services/textgen"
	"github.com/trezcool/coursegen/storage/database"
	inmemdb "github.com/trezcool/coursegen/storage/database/inmem"
	sqlxrepos "github.com/trezcool/coursegen/storage/database/sqlx"
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

	// set up repositories
	var (
		courseRepo course.Repository
		ledgerRepo ledger.Repository
	)
	// fall back to the in-memory store in DEV mode when no DB user is configured
	if conf.Debug && conf.Database.User == "" {
		db := inmemdb.Open()
		courseRepo = inmemdb.NewCourseRepository(db)
		ledgerRepo = inmemdb.NewLedgerRepository(db)
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		courseRepo = sqlxrepos.NewCourseRepository(db)
		ledgerRepo = sqlxrepos.NewLedgerRepository(db)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var gen core.TextGenerator
	if conf.Anthropic.ApiKey != "" {
		gen = textgensvc.NewAnthropicService(conf)
	} else {
		gen = textgensvc.NewDummyService()
	}

	var gateway core.RedemptionGateway
	if conf.Redemption.BaseURL != "" {
		gateway = redemptionsvc.NewHTTPGateway(conf)
	} else {
		gateway = redemptionsvc.NewConsoleGateway()
	}

	ledgerSvc := ledger.NewService(ledgerRepo, gateway, logger, conf)
	courseSvc := course.NewService(courseRepo, gen, mailSvc, logger, conf, ledgerSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:      conf,
			Logger:    logger,
			CourseSvc: courseSvc,
			LedgerSvc: ledgerSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
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
