package main

import (
	"log"
	"os"

	"github.com/trezcool/coursegen/core"
	"github.com/trezcool/coursegen/core/ledger"
	logsvc "github.com/trezcool/coursegen/services/logger"
	redemptionsvc "github.com/trezcool/coursegen/services/redemption"
	"github.com/trezcool/coursegen/storage/database"
	sqlxrepos "github.com/trezcool/coursegen/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	appLogger := logsvc.NewRollbarLogger(logger, conf)
	appLogger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{
		db:        db,
		ledgerSvc: ledger.NewService(sqlxrepos.NewLedgerRepository(db), redemptionsvc.NewConsoleGateway(), appLogger, conf),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
