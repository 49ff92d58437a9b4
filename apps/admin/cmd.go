package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/coursegen/core/ledger"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db        *sql.DB
	ledgerSvc *ledger.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate up|down|status [ARGS...] - run database migrations")
	fmt.Println("  adjustpoints -user USER_ID -amount AMOUNT [-note NOTE] - append a manual adjustment entry")
	fmt.Println("  balance -user USER_ID - print a user's points balance")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	adjustCmd := flag.NewFlagSet("adjustpoints", flag.ExitOnError)
	adjustUser := adjustCmd.String("user", "", "The user's external ID.")
	adjustAmount := adjustCmd.Int("amount", 0, "Points delta; may be negative.")
	adjustNote := adjustCmd.String("note", "", "Reason for the adjustment.")

	balanceCmd := flag.NewFlagSet("balance", flag.ExitOnError)
	balanceUser := balanceCmd.String("user", "", "The user's external ID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adjustpoints":
		if err := adjustCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *adjustUser == "" || *adjustAmount == 0 {
			adjustCmd.Usage()
			return errHelp
		}
		return cli.adjustPoints(*adjustUser, *adjustAmount, *adjustNote)
	case "balance":
		if err := balanceCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *balanceUser == "" {
			balanceCmd.Usage()
			return errHelp
		}
		return cli.printBalance(*balanceUser)
	default:
		cli.printUsage()
		return errHelp
	}
}
