package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/trezcool/coursegen/core"
	"github.com/trezcool/coursegen/core/ledger"
	redemptionsvc "github.com/trezcool/coursegen/services/redemption"
	inmemdb "github.com/trezcool/coursegen/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Warn(string, ...interface{})         {}
func (nopLogger) Error(string, ...interface{})         {}
func (nopLogger) Fatal(string, ...interface{})         {}

var ledgerRepo ledger.Repository

func setup() *commandLine {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	ledgerRepo = inmemdb.NewLedgerRepository(inmemdb.Open())
	return &commandLine{
		ledgerSvc: ledger.NewService(ledgerRepo, redemptionsvc.NewConsoleGateway(), nopLogger{}, conf),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup()

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_adjustPoints(t *testing.T) {
	cli := setup()

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adjustpoints"}, wantErr: errHelp},
		{name: "user but no amount", args: []string{"adjustpoints", "-user", "usr1"}, wantErr: errHelp},
		{name: "credit", args: []string{"adjustpoints", "-user", "usr1", "-amount", "25", "-note", "promo"}},
		{name: "debit", args: []string{"adjustpoints", "-user", "usr1", "-amount", "-5"}},
		{name: "balance", args: []string{"balance", "-user", "usr1"}},
		{name: "balance no user", args: []string{"balance"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	bal, err := cli.ledgerSvc.GetBalance(context.Background(), "usr1")
	if err != nil {
		t.Fatalf("GetBalance() failed: %v", err)
	}
	if bal.Points != 20 {
		t.Errorf("points = %d; want 20", bal.Points)
	}
}
