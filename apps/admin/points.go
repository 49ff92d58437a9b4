package main

import (
	"context"
	"fmt"

	"github.com/trezcool/coursegen/core"
)

// adjustPoints appends a manual ADJUSTMENT entry to the user's ledger.
// A positive amount also lifts a freeze once the balance is whole again.
func (cli *commandLine) adjustPoints(userID string, amount int, note string) error {
	ctx := context.Background()
	userID = core.CleanString(userID)

	entry, err := cli.ledgerSvc.Adjust(ctx, userID, amount, note)
	if err != nil {
		return err
	}
	fmt.Printf("adjustment %s recorded: user=%s amount=%d\n", entry.ID, entry.UserID, entry.Amount)
	return cli.printBalance(userID)
}

func (cli *commandLine) printBalance(userID string) error {
	bal, err := cli.ledgerSvc.GetBalance(context.Background(), core.CleanString(userID))
	if err != nil {
		return err
	}
	fmt.Printf("balance: user=%s points=%d computed_at=%s\n", bal.UserID, bal.Points, bal.ComputedAt)
	return nil
}
