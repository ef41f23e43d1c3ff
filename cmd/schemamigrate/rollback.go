package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/grantwise/schemamigrate"
	"github.com/spf13/cobra"
)

// timeRound trims duration output in CLI messages.
const timeRound = time.Millisecond

var rollbackCmd = &cobra.Command{
	Use:   "rollback [n]",
	Short: "Undo the n most recently applied migrations (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("rollback steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}

		rc, err := loadRunContext()
		if err != nil {
			return err
		}
		timeout, err := timeoutFromFlags()
		if err != nil {
			return err
		}

		l, err := schemamigrate.OpenLedger(rc.LedgerCfg)
		if err != nil {
			return err
		}
		defer func() { _ = l.Close() }()

		m := &schemamigrate.Migrator{Dir: rc.Dir, Ledger: l, Timeout: timeout}
		results, rollbackErr := m.Rollback(context.Background(), steps)
		for _, r := range results {
			fmt.Printf("rolled back %d %s\n", r.Version, r.Name)
		}
		if rollbackErr != nil {
			return rollbackErr
		}
		if len(results) == 0 {
			fmt.Println("nothing to roll back")
		}
		return nil
	},
}
