package main

import (
	"context"
	"fmt"

	"github.com/grantwise/schemamigrate"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Run all pending migrations in ascending version order",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		results, applyErr := m.Apply(context.Background())
		// Partial progress is reported even when the run aborts so an
		// operator can see which versions committed.
		for _, r := range results {
			fmt.Printf("applied %d %s (%s)\n", r.Version, r.Name, r.Duration.Round(timeRound))
		}
		if applyErr != nil {
			return applyErr
		}
		if len(results) == 0 {
			fmt.Println("nothing to apply")
		}
		return nil
	},
}
