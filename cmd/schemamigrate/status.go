package main

import (
	"context"
	"fmt"

	"github.com/grantwise/schemamigrate"
	"github.com/grantwise/schemamigrate/pkg/status"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations (read-only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := loadRunContext()
		if err != nil {
			return err
		}

		// Read-only: connect without bootstrapping the ledger table.
		l, err := schemamigrate.ConnectLedger(rc.LedgerCfg)
		if err != nil {
			return err
		}
		defer func() { _ = l.Close() }()

		report, err := status.Collect(context.Background(), rc.Dir, l)
		if err != nil {
			return err
		}
		fmt.Print(report.FormatColorized(rc.Doc.ColorEnabled()))

		// Drift is a fatal condition even for a read-only run: the exit
		// code must tell deploy tooling that apply would refuse to proceed.
		return report.CheckDrift()
	},
}
