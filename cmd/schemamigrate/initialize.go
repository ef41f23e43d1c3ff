package main

import (
	"fmt"

	"github.com/grantwise/schemamigrate"
	"github.com/spf13/cobra"
)

var initializeCmd = &cobra.Command{
	Use:   "initialize",
	Short: "Ensure the ledger table exists (no-op if present)",
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := loadRunContext()
		if err != nil {
			return err
		}
		l, err := schemamigrate.OpenLedger(rc.LedgerCfg)
		if err != nil {
			return err
		}
		defer func() { _ = l.Close() }()

		fmt.Printf("ledger ready (driver=%s table=%s)\n", rc.LedgerCfg.Driver, l.Table())
		return nil
	},
}
