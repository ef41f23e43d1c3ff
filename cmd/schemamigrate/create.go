package main

import (
	"fmt"

	"github.com/grantwise/schemamigrate"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new migration file skeleton with the next version number",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := loadRunContext()
		if err != nil {
			return err
		}

		name := "migration"
		if len(args) > 0 {
			name = args[0]
		}

		p, err := schemamigrate.CreateMigration(schemamigrate.CreateOptions{Dir: rc.Dir, Name: name})
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}
