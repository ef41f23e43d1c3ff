package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "schemamigrate",
	Short: "Apply, roll back, and inspect versioned SQL schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	// Defaults
	v := viper.GetViper()
	v.SetDefault("config", "./config/config.yaml")
	v.SetDefault("timeout", "")

	// Environment variables support: SCHEMAMIGRATE_CONFIG, ...
	v.SetEnvPrefix("SCHEMAMIGRATE")
	v.AutomaticEnv()

	// Bind flags via Cobra and then bind to Viper
	rootCmd.PersistentFlags().String("config", v.GetString("config"), "path to a config yaml")
	applyCmd.Flags().String("timeout", v.GetString("timeout"), "per-migration transaction timeout (e.g. 30s, empty = unbounded)")
	rollbackCmd.Flags().String("timeout", v.GetString("timeout"), "per-migration transaction timeout (e.g. 30s, empty = unbounded)")

	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("timeout", applyCmd.Flags().Lookup("timeout"))
	_ = v.BindPFlag("timeout", rollbackCmd.Flags().Lookup("timeout"))

	rootCmd.AddCommand(initializeCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(createCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.LogFatalError(err, "command execution failed")
	}
}
