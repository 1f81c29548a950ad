package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zignal/zignalapi/internal/config"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Inspect configuration variables",
}

var envCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate every configuration variable",
	Long:  `Prints each variable with its status and exits non-zero when any variable is invalid.`,
	// The root hook fails on invalid configuration, which is what this
	// command reports on.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return readConfigFile()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := config.WriteReport(cmd.OutOrStdout(), config.Check(viper.GetViper()))
		if failed > 0 {
			return fmt.Errorf("%d configuration variable(s) invalid", failed)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
		return nil
	},
}

func init() {
	envCmd.AddCommand(envCheckCmd)
	rootCmd.AddCommand(envCmd)
}
