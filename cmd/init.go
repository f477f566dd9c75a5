package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/eventmind/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize eventmind configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose providers and models and writes the config file (.eventmind.yml by default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.RunWizard(cfgFile); err != nil {
			return err
		}
		fmt.Println("Next: run `eventmind serve` and POST event envelopes to /api/events.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
