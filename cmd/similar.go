package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var similarCmd = &cobra.Command{
	Use:   "similar [event-id]",
	Short: "Find recent events similar to a stored event",
	Long:  `Ranks recent events against the given event's embedding and records a link for every match at or above the link threshold.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		matches, err := a.semantic.FindSimilar(context.Background(), args[0], topK)
		if err != nil {
			return fmt.Errorf("similarity lookup failed: %w", err)
		}
		return printMatches(matches, jsonOutput)
	},
}

func init() {
	similarCmd.Flags().Int("top-k", 0, "maximum number of results (default from config)")
	similarCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(similarCmd)
}
