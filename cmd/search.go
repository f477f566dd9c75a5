package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/eventmind/internal/event"
	"github.com/openclaw/eventmind/internal/semantic"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Semantically search stored events",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Int("top-k", 0, "maximum number of results (default from config)")
	searchCmd.Flags().String("source", "", "only events from this source")
	searchCmd.Flags().Int("days-back", 0, "only events from the last N days (default from config)")
	searchCmd.Flags().Float64("min-similarity", -2, "minimum similarity (default from config)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	topK, _ := cmd.Flags().GetInt("top-k")
	source, _ := cmd.Flags().GetString("source")
	daysBack, _ := cmd.Flags().GetInt("days-back")
	minSim, _ := cmd.Flags().GetFloat64("min-similarity")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	q := semantic.Query{
		Text:     strings.Join(args, " "),
		TopK:     topK,
		Source:   source,
		DaysBack: daysBack,
	}
	if cmd.Flags().Changed("min-similarity") {
		q.MinSimilarity = &minSim
	}

	matches, err := a.semantic.Search(context.Background(), q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return printMatches(matches, jsonOutput)
}

func printMatches(matches []semantic.Match, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if len(matches) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results:\n\n", len(matches))
	for i, m := range matches {
		fmt.Printf("  %d. [%.1f%%] %s (%s, %s)\n", i+1, m.Similarity*100, m.EventID, m.Source,
			m.Timestamp.Format("2006-01-02"))
		fmt.Printf("     %s\n\n", event.Truncate(m.Preview, 120))
	}
	return nil
}
