package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Run one clustering pass over recent embeddings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, _, err := a.runClustering(context.Background())
		if err != nil {
			return fmt.Errorf("clustering failed: %w", err)
		}
		if res.Skipped {
			fmt.Printf("Clustering skipped: %s (%d candidates)\n", res.Reason, res.Candidates)
			return nil
		}

		fmt.Printf("Clustered %d events into %d clusters (k=%d, namespace %s)\n\n",
			res.Candidates, res.Clusters, res.K, res.Namespace)

		clusters, err := a.clusters.Store().List(context.Background(), res.Namespace)
		if err != nil {
			return err
		}
		for _, c := range clusters {
			fmt.Printf("  %s  %s (%d events)\n", c.ID, c.Label, c.MemberCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clusterCmd)
}
