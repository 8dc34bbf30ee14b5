package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show contact store statistics",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s, err := openStack(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		stats, err := s.store.GetStatistics(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get statistics: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Contacts: %s\n", formatNumber(stats.TotalContacts))
		printGrouped("  by type", stats.ContactsByType)
		printGrouped("  by status", stats.ContactsByStatus)

		fmt.Printf("Detection results: %s (%s pending)\n",
			formatNumber(stats.DetectionResults), formatNumber(stats.PendingDetections))
		fmt.Printf("Pending reviews: %s\n", formatNumber(stats.PendingReviews))
		fmt.Printf("Merge operations: %s\n", formatNumber(stats.MergeOperations))
		printGrouped("  by status", stats.MergesByStatus)

		fmt.Printf("\nThresholds: %s\n", s.detector.Thresholds())
	},
}

func printGrouped(label string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s %s: %s\n", label, k, formatNumber(counts[k]))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
