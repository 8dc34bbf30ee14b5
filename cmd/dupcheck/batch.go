package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crmkit/dupcheck/internal/batch"
	"github.com/crmkit/dupcheck/internal/types"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run duplicate detection across the contact store",
	Long: `Score a bounded window of contacts (oldest first) against the full
population. Conclusive matches are merged when --auto-merge is set;
ambiguous matches are queued for review.

Examples:
  dupcheck batch --limit 500 --dry-run     # Preview without writing
  dupcheck batch --auto-merge              # Merge conclusive matches
  dupcheck batch --population leads        # Leads only
  dupcheck batch --rate 50                 # Throttle to 50 records/sec`,
	Run: func(cmd *cobra.Command, args []string) {
		population, _ := cmd.Flags().GetString("population")
		limit, _ := cmd.Flags().GetInt("limit")
		autoMerge, _ := cmd.Flags().GetBool("auto-merge")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		workers, _ := cmd.Flags().GetInt("workers")
		ratePerSec, _ := cmd.Flags().GetFloat64("rate")
		format, _ := cmd.Flags().GetString("format")

		cfg := batch.DefaultConfig()
		cfg.Limit = limit
		cfg.DryRun = dryRun
		cfg.RatePerSec = ratePerSec
		if workers > 0 {
			cfg.Workers = workers
		}
		switch population {
		case "":
		case "leads":
			cfg.Population = types.TypeLead
		case "customers":
			cfg.Population = types.TypeCustomer
		default:
			fmt.Fprintf(os.Stderr, "Error: population must be 'leads' or 'customers' (got %q)\n", population)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		s, err := openStack(ctx, autoMerge)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		runner, err := batch.NewRunner(s.store, s.detector, s.orchestrator, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if dryRun {
			fmt.Printf("%s\n\n", color.YellowString("DRY RUN MODE - Nothing will be persisted"))
		}

		summary, err := runner.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: batch run failed: %v\n", err)
			os.Exit(1)
		}

		if format == "yaml" {
			out, err := yaml.Marshal(summary)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to encode summary: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(string(out))
			return
		}

		printSummary(summary, dryRun)
	},
}

func printSummary(summary *batch.Summary, dryRun bool) {
	green := color.New(color.FgGreen).SprintFunc()

	if dryRun {
		fmt.Printf("Dry run complete (no changes made)\n")
	} else {
		fmt.Printf("%s Batch run complete\n", green("✓"))
	}
	fmt.Printf("  Records processed:  %s\n", formatNumber(summary.Processed))
	fmt.Printf("  Duplicates found:   %s\n", formatNumber(summary.DuplicatesFound))
	fmt.Printf("  Auto-merged:        %s\n", formatNumber(summary.AutoMerged))
	fmt.Printf("  Flagged for review: %s\n", formatNumber(summary.FlaggedForReview))
	if summary.MergeFailures > 0 {
		fmt.Printf("  %s     %s\n", color.RedString("Merge failures:"), formatNumber(summary.MergeFailures))
	}
	fmt.Printf("  Time taken:         %s\n", summary.Elapsed.Round(time.Millisecond))
}

func init() {
	batchCmd.Flags().String("population", "", "restrict the window to 'leads' or 'customers'")
	batchCmd.Flags().Int("limit", 0, "max records to process (0 = all)")
	batchCmd.Flags().Bool("auto-merge", false, "execute merges for conclusive matches")
	batchCmd.Flags().Bool("dry-run", false, "detect and report without persisting anything")
	batchCmd.Flags().Int("workers", 0, "scoring worker pool size (default 4)")
	batchCmd.Flags().Float64("rate", 0, "max records scored per second (0 = unlimited)")
	batchCmd.Flags().String("format", "", "output format: yaml for machine-readable summary")

	rootCmd.AddCommand(batchCmd)
}
