package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crmkit/dupcheck/internal/config"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete aged detection history per retention policy",
	Long: `Delete resolved detection results, completed review entries, and
terminal merge operations older than the retention period. Active
contacts and anything still pending are never touched.

Configuration comes from DUPCHECK_RETENTION_* environment variables;
flags override. Failed merges are kept regardless of age unless
--keep-failed=false.

Examples:
  dupcheck cleanup                     # Sweep with configured retention
  dupcheck cleanup --days 30           # Override the retention period
  dupcheck cleanup --dry-run           # Count without deleting
  dupcheck cleanup --vacuum            # Reclaim disk space afterwards`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		retentionCfg, err := config.RetentionConfigFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load retention configuration: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("days") {
			retentionCfg.RetentionDays, _ = cmd.Flags().GetInt("days")
		}
		if cmd.Flags().Changed("keep-failed") {
			retentionCfg.KeepFailedMerges, _ = cmd.Flags().GetBool("keep-failed")
		}
		if cmd.Flags().Changed("vacuum") {
			retentionCfg.Vacuum, _ = cmd.Flags().GetBool("vacuum")
		}
		if err := retentionCfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid retention configuration: %v\n", err)
			os.Exit(1)
		}

		s, err := openStack(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		fmt.Printf("Retention policy:\n")
		fmt.Printf("  Retention period:  %d days\n", retentionCfg.RetentionDays)
		fmt.Printf("  Keep failed merges: %t\n", retentionCfg.KeepFailedMerges)
		fmt.Printf("  Batch size:        %d rows/statement\n", retentionCfg.CleanupBatchSize)
		fmt.Println()

		if dryRun {
			fmt.Printf("%s\n\n", color.YellowString("DRY RUN MODE - Nothing will be deleted"))

			preview, err := s.store.PreviewCleanup(ctx, retentionCfg.RetentionDays, retentionCfg.KeepFailedMerges)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: preview failed: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("Would delete:\n")
			fmt.Printf("  Detection results: %s\n", formatNumber(preview.DetectionResults))
			fmt.Printf("  Review entries:    %s\n", formatNumber(preview.ReviewEntries))
			fmt.Printf("  Merge operations:  %s\n", formatNumber(preview.MergeOperations))
			fmt.Printf("  Total:             %s\n", formatNumber(preview.Total()))
			fmt.Println("\nRun without --dry-run to perform cleanup.")
			return
		}

		startTime := time.Now()
		totalDeleted := 0

		fmt.Printf("Sweeping detection results (>%d days, resolved)...\n", retentionCfg.RetentionDays)
		detDeleted, err := s.store.CleanupDetectionResults(ctx, retentionCfg.RetentionDays, retentionCfg.CleanupBatchSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: detection cleanup failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  Deleted %s row(s)\n", formatNumber(detDeleted))
		totalDeleted += detDeleted

		fmt.Printf("Sweeping completed review entries...\n")
		revDeleted, err := s.store.CleanupReviewEntries(ctx, retentionCfg.RetentionDays, retentionCfg.CleanupBatchSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: review cleanup failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  Deleted %s row(s)\n", formatNumber(revDeleted))
		totalDeleted += revDeleted

		fmt.Printf("Sweeping merge operations (keep failed: %t)...\n", retentionCfg.KeepFailedMerges)
		mergeDeleted, err := s.store.CleanupMergeOperations(ctx, retentionCfg.RetentionDays,
			retentionCfg.CleanupBatchSize, retentionCfg.KeepFailedMerges)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: merge cleanup failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  Deleted %s row(s)\n", formatNumber(mergeDeleted))
		totalDeleted += mergeDeleted

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Cleanup complete\n", green("✓"))
		fmt.Printf("  Rows deleted: %s\n", formatNumber(totalDeleted))
		fmt.Printf("  Time taken:   %s\n", time.Since(startTime).Round(time.Millisecond))

		if retentionCfg.Vacuum {
			fmt.Printf("\nRunning VACUUM to reclaim disk space...\n")
			if err := s.store.VacuumDatabase(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: VACUUM failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s VACUUM complete\n", green("✓"))
		}
	},
}

func init() {
	cleanupCmd.Flags().Int("days", 0, "override retention period in days")
	cleanupCmd.Flags().Bool("keep-failed", true, "retain failed merges regardless of age")
	cleanupCmd.Flags().Bool("dry-run", false, "count what would be deleted without deleting")
	cleanupCmd.Flags().Bool("vacuum", false, "run VACUUM after cleanup to reclaim disk space")

	rootCmd.AddCommand(cleanupCmd)
}
