package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crmkit/dupcheck/internal/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the manual review queue",
	Long: `List or resolve pending duplicate reviews.

Examples:
  dupcheck review list           # Show the queue, most urgent first
  dupcheck review next           # Interactive approve/reject shell`,
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending reviews, most urgent first",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		s, err := openStack(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		entries, err := s.orchestrator.PendingReviews(ctx, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list reviews: %v\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			fmt.Println("Review queue is empty.")
			return
		}

		fmt.Printf("%d pending review(s):\n\n", len(entries))
		for _, entry := range entries {
			result, err := s.orchestrator.Detection(ctx, entry.DetectionID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to load detection %s: %v\n", entry.DetectionID, err)
				os.Exit(1)
			}

			top := "no matches"
			if len(result.Matches) > 0 {
				top = fmt.Sprintf("%s (%.2f)", result.Matches[0].Record, result.Matches[0].Confidence)
			}
			fmt.Printf("  [%s] %s  %s -> %s\n",
				colorizePriority(entry.Priority), entry.ID, result.Record, top)
		}
	},
}

var reviewNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Resolve pending reviews interactively",
	Long: `Step through the review queue one entry at a time. For each entry the
record and its best match are shown side by side; approve executes the
merge, reject closes the detection, skip moves on.`,
	Run: func(cmd *cobra.Command, args []string) {
		actor, _ := cmd.Flags().GetString("actor")
		if actor == "" {
			actor = os.Getenv("USER")
		}
		if actor == "" {
			actor = "reviewer"
		}

		ctx := context.Background()
		s, err := openStack(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		if err := runReviewShell(ctx, s, actor); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// runReviewShell steps through pending entries with a readline prompt
func runReviewShell(ctx context.Context, s *stack, actor string) error {
	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cyan("review> "),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	resolved := 0
	skipped := map[string]bool{}

	for {
		entry, result, err := nextPendingReview(ctx, s, skipped)
		if err != nil {
			return err
		}
		if entry == nil {
			fmt.Printf("\n%s Queue drained: %d resolved this session\n", green("✓"), resolved)
			return nil
		}

		printReviewEntry(entry, result)

		decided := false
		for !decided {
			line, err := rl.Readline()
			if err != nil {
				if err == readline.ErrInterrupt {
					continue
				}
				if err == io.EOF {
					fmt.Printf("\n%d resolved this session\n", resolved)
					return nil
				}
				return err
			}

			switch strings.ToLower(strings.TrimSpace(line)) {
			case "a", "approve":
				op, err := s.orchestrator.Approve(ctx, entry.ID, actor)
				if err != nil {
					fmt.Printf("%s %v\n", red("Error:"), err)
					decided = true // entry may no longer be actionable, move on
					skipped[entry.ID] = true
					continue
				}
				fmt.Printf("%s Merged %s into %s\n", green("✓"), op.Source, op.Target)
				resolved++
				decided = true
			case "r", "reject":
				if err := s.orchestrator.Reject(ctx, entry.ID, actor); err != nil {
					fmt.Printf("%s %v\n", red("Error:"), err)
					decided = true
					skipped[entry.ID] = true
					continue
				}
				fmt.Println("Rejected: records left unchanged")
				resolved++
				decided = true
			case "s", "skip":
				skipped[entry.ID] = true
				decided = true
			case "q", "quit", "exit":
				fmt.Printf("%d resolved this session\n", resolved)
				return nil
			case "h", "help", "?":
				fmt.Println("  a(pprove)  merge the record into its best match")
				fmt.Println("  r(eject)   not a duplicate, close the detection")
				fmt.Println("  s(kip)     decide later")
				fmt.Println("  q(uit)     leave the shell")
			case "":
			default:
				fmt.Println("Unknown command. Type 'help' for options.")
			}
		}
	}
}

// nextPendingReview returns the most urgent pending entry not skipped
// this session, or nil when the queue is drained
func nextPendingReview(ctx context.Context, s *stack, skipped map[string]bool) (*types.ReviewEntry, *types.DetectionResult, error) {
	entries, err := s.orchestrator.PendingReviews(ctx, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	for _, entry := range entries {
		if skipped[entry.ID] {
			continue
		}
		result, err := s.orchestrator.Detection(ctx, entry.DetectionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load detection %s: %w", entry.DetectionID, err)
		}
		return entry, result, nil
	}
	return nil, nil, nil
}

func printReviewEntry(entry *types.ReviewEntry, result *types.DetectionResult) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Printf("\n%s priority %s, queued %s\n",
		bold(entry.ID), colorizePriority(entry.Priority),
		entry.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("  Record: %s\n", formatContact(&result.Snapshot))
	for i, m := range result.Matches {
		marker := "  Match:"
		if i > 0 {
			marker = "        "
		}
		fmt.Printf("%s %s at %.2f (%s)\n", marker, m.Record, m.Confidence, strings.Join(m.Reasons, ", "))
	}
	fmt.Println("  approve / reject / skip / quit")
}

func formatContact(c *types.ContactRecord) string {
	parts := []string{c.Ref().String()}
	if name := c.FullName(); name != "" {
		parts = append(parts, name)
	}
	if c.Email != "" {
		parts = append(parts, c.Email)
	}
	if c.Phone != "" {
		parts = append(parts, c.Phone)
	}
	return strings.Join(parts, "  ")
}

func colorizePriority(p types.ReviewPriority) string {
	switch p {
	case types.PriorityHigh:
		return color.RedString(string(p))
	case types.PriorityMedium:
		return color.YellowString(string(p))
	default:
		return string(p)
	}
}

func init() {
	reviewListCmd.Flags().Int("limit", 50, "max entries to show")
	reviewNextCmd.Flags().String("actor", "", "name recorded on approvals (default $USER)")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewNextCmd)
	rootCmd.AddCommand(reviewCmd)
}
