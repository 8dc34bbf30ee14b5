package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crmkit/dupcheck/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a contact against the store for duplicates",
	Long: `Score a contact (given as flags, not stored) against every active
lead and customer and print the ranked matches with the recommended
action for each confidence band.

Examples:
  dupcheck check --email jane@example.com
  dupcheck check --first Jane --last Smith --phone "555-867-5309"`,
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		phone, _ := cmd.Flags().GetString("phone")
		first, _ := cmd.Flags().GetString("first")
		last, _ := cmd.Flags().GetString("last")
		address, _ := cmd.Flags().GetString("address")

		record := types.ContactRecord{
			ID:        "probe",
			Type:      types.TypeLead,
			Email:     email,
			Phone:     phone,
			FirstName: first,
			LastName:  last,
			Address:   address,
			Status:    types.ContactActive,
		}
		if err := record.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx := context.Background()
		s, err := openStack(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		// The probe is not persisted, so nothing to exclude
		matches, err := s.detector.FindPotentialDuplicates(ctx, record, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: detection failed: %v\n", err)
			os.Exit(1)
		}

		if len(matches) == 0 {
			fmt.Println("No potential duplicates found.")
			return
		}

		fmt.Printf("Found %d potential duplicate(s):\n\n", len(matches))
		for _, m := range matches {
			action := s.detector.Classify(m.Confidence)
			fmt.Printf("  %s  %s  %s\n",
				colorizeByAction(action, fmt.Sprintf("%.2f", m.Confidence)),
				m.Record,
				colorizeByAction(action, string(action)))
			if len(m.Reasons) > 0 {
				fmt.Printf("        %s\n", strings.Join(m.Reasons, ", "))
			}
		}
	},
}

func colorizeByAction(action types.RecommendedAction, text string) string {
	switch action {
	case types.ActionMerge:
		return color.RedString(text)
	case types.ActionReview:
		return color.YellowString(text)
	default:
		return text
	}
}

func init() {
	checkCmd.Flags().String("email", "", "email address to check")
	checkCmd.Flags().String("phone", "", "phone number to check")
	checkCmd.Flags().String("first", "", "first name to check")
	checkCmd.Flags().String("last", "", "last name to check")
	checkCmd.Flags().String("address", "", "address to check")

	rootCmd.AddCommand(checkCmd)
}
