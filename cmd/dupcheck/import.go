package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crmkit/dupcheck/internal/types"
)

// importContact is the YAML shape of one contact in an import file
type importContact struct {
	ID        string `yaml:"id,omitempty"`
	Type      string `yaml:"type"`
	Email     string `yaml:"email,omitempty"`
	Phone     string `yaml:"phone,omitempty"`
	FirstName string `yaml:"first_name,omitempty"`
	LastName  string `yaml:"last_name,omitempty"`
	Address   string `yaml:"address,omitempty"`
}

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load contacts into the store from a YAML file",
	Long: `Import leads and customers from a YAML file. Records without an id
get a generated one. Invalid records abort the import before anything
is written.

File format:
  - type: lead
    email: jane@example.com
    first_name: Jane
    last_name: Smith
  - type: customer
    id: cust-042
    phone: "555-867-5309"

Example:
  dupcheck import contacts.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read %s: %v\n", args[0], err)
			os.Exit(1)
		}

		var raw []importContact
		if err := yaml.Unmarshal(data, &raw); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to parse %s: %v\n", args[0], err)
			os.Exit(1)
		}
		if len(raw) == 0 {
			fmt.Println("Nothing to import.")
			return
		}

		// Validate everything up front so a bad row aborts before writes
		now := time.Now().UTC()
		contacts := make([]types.ContactRecord, 0, len(raw))
		for i, in := range raw {
			c := types.ContactRecord{
				ID:        in.ID,
				Type:      types.RecordType(in.Type),
				Email:     in.Email,
				Phone:     in.Phone,
				FirstName: in.FirstName,
				LastName:  in.LastName,
				Address:   in.Address,
				Status:    types.ContactActive,
				CreatedAt: now,
			}
			if c.ID == "" {
				c.ID = uuid.New().String()
			}
			if err := c.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: record %d invalid: %v\n", i, err)
				os.Exit(1)
			}
			contacts = append(contacts, c)
		}

		ctx := context.Background()
		path, err := resolveDBPath()
		if err != nil {
			// No store yet: create one at the default location
			path = ".dupcheck/contacts.db"
		}
		s, err := openStackAt(ctx, path, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()

		imported := 0
		for _, c := range contacts {
			rec := c
			if err := s.store.CreateContact(ctx, &rec); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to import %s: %v\n", rec.Ref(), err)
				os.Exit(1)
			}
			imported++
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Imported %s contact(s) into %s\n", green("✓"), formatNumber(imported), path)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
