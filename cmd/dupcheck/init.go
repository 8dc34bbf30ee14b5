package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crmkit/dupcheck/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a contact store in the current directory",
	Long: `Create an empty contact database at .dupcheck/contacts.db (or at
--db if given). Safe to run against an existing store; the schema is
idempotent.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := dbPath
		if path == "" {
			path = storage.DefaultConfig().Path
		}

		ctx := context.Background()
		store, err := storage.NewStorage(ctx, &storage.Config{Path: path})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create store: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Contact store ready at %s\n", green("✓"), path)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
