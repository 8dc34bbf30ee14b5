package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crmkit/dupcheck/internal/detection"
	"github.com/crmkit/dupcheck/internal/review"
	"github.com/crmkit/dupcheck/internal/similarity"
	"github.com/crmkit/dupcheck/internal/storage"
)

var (
	cfgFile string
	dbPath  string

	rootCmd = &cobra.Command{
		Use:   "dupcheck",
		Short: "Duplicate detection and merging for CRM contact records",
		Long: `dupcheck finds likely duplicate leads and customers in a SQLite
contact store, merges conclusive matches, and queues ambiguous ones
for manual review.

Confidence thresholds, scoring weights, and retention policy are
configured through DUPCHECK_* environment variables or a config file.`,
	}
)

// Execute adds all child commands to the root command and runs it
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .dupcheck.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the contact database")

	_ = viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dupcheck")
	}

	viper.SetEnvPrefix("DUPCHECK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// resolveDBPath picks the database path: --db flag, then config, then
// discovery in the current directory
func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if p := viper.GetString("db.path"); p != "" {
		return p, nil
	}
	return storage.DiscoverDatabase()
}

// stack bundles the wired-up engine behind every command
type stack struct {
	store        storage.Storage
	detector     *detection.StoreDetector
	orchestrator *review.Orchestrator
}

func (s *stack) Close() {
	_ = s.store.Close()
}

// openStack opens the discovered database and wires the scorer,
// detector, and orchestrator from environment configuration
func openStack(ctx context.Context, autoMerge bool) (*stack, error) {
	path, err := resolveDBPath()
	if err != nil {
		return nil, err
	}
	return openStackAt(ctx, path, autoMerge)
}

func openStackAt(ctx context.Context, path string, autoMerge bool) (*stack, error) {
	store, err := storage.NewStorage(ctx, &storage.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	weights, err := similarity.WeightsFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	scorer, err := similarity.NewScorer(weights)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	thresholds, err := detection.ThresholdsFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	detector, err := detection.NewStoreDetector(store, scorer, thresholds)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	orchestrator, err := review.NewOrchestrator(store, detector, autoMerge)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &stack{
		store:        store,
		detector:     detector,
		orchestrator: orchestrator,
	}, nil
}

// formatNumber formats a number with thousand separators
func formatNumber(n int) string {
	if n < 0 {
		return fmt.Sprintf("-%s", formatNumber(-n))
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}
