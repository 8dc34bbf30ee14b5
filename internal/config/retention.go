// Package config holds validated configuration for the retention
// sweeper. Detection and scoring configuration live with their
// packages; this covers only how long resolved history is kept.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// RetentionConfig controls the cleanup sweep over resolved detection
// history: terminal detection results, completed review entries, and
// terminal merge operations
type RetentionConfig struct {
	// RetentionDays is how long resolved rows are kept (in days)
	// Rows older than this are eligible for deletion
	// Default: 90, Range: 1-730
	RetentionDays int

	// KeepFailedMerges retains failed merge operations regardless of
	// age, for diagnostics. Only completed merges are swept.
	// Default: true
	KeepFailedMerges bool

	// CleanupBatchSize is the number of rows to delete per statement
	// Larger batches = faster cleanup but longer write locks
	// Default: 500, Range: 100-10000
	CleanupBatchSize int

	// Vacuum controls whether to run VACUUM after cleanup
	// VACUUM reclaims disk space but locks the database
	// Default: false
	Vacuum bool
}

// DefaultRetentionConfig returns the default retention configuration
//
// Defaults keep a quarter of resolved history for audit, hold failed
// merges indefinitely, and sweep in small non-blocking batches.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetentionDays:    90,
		KeepFailedMerges: true,
		CleanupBatchSize: 500,
		Vacuum:           false,
	}
}

// Validate checks if the configuration has valid values
func (c RetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 730 {
		return fmt.Errorf("retention_days must be between 1 and 730 (got %d)", c.RetentionDays)
	}

	if c.CleanupBatchSize < 100 {
		return fmt.Errorf("cleanup_batch_size must be at least 100 (got %d)", c.CleanupBatchSize)
	}
	if c.CleanupBatchSize > 10000 {
		return fmt.Errorf("cleanup_batch_size too large (got %d, max 10000)", c.CleanupBatchSize)
	}

	return nil
}

// String returns a human-readable representation of the config
func (c RetentionConfig) String() string {
	return fmt.Sprintf(
		"RetentionConfig{RetentionDays: %d, KeepFailedMerges: %t, BatchSize: %d, Vacuum: %t}",
		c.RetentionDays, c.KeepFailedMerges, c.CleanupBatchSize, c.Vacuum,
	)
}

// RetentionConfigFromEnv creates a RetentionConfig from environment
// variables, falling back to defaults
//
// Environment variables:
//   - DUPCHECK_RETENTION_DAYS: Retention period in days (default: 90)
//   - DUPCHECK_RETENTION_KEEP_FAILED: Retain failed merges regardless of age (default: true)
//   - DUPCHECK_RETENTION_BATCH_SIZE: Rows to delete per statement (default: 500)
//   - DUPCHECK_RETENTION_VACUUM: Run VACUUM after cleanup (default: false)
//
// Returns an error if any environment variable has an invalid value.
func RetentionConfigFromEnv() (RetentionConfig, error) {
	cfg := DefaultRetentionConfig()

	if err := parseEnvInt("DUPCHECK_RETENTION_DAYS", &cfg.RetentionDays); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("DUPCHECK_RETENTION_KEEP_FAILED", &cfg.KeepFailedMerges); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DUPCHECK_RETENTION_BATCH_SIZE", &cfg.CleanupBatchSize); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("DUPCHECK_RETENTION_VACUUM", &cfg.Vacuum); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid retention configuration from environment: %w", err)
	}

	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
