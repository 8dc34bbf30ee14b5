package detection

import (
	"fmt"
	"os"
	"strconv"
)

// Thresholds holds the confidence bands that classify a detection
// outcome. The bands partition [0,1] with no overlap:
//
//	(AutoMerge, 1.0]        -> auto-merge
//	[Review, AutoMerge]     -> flag for manual review
//	[0.0, Review)           -> ignore
type Thresholds struct {
	// AutoMerge is the exclusive lower bound for automatic merging.
	// Default: 0.85
	AutoMerge float64

	// Review is the inclusive lower bound of the manual review band.
	// Default: 0.50
	Review float64

	// HighPriority splits the review band: queued reviews above this
	// confidence are filed as high priority. Default: 0.70
	HighPriority float64

	// Floor is the minimum confidence for a candidate to be reported
	// at all. Anything below is noise and is dropped from the ranked
	// match list. Default: 0.30
	Floor float64

	// MaxCandidates optionally caps how many stored records are scored
	// per detection run, as a cost guard for very large stores. The cap
	// is applied in storage order (oldest first), so recently created
	// duplicates fall outside it; detection logs whenever the cap
	// actually truncates. 0 scans every active contact. Default: 0
	MaxCandidates int
}

// DefaultThresholds returns the default detection thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		AutoMerge:    0.85,
		Review:       0.50,
		HighPriority: 0.70,
		Floor:        0.30,
	}
}

// Validate checks if the thresholds have valid values and that the
// bands partition cleanly
func (t Thresholds) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"auto_merge", t.AutoMerge},
		{"review", t.Review},
		{"high_priority", t.HighPriority},
		{"floor", t.Floor},
	} {
		if f.value < 0.0 || f.value > 1.0 {
			return fmt.Errorf("%s threshold must be between 0.0 and 1.0 (got %.2f)", f.name, f.value)
		}
	}
	if t.Review >= t.AutoMerge {
		return fmt.Errorf("review threshold (%.2f) must be below auto_merge threshold (%.2f)",
			t.Review, t.AutoMerge)
	}
	if t.HighPriority < t.Review || t.HighPriority > t.AutoMerge {
		return fmt.Errorf("high_priority threshold (%.2f) must lie within the review band [%.2f, %.2f]",
			t.HighPriority, t.Review, t.AutoMerge)
	}
	if t.Floor > t.Review {
		return fmt.Errorf("floor (%.2f) must not exceed the review threshold (%.2f)", t.Floor, t.Review)
	}
	if t.MaxCandidates < 0 {
		return fmt.Errorf("max_candidates cannot be negative (got %d)", t.MaxCandidates)
	}
	if t.MaxCandidates > 100000 {
		return fmt.Errorf("max_candidates too large (got %d, max 100000)", t.MaxCandidates)
	}
	return nil
}

// String returns a human-readable representation of the thresholds
func (t Thresholds) String() string {
	return fmt.Sprintf("Thresholds{AutoMerge: %.2f, Review: %.2f, HighPriority: %.2f, Floor: %.2f, MaxCandidates: %d}",
		t.AutoMerge, t.Review, t.HighPriority, t.Floor, t.MaxCandidates)
}

// ThresholdsFromEnv creates Thresholds from environment variables,
// falling back to defaults
//
// Environment variables:
//   - DUPCHECK_THRESHOLD_AUTO_MERGE: auto-merge lower bound (default: 0.85)
//   - DUPCHECK_THRESHOLD_REVIEW: review band lower bound (default: 0.50)
//   - DUPCHECK_THRESHOLD_HIGH_PRIORITY: high-priority review split (default: 0.70)
//   - DUPCHECK_THRESHOLD_FLOOR: minimum reportable confidence (default: 0.30)
//   - DUPCHECK_MAX_CANDIDATES: optional candidate scoring cap (default: 0 = scan all)
//
// Returns an error if any environment variable has an invalid value.
func ThresholdsFromEnv() (Thresholds, error) {
	t := DefaultThresholds()

	if err := parseEnvFloat("DUPCHECK_THRESHOLD_AUTO_MERGE", &t.AutoMerge); err != nil {
		return t, err
	}
	if err := parseEnvFloat("DUPCHECK_THRESHOLD_REVIEW", &t.Review); err != nil {
		return t, err
	}
	if err := parseEnvFloat("DUPCHECK_THRESHOLD_HIGH_PRIORITY", &t.HighPriority); err != nil {
		return t, err
	}
	if err := parseEnvFloat("DUPCHECK_THRESHOLD_FLOOR", &t.Floor); err != nil {
		return t, err
	}
	if err := parseEnvInt("DUPCHECK_MAX_CANDIDATES", &t.MaxCandidates); err != nil {
		return t, err
	}

	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("invalid thresholds from environment: %w", err)
	}

	return t, nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
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
