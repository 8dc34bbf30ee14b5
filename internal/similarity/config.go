package similarity

import (
	"fmt"
	"os"
	"strconv"
)

// Weights holds the signal weights for the similarity scorer.
// The final confidence is a weighted combination, not a simple average:
// a single strong signal (exact email or phone) should be able to push
// a pair over the auto-merge threshold on its own.
type Weights struct {
	// EmailExact is the weight of an exact, case-insensitive email match.
	// Strongest signal. Default: 0.45
	EmailExact float64

	// PhoneExact is the weight of an exact normalized-phone match.
	// Comparably strong to email. Default: 0.40
	PhoneExact float64

	// NameFuzzy is the weight of fuzzy first+last name similarity.
	// Default: 0.30
	NameFuzzy float64

	// AddressFuzzy is the weight of fuzzy address similarity.
	// Loosest and weakest signal. Default: 0.10
	AddressFuzzy float64

	// MinSignal is the minimum per-signal contribution required before
	// the signal is listed in the reasons. Signals below this still
	// count toward the score but are not worth surfacing to reviewers.
	// Default: 0.05
	MinSignal float64

	// EmailExactFloor is the minimum confidence assigned when an exact
	// email match fires, regardless of how the other signals score.
	// Shared mailboxes aside, the same address is near-conclusive.
	// Default: 0.90
	EmailExactFloor float64

	// PhoneExactFloor is the minimum confidence assigned when an exact
	// phone match fires. Strong, but phones are shared across a
	// household or office more often than mailboxes, so the floor sits
	// inside the review band rather than above it. Default: 0.75
	PhoneExactFloor float64
}

// DefaultWeights returns the default scorer weights
//
// The defaults are chosen so that:
// - an exact email match alone clears the auto-merge threshold (floor 0.90)
// - an exact phone match alone lands a pair in the review band (floor 0.75)
// - address similarity alone never triggers any action
func DefaultWeights() Weights {
	return Weights{
		EmailExact:      0.45,
		PhoneExact:      0.40,
		NameFuzzy:       0.30,
		AddressFuzzy:    0.10,
		MinSignal:       0.05,
		EmailExactFloor: 0.90,
		PhoneExactFloor: 0.75,
	}
}

// Validate checks if the weights have valid values
func (w Weights) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"email_exact", w.EmailExact},
		{"phone_exact", w.PhoneExact},
		{"name_fuzzy", w.NameFuzzy},
		{"address_fuzzy", w.AddressFuzzy},
	} {
		if f.value < 0.0 || f.value > 1.0 {
			return fmt.Errorf("%s weight must be between 0.0 and 1.0 (got %.2f)", f.name, f.value)
		}
	}
	if w.EmailExact+w.PhoneExact+w.NameFuzzy+w.AddressFuzzy <= 0 {
		return fmt.Errorf("at least one weight must be positive")
	}
	if w.MinSignal < 0.0 || w.MinSignal > 1.0 {
		return fmt.Errorf("min_signal must be between 0.0 and 1.0 (got %.2f)", w.MinSignal)
	}
	if w.EmailExactFloor < 0.0 || w.EmailExactFloor > 1.0 {
		return fmt.Errorf("email_exact_floor must be between 0.0 and 1.0 (got %.2f)", w.EmailExactFloor)
	}
	if w.PhoneExactFloor < 0.0 || w.PhoneExactFloor > 1.0 {
		return fmt.Errorf("phone_exact_floor must be between 0.0 and 1.0 (got %.2f)", w.PhoneExactFloor)
	}
	if w.PhoneExactFloor > w.EmailExactFloor {
		return fmt.Errorf("phone_exact_floor (%.2f) must be <= email_exact_floor (%.2f)",
			w.PhoneExactFloor, w.EmailExactFloor)
	}
	return nil
}

// String returns a human-readable representation of the weights
func (w Weights) String() string {
	return fmt.Sprintf("Weights{Email: %.2f, Phone: %.2f, Name: %.2f, Address: %.2f, MinSignal: %.2f}",
		w.EmailExact, w.PhoneExact, w.NameFuzzy, w.AddressFuzzy, w.MinSignal)
}

// WeightsFromEnv creates Weights from environment variables, falling
// back to defaults
//
// Environment variables:
//   - DUPCHECK_WEIGHT_EMAIL: weight for exact email match (default: 0.45)
//   - DUPCHECK_WEIGHT_PHONE: weight for exact phone match (default: 0.40)
//   - DUPCHECK_WEIGHT_NAME: weight for fuzzy name similarity (default: 0.30)
//   - DUPCHECK_WEIGHT_ADDRESS: weight for fuzzy address similarity (default: 0.10)
//   - DUPCHECK_WEIGHT_MIN_SIGNAL: minimum reportable signal (default: 0.05)
//
// Returns an error if any environment variable has an invalid value.
func WeightsFromEnv() (Weights, error) {
	w := DefaultWeights()

	if err := parseEnvFloat("DUPCHECK_WEIGHT_EMAIL", &w.EmailExact); err != nil {
		return w, err
	}
	if err := parseEnvFloat("DUPCHECK_WEIGHT_PHONE", &w.PhoneExact); err != nil {
		return w, err
	}
	if err := parseEnvFloat("DUPCHECK_WEIGHT_NAME", &w.NameFuzzy); err != nil {
		return w, err
	}
	if err := parseEnvFloat("DUPCHECK_WEIGHT_ADDRESS", &w.AddressFuzzy); err != nil {
		return w, err
	}
	if err := parseEnvFloat("DUPCHECK_WEIGHT_MIN_SIGNAL", &w.MinSignal); err != nil {
		return w, err
	}
	if err := parseEnvFloat("DUPCHECK_WEIGHT_EMAIL_FLOOR", &w.EmailExactFloor); err != nil {
		return w, err
	}
	if err := parseEnvFloat("DUPCHECK_WEIGHT_PHONE_FLOOR", &w.PhoneExactFloor); err != nil {
		return w, err
	}

	if err := w.Validate(); err != nil {
		return w, fmt.Errorf("invalid weights from environment: %w", err)
	}

	return w, nil
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
