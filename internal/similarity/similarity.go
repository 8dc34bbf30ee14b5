// Package similarity scores how likely two contact records are to
// describe the same real-world person.
//
// The scorer is a pure function: no storage, no network, deterministic
// for a given input pair, and symmetric (Score(a,b) == Score(b,a)).
// Each field comparator produces a signal in [0,1]; signals where
// either side is empty are skipped entirely so sparse records degrade
// to lower confidence instead of failing.
package similarity

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/crmkit/dupcheck/internal/types"
)

// Scorer computes pairwise contact similarity using the configured weights
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with validated weights
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return &Scorer{weights: w}, nil
}

// Score returns the confidence in [0,1] that a and b refer to the same
// entity, plus an ordered list of human-readable reasons for every
// signal that contributed above the reporting threshold.
//
// Confidence is the weighted sum over fired signals divided by the
// total weight of comparable signals (both sides non-empty). An exact
// email or phone match additionally raises the confidence to its
// configured floor, so one conclusive identifier can dominate weak or
// missing name data.
func (s *Scorer) Score(a, b types.ContactRecord) (float64, []string) {
	var weightedSum, comparableWeight float64
	var reasons []string

	emailExact := false
	phoneExact := false

	// Email: exact, case-insensitive
	if ae, be := normalizeEmail(a.Email), normalizeEmail(b.Email); ae != "" && be != "" {
		comparableWeight += s.weights.EmailExact
		if ae == be {
			emailExact = true
			weightedSum += s.weights.EmailExact
			if s.weights.EmailExact >= s.weights.MinSignal {
				reasons = append(reasons, "exact email match")
			}
		}
	}

	// Phone: exact after normalization to digits
	if ap, bp := normalizePhone(a.Phone), normalizePhone(b.Phone); ap != "" && bp != "" {
		comparableWeight += s.weights.PhoneExact
		if ap == bp {
			phoneExact = true
			weightedSum += s.weights.PhoneExact
			if s.weights.PhoneExact >= s.weights.MinSignal {
				reasons = append(reasons, "exact phone match")
			}
		}
	}

	// Name: fuzzy similarity over first+last
	if an, bn := normalizeText(a.FullName()), normalizeText(b.FullName()); an != "" && bn != "" {
		comparableWeight += s.weights.NameFuzzy
		sim := fuzzySimilarity(an, bn)
		weightedSum += s.weights.NameFuzzy * sim
		if s.weights.NameFuzzy*sim >= s.weights.MinSignal {
			reasons = append(reasons, fmt.Sprintf("fuzzy name match (%.2f)", sim))
		}
	}

	// Address: loosest comparator, lowest weight
	if aa, ba := normalizeText(a.Address), normalizeText(b.Address); aa != "" && ba != "" {
		comparableWeight += s.weights.AddressFuzzy
		sim := fuzzySimilarity(aa, ba)
		weightedSum += s.weights.AddressFuzzy * sim
		if s.weights.AddressFuzzy*sim >= s.weights.MinSignal {
			reasons = append(reasons, fmt.Sprintf("fuzzy address match (%.2f)", sim))
		}
	}

	if comparableWeight == 0 {
		return 0.0, nil
	}

	confidence := weightedSum / comparableWeight

	// Conclusive identifiers set a floor on the combined score
	if emailExact && confidence < s.weights.EmailExactFloor {
		confidence = s.weights.EmailExactFloor
	} else if phoneExact && confidence < s.weights.PhoneExactFloor {
		confidence = s.weights.PhoneExactFloor
	}

	return clamp01(confidence), reasons
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)
var nonDigit = regexp.MustCompile(`\D`)

// normalizeEmail lowercases and trims an email address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizePhone strips a phone number to its digits. When both
// numbers carry at least the usual ten digits, comparison happens on
// the trailing ten so "+1 (555) 867-5309" equals "555-867-5309".
func normalizePhone(phone string) string {
	digits := nonDigit.ReplaceAllString(phone, "")
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

// normalizeText lowercases, strips punctuation, and collapses
// whitespace for fuzzy comparison
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// fuzzySimilarity blends normalized edit distance with token overlap.
// Edit distance is typo-tolerant ("Jon"/"John"), token overlap is
// word-order tolerant ("Smith, Jane"/"Jane Smith"); the better of the
// two wins so neither failure mode punishes a genuine match.
func fuzzySimilarity(a, b string) float64 {
	return math.Max(levenshteinSimilarity(a, b), tokenSimilarity(a, b))
}

// levenshteinSimilarity converts edit distance to a [0,1] similarity
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := math.Max(float64(len(a)), float64(len(b)))
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/maxLen
}

// tokenSimilarity computes Jaccard overlap of whitespace tokens
func tokenSimilarity(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(ta))
	for _, tok := range ta {
		setA[tok] = true
	}
	setB := make(map[string]bool, len(tb))
	for _, tok := range tb {
		setB[tok] = true
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func clamp01(f float64) float64 {
	if f < 0.0 || math.IsNaN(f) {
		return 0.0
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}
