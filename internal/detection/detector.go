// Package detection finds likely duplicates for a contact record by
// scoring it against the stored lead and customer populations and
// classifying the best match against configured confidence bands.
package detection

import (
	"context"

	"github.com/crmkit/dupcheck/internal/types"
)

// Detector defines the interface for duplicate detection.
//
// Example usage:
//
//	detector, err := NewStoreDetector(store, scorer, DefaultThresholds())
//	if err != nil {
//	    return err
//	}
//
//	exclude := record.Ref()
//	matches, err := detector.FindPotentialDuplicates(ctx, record, &exclude)
//	if err != nil {
//	    return err
//	}
//	if len(matches) > 0 && detector.ShouldAutoMerge(matches[0].Confidence) {
//	    // merge path
//	}
type Detector interface {
	// FindPotentialDuplicates scores the record against all active
	// leads and customers and returns matches at or above the
	// reporting floor, sorted descending by confidence.
	//
	// exclude names a record to drop from the candidate set. When
	// checking an already-persisted record against the store, pass its
	// own ref or the record will match itself with confidence 1.0.
	// Pass nil only for records that are not yet persisted.
	//
	// Records consumed by a pending merge are always excluded, so
	// overlapping runs cannot line up a second merge for the same pair.
	FindPotentialDuplicates(ctx context.Context, record types.ContactRecord, exclude *types.RecordRef) ([]types.PotentialMatch, error)

	// ShouldAutoMerge reports whether the confidence clears the
	// auto-merge threshold. Callers still gate execution behind an
	// explicit auto-merge flag.
	ShouldAutoMerge(confidence float64) bool

	// ShouldFlagForReview reports whether the confidence falls in the
	// manual review band. Never true where ShouldAutoMerge is true:
	// the bands partition [0,1].
	ShouldFlagForReview(confidence float64) bool

	// Classify maps a confidence to the recommended action
	Classify(confidence float64) types.RecommendedAction

	// ReviewPriority maps a review-band confidence to a queue priority
	ReviewPriority(confidence float64) types.ReviewPriority
}
