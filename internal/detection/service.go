package detection

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/crmkit/dupcheck/internal/similarity"
	"github.com/crmkit/dupcheck/internal/storage"
	"github.com/crmkit/dupcheck/internal/types"
)

// StoreDetector implements Detector against the contact store
type StoreDetector struct {
	store      storage.Storage
	scorer     *similarity.Scorer
	thresholds Thresholds
}

// Compile-time check that StoreDetector implements Detector
var _ Detector = (*StoreDetector)(nil)

// NewStoreDetector creates a detector backed by the given store and scorer
func NewStoreDetector(store storage.Storage, scorer *similarity.Scorer, thresholds Thresholds) (*StoreDetector, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer cannot be nil")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}

	return &StoreDetector{
		store:      store,
		scorer:     scorer,
		thresholds: thresholds,
	}, nil
}

// Thresholds returns the configured confidence bands
func (d *StoreDetector) Thresholds() Thresholds {
	return d.thresholds
}

// FindPotentialDuplicates scores the record against every active
// contact, both leads and customers - a lead can duplicate an existing
// customer and vice versa. An explicit MaxCandidates cap bounds the
// scan for very large stores; when it actually truncates, the
// truncation is logged so missed matches are not silent.
func (d *StoreDetector) FindPotentialDuplicates(ctx context.Context, record types.ContactRecord, exclude *types.RecordRef) ([]types.PotentialMatch, error) {
	candidates, err := d.store.ListContacts(ctx, types.ContactFilter{
		Status: types.ContactActive,
		Limit:  d.thresholds.MaxCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	if d.thresholds.MaxCandidates > 0 && len(candidates) == d.thresholds.MaxCandidates {
		log.Printf("[DETECT] Candidate cap reached (%d records); contacts created after the window were not scored",
			d.thresholds.MaxCandidates)
	}

	consumed, err := d.store.ActiveMergeRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending merges: %w", err)
	}

	var matches []types.PotentialMatch
	for _, candidate := range candidates {
		ref := candidate.Ref()
		if exclude != nil && ref == *exclude {
			continue
		}
		if consumed[ref] {
			continue
		}

		confidence, reasons := d.scorer.Score(record, *candidate)
		if confidence < d.thresholds.Floor {
			continue
		}

		matches = append(matches, types.PotentialMatch{
			Record:     ref,
			Confidence: confidence,
			Reasons:    reasons,
		})
	}

	// Rank descending; tie-break on ref for deterministic output
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Record.String() < matches[j].Record.String()
	})

	return matches, nil
}

// ShouldAutoMerge reports whether the confidence is above the
// auto-merge threshold
func (d *StoreDetector) ShouldAutoMerge(confidence float64) bool {
	return confidence > d.thresholds.AutoMerge
}

// ShouldFlagForReview reports whether the confidence falls inside the
// review band
func (d *StoreDetector) ShouldFlagForReview(confidence float64) bool {
	return confidence >= d.thresholds.Review && !d.ShouldAutoMerge(confidence)
}

// Classify maps a confidence to the recommended action. The bands
// partition [0,1]: exactly one action applies to any confidence.
func (d *StoreDetector) Classify(confidence float64) types.RecommendedAction {
	switch {
	case d.ShouldAutoMerge(confidence):
		return types.ActionMerge
	case d.ShouldFlagForReview(confidence):
		return types.ActionReview
	default:
		return types.ActionIgnore
	}
}

// ReviewPriority maps a confidence to a review queue priority
func (d *StoreDetector) ReviewPriority(confidence float64) types.ReviewPriority {
	if confidence > d.thresholds.HighPriority {
		return types.PriorityHigh
	}
	return types.PriorityMedium
}

// BuildResult assembles an unsaved DetectionResult from a match list.
// HighestConfidence and RecommendedAction are derived here so the
// invariant between them and the match list holds by construction.
func (d *StoreDetector) BuildResult(id string, record types.ContactRecord, matches []types.PotentialMatch) *types.DetectionResult {
	highest := 0.0
	for _, m := range matches {
		if m.Confidence > highest {
			highest = m.Confidence
		}
	}

	return &types.DetectionResult{
		ID:                id,
		Record:            record.Ref(),
		Snapshot:          record,
		Matches:           matches,
		HighestConfidence: highest,
		RecommendedAction: d.Classify(highest),
		Status:            types.DetectionPending,
	}
}
