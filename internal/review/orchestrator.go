// Package review routes detection results to their outcome: automatic
// merge for conclusive matches, the manual review queue for ambiguous
// ones, and nothing for the rest. It also executes the merges
// themselves, resolving field conflicts between the two records.
package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/crmkit/dupcheck/internal/detection"
	"github.com/crmkit/dupcheck/internal/storage"
	"github.com/crmkit/dupcheck/internal/types"
)

// ActorSystem is recorded on merges executed without a human decision
const ActorSystem = "system"

// ErrMergeFailed wraps merge execution failures. The detection result
// was persisted and a failed operation recorded; callers iterating many
// records can treat this as per-record and keep going.
var ErrMergeFailed = errors.New("merge failed")

// Orchestrator persists detection results and drives them to a
// terminal status
type Orchestrator struct {
	store    storage.Storage
	detector detection.Detector

	// autoMerge gates merge execution. When false, results above the
	// auto-merge threshold are recorded but nothing is merged; the
	// recommendation is visible in the result either way.
	autoMerge bool
}

// Outcome describes what became of one processed detection result
type Outcome struct {
	Result *types.DetectionResult
	Merged bool
	Review *types.ReviewEntry
}

// NewOrchestrator creates an orchestrator over the given store and detector
func NewOrchestrator(store storage.Storage, detector detection.Detector, autoMerge bool) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}
	return &Orchestrator{
		store:     store,
		detector:  detector,
		autoMerge: autoMerge,
	}, nil
}

// ProcessDetection persists a detection result and routes it by its
// recommended action:
//
//   - merge: executes the merge against the top match when auto-merge
//     is enabled, then marks the result auto_processed. With auto-merge
//     disabled the result is queued for review instead, so a conclusive
//     match is never silently dropped.
//   - review: enqueues a review entry at a priority derived from the
//     highest confidence; the result stays pending until a human decides.
//   - ignore: the result is marked auto_processed immediately. It is
//     still persisted so batch summaries and retention see it.
//
// A result scored before other merges ran can go stale: when either
// side of a proposed merge has since been consumed, the result is
// retired as auto_processed instead of executing a merge that the
// store would reject.
//
// A failed merge is recorded as a failed operation and returned as an
// error; the detection result stays pending so it can be retried or
// reviewed.
func (o *Orchestrator) ProcessDetection(ctx context.Context, result *types.DetectionResult) (*Outcome, error) {
	if result == nil {
		return nil, fmt.Errorf("detection result is required")
	}
	if result.RecommendedAction == types.ActionMerge && len(result.Matches) == 0 {
		return nil, fmt.Errorf("detection %s recommends merge but has no matches", result.ID)
	}

	if err := o.store.CreateDetectionResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to persist detection result: %w", err)
	}

	outcome := &Outcome{Result: result}

	switch result.RecommendedAction {
	case types.ActionMerge:
		if !o.autoMerge {
			// Conclusive but ungated: hand it to a human at top priority
			entry, err := o.enqueueReview(ctx, result, types.PriorityHigh)
			if err != nil {
				return nil, err
			}
			outcome.Review = entry
			return outcome, nil
		}

		top := result.Matches[0]
		mergeable, err := o.stillMergeable(ctx, result.Record, top.Record)
		if err != nil {
			return nil, err
		}
		if !mergeable {
			// Another merge consumed one side after scoring; the
			// duplicate is already resolved
			if err := o.finishDetection(ctx, result, types.DetectionAutoProcessed); err != nil {
				return nil, err
			}
			log.Printf("[REVIEW] Skipping merge %s -> %s: a record was consumed by an earlier merge",
				result.Record, top.Record)
			return outcome, nil
		}

		if _, err := o.mergeInto(ctx, result.Snapshot, top.Record, ActorSystem); err != nil {
			return nil, fmt.Errorf("auto-merge %s -> %s: %w: %v", result.Record, top.Record, ErrMergeFailed, err)
		}
		if err := o.finishDetection(ctx, result, types.DetectionAutoProcessed); err != nil {
			return nil, err
		}
		log.Printf("[REVIEW] Auto-merged %s into %s (confidence: %.2f)",
			result.Record, top.Record, top.Confidence)
		outcome.Merged = true
		return outcome, nil

	case types.ActionReview:
		priority := o.detector.ReviewPriority(result.HighestConfidence)
		entry, err := o.enqueueReview(ctx, result, priority)
		if err != nil {
			return nil, err
		}
		outcome.Review = entry
		return outcome, nil

	default:
		if err := o.finishDetection(ctx, result, types.DetectionAutoProcessed); err != nil {
			return nil, err
		}
		return outcome, nil
	}
}

// Approve executes the merge a pending review entry proposes: the
// detection's record is merged into its top match, the detection is
// marked approved, and the review entry is completed. The actor is
// recorded on the merge operation for audit.
func (o *Orchestrator) Approve(ctx context.Context, reviewID, actor string) (*types.MergeOperation, error) {
	if actor == "" {
		return nil, fmt.Errorf("actor is required")
	}

	entry, result, err := o.loadPendingReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if len(result.Matches) == 0 {
		return nil, fmt.Errorf("detection %s has no matches to merge", result.ID)
	}

	top := result.Matches[0]
	op, err := o.mergeInto(ctx, result.Snapshot, top.Record, actor)
	if err != nil {
		return nil, fmt.Errorf("merge %s -> %s failed: %w", result.Record, top.Record, err)
	}

	if err := o.finishDetection(ctx, result, types.DetectionApproved); err != nil {
		return nil, err
	}
	if err := o.store.CompleteReviewEntry(ctx, entry.ID); err != nil {
		return nil, fmt.Errorf("failed to complete review entry %s: %w", entry.ID, err)
	}

	log.Printf("[REVIEW] %s approved merge %s -> %s", actor, result.Record, top.Record)
	return op, nil
}

// Reject marks a pending review entry's detection as rejected and
// completes the entry. Neither record is modified.
func (o *Orchestrator) Reject(ctx context.Context, reviewID, actor string) error {
	if actor == "" {
		return fmt.Errorf("actor is required")
	}

	entry, result, err := o.loadPendingReview(ctx, reviewID)
	if err != nil {
		return err
	}

	if err := o.finishDetection(ctx, result, types.DetectionRejected); err != nil {
		return err
	}
	if err := o.store.CompleteReviewEntry(ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to complete review entry %s: %w", entry.ID, err)
	}

	log.Printf("[REVIEW] %s rejected detection %s", actor, result.ID)
	return nil
}

// PendingReviews returns the open review queue, most urgent first
func (o *Orchestrator) PendingReviews(ctx context.Context, limit int) ([]*types.ReviewEntry, error) {
	return o.store.ListPendingReviews(ctx, limit)
}

// Detection returns the detection result a review entry refers to
func (o *Orchestrator) Detection(ctx context.Context, detectionID string) (*types.DetectionResult, error) {
	return o.store.GetDetectionResult(ctx, detectionID)
}

func (o *Orchestrator) enqueueReview(ctx context.Context, result *types.DetectionResult, priority types.ReviewPriority) (*types.ReviewEntry, error) {
	entry := &types.ReviewEntry{
		ID:          uuid.New().String(),
		DetectionID: result.ID,
		Priority:    priority,
		Status:      types.ReviewPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.store.CreateReviewEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to enqueue review for %s: %w", result.ID, err)
	}
	log.Printf("[REVIEW] Queued %s for review (priority: %s, confidence: %.2f)",
		result.Record, priority, result.HighestConfidence)
	return entry, nil
}

// stillMergeable reports whether every ref is active and unclaimed by
// a pending merge. The merge transaction re-checks the same conditions
// under its lock; this pre-check keeps ordinary batch staleness from
// piling up failed operations.
func (o *Orchestrator) stillMergeable(ctx context.Context, refs ...types.RecordRef) (bool, error) {
	consumed, err := o.store.ActiveMergeRefs(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to query pending merges: %w", err)
	}
	for _, ref := range refs {
		if consumed[ref] {
			return false, nil
		}
		contact, err := o.store.GetContact(ctx, ref)
		if err != nil {
			return false, fmt.Errorf("failed to load %s: %w", ref, err)
		}
		if contact.Status != types.ContactActive {
			return false, nil
		}
	}
	return true, nil
}

func (o *Orchestrator) loadPendingReview(ctx context.Context, reviewID string) (*types.ReviewEntry, *types.DetectionResult, error) {
	entry, err := o.store.GetReviewEntry(ctx, reviewID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load review entry %s: %w", reviewID, err)
	}
	if entry.Status != types.ReviewPending {
		return nil, nil, fmt.Errorf("review entry %s is not pending (status: %s)", reviewID, entry.Status)
	}

	result, err := o.store.GetDetectionResult(ctx, entry.DetectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load detection %s: %w", entry.DetectionID, err)
	}
	if result.Status.IsTerminal() {
		return nil, nil, fmt.Errorf("detection %s already resolved (status: %s)", result.ID, result.Status)
	}

	return entry, result, nil
}

// mergeInto merges the source record into the target ref. The target's
// current state is read fresh from the store; the source snapshot comes
// from the detection result, which re-validates against the live row
// inside the merge transaction anyway.
func (o *Orchestrator) mergeInto(ctx context.Context, source types.ContactRecord, targetRef types.RecordRef, actor string) (*types.MergeOperation, error) {
	target, err := o.store.GetContact(ctx, targetRef)
	if err != nil {
		return nil, fmt.Errorf("failed to load merge target %s: %w", targetRef, err)
	}

	resolved, conflicts := ResolveFields(&source, target)

	op := &types.MergeOperation{
		ID:        uuid.New().String(),
		Source:    source.Ref(),
		Target:    targetRef,
		Conflicts: conflicts,
		Status:    types.MergePending,
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	}

	if err := o.store.ExecuteMerge(ctx, op, resolved); err != nil {
		// Record the failure for audit; the contacts are untouched
		failed := &types.MergeOperation{
			ID:        op.ID,
			Source:    op.Source,
			Target:    op.Target,
			Conflicts: conflicts,
			Status:    types.MergeFailed,
			Error:     err.Error(),
			Actor:     actor,
			CreatedAt: op.CreatedAt,
		}
		if recErr := o.store.RecordMergeOperation(ctx, failed); recErr != nil {
			log.Printf("[REVIEW] Failed to record failed merge %s: %v", op.ID, recErr)
		}
		return nil, err
	}

	if len(conflicts) > 0 {
		log.Printf("[REVIEW] Merge %s -> %s resolved %d field conflict(s)",
			op.Source, op.Target, len(conflicts))
	}
	return op, nil
}

func (o *Orchestrator) finishDetection(ctx context.Context, result *types.DetectionResult, status types.DetectionStatus) error {
	if err := o.store.UpdateDetectionStatus(ctx, result.ID, status); err != nil {
		return fmt.Errorf("failed to update detection %s: %w", result.ID, err)
	}
	result.Status = status
	return nil
}
