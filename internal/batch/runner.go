// Package batch runs duplicate detection across a bounded window of
// the contact population. Scoring is read-only and runs on a worker
// pool; decisions and writes happen serially afterwards so merge
// guards never race within a run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/crmkit/dupcheck/internal/detection"
	"github.com/crmkit/dupcheck/internal/review"
	"github.com/crmkit/dupcheck/internal/storage"
	"github.com/crmkit/dupcheck/internal/types"
)

// Config controls one batch run
type Config struct {
	// Population restricts the run to leads or customers. Empty runs both.
	Population types.RecordType

	// Limit bounds how many records the run processes, oldest first.
	// 0 means no limit.
	Limit int

	// DryRun performs detection and reporting only: no results
	// persisted, no reviews queued, no merges executed
	DryRun bool

	// Workers bounds the scoring pool
	Workers int

	// RatePerSec throttles record scoring for shared stores. 0 disables
	// the limiter.
	RatePerSec float64
}

// DefaultConfig returns the default batch configuration
func DefaultConfig() Config {
	return Config{
		Workers: 4,
	}
}

// Validate checks if the config values are valid
func (c *Config) Validate() error {
	if c.Population != "" && !c.Population.IsValid() {
		return fmt.Errorf("invalid population: %s", c.Population)
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.RatePerSec < 0 {
		return fmt.Errorf("rate cannot be negative")
	}
	return nil
}

// Summary reports what one batch run did (or, for a dry run, would do)
type Summary struct {
	Processed        int           `json:"processed" yaml:"processed"`
	DuplicatesFound  int           `json:"duplicates_found" yaml:"duplicates_found"`
	AutoMerged       int           `json:"auto_merged" yaml:"auto_merged"`
	FlaggedForReview int           `json:"flagged_for_review" yaml:"flagged_for_review"`
	MergeFailures    int           `json:"merge_failures" yaml:"merge_failures"`
	DryRun           bool          `json:"dry_run" yaml:"dry_run"`
	Elapsed          time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Runner executes batch detection runs
type Runner struct {
	store        storage.Storage
	detector     detection.Detector
	orchestrator *review.Orchestrator
	cfg          Config
}

// NewRunner creates a batch runner. The orchestrator carries the
// auto-merge gate; the runner never merges on its own.
func NewRunner(store storage.Storage, detector detection.Detector, orchestrator *review.Orchestrator, cfg Config) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}

	return &Runner{
		store:        store,
		detector:     detector,
		orchestrator: orchestrator,
		cfg:          cfg,
	}, nil
}

// Run scores every record in the window against the full population
// and routes each result through the orchestrator.
//
// Per-record merge failures are counted and logged but do not abort
// the run; any other store failure does.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	records, err := r.store.ListContacts(ctx, types.ContactFilter{
		Type:   r.cfg.Population,
		Status: types.ContactActive,
		Limit:  r.cfg.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list batch window: %w", err)
	}

	log.Printf("[BATCH] Starting run: %d record(s), workers=%d, dry_run=%v",
		len(records), r.cfg.Workers, r.cfg.DryRun)

	matchSets, err := r.scoreAll(ctx, records)
	if err != nil {
		return nil, err
	}

	summary := &Summary{DryRun: r.cfg.DryRun}
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Processed++
		matches := matchSets[i]
		if len(matches) == 0 {
			continue
		}
		summary.DuplicatesFound++

		if r.cfg.DryRun {
			// Report what the run would do, touch nothing
			switch r.detector.Classify(matches[0].Confidence) {
			case types.ActionMerge:
				summary.AutoMerged++
			case types.ActionReview:
				summary.FlaggedForReview++
			}
			continue
		}

		result := r.buildResult(*record, matches)
		outcome, err := r.orchestrator.ProcessDetection(ctx, result)
		if err != nil {
			if errors.Is(err, review.ErrMergeFailed) {
				summary.MergeFailures++
				log.Printf("[BATCH] Merge failed for %s, continuing: %v", record.Ref(), err)
				continue
			}
			return summary, fmt.Errorf("batch aborted at %s: %w", record.Ref(), err)
		}

		if outcome.Merged {
			summary.AutoMerged++
		}
		if outcome.Review != nil {
			summary.FlaggedForReview++
		}
	}

	summary.Elapsed = time.Since(start)
	log.Printf("[BATCH] Run complete: processed=%d duplicates=%d merged=%d flagged=%d failures=%d elapsed=%s",
		summary.Processed, summary.DuplicatesFound, summary.AutoMerged,
		summary.FlaggedForReview, summary.MergeFailures, summary.Elapsed.Round(time.Millisecond))

	return summary, nil
}

// scoreAll runs the read-only detection phase on a bounded worker pool,
// preserving record order in the result
func (r *Runner) scoreAll(ctx context.Context, records []*types.ContactRecord) ([][]types.PotentialMatch, error) {
	matchSets := make([][]types.PotentialMatch, len(records))

	var limiter *rate.Limiter
	if r.cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.RatePerSec), 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
			}

			self := record.Ref()
			matches, err := r.detector.FindPotentialDuplicates(gctx, *record, &self)
			if err != nil {
				return fmt.Errorf("detection failed for %s: %w", self, err)
			}
			matchSets[i] = matches
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matchSets, nil
}

func (r *Runner) buildResult(record types.ContactRecord, matches []types.PotentialMatch) *types.DetectionResult {
	highest := 0.0
	for _, m := range matches {
		if m.Confidence > highest {
			highest = m.Confidence
		}
	}

	return &types.DetectionResult{
		ID:                uuid.New().String(),
		Record:            record.Ref(),
		Snapshot:          record,
		Matches:           matches,
		HighestConfidence: highest,
		RecommendedAction: r.detector.Classify(highest),
		Status:            types.DetectionPending,
		CreatedAt:         time.Now().UTC(),
	}
}
