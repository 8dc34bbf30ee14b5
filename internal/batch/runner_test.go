package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/crmkit/dupcheck/internal/detection"
	"github.com/crmkit/dupcheck/internal/review"
	"github.com/crmkit/dupcheck/internal/similarity"
	"github.com/crmkit/dupcheck/internal/storage"
	"github.com/crmkit/dupcheck/internal/storage/sqlite"
	"github.com/crmkit/dupcheck/internal/types"
)

func newTestRunner(t *testing.T, autoMerge bool, cfg Config) (*Runner, storage.Storage) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	scorer, err := similarity.NewScorer(similarity.DefaultWeights())
	if err != nil {
		t.Fatalf("failed to create scorer: %v", err)
	}
	detector, err := detection.NewStoreDetector(store, scorer, detection.DefaultThresholds())
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}
	orchestrator, err := review.NewOrchestrator(store, detector, autoMerge)
	if err != nil {
		t.Fatalf("failed to create orchestrator: %v", err)
	}
	runner, err := NewRunner(store, detector, orchestrator, cfg)
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}

	return runner, store
}

func seedN(t *testing.T, store storage.Storage, n int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		c := types.ContactRecord{
			ID:        fmt.Sprintf("l-%d", i),
			Type:      types.TypeLead,
			Email:     fmt.Sprintf("person%d@example.com", i),
			FirstName: fmt.Sprintf("Person%d", i),
			LastName:  "Example",
			Status:    types.ContactActive,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateContact(context.Background(), &c); err != nil {
			t.Fatalf("failed to seed contact %d: %v", i, err)
		}
	}
}

func TestRunDryRunBoundedWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = 5
	cfg.DryRun = true

	runner, store := newTestRunner(t, true, cfg)
	ctx := context.Background()

	seedN(t, store, 10)

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Processed != 5 {
		t.Errorf("expected 5 processed with limit 5, got %d", summary.Processed)
	}
	if !summary.DryRun {
		t.Error("summary should carry the dry-run flag")
	}

	// Dry run persists nothing: no reviews, no merges, contacts untouched
	reviews, err := store.ListPendingReviews(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list reviews: %v", err)
	}
	if len(reviews) != 0 {
		t.Errorf("dry run queued %d review(s)", len(reviews))
	}
	ops, err := store.ListMergeOperations(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list merges: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("dry run recorded %d merge(s)", len(ops))
	}
	active, err := store.CountContacts(ctx, types.ContactFilter{Status: types.ContactActive})
	if err != nil {
		t.Fatalf("failed to count contacts: %v", err)
	}
	if active != 10 {
		t.Errorf("dry run changed contact statuses: %d active of 10", active)
	}
	stats, err := store.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("failed to get statistics: %v", err)
	}
	if stats.DetectionResults != 0 {
		t.Errorf("dry run persisted %d detection result(s)", stats.DetectionResults)
	}
}

func TestRunDryRunReportsClassification(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DryRun = true

	runner, store := newTestRunner(t, true, cfg)
	ctx := context.Background()

	// A conclusive pair: both scan as each other's auto-merge candidate
	for i, id := range []string{"l-1", "c-1"} {
		rt := types.TypeLead
		if i == 1 {
			rt = types.TypeCustomer
		}
		c := types.ContactRecord{
			ID: id, Type: rt,
			Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
			Status: types.ContactActive, CreatedAt: time.Now().UTC(),
		}
		if err := store.CreateContact(ctx, &c); err != nil {
			t.Fatalf("failed to seed %s: %v", id, err)
		}
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 2 || summary.DuplicatesFound != 2 {
		t.Errorf("expected both records flagged as duplicates, got %+v", summary)
	}
	if summary.AutoMerged != 2 {
		t.Errorf("expected 2 would-be auto-merges reported, got %d", summary.AutoMerged)
	}
}

func TestRunAutoMergesConclusiveMatches(t *testing.T) {
	runner, store := newTestRunner(t, true, DefaultConfig())
	ctx := context.Background()

	// The run visits the customer first (created_at order) and merges it
	// into the duplicate lead. The lead's own pre-scored result then
	// points at the retired customer and is quietly retired in turn:
	// one merge, no failures, nothing left pending.
	customer := types.ContactRecord{
		ID: "c-1", Type: types.TypeCustomer,
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
		Status: types.ContactActive, CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	lead := types.ContactRecord{
		ID: "l-1", Type: types.TypeLead,
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
		Status: types.ContactActive, CreatedAt: time.Now().UTC(),
	}
	for _, c := range []types.ContactRecord{customer, lead} {
		rec := c
		if err := store.CreateContact(ctx, &rec); err != nil {
			t.Fatalf("failed to seed %s: %v", c.ID, err)
		}
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.AutoMerged != 1 {
		t.Fatalf("expected exactly one auto-merge, got %+v", summary)
	}
	if summary.MergeFailures != 0 {
		t.Errorf("mutual pair must not record merge failures, got %d", summary.MergeFailures)
	}

	active, err := store.CountContacts(ctx, types.ContactFilter{Status: types.ContactActive})
	if err != nil {
		t.Fatalf("failed to count contacts: %v", err)
	}
	if active != 1 {
		t.Errorf("expected the pair collapsed to 1 active contact, got %d", active)
	}

	ops, err := store.ListMergeOperations(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list merges: %v", err)
	}
	if len(ops) != 1 || ops[0].Status != types.MergeCompleted {
		t.Errorf("expected a single completed merge op, got %+v", ops)
	}

	stats, err := store.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("failed to get statistics: %v", err)
	}
	if stats.PendingDetections != 0 {
		t.Errorf("expected no detections left pending, got %d", stats.PendingDetections)
	}
}

func TestRunPopulationFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population = types.TypeCustomer
	cfg.DryRun = true

	runner, store := newTestRunner(t, true, cfg)
	ctx := context.Background()

	seedN(t, store, 4) // four leads
	c := types.ContactRecord{
		ID: "c-1", Type: types.TypeCustomer,
		Email: "solo@example.com", FirstName: "Solo", LastName: "Customer",
		Status: types.ContactActive, CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateContact(ctx, &c); err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 1 {
		t.Errorf("expected only the customer processed, got %d", summary.Processed)
	}
}

func TestRunThrottled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DryRun = true
	cfg.RatePerSec = 100 // fast enough for tests, still exercises the limiter

	runner, store := newTestRunner(t, true, cfg)
	seedN(t, store, 3)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Processed != 3 {
		t.Errorf("expected 3 processed, got %d", summary.Processed)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"default", func(c *Config) {}, true},
		{"lead population", func(c *Config) { c.Population = types.TypeLead }, true},
		{"bad population", func(c *Config) { c.Population = "prospect" }, false},
		{"negative limit", func(c *Config) { c.Limit = -1 }, false},
		{"zero workers", func(c *Config) { c.Workers = 0 }, false},
		{"negative rate", func(c *Config) { c.RatePerSec = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
