package detection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/crmkit/dupcheck/internal/similarity"
	"github.com/crmkit/dupcheck/internal/storage"
	"github.com/crmkit/dupcheck/internal/storage/sqlite"
	"github.com/crmkit/dupcheck/internal/types"
)

func newTestDetector(t *testing.T) (*StoreDetector, storage.Storage) {
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

	detector, err := NewStoreDetector(store, scorer, DefaultThresholds())
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}

	return detector, store
}

func seedContact(t *testing.T, store storage.Storage, c types.ContactRecord) types.ContactRecord {
	t.Helper()
	if c.Status == "" {
		c.Status = types.ContactActive
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := store.CreateContact(context.Background(), &c); err != nil {
		t.Fatalf("failed to seed contact %s: %v", c.ID, err)
	}
	return c
}

func TestFindPotentialDuplicatesRanked(t *testing.T) {
	detector, store := newTestDetector(t)
	ctx := context.Background()

	// Strong match: same email
	seedContact(t, store, types.ContactRecord{
		ID: "c-1", Type: types.TypeCustomer,
		Email: "jane@example.com", FirstName: "Janet", LastName: "Doe",
	})
	// Weaker match: similar name only
	seedContact(t, store, types.ContactRecord{
		ID: "c-2", Type: types.TypeCustomer,
		Email: "other@example.com", FirstName: "Jane", LastName: "Doe",
	})
	// No relation at all
	seedContact(t, store, types.ContactRecord{
		ID: "c-3", Type: types.TypeCustomer,
		Email: "bob@elsewhere.org", FirstName: "Bob", LastName: "Smith",
	})

	probe := types.ContactRecord{
		ID: "l-1", Type: types.TypeLead, Status: types.ContactActive,
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	}

	matches, err := detector.FindPotentialDuplicates(ctx, probe, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Record.ID != "c-1" {
		t.Errorf("expected email match ranked first, got %s", matches[0].Record)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Confidence > matches[i-1].Confidence {
			t.Errorf("matches not sorted descending at index %d", i)
		}
	}
	for _, m := range matches {
		if m.Record.ID == "c-3" {
			t.Errorf("unrelated record c-3 scored %.2f, above the floor", m.Confidence)
		}
		if len(m.Reasons) == 0 {
			t.Errorf("match %s has no reasons", m.Record)
		}
	}
}

func TestFindPotentialDuplicatesScansWholeStore(t *testing.T) {
	detector, store := newTestDetector(t)
	ctx := context.Background()

	// Far more contacts than any historical scoring window, all older
	// than the one real duplicate
	base := time.Now().UTC().Add(-48 * time.Hour)
	for i := 0; i < 501; i++ {
		seedContact(t, store, types.ContactRecord{
			ID: fmt.Sprintf("c-%d", i), Type: types.TypeCustomer,
			Email:     fmt.Sprintf("filler%d@example.com", i),
			FirstName: fmt.Sprintf("Filler%d", i), LastName: "Case",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	seedContact(t, store, types.ContactRecord{
		ID: "c-new", Type: types.TypeCustomer,
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	})

	probe := types.ContactRecord{
		ID: "l-1", Type: types.TypeLead, Status: types.ContactActive,
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	}

	matches, err := detector.FindPotentialDuplicates(ctx, probe, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly the newest duplicate, got %d matches", len(matches))
	}
	if matches[0].Record.ID != "c-new" {
		t.Errorf("newest duplicate not found, got %s", matches[0].Record)
	}
}

func TestFindPotentialDuplicatesExplicitCap(t *testing.T) {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	scorer, err := similarity.NewScorer(similarity.DefaultWeights())
	if err != nil {
		t.Fatalf("failed to create scorer: %v", err)
	}
	th := DefaultThresholds()
	th.MaxCandidates = 3
	detector, err := NewStoreDetector(store, scorer, th)
	if err != nil {
		t.Fatalf("failed to create detector: %v", err)
	}
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	names := [][2]string{
		{"Alice", "Anders"}, {"Bruno", "Keller"}, {"Chen", "Wu"},
		{"Dana", "Obi"}, {"Eve", "Stone"},
	}
	for i, n := range names {
		seedContact(t, store, types.ContactRecord{
			ID: fmt.Sprintf("c-%d", i), Type: types.TypeCustomer,
			Email:     fmt.Sprintf("filler%d@example.com", i),
			FirstName: n[0], LastName: n[1],
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	// The cap bounds the scan to the three oldest contacts
	probe := types.ContactRecord{
		ID: "l-1", Type: types.TypeLead, Status: types.ContactActive,
		Email: "filler4@example.com", FirstName: "Eve", LastName: "Stone",
	}
	matches, err := detector.FindPotentialDuplicates(ctx, probe, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("cap of 3 should exclude the newest contacts, got %+v", matches)
	}

	probe.Email = "filler0@example.com"
	probe.FirstName = "Alice"
	probe.LastName = "Anders"
	matches, err = detector.FindPotentialDuplicates(ctx, probe, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Record.ID != "c-0" {
		t.Errorf("expected the oldest contact inside the cap, got %+v", matches)
	}
}

func TestFindPotentialDuplicatesCrossType(t *testing.T) {
	detector, store := newTestDetector(t)
	ctx := context.Background()

	// A lead can duplicate a customer
	seedContact(t, store, types.ContactRecord{
		ID: "c-1", Type: types.TypeCustomer,
		Email: "sam@example.com", FirstName: "Sam", LastName: "Lee",
	})

	probe := types.ContactRecord{
		ID: "l-9", Type: types.TypeLead, Status: types.ContactActive,
		Email: "SAM@Example.com", FirstName: "Sam", LastName: "Lee",
	}

	matches, err := detector.FindPotentialDuplicates(ctx, probe, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Record.Type != types.TypeCustomer {
		t.Errorf("expected customer match, got %s", matches[0].Record.Type)
	}
}

func TestFindPotentialDuplicatesExcludesSelf(t *testing.T) {
	detector, store := newTestDetector(t)
	ctx := context.Background()

	stored := seedContact(t, store, types.ContactRecord{
		ID: "l-1", Type: types.TypeLead,
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	})

	self := stored.Ref()
	matches, err := detector.FindPotentialDuplicates(ctx, stored, &self)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, m := range matches {
		if m.Record == self {
			t.Errorf("record matched itself: %s", m.Record)
		}
	}

	// Without exclusion the stored copy matches at 1.0
	matches, err = detector.FindPotentialDuplicates(ctx, stored, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Confidence != 1.0 {
		t.Errorf("expected self-match at 1.0 without exclusion, got %+v", matches)
	}
}

func TestFindPotentialDuplicatesSkipsConsumedRecords(t *testing.T) {
	detector, store := newTestDetector(t)
	ctx := context.Background()

	seedContact(t, store, types.ContactRecord{
		ID: "c-1", Type: types.TypeCustomer,
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	})
	seedContact(t, store, types.ContactRecord{
		ID: "c-2", Type: types.TypeCustomer,
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	})

	// c-1 is consumed by a pending merge
	err := store.RecordMergeOperation(ctx, &types.MergeOperation{
		ID:     "merge-1",
		Source: types.RecordRef{Type: types.TypeCustomer, ID: "c-1"},
		Target: types.RecordRef{Type: types.TypeCustomer, ID: "c-9"},
		Status: types.MergePending,
		Actor:  "system",
	})
	if err != nil {
		t.Fatalf("failed to record pending merge: %v", err)
	}

	probe := types.ContactRecord{
		ID: "l-1", Type: types.TypeLead, Status: types.ContactActive,
		Email: "jane@example.com", FirstName: "Jane", LastName: "Doe",
	}
	matches, err := detector.FindPotentialDuplicates(ctx, probe, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match after exclusion, got %d", len(matches))
	}
	if matches[0].Record.ID != "c-2" {
		t.Errorf("expected c-2, got %s", matches[0].Record)
	}
}

func TestClassifyBandsPartition(t *testing.T) {
	detector, _ := newTestDetector(t)

	tests := []struct {
		confidence float64
		action     types.RecommendedAction
	}{
		{0.0, types.ActionIgnore},
		{0.49, types.ActionIgnore},
		{0.50, types.ActionReview}, // review bound is inclusive
		{0.70, types.ActionReview},
		{0.85, types.ActionReview}, // auto-merge bound is exclusive
		{0.86, types.ActionMerge},
		{1.0, types.ActionMerge},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.confidence), func(t *testing.T) {
			if got := detector.Classify(tt.confidence); got != tt.action {
				t.Errorf("Classify(%.2f) = %s, want %s", tt.confidence, got, tt.action)
			}
			// Exactly one band claims each confidence
			auto := detector.ShouldAutoMerge(tt.confidence)
			review := detector.ShouldFlagForReview(tt.confidence)
			if auto && review {
				t.Errorf("confidence %.2f claimed by both bands", tt.confidence)
			}
		})
	}
}

func TestReviewPriorityBands(t *testing.T) {
	detector, _ := newTestDetector(t)

	if got := detector.ReviewPriority(0.84); got != types.PriorityHigh {
		t.Errorf("expected high priority at 0.84, got %s", got)
	}
	if got := detector.ReviewPriority(0.70); got != types.PriorityMedium {
		t.Errorf("expected medium priority at 0.70 (bound is exclusive), got %s", got)
	}
	if got := detector.ReviewPriority(0.55); got != types.PriorityMedium {
		t.Errorf("expected medium priority at 0.55, got %s", got)
	}
}

func TestBuildResultDerivesInvariants(t *testing.T) {
	detector, _ := newTestDetector(t)

	record := types.ContactRecord{
		ID: "l-1", Type: types.TypeLead, Status: types.ContactActive,
		Email: "jane@example.com",
	}
	matches := []types.PotentialMatch{
		{Record: types.RecordRef{Type: types.TypeCustomer, ID: "c-1"}, Confidence: 0.92, Reasons: []string{"exact email match"}},
		{Record: types.RecordRef{Type: types.TypeCustomer, ID: "c-2"}, Confidence: 0.61, Reasons: []string{"fuzzy name match (0.80)"}},
	}

	result := detector.BuildResult("det-1", record, matches)
	if err := result.Validate(); err != nil {
		t.Fatalf("built result failed validation: %v", err)
	}
	if result.HighestConfidence != 0.92 {
		t.Errorf("expected highest confidence 0.92, got %.2f", result.HighestConfidence)
	}
	if result.RecommendedAction != types.ActionMerge {
		t.Errorf("expected merge recommendation, got %s", result.RecommendedAction)
	}
	if result.Status != types.DetectionPending {
		t.Errorf("expected pending status, got %s", result.Status)
	}

	// No matches at all classifies as ignore
	empty := detector.BuildResult("det-2", record, nil)
	if empty.RecommendedAction != types.ActionIgnore {
		t.Errorf("expected ignore for empty match list, got %s", empty.RecommendedAction)
	}
	if empty.HighestConfidence != 0.0 {
		t.Errorf("expected 0.0 highest confidence, got %.2f", empty.HighestConfidence)
	}
}
