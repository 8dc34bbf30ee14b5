package types

import (
	"strings"
	"testing"
	"time"
)

func TestContactRecordValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name        string
		record      ContactRecord
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid lead",
			record: ContactRecord{
				ID: "lead-1", Type: TypeLead, Email: "a@x.com",
				Status: ContactActive, CreatedAt: now,
			},
			expectError: false,
		},
		{
			name: "valid customer with only a name",
			record: ContactRecord{
				ID: "cust-1", Type: TypeCustomer, FirstName: "Ada",
				Status: ContactActive, CreatedAt: now,
			},
			expectError: false,
		},
		{
			name:        "missing id",
			record:      ContactRecord{Type: TypeLead, Email: "a@x.com", Status: ContactActive},
			expectError: true,
			errorMsg:    "id is required",
		},
		{
			name:        "bad type",
			record:      ContactRecord{ID: "x", Type: "prospect", Email: "a@x.com", Status: ContactActive},
			expectError: true,
			errorMsg:    "invalid record type",
		},
		{
			name:        "no matchable fields",
			record:      ContactRecord{ID: "x", Type: TypeLead, Address: "1 Main St", Status: ContactActive},
			expectError: true,
			errorMsg:    "at least one of email, phone, or name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.errorMsg)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDetectionResultValidate(t *testing.T) {
	self := RecordRef{Type: TypeLead, ID: "lead-1"}
	other := RecordRef{Type: TypeCustomer, ID: "cust-9"}

	valid := DetectionResult{
		ID:     "det-1",
		Record: self,
		Matches: []PotentialMatch{
			{Record: other, Confidence: 0.9, Reasons: []string{"exact email match"}},
			{Record: RecordRef{Type: TypeLead, ID: "lead-7"}, Confidence: 0.6},
		},
		HighestConfidence: 0.9,
		RecommendedAction: ActionMerge,
		Status:            DetectionPending,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid result rejected: %v", err)
	}

	// highest_confidence out of sync with matches
	stale := valid
	stale.HighestConfidence = 0.5
	if err := stale.Validate(); err == nil {
		t.Error("expected error for stale highest_confidence")
	}

	// unsorted match list
	unsorted := valid
	unsorted.Matches = []PotentialMatch{
		{Record: other, Confidence: 0.6},
		{Record: RecordRef{Type: TypeLead, ID: "lead-7"}, Confidence: 0.9},
	}
	if err := unsorted.Validate(); err == nil {
		t.Error("expected error for unsorted matches")
	}

	// self-match must never appear in the result
	selfMatch := valid
	selfMatch.Matches = []PotentialMatch{{Record: self, Confidence: 0.9}}
	if err := selfMatch.Validate(); err == nil {
		t.Error("expected error for self-match in result")
	}
}

func TestMergeOperationValidate(t *testing.T) {
	src := RecordRef{Type: TypeLead, ID: "lead-1"}
	dst := RecordRef{Type: TypeCustomer, ID: "cust-2"}

	op := MergeOperation{ID: "m-1", Source: src, Target: dst, Status: MergePending, Actor: "system"}
	if err := op.Validate(); err != nil {
		t.Fatalf("valid operation rejected: %v", err)
	}

	op.Target = src
	if err := op.Validate(); err == nil {
		t.Error("expected error for self-merge")
	}

	op.Target = dst
	op.Status = MergeFailed
	if err := op.Validate(); err == nil {
		t.Error("expected error for failed merge without an error message")
	}
	op.Error = "unique constraint violated"
	if err := op.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStatusTerminality(t *testing.T) {
	if DetectionPending.IsTerminal() {
		t.Error("pending detection must not be terminal")
	}
	for _, s := range []DetectionStatus{DetectionApproved, DetectionAutoProcessed, DetectionRejected} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if MergePending.IsTerminal() {
		t.Error("pending merge must not be terminal")
	}
	if !MergeFailed.IsTerminal() || !MergeCompleted.IsTerminal() {
		t.Error("failed and completed merges are terminal")
	}
}

func TestPriorityRank(t *testing.T) {
	if !(PriorityHigh.Rank() < PriorityMedium.Rank() && PriorityMedium.Rank() < PriorityLow.Rank()) {
		t.Error("priority rank ordering is wrong")
	}
}
