package review

import (
	"testing"
	"time"

	"github.com/crmkit/dupcheck/internal/types"
)

func TestResolveFieldsPrefersNonEmpty(t *testing.T) {
	source := &types.ContactRecord{
		ID: "l-1", Type: types.TypeLead,
		Email: "jane@example.com", Phone: "",
		FirstName: "Jane", LastName: "Doe",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	target := &types.ContactRecord{
		ID: "c-1", Type: types.TypeCustomer,
		Email: "", Phone: "555-0100",
		FirstName: "Jane", LastName: "Doe",
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	resolved, conflicts := ResolveFields(source, target)
	if len(conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", conflicts)
	}
	if resolved.Email != "jane@example.com" {
		t.Errorf("expected source email to fill empty target field, got %q", resolved.Email)
	}
	if resolved.Phone != "555-0100" {
		t.Errorf("expected target phone to survive, got %q", resolved.Phone)
	}
	// Target identity is preserved
	if resolved.ID != "c-1" || resolved.Type != types.TypeCustomer {
		t.Errorf("resolved record lost target identity: %s:%s", resolved.Type, resolved.ID)
	}
}

func TestResolveFieldsNewerValueWinsConflicts(t *testing.T) {
	older := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	source := &types.ContactRecord{
		ID: "l-1", Type: types.TypeLead,
		Email: "jane.new@example.com", Address: "42 New St",
		CreatedAt: newer,
	}
	target := &types.ContactRecord{
		ID: "c-1", Type: types.TypeCustomer,
		Email: "jane.old@example.com", Address: "1 Old Rd",
		CreatedAt: older,
	}

	resolved, conflicts := ResolveFields(source, target)
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts, got %d: %+v", len(conflicts), conflicts)
	}
	if resolved.Email != "jane.new@example.com" {
		t.Errorf("expected newer email to win, got %q", resolved.Email)
	}

	for _, c := range conflicts {
		if c.Resolved == "" || c.SourceValue == "" || c.TargetValue == "" {
			t.Errorf("conflict entry dropped a value: %+v", c)
		}
		if c.Resolved != c.SourceValue {
			t.Errorf("expected newer (source) value resolved for %s, got %q", c.Field, c.Resolved)
		}
	}

	// Flip creation order: target's values win instead
	source.CreatedAt, target.CreatedAt = older, newer
	resolved, conflicts = ResolveFields(source, target)
	if resolved.Email != "jane.old@example.com" {
		t.Errorf("expected newer (target) email to win after flip, got %q", resolved.Email)
	}
	if len(conflicts) != 2 {
		t.Errorf("expected conflicts recorded regardless of winner, got %d", len(conflicts))
	}
}

func TestResolveFieldsEqualValuesNoConflict(t *testing.T) {
	source := &types.ContactRecord{
		ID: "l-1", Type: types.TypeLead,
		Email: "jane@example.com", FirstName: "Jane",
	}
	target := &types.ContactRecord{
		ID: "c-1", Type: types.TypeCustomer,
		Email: "jane@example.com", FirstName: "Jane",
	}

	_, conflicts := ResolveFields(source, target)
	if len(conflicts) != 0 {
		t.Errorf("identical values should not conflict, got %+v", conflicts)
	}
}
