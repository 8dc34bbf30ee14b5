package types

import (
	"fmt"
	"strings"
	"time"
)

// ContactRecord is the unified view of a lead or customer used for
// duplicate matching. Records are immutable once created except through
// a merge, which retires the source record.
type ContactRecord struct {
	ID        string        `json:"id"`
	Type      RecordType    `json:"type"`
	Email     string        `json:"email,omitempty"`
	Phone     string        `json:"phone,omitempty"`
	FirstName string        `json:"first_name,omitempty"`
	LastName  string        `json:"last_name,omitempty"`
	Address   string        `json:"address,omitempty"`
	Status    ContactStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Validate checks if the contact record has valid field values
func (c *ContactRecord) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid record type: %s", c.Type)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid contact status: %s", c.Status)
	}
	// A record with neither email, phone, nor a name can never be
	// matched against anything and would pollute the candidate set.
	if strings.TrimSpace(c.Email) == "" &&
		strings.TrimSpace(c.Phone) == "" &&
		strings.TrimSpace(c.FirstName) == "" &&
		strings.TrimSpace(c.LastName) == "" {
		return fmt.Errorf("contact must have at least one of email, phone, or name")
	}
	return nil
}

// FullName returns the first and last name joined for display and matching
func (c *ContactRecord) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Ref returns the type+id reference for this record
func (c *ContactRecord) Ref() RecordRef {
	return RecordRef{Type: c.Type, ID: c.ID}
}

// RecordType distinguishes leads from customers
type RecordType string

const (
	TypeLead     RecordType = "lead"
	TypeCustomer RecordType = "customer"
)

// IsValid checks if the record type value is valid
func (t RecordType) IsValid() bool {
	switch t {
	case TypeLead, TypeCustomer:
		return true
	}
	return false
}

// ContactStatus represents the lifecycle state of a contact record
type ContactStatus string

const (
	ContactActive ContactStatus = "active"
	ContactMerged ContactStatus = "merged"
)

// IsValid checks if the contact status value is valid
func (s ContactStatus) IsValid() bool {
	switch s {
	case ContactActive, ContactMerged:
		return true
	}
	return false
}

// RecordRef identifies a contact record by type and id.
// Leads and customers live in separate populations, so the id alone
// is not globally unique.
type RecordRef struct {
	Type RecordType `json:"type"`
	ID   string     `json:"id"`
}

// String returns the "type:id" form used in logs and review display
func (r RecordRef) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.ID)
}

// PotentialMatch is a scored candidate duplicate. It has no lifecycle
// of its own; it is embedded in a DetectionResult.
type PotentialMatch struct {
	Record     RecordRef `json:"record"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons"`
}

// Validate checks if the potential match has valid values
func (m *PotentialMatch) Validate() error {
	if m.Record.ID == "" {
		return fmt.Errorf("match record id is required")
	}
	if !m.Record.Type.IsValid() {
		return fmt.Errorf("invalid match record type: %s", m.Record.Type)
	}
	if m.Confidence < 0.0 || m.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0 (got %.2f)", m.Confidence)
	}
	return nil
}

// RecommendedAction is the classification of a detection outcome
type RecommendedAction string

const (
	ActionMerge  RecommendedAction = "merge"
	ActionReview RecommendedAction = "review"
	ActionIgnore RecommendedAction = "ignore"
)

// IsValid checks if the recommended action value is valid
func (a RecommendedAction) IsValid() bool {
	switch a {
	case ActionMerge, ActionReview, ActionIgnore:
		return true
	}
	return false
}

// DetectionStatus represents the lifecycle state of a detection result
type DetectionStatus string

const (
	DetectionPending       DetectionStatus = "pending"
	DetectionApproved      DetectionStatus = "approved"
	DetectionAutoProcessed DetectionStatus = "auto_processed"
	DetectionRejected      DetectionStatus = "rejected"
)

// IsValid checks if the detection status value is valid
func (s DetectionStatus) IsValid() bool {
	switch s {
	case DetectionPending, DetectionApproved, DetectionAutoProcessed, DetectionRejected:
		return true
	}
	return false
}

// IsTerminal reports whether the result can be retired by the sweeper
func (s DetectionStatus) IsTerminal() bool {
	return s == DetectionApproved || s == DetectionAutoProcessed || s == DetectionRejected
}

// DetectionResult records one duplicate-detection run for a record:
// the input snapshot, the ranked matches, and what became of them.
type DetectionResult struct {
	ID                string            `json:"id"`
	Record            RecordRef         `json:"record"`
	Snapshot          ContactRecord     `json:"snapshot"`
	Matches           []PotentialMatch  `json:"matches"`
	HighestConfidence float64           `json:"highest_confidence"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
	Status            DetectionStatus   `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Validate checks if the detection result has valid values.
// HighestConfidence must equal the maximum match confidence, and the
// match list must be sorted descending.
func (d *DetectionResult) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("invalid detection status: %s", d.Status)
	}
	if !d.RecommendedAction.IsValid() {
		return fmt.Errorf("invalid recommended action: %s", d.RecommendedAction)
	}
	max := 0.0
	prev := 1.0
	for i := range d.Matches {
		if err := d.Matches[i].Validate(); err != nil {
			return fmt.Errorf("match %d: %w", i, err)
		}
		if d.Matches[i].Confidence > prev {
			return fmt.Errorf("matches must be sorted descending by confidence (index %d)", i)
		}
		prev = d.Matches[i].Confidence
		if d.Matches[i].Confidence > max {
			max = d.Matches[i].Confidence
		}
		if d.Matches[i].Record == d.Record {
			return fmt.Errorf("result for %s contains itself as a match", d.Record)
		}
	}
	if d.HighestConfidence != max {
		return fmt.Errorf("highest_confidence (%.4f) does not equal max match confidence (%.4f)",
			d.HighestConfidence, max)
	}
	return nil
}

// ReviewPriority orders the manual review queue
type ReviewPriority string

const (
	PriorityHigh   ReviewPriority = "high"
	PriorityMedium ReviewPriority = "medium"
	PriorityLow    ReviewPriority = "low"
)

// IsValid checks if the review priority value is valid
func (p ReviewPriority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank returns a sortable weight, lower is more urgent
func (p ReviewPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// ReviewStatus represents the lifecycle state of a review queue entry
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewCompleted ReviewStatus = "completed"
)

// IsValid checks if the review status value is valid
func (s ReviewStatus) IsValid() bool {
	return s == ReviewPending || s == ReviewCompleted
}

// ReviewEntry queues an ambiguous detection result for a human decision
type ReviewEntry struct {
	ID          string         `json:"id"`
	DetectionID string         `json:"detection_id"`
	Priority    ReviewPriority `json:"priority"`
	Status      ReviewStatus   `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Validate checks if the review entry has valid values
func (r *ReviewEntry) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.DetectionID == "" {
		return fmt.Errorf("detection_id is required")
	}
	if !r.Priority.IsValid() {
		return fmt.Errorf("invalid review priority: %s", r.Priority)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid review status: %s", r.Status)
	}
	return nil
}

// MergeStatus represents the lifecycle state of a merge operation
type MergeStatus string

const (
	MergePending   MergeStatus = "pending"
	MergeCompleted MergeStatus = "completed"
	MergeFailed    MergeStatus = "failed"
)

// IsValid checks if the merge status value is valid
func (s MergeStatus) IsValid() bool {
	switch s {
	case MergePending, MergeCompleted, MergeFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the operation can be retired by the sweeper
func (s MergeStatus) IsTerminal() bool {
	return s == MergeCompleted || s == MergeFailed
}

// FieldConflict records a field where both records held different
// non-empty values. The losing value is kept here so a merge never
// silently drops data.
type FieldConflict struct {
	Field       string `json:"field"`
	SourceValue string `json:"source_value"`
	TargetValue string `json:"target_value"`
	Resolved    string `json:"resolved"`
}

// MergeOperation is the audit record for merging a source record into
// a target record, whether automatic or human-approved.
type MergeOperation struct {
	ID        string          `json:"id"`
	Source    RecordRef       `json:"source"`
	Target    RecordRef       `json:"target"`
	Conflicts []FieldConflict `json:"conflicts,omitempty"`
	Status    MergeStatus     `json:"status"`
	Error     string          `json:"error,omitempty"`
	Actor     string          `json:"actor"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks if the merge operation has valid values
func (m *MergeOperation) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.Source.ID == "" || m.Target.ID == "" {
		return fmt.Errorf("source and target are required")
	}
	if m.Source == m.Target {
		return fmt.Errorf("cannot merge a record into itself (%s)", m.Source)
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("invalid merge status: %s", m.Status)
	}
	if m.Status == MergeFailed && m.Error == "" {
		return fmt.Errorf("failed merge must record an error")
	}
	return nil
}

// ContactFilter narrows contact queries for candidate selection and
// batch iteration
type ContactFilter struct {
	Type   RecordType    // empty for both populations
	Status ContactStatus // empty for any status
	Limit  int           // 0 for no limit
}
