package storage

import (
	"context"

	"github.com/crmkit/dupcheck/internal/storage/sqlite"
	"github.com/crmkit/dupcheck/internal/types"
)

// Storage defines the interface for the contact and detection store
type Storage interface {
	// Contacts - the record population being matched
	CreateContact(ctx context.Context, contact *types.ContactRecord) error
	GetContact(ctx context.Context, ref types.RecordRef) (*types.ContactRecord, error)
	ListContacts(ctx context.Context, filter types.ContactFilter) ([]*types.ContactRecord, error)
	CountContacts(ctx context.Context, filter types.ContactFilter) (int, error)

	// Detection results
	CreateDetectionResult(ctx context.Context, result *types.DetectionResult) error
	GetDetectionResult(ctx context.Context, id string) (*types.DetectionResult, error)
	UpdateDetectionStatus(ctx context.Context, id string, status types.DetectionStatus) error

	// Manual review queue
	CreateReviewEntry(ctx context.Context, entry *types.ReviewEntry) error
	GetReviewEntry(ctx context.Context, id string) (*types.ReviewEntry, error)
	ListPendingReviews(ctx context.Context, limit int) ([]*types.ReviewEntry, error)
	CompleteReviewEntry(ctx context.Context, id string) error

	// Merge operations
	RecordMergeOperation(ctx context.Context, op *types.MergeOperation) error
	ExecuteMerge(ctx context.Context, op *types.MergeOperation, resolved *types.ContactRecord) error
	ListMergeOperations(ctx context.Context, limit int) ([]*types.MergeOperation, error)
	ActiveMergeRefs(ctx context.Context) (map[types.RecordRef]bool, error)

	// Retention - batched deletion of aged terminal rows
	CleanupDetectionResults(ctx context.Context, retentionDays, batchSize int) (int, error)
	CleanupReviewEntries(ctx context.Context, retentionDays, batchSize int) (int, error)
	CleanupMergeOperations(ctx context.Context, retentionDays, batchSize int, keepFailed bool) (int, error)
	PreviewCleanup(ctx context.Context, retentionDays int, keepFailed bool) (*sqlite.CleanupPreview, error)

	// Statistics
	GetStatistics(ctx context.Context) (*sqlite.StoreStats, error)
	VacuumDatabase(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".dupcheck/contacts.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".dupcheck/contacts.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".dupcheck/contacts.db"
	}

	return sqlite.New(cfg.Path)
}
