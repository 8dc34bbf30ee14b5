package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crmkit/dupcheck/internal/types"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	// Ensure directory exists (skip for in-memory databases)
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one
	// so every query sees the same database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateContact inserts a new contact record
func (s *SQLiteStorage) CreateContact(ctx context.Context, contact *types.ContactRecord) error {
	if err := contact.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (id, type, email, phone, first_name, last_name, address, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, contact.ID, contact.Type, contact.Email, contact.Phone,
		contact.FirstName, contact.LastName, contact.Address, contact.Status, contact.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact %s: %w", contact.Ref(), err)
	}

	return nil
}

// GetContact fetches a contact record by type+id
func (s *SQLiteStorage) GetContact(ctx context.Context, ref types.RecordRef) (*types.ContactRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, email, phone, first_name, last_name, address, status, created_at
		FROM contacts
		WHERE type = ? AND id = ?
	`, ref.Type, ref.ID)

	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contact %s not found", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", ref, err)
	}
	return contact, nil
}

// ListContacts returns contacts matching the filter, ordered by
// creation time (oldest first) so batch windows are stable
func (s *SQLiteStorage) ListContacts(ctx context.Context, filter types.ContactFilter) ([]*types.ContactRecord, error) {
	query := `
		SELECT id, type, email, phone, first_name, last_name, address, status, created_at
		FROM contacts
		WHERE 1=1`
	var args []interface{}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at ASC, type ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []*types.ContactRecord
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}

// CountContacts returns how many contacts match the filter
func (s *SQLiteStorage) CountContacts(ctx context.Context, filter types.ContactFilter) (int, error) {
	query := "SELECT COUNT(*) FROM contacts WHERE 1=1"
	var args []interface{}

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan helpers
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanContact reads one contact row
func scanContact(row scanner) (*types.ContactRecord, error) {
	var c types.ContactRecord
	err := row.Scan(&c.ID, &c.Type, &c.Email, &c.Phone,
		&c.FirstName, &c.LastName, &c.Address, &c.Status, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// StoreStats holds store-wide counts for the status command
type StoreStats struct {
	TotalContacts     int
	ContactsByType    map[string]int
	ContactsByStatus  map[string]int
	DetectionResults  int
	PendingDetections int
	PendingReviews    int
	MergeOperations   int
	MergesByStatus    map[string]int
}

// GetStatistics returns store-wide counts
func (s *SQLiteStorage) GetStatistics(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{
		ContactsByType:   make(map[string]int),
		ContactsByStatus: make(map[string]int),
		MergesByStatus:   make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contacts").Scan(&stats.TotalContacts); err != nil {
		return nil, fmt.Errorf("failed to count contacts: %w", err)
	}

	if err := s.countGrouped(ctx, "SELECT type, COUNT(*) FROM contacts GROUP BY type", stats.ContactsByType); err != nil {
		return nil, err
	}
	if err := s.countGrouped(ctx, "SELECT status, COUNT(*) FROM contacts GROUP BY status", stats.ContactsByStatus); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM detection_results").Scan(&stats.DetectionResults); err != nil {
		return nil, fmt.Errorf("failed to count detection results: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM detection_results WHERE status = 'pending'").Scan(&stats.PendingDetections); err != nil {
		return nil, fmt.Errorf("failed to count pending detections: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM review_queue WHERE status = 'pending'").Scan(&stats.PendingReviews); err != nil {
		return nil, fmt.Errorf("failed to count pending reviews: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM merge_operations").Scan(&stats.MergeOperations); err != nil {
		return nil, fmt.Errorf("failed to count merge operations: %w", err)
	}
	if err := s.countGrouped(ctx, "SELECT status, COUNT(*) FROM merge_operations GROUP BY status", stats.MergesByStatus); err != nil {
		return nil, err
	}

	return stats, nil
}

// countGrouped runs a two-column (key, count) query into a map
func (s *SQLiteStorage) countGrouped(ctx context.Context, query string, dest map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query grouped counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan grouped count: %w", err)
		}
		dest[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating grouped counts: %w", err)
	}
	return nil
}

// VacuumDatabase runs the VACUUM command to reclaim disk space
// This can be slow and locks the database, so it should be run during
// maintenance windows
func (s *SQLiteStorage) VacuumDatabase(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	if err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
