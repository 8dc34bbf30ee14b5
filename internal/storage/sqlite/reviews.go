package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/crmkit/dupcheck/internal/types"
)

// CreateReviewEntry queues a detection result for manual review
func (s *SQLiteStorage) CreateReviewEntry(ctx context.Context, entry *types.ReviewEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_queue (id, detection_id, priority, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.DetectionID, entry.Priority, entry.Status, entry.CreatedAt, entry.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review entry %s: %w", entry.ID, err)
	}

	return nil
}

// GetReviewEntry fetches a review entry by id
func (s *SQLiteStorage) GetReviewEntry(ctx context.Context, id string) (*types.ReviewEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, detection_id, priority, status, created_at, completed_at
		FROM review_queue
		WHERE id = ?
	`, id)

	entry, err := scanReviewEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review entry %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review entry %s: %w", id, err)
	}
	return entry, nil
}

// ListPendingReviews returns open review entries, most urgent first.
// Priority orders high before medium before low; within a priority the
// oldest entry comes first.
func (s *SQLiteStorage) ListPendingReviews(ctx context.Context, limit int) ([]*types.ReviewEntry, error) {
	query := `
		SELECT id, detection_id, priority, status, created_at, completed_at
		FROM review_queue
		WHERE status = 'pending'
		ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at ASC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*types.ReviewEntry
	for rows.Next() {
		entry, err := scanReviewEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review entries: %w", err)
	}

	return entries, nil
}

// CompleteReviewEntry closes a review entry
func (s *SQLiteStorage) CompleteReviewEntry(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE review_queue
		SET status = 'completed', completed_at = ?
		WHERE id = ? AND status = 'pending'
	`, now, id)
	if err != nil {
		return fmt.Errorf("failed to complete review entry %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("review entry %s not found or already completed", id)
	}

	return nil
}

// scanReviewEntry reads one review queue row
func scanReviewEntry(row scanner) (*types.ReviewEntry, error) {
	var e types.ReviewEntry
	var completedAt sql.NullTime
	err := row.Scan(&e.ID, &e.DetectionID, &e.Priority, &e.Status, &e.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}
