package sqlite

import (
	"context"
	"fmt"
	"time"
)

// CleanupPreview holds what a retention sweep would delete, for dry runs
type CleanupPreview struct {
	DetectionResults int
	ReviewEntries    int
	MergeOperations  int
}

// Total returns the total number of rows the sweep would delete
func (p *CleanupPreview) Total() int {
	return p.DetectionResults + p.ReviewEntries + p.MergeOperations
}

// CleanupDetectionResults deletes terminal detection results older than
// the retention period. Deletions are batched (batchSize rows per
// statement) so a large backlog does not hold the write lock for long.
// Review queue entries referencing a deleted result go with it via
// ON DELETE CASCADE.
func (s *SQLiteStorage) CleanupDetectionResults(ctx context.Context, retentionDays, batchSize int) (int, error) {
	if retentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	return s.deleteBatched(ctx, `
		DELETE FROM detection_results
		WHERE id IN (
			SELECT id FROM detection_results
			WHERE created_at < ?
			AND status IN ('approved', 'auto_processed', 'rejected')
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, cutoff, batchSize)
}

// CleanupReviewEntries deletes completed review entries older than the
// retention period
func (s *SQLiteStorage) CleanupReviewEntries(ctx context.Context, retentionDays, batchSize int) (int, error) {
	if retentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	return s.deleteBatched(ctx, `
		DELETE FROM review_queue
		WHERE id IN (
			SELECT id FROM review_queue
			WHERE created_at < ?
			AND status = 'completed'
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, cutoff, batchSize)
}

// CleanupMergeOperations deletes terminal merge operations older than
// the retention period. With keepFailed, failed merges are retained
// regardless of age for diagnostics and only completed ones are
// deleted.
func (s *SQLiteStorage) CleanupMergeOperations(ctx context.Context, retentionDays, batchSize int, keepFailed bool) (int, error) {
	if retentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	statuses := "'completed', 'failed'"
	if keepFailed {
		statuses = "'completed'"
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	query := fmt.Sprintf(`
		DELETE FROM merge_operations
		WHERE id IN (
			SELECT id FROM merge_operations
			WHERE created_at < ?
			AND status IN (%s)
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, statuses)

	return s.deleteBatched(ctx, query, cutoff, batchSize)
}

// deleteBatched repeats a LIMIT-bounded delete until it comes up short
func (s *SQLiteStorage) deleteBatched(ctx context.Context, query string, cutoff time.Time, batchSize int) (int, error) {
	totalDeleted := 0

	for {
		// Check context cancellation between batches
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		result, err := s.db.ExecContext(ctx, query, cutoff, batchSize)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}

		totalDeleted += int(rowsAffected)

		// Fewer than batchSize deleted means we're done
		if rowsAffected < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// PreviewCleanup counts what a retention sweep would delete without
// deleting anything. Dry runs report from this and commit nothing.
func (s *SQLiteStorage) PreviewCleanup(ctx context.Context, retentionDays int, keepFailed bool) (*CleanupPreview, error) {
	if retentionDays < 0 {
		return nil, fmt.Errorf("retention days cannot be negative")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	preview := &CleanupPreview{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM detection_results
		WHERE created_at < ? AND status IN ('approved', 'auto_processed', 'rejected')
	`, cutoff).Scan(&preview.DetectionResults)
	if err != nil {
		return nil, fmt.Errorf("failed to count detection results: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_queue
		WHERE created_at < ? AND status = 'completed'
	`, cutoff).Scan(&preview.ReviewEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to count review entries: %w", err)
	}

	statuses := "'completed', 'failed'"
	if keepFailed {
		statuses = "'completed'"
	}
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FROM merge_operations
		WHERE created_at < ? AND status IN (%s)
	`, statuses), cutoff).Scan(&preview.MergeOperations)
	if err != nil {
		return nil, fmt.Errorf("failed to count merge operations: %w", err)
	}

	return preview, nil
}
