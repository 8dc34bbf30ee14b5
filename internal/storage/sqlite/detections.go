package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crmkit/dupcheck/internal/types"
)

// CreateDetectionResult persists a detection result with its snapshot
// and ranked match list
func (s *SQLiteStorage) CreateDetectionResult(ctx context.Context, result *types.DetectionResult) error {
	if err := result.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	snapshot, err := json.Marshal(result.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	matches, err := json.Marshal(result.Matches)
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO detection_results
			(id, record_type, record_id, snapshot, matches, highest_confidence, recommended_action, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.ID, result.Record.Type, result.Record.ID, string(snapshot), string(matches),
		result.HighestConfidence, result.RecommendedAction, result.Status, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert detection result %s: %w", result.ID, err)
	}

	return nil
}

// GetDetectionResult fetches a detection result by id
func (s *SQLiteStorage) GetDetectionResult(ctx context.Context, id string) (*types.DetectionResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, record_type, record_id, snapshot, matches, highest_confidence, recommended_action, status, created_at
		FROM detection_results
		WHERE id = ?
	`, id)

	var result types.DetectionResult
	var snapshot, matches string
	err := row.Scan(&result.ID, &result.Record.Type, &result.Record.ID, &snapshot, &matches,
		&result.HighestConfidence, &result.RecommendedAction, &result.Status, &result.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("detection result %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detection result %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(snapshot), &result.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(matches), &result.Matches); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matches for %s: %w", id, err)
	}

	return &result, nil
}

// UpdateDetectionStatus transitions a detection result's status
func (s *SQLiteStorage) UpdateDetectionStatus(ctx context.Context, id string, status types.DetectionStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid detection status: %s", status)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE detection_results SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update detection result %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("detection result %s not found", id)
	}

	return nil
}
