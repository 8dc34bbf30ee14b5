package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crmkit/dupcheck/internal/types"
)

// RecordMergeOperation inserts a merge operation row without touching
// any contact records. Used for audit entries (notably failed merges).
func (s *SQLiteStorage) RecordMergeOperation(ctx context.Context, op *types.MergeOperation) error {
	if err := op.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	conflicts, err := json.Marshal(op.Conflicts)
	if err != nil {
		return fmt.Errorf("failed to marshal conflicts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO merge_operations
			(id, source_type, source_id, target_type, target_id, conflicts, status, error, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.Source.Type, op.Source.ID, op.Target.Type, op.Target.ID,
		string(conflicts), op.Status, op.Error, op.Actor, op.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert merge operation %s: %w", op.ID, err)
	}

	return nil
}

// ExecuteMerge applies a merge atomically: the target contact takes the
// resolved field values, the source contact is retired to status
// merged, and the completed operation is recorded - all or nothing.
//
// The transaction re-checks, under a write lock, that both records are
// still active and that neither is already consumed by a pending merge,
// so two overlapping batch runs cannot merge the same pair twice.
func (s *SQLiteStorage) ExecuteMerge(ctx context.Context, op *types.MergeOperation, resolved *types.ContactRecord) error {
	if err := op.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if resolved == nil {
		return fmt.Errorf("resolved record is required")
	}

	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	conflicts, err := json.Marshal(op.Conflicts)
	if err != nil {
		return fmt.Errorf("failed to marshal conflicts: %w", err)
	}

	// Acquire a dedicated connection for the transaction. We need raw
	// "BEGIN IMMEDIATE" on the same connection, and database/sql's pool
	// would otherwise spread queries across connections.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	// IMMEDIATE acquires the write lock up front, serializing merge
	// execution across concurrent batch runs and manual approvals.
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	// Use context.Background() for ROLLBACK so cleanup happens even if
	// ctx is canceled mid-transaction.
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	// Both records must still be active
	for _, ref := range []types.RecordRef{op.Source, op.Target} {
		var status string
		err := conn.QueryRowContext(ctx,
			"SELECT status FROM contacts WHERE type = ? AND id = ?", ref.Type, ref.ID).Scan(&status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("contact %s not found", ref)
		}
		if err != nil {
			return fmt.Errorf("failed to check contact %s: %w", ref, err)
		}
		if status != string(types.ContactActive) {
			return fmt.Errorf("contact %s is not active (status: %s)", ref, status)
		}
	}

	// Neither record may be consumed by an unresolved merge
	var pending int
	err = conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM merge_operations
		WHERE status = 'pending'
		  AND ((source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?)
		    OR (source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?))
	`, op.Source.Type, op.Source.ID, op.Source.Type, op.Source.ID,
		op.Target.Type, op.Target.ID, op.Target.Type, op.Target.ID).Scan(&pending)
	if err != nil {
		return fmt.Errorf("failed to check pending merges: %w", err)
	}
	if pending > 0 {
		return fmt.Errorf("merge %s -> %s blocked: record already consumed by a pending merge",
			op.Source, op.Target)
	}

	// Apply the resolved field values to the target
	_, err = conn.ExecContext(ctx, `
		UPDATE contacts
		SET email = ?, phone = ?, first_name = ?, last_name = ?, address = ?
		WHERE type = ? AND id = ?
	`, resolved.Email, resolved.Phone, resolved.FirstName, resolved.LastName, resolved.Address,
		op.Target.Type, op.Target.ID)
	if err != nil {
		return fmt.Errorf("failed to update target %s: %w", op.Target, err)
	}

	// Retire the source
	_, err = conn.ExecContext(ctx,
		"UPDATE contacts SET status = 'merged' WHERE type = ? AND id = ?",
		op.Source.Type, op.Source.ID)
	if err != nil {
		return fmt.Errorf("failed to retire source %s: %w", op.Source, err)
	}

	// Record the completed operation
	op.Status = types.MergeCompleted
	_, err = conn.ExecContext(ctx, `
		INSERT INTO merge_operations
			(id, source_type, source_id, target_type, target_id, conflicts, status, error, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.Source.Type, op.Source.ID, op.Target.Type, op.Target.ID,
		string(conflicts), op.Status, op.Error, op.Actor, op.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record merge operation %s: %w", op.ID, err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}
	committed = true

	return nil
}

// ListMergeOperations returns merge operations, newest first
func (s *SQLiteStorage) ListMergeOperations(ctx context.Context, limit int) ([]*types.MergeOperation, error) {
	query := `
		SELECT id, source_type, source_id, target_type, target_id, conflicts, status, error, actor, created_at
		FROM merge_operations
		ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list merge operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ops []*types.MergeOperation
	for rows.Next() {
		var op types.MergeOperation
		var conflicts string
		err := rows.Scan(&op.ID, &op.Source.Type, &op.Source.ID, &op.Target.Type, &op.Target.ID,
			&conflicts, &op.Status, &op.Error, &op.Actor, &op.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merge operation: %w", err)
		}
		if err := json.Unmarshal([]byte(conflicts), &op.Conflicts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conflicts for %s: %w", op.ID, err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merge operations: %w", err)
	}

	return ops, nil
}

// ActiveMergeRefs returns the set of record refs consumed by pending
// merge operations. Detection excludes these from candidate sets until
// the merge resolves or fails.
func (s *SQLiteStorage) ActiveMergeRefs(ctx context.Context) (map[types.RecordRef]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_type, source_id, target_type, target_id
		FROM merge_operations
		WHERE status = 'pending'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending merges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	refs := make(map[types.RecordRef]bool)
	for rows.Next() {
		var source, target types.RecordRef
		if err := rows.Scan(&source.Type, &source.ID, &target.Type, &target.ID); err != nil {
			return nil, fmt.Errorf("failed to scan merge refs: %w", err)
		}
		refs[source] = true
		refs[target] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merge refs: %w", err)
	}

	return refs, nil
}
