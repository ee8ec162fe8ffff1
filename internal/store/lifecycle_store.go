package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gustaf30/nexus/internal/model"
)

// GetLifecycle retrieves the lifecycle row for one source. Returns
// (nil, nil) when the source has never been configured.
func (s *SQLiteStore) GetLifecycle(
	ctx context.Context,
	sourceID string,
) (*model.Lifecycle, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM plugin_lifecycle WHERE source_id = ?", sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying lifecycle %s: %w", sourceID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("querying lifecycle %s: %w", sourceID, err)
		}
		return nil, nil
	}

	lc, err := scanLifecycle(rows)
	if err != nil {
		return nil, err
	}
	return &lc, nil
}

// GetLifecycles retrieves all lifecycle rows ordered by source identifier.
func (s *SQLiteStore) GetLifecycles(
	ctx context.Context,
) ([]model.Lifecycle, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM plugin_lifecycle ORDER BY source_id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying lifecycles: %w", err)
	}
	defer rows.Close()

	var lifecycles []model.Lifecycle
	for rows.Next() {
		lc, err := scanLifecycle(rows)
		if err != nil {
			return nil, err
		}
		lifecycles = append(lifecycles, lc)
	}

	return lifecycles, rows.Err()
}

// UpsertLifecycle inserts or replaces the lifecycle row for a source.
func (s *SQLiteStore) UpsertLifecycle(
	ctx context.Context,
	lc model.Lifecycle,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plugin_lifecycle (
			source_id, enabled, status, poll_interval_sec,
			last_poll_at, last_error, consecutive_errors, next_eligible_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			enabled=excluded.enabled, status=excluded.status,
			poll_interval_sec=excluded.poll_interval_sec,
			last_poll_at=excluded.last_poll_at, last_error=excluded.last_error,
			consecutive_errors=excluded.consecutive_errors,
			next_eligible_at=excluded.next_eligible_at`,
		lc.SourceID, boolToInt(lc.Enabled), string(lc.Status), lc.PollIntervalSec,
		lc.LastPollAt, lc.LastError, lc.ConsecutiveErrors, lc.NextEligibleAt,
	)
	if err != nil {
		return fmt.Errorf("upserting lifecycle %s: %w", lc.SourceID, err)
	}
	return nil
}

// DeleteLifecycle removes the lifecycle row for a source. Used only on
// explicit disconnect.
func (s *SQLiteStore) DeleteLifecycle(
	ctx context.Context,
	sourceID string,
) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM plugin_lifecycle WHERE source_id = ?", sourceID,
	)
	if err != nil {
		return fmt.Errorf("deleting lifecycle %s: %w", sourceID, err)
	}
	return nil
}

// scanLifecycle scans a lifecycle row from a sqlx.Rows result set.
func scanLifecycle(rows *sqlx.Rows) (model.Lifecycle, error) {
	var (
		lc      model.Lifecycle
		enabled int
		status  string
	)

	err := rows.Scan(
		&lc.SourceID, &enabled, &status, &lc.PollIntervalSec,
		&lc.LastPollAt, &lc.LastError, &lc.ConsecutiveErrors, &lc.NextEligibleAt,
	)
	if err != nil {
		return model.Lifecycle{}, fmt.Errorf("scanning lifecycle row: %w", err)
	}

	lc.Enabled = enabled != 0
	lc.Status = model.LifecycleStatus(status)

	return lc, nil
}
