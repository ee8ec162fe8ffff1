package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gustaf30/nexus/internal/model"
)

// reconcileTx implements ReconcileTx over one open sqlx transaction.
type reconcileTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

// Reconcile runs fn inside a single transaction. All item upserts and
// notification inserts made through the transaction commit together; if
// fn returns an error, or the context is cancelled before commit, the
// transaction rolls back and the database is untouched by this poll.
func (s *SQLiteStore) Reconcile(
	ctx context.Context,
	fn func(tx ReconcileTx) error,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning reconcile transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&reconcileTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reconcile transaction: %w", err)
	}
	return nil
}

// UpsertItem inserts or updates one item inside the transaction.
func (t *reconcileTx) UpsertItem(item model.Item) error {
	args, err := upsertItemArgs(item)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx, upsertItemSQL, args...); err != nil {
		return fmt.Errorf("upserting item %s: %w", item.ID, err)
	}
	return nil
}

// InsertNotification appends one notification row inside the transaction.
// A missing ID is filled with a generated UUID.
func (t *reconcileTx) InsertNotification(n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	_, err := t.tx.ExecContext(t.ctx, insertNotificationSQL,
		n.ID, n.ItemID, n.ReasonKey(), string(n.Urgency),
		boolToInt(n.IsDismissed), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification for item %s: %w", n.ItemID, err)
	}
	return nil
}
