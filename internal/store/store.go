package store

import (
	"context"
	"time"

	"github.com/gustaf30/nexus/internal/model"
)

// ReconcileTx is the write surface available inside one reconciliation
// transaction. All writes made through it commit or roll back together,
// so a poll can never leave a half-applied refresh behind.
type ReconcileTx interface {
	// UpsertItem inserts the item or, when (source, source_id) already
	// exists, updates its mutable fields in place. createdAt and
	// is_read are never overwritten on conflict.
	UpsertItem(item model.Item) error

	// InsertNotification appends a notification row. Inserts are
	// append-only; duplicate firings across polls are expected.
	InsertNotification(n model.Notification) error
}

// Store defines the persistence interface for items, notifications,
// plugin lifecycle rows, heuristic weights, and app settings.
type Store interface {
	// === Items ===

	GetItems(ctx context.Context, filter model.ItemFilter) ([]model.Item, error)
	GetItemByID(ctx context.Context, id string) (*model.Item, error)
	MarkItemRead(ctx context.Context, id string, read bool) error

	// === Notifications ===

	GetActiveNotifications(ctx context.Context) ([]model.Notification, error)
	DismissNotification(ctx context.Context, id string) error
	DismissAllNotifications(ctx context.Context) error
	PruneDismissedNotifications(ctx context.Context, olderThan time.Time) (int64, error)

	// === Plugin lifecycle ===

	GetLifecycle(ctx context.Context, sourceID string) (*model.Lifecycle, error)
	GetLifecycles(ctx context.Context) ([]model.Lifecycle, error)
	UpsertLifecycle(ctx context.Context, lc model.Lifecycle) error
	DeleteLifecycle(ctx context.Context, sourceID string) error

	// === Heuristic weights ===

	GetWeights(ctx context.Context, source model.SourceType) ([]model.HeuristicWeight, error)
	UpsertWeight(ctx context.Context, w model.HeuristicWeight) error
	SeedDefaultWeights(ctx context.Context) error

	// === App settings ===

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// === Reconciliation ===

	// Reconcile runs fn inside a single transaction. If fn returns an
	// error the transaction rolls back and nothing is applied.
	Reconcile(ctx context.Context, fn func(tx ReconcileTx) error) error
}
