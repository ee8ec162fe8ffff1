// Package reconcile merges one poll's adapter output into persisted
// state: idempotent item upserts keyed by (source, sourceId), followed by
// append-only notification inserts for candidates the heuristic engine
// scores at medium urgency or above. Everything for one poll commits in a
// single transaction.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gustaf30/nexus/internal/heuristic"
	"github.com/gustaf30/nexus/internal/model"
	"github.com/gustaf30/nexus/internal/plugin"
	"github.com/gustaf30/nexus/internal/store"
)

// Result summarizes what one reconciliation pass applied.
type Result struct {
	// SourceID is the source this pass belonged to.
	SourceID string

	// ItemCount is how many items the poll returned and upserted.
	ItemCount int

	// Notifications are the rows inserted by this pass, with resolved
	// urgency, ready for native dispatch.
	Notifications []model.Notification
}

// Reconciler applies validated poll results to the store.
type Reconciler struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

// New creates a Reconciler over the given store.
func New(s store.Store, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store: s,
		log:   log.With("component", "reconcile"),
		now:   time.Now,
	}
}

// Apply merges one raw poll result (already contract-validated by the
// sandbox executor) into the store. sourceID is the instance identity
// items must carry; sourceType selects the weight rows, so sibling
// instances of one type share a weight table. Either every item and
// notification from the poll is committed or none are.
func (r *Reconciler) Apply(
	ctx context.Context,
	sourceID, sourceType string,
	raw []byte,
) (*Result, error) {
	var pollResult plugin.PollResult
	if err := json.Unmarshal(raw, &pollResult); err != nil {
		return nil, &plugin.ContractError{
			Source:  sourceID,
			Op:      plugin.OpPoll,
			Message: fmt.Sprintf("decoding poll result: %v", err),
		}
	}

	// Resolve this source's weights once per pass. The engine ignores
	// any urgencyHint the plugin supplied.
	weightRows, err := r.store.GetWeights(ctx, model.SourceType(sourceType))
	if err != nil {
		return nil, fmt.Errorf("resolving weights for %s: %w", sourceID, err)
	}
	weights := heuristic.NewWeightSet(weightRows)

	now := r.now().Unix()

	// Items in this batch, for validating notification references.
	batchItems := make(map[string]bool, len(pollResult.Items))

	result := &Result{SourceID: sourceID}

	err = r.store.Reconcile(ctx, func(tx store.ReconcileTx) error {
		for _, pi := range pollResult.Items {
			if pi.Source != sourceID {
				r.log.Warn("item claims a foreign source, skipping",
					"source", sourceID, "item", pi.ID, "claimed", pi.Source)
				continue
			}

			item := pi.ToItem()
			item.CreatedAt = now
			item.UpdatedAt = now
			if err := tx.UpsertItem(item); err != nil {
				return err
			}
			batchItems[item.ID] = true
			result.ItemCount++
		}

		for _, pn := range pollResult.Notifications {
			if !batchItems[pn.ItemID] {
				r.log.Warn("notification references item outside batch, skipping",
					"source", sourceID, "item", pn.ItemID)
				continue
			}

			urgency := heuristic.Evaluate(pn.Reasons, weights)
			if !heuristic.ShouldNotify(urgency) {
				continue
			}

			n := model.Notification{
				ID:        uuid.New().String(),
				ItemID:    pn.ItemID,
				Reasons:   pn.Reasons,
				Urgency:   urgency,
				CreatedAt: now,
			}
			if err := tx.InsertNotification(n); err != nil {
				return err
			}
			result.Notifications = append(result.Notifications, n)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconciling %s: %w", sourceID, err)
	}

	return result, nil
}

// ApplyConnectionCheck decodes a checkConnection result. It lives here so
// the scheduler and the configuration surface share one decoder.
func ApplyConnectionCheck(sourceID string, raw []byte) (*plugin.ConnectionStatus, error) {
	var status plugin.ConnectionStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, &plugin.ContractError{
			Source:  sourceID,
			Op:      plugin.OpCheckConnection,
			Message: fmt.Sprintf("decoding connection status: %v", err),
		}
	}
	return &status, nil
}
