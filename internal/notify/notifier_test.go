package notify

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/gustaf30/nexus/internal/model"
	"github.com/gustaf30/nexus/internal/store"
	"github.com/gustaf30/nexus/tests/testutil"
)

type captureDispatcher struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func (d *captureDispatcher) Dispatch(
	_ context.Context,
	title, body string,
	_ model.Urgency,
) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.titles = append(d.titles, title)
	d.bodies = append(d.bodies, body)
	return nil
}

func seedItem(t *testing.T, s store.Store, id, title string) {
	t.Helper()
	err := s.Reconcile(context.Background(), func(tx store.ReconcileTx) error {
		return tx.UpsertItem(model.Item{
			ID:       id,
			Source:   model.SourceTypeJira,
			SourceID: id,
			Kind:     model.KindTicket,
			Title:    title,
			URL:      "https://jira.example.com/browse/" + id,
		})
	})
	if err != nil {
		t.Fatalf("seeding item: %v", err)
	}
}

func TestDeliverFormatsTitleAndBody(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedItem(t, s, "PROJ-1", "Fix login flow")

	dispatcher := &captureDispatcher{}
	n := NewNotifier(s, dispatcher, 10, slog.Default())

	n.Deliver(context.Background(), []model.Notification{
		{ItemID: "PROJ-1", Reasons: []string{"assigned_to_me", "ci_failed"}, Urgency: model.UrgencyCritical},
	})

	if len(dispatcher.titles) != 1 {
		t.Fatalf("dispatched %d notifications, want 1", len(dispatcher.titles))
	}
	if want := "[CRITICAL] Fix login flow"; dispatcher.titles[0] != want {
		t.Errorf("title = %q, want %q", dispatcher.titles[0], want)
	}
	if want := "Assigned to you, CI failed"; dispatcher.bodies[0] != want {
		t.Errorf("body = %q, want %q", dispatcher.bodies[0], want)
	}
}

func TestDeliverMediumHasNoTag(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedItem(t, s, "PROJ-2", "Review backlog")

	dispatcher := &captureDispatcher{}
	n := NewNotifier(s, dispatcher, 10, slog.Default())

	n.Deliver(context.Background(), []model.Notification{
		{ItemID: "PROJ-2", Reasons: []string{"mentioned"}, Urgency: model.UrgencyMedium},
	})

	if len(dispatcher.titles) != 1 || dispatcher.titles[0] != "Review backlog" {
		t.Errorf("titles = %v, want untagged item title", dispatcher.titles)
	}
}

func TestDeliverRespectsFocusMode(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	seedItem(t, s, "PROJ-3", "Minor cleanup")

	if err := s.SetSetting(ctx, SettingFocusModeEnabled, "1"); err != nil {
		t.Fatalf("enabling focus mode: %v", err)
	}

	dispatcher := &captureDispatcher{}
	n := NewNotifier(s, dispatcher, 10, slog.Default())

	n.Deliver(ctx, []model.Notification{
		{ItemID: "PROJ-3", Reasons: []string{"mentioned"}, Urgency: model.UrgencyMedium},
	})

	if len(dispatcher.titles) != 0 {
		t.Errorf("focus mode at default threshold must suppress medium, got %v", dispatcher.titles)
	}
}

func TestDeliverRateLimitsBursts(t *testing.T) {
	s := testutil.NewTestStore(t)
	seedItem(t, s, "PROJ-4", "Hot ticket")

	dispatcher := &captureDispatcher{}
	// Burst of 2 per minute: the third in a burst is dropped.
	n := NewNotifier(s, dispatcher, 2, slog.Default())

	batch := make([]model.Notification, 3)
	for i := range batch {
		batch[i] = model.Notification{
			ItemID:  "PROJ-4",
			Reasons: []string{"assigned_to_me"},
			Urgency: model.UrgencyHigh,
		}
	}
	n.Deliver(context.Background(), batch)

	if len(dispatcher.titles) != 2 {
		t.Errorf("dispatched %d notifications, want 2 (burst limit)", len(dispatcher.titles))
	}
}

func TestDeliverSkipsUnknownItem(t *testing.T) {
	s := testutil.NewTestStore(t)

	dispatcher := &captureDispatcher{}
	n := NewNotifier(s, dispatcher, 10, slog.Default())

	n.Deliver(context.Background(), []model.Notification{
		{ItemID: "missing", Reasons: []string{"assigned_to_me"}, Urgency: model.UrgencyHigh},
	})

	if len(dispatcher.titles) != 0 {
		t.Errorf("dispatched %d notifications, want 0", len(dispatcher.titles))
	}
}
