package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/gustaf30/nexus/internal/model"
	"github.com/gustaf30/nexus/internal/store"
)

// Dispatcher delivers one notification to the user. Implementations must
// be safe for concurrent use; the scheduler may finish polls for several
// sources at once.
type Dispatcher interface {
	Dispatch(ctx context.Context, title, body string, urgency model.Urgency) error
}

// LogDispatcher writes notifications to the structured log. It is the
// default sink when no native delivery channel is wired up.
type LogDispatcher struct {
	Log *slog.Logger
}

func (d *LogDispatcher) Dispatch(
	ctx context.Context,
	title, body string,
	urgency model.Urgency,
) error {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notification", "urgency", urgency, "title", title, "body", body)
	return nil
}

// Notifier filters reconciled notifications through the delivery policy
// and a rate limiter, then hands the survivors to a Dispatcher.
type Notifier struct {
	store      store.Store
	policy     *Policy
	dispatcher Dispatcher
	limiter    *rate.Limiter
	log        *slog.Logger
}

// NewNotifier creates a Notifier that delivers at most ratePerMinute
// notifications per minute, dropping the excess rather than queuing it.
func NewNotifier(
	s store.Store,
	dispatcher Dispatcher,
	ratePerMinute int,
	log *slog.Logger,
) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	return &Notifier{
		store:      s,
		policy:     NewPolicy(s),
		dispatcher: dispatcher,
		limiter:    rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute),
		log:        log.With("component", "notify"),
	}
}

// Deliver pushes a batch of freshly inserted notifications through the
// policy and dispatcher. Delivery failures are logged and do not fail the
// poll; the rows are already persisted and visible in the inbox.
func (n *Notifier) Deliver(ctx context.Context, batch []model.Notification) {
	for _, notif := range batch {
		send, err := n.policy.ShouldSend(ctx, notif.Urgency)
		if err != nil {
			n.log.Warn("delivery policy check failed", "error", err)
			continue
		}
		if !send {
			continue
		}
		if !n.limiter.Allow() {
			n.log.Warn("notification rate limit hit, dropping",
				"item", notif.ItemID, "urgency", notif.Urgency)
			continue
		}

		title, err := n.titleFor(ctx, notif)
		if err != nil {
			n.log.Warn("resolving notification title", "item", notif.ItemID, "error", err)
			continue
		}
		body := HumanizeReasons(notif.Reasons)

		if err := n.dispatcher.Dispatch(ctx, title, body, notif.Urgency); err != nil {
			n.log.Warn("dispatching notification", "item", notif.ItemID, "error", err)
		}
	}
}

// titleFor builds the delivery title: the item's title, prefixed with a
// tag for the top two tiers.
func (n *Notifier) titleFor(ctx context.Context, notif model.Notification) (string, error) {
	item, err := n.store.GetItemByID(ctx, notif.ItemID)
	if err != nil {
		return "", err
	}

	switch notif.Urgency {
	case model.UrgencyCritical:
		return fmt.Sprintf("[CRITICAL] %s", item.Title), nil
	case model.UrgencyHigh:
		return fmt.Sprintf("[HIGH] %s", item.Title), nil
	default:
		return item.Title, nil
	}
}
