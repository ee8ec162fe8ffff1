package model

import "strings"

// Urgency is the tier assigned to a notification by the heuristic engine.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Level returns a comparable rank for the urgency tier (higher is more
// urgent). Unknown values rank below low.
func (u Urgency) Level() int {
	switch u {
	case UrgencyCritical:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	}
	return 0
}

// MeetsThreshold reports whether u is at least as urgent as threshold.
func (u Urgency) MeetsThreshold(threshold Urgency) bool {
	return u.Level() >= threshold.Level()
}

// Notification is one alert row tied to an item. Rows are append-only:
// repeated firings across polls create additional rows, and dismissal is
// monotonic (the system never un-dismisses).
type Notification struct {
	// ID is a generated opaque identifier.
	ID string `json:"id"`

	// ItemID references the item this notification is about.
	ItemID string `json:"item_id"`

	// Reasons is the ordered set of signal names that fired.
	Reasons []string `json:"reasons"`

	// Urgency is the tier computed by the heuristic engine.
	Urgency Urgency `json:"urgency"`

	// IsDismissed indicates the user has dismissed this notification.
	IsDismissed bool `json:"is_dismissed"`

	// CreatedAt is when this row was inserted (Unix seconds).
	CreatedAt int64 `json:"created_at"`
}

// ReasonKey returns the canonical comma-joined form of the reason set,
// used for storage and for presentation-layer grouping.
func (n Notification) ReasonKey() string {
	return strings.Join(n.Reasons, ",")
}

// SplitReasons parses a stored comma-joined reason set back into its
// ordered components.
func SplitReasons(key string) []string {
	if key == "" {
		return nil
	}
	parts := strings.Split(key, ",")
	reasons := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			reasons = append(reasons, trimmed)
		}
	}
	return reasons
}
