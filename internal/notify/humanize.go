// Package notify decides whether a reconciled notification reaches the
// user natively and dispatches the ones that do. Delivery policy (quiet
// hours, focus mode) is read from app settings on every decision so edits
// take effect without a restart.
package notify

import "strings"

// reasonLabels maps machine-readable signal names to human-readable
// labels. Signals without a label pass through unchanged.
var reasonLabels = map[string]string{
	"assigned_to_me":       "Assigned to you",
	"assigned":             "Assigned to you",
	"high_priority":        "High priority",
	"priority_p1_blocker":  "High priority",
	"deadline_approaching": "Deadline approaching",
	"deadline_24h":         "Deadline approaching",
	"mentioned_in_comment": "You were mentioned",
	"mentioned":            "You were mentioned",
	"vip_sender":           "VIP sender",
	"unread_over_4h":       "Unread for 4+ hours",
	"has_attachment":       "Has attachment",
	"pr_review_requested":  "Review requested",
	"ci_failed":            "CI failed",
	"pr_comment":           "Comment on your PR",
}

// HumanizeReasons renders a notification's signal names as a single
// human-readable line.
func HumanizeReasons(reasons []string) string {
	labels := make([]string, 0, len(reasons))
	for _, signal := range reasons {
		signal = strings.TrimSpace(signal)
		if signal == "" {
			continue
		}
		if label, ok := reasonLabels[signal]; ok {
			labels = append(labels, label)
		} else {
			labels = append(labels, signal)
		}
	}
	return strings.Join(labels, ", ")
}
