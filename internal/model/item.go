package model

import "time"

// SourceType identifies the origin system of an item.
type SourceType string

const (
	SourceTypeJira      SourceType = "jira"
	SourceTypeBitbucket SourceType = "bitbucket"
	SourceTypeEmail     SourceType = "email"
)

// Item kind constants used by the built-in sources. External plugins may
// introduce their own kinds; the store treats the field as free text.
const (
	KindTicket      = "ticket"
	KindPullRequest = "pull_request"
	KindMessage     = "message"
)

// Item is the unified representation of one external item from any source.
// Identity is the (Source, SourceID) pair: a re-poll that returns the same
// pair updates mutable fields in place and never creates a second row.
type Item struct {
	// ID is the stable source-qualified identifier (e.g., "jira-PROJ-42").
	ID string `json:"id"`

	// Source identifies which integration produced this item.
	Source SourceType `json:"source"`

	// SourceID is the item's identifier within its source system
	// (e.g., Jira issue key, Bitbucket PR number, IMAP message UID).
	SourceID string `json:"source_id"`

	// Kind is the item type within its source (use Kind* constants).
	Kind string `json:"kind"`

	// Title is the human-readable summary of the item.
	Title string `json:"title"`

	// Summary is an optional short body/preview text.
	Summary string `json:"summary,omitempty"`

	// URL is the direct link back to the item in its source system.
	URL string `json:"url"`

	// Author is the display name or address of the originator.
	Author string `json:"author,omitempty"`

	// Timestamp is the source-reported update time in Unix seconds.
	Timestamp int64 `json:"timestamp"`

	// Metadata holds source-specific key/value data.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Tags is an ordered set of labels attached by the source.
	Tags []string `json:"tags,omitempty"`

	// IsRead is owned by the user-interaction layer. Reconciliation
	// never overwrites it.
	IsRead bool `json:"is_read"`

	// CreatedAt is when this row was first persisted (Unix seconds).
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is when this row was last touched by a poll (Unix seconds).
	UpdatedAt int64 `json:"updated_at"`
}

// ItemFilter controls filtering and pagination for item queries.
// Results are always ordered by source timestamp descending.
type ItemFilter struct {
	Source     *SourceType
	UnreadOnly bool
	Limit      int
}

// StaleAfter reports whether the item has not been refreshed by a poll
// within d of now. The presentation layer uses this to mark items from a
// failing source as stale rather than hiding them.
func (i Item) StaleAfter(d time.Duration, now time.Time) bool {
	return now.Unix()-i.UpdatedAt > int64(d.Seconds())
}
