// Package plugin defines the contract every source integration implements:
// two JSON-in/JSON-out operations invoked by the sandbox executor. Config
// is passed by value as an opaque blob the plugin owns the schema for, and
// results come back by value as JSON, so a plugin never touches shared
// orchestrator state.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gustaf30/nexus/internal/model"
)

// Operation names a plugin entry point.
type Operation string

const (
	OpPoll            Operation = "poll"
	OpCheckConnection Operation = "checkConnection"
)

// Plugin is the uniform interface for one source integration. Both
// operations must be safe to abandon when ctx is cancelled and must not
// retain state observable by other plugin instances.
type Plugin interface {
	// Source returns the source identifier this plugin serves.
	Source() string

	// Poll fetches the current state of the source and returns a
	// PollResult encoded as JSON.
	Poll(ctx context.Context, config []byte) ([]byte, error)

	// CheckConnection verifies that the given credentials work and
	// returns a ConnectionStatus encoded as JSON. It is called before
	// new credentials are persisted.
	CheckConnection(ctx context.Context, config []byte) ([]byte, error)
}

// PollItem is one normalized item as returned by a plugin, before
// reconciliation against persisted state.
type PollItem struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	SourceID  string         `json:"sourceId"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary,omitempty"`
	URL       string         `json:"url"`
	Author    string         `json:"author,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
	Tags      []string       `json:"tags"`
}

// PollNotification is a notification candidate emitted by a plugin. The
// plugin names the signals that fired; the heuristic engine resolves their
// weights and computes the tier. UrgencyHint is advisory only and is never
// trusted when persisting.
type PollNotification struct {
	ItemID      string   `json:"itemId"`
	Reasons     []string `json:"reasons"`
	UrgencyHint string   `json:"urgencyHint,omitempty"`
}

// PollResult is the full output of one poll operation.
type PollResult struct {
	Items         []PollItem         `json:"items"`
	Notifications []PollNotification `json:"notifications"`
}

// ConnectionStatus is the output of a checkConnection operation.
type ConnectionStatus struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
}

// MarshalResult encodes a PollResult for return across the plugin
// boundary. Nil slices are normalized to empty arrays so the result
// always matches the contract schema.
func MarshalResult(r PollResult) ([]byte, error) {
	if r.Items == nil {
		r.Items = []PollItem{}
	}
	if r.Notifications == nil {
		r.Notifications = []PollNotification{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling poll result: %w", err)
	}
	return data, nil
}

// MarshalStatus encodes a ConnectionStatus for return across the plugin
// boundary.
func MarshalStatus(s ConnectionStatus) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling connection status: %w", err)
	}
	return data, nil
}

// ToItem converts a PollItem into the persisted item shape. Timestamps
// for row bookkeeping are assigned by the reconciler, not here.
func (p PollItem) ToItem() model.Item {
	return model.Item{
		ID:        p.ID,
		Source:    model.SourceType(p.Source),
		SourceID:  p.SourceID,
		Kind:      p.Kind,
		Title:     p.Title,
		Summary:   p.Summary,
		URL:       p.URL,
		Author:    p.Author,
		Timestamp: p.Timestamp,
		Metadata:  p.Metadata,
		Tags:      p.Tags,
	}
}
