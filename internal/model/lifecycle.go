package model

// LifecycleStatus is the per-source polling state.
type LifecycleStatus string

const (
	// StatusConfigured means credentials are saved but no poll has
	// completed yet.
	StatusConfigured LifecycleStatus = "configured"

	// StatusActive means the last poll succeeded.
	StatusActive LifecycleStatus = "active"

	// StatusBackoff means the source is under an error-driven delay.
	StatusBackoff LifecycleStatus = "backoff"

	// StatusAuth means credentials were rejected. The source is not
	// polled again until credentials are replaced.
	StatusAuth LifecycleStatus = "auth"

	// StatusDisabled means the source was turned off, either explicitly
	// or automatically after repeated failures.
	StatusDisabled LifecycleStatus = "disabled"
)

// Lifecycle tracks the polling state of one configured source. Rows are
// created when a source is first configured and mutated after every poll
// attempt; they are deleted only on explicit disconnect.
type Lifecycle struct {
	// SourceID identifies the source this row belongs to.
	SourceID string `json:"source_id"`

	// Enabled controls whether the scheduler considers this source.
	Enabled bool `json:"enabled"`

	// Status is the current polling state.
	Status LifecycleStatus `json:"status"`

	// PollIntervalSec is how often (in seconds) to poll this source.
	PollIntervalSec int64 `json:"poll_interval_sec"`

	// LastPollAt is when the last successful poll completed
	// (Unix seconds, 0 if never).
	LastPollAt int64 `json:"last_poll_at,omitempty"`

	// LastError is the message from the most recent failure, cleared
	// on success.
	LastError string `json:"last_error,omitempty"`

	// ConsecutiveErrors counts failures since the last success.
	ConsecutiveErrors int `json:"consecutive_errors"`

	// NextEligibleAt is the earliest time (Unix seconds) the scheduler
	// may poll this source again. Zero means immediately eligible.
	NextEligibleAt int64 `json:"next_eligible_at,omitempty"`
}

// Pollable reports whether the scheduler may poll this source at now
// (Unix seconds). Manual poll-now requests apply the same rule so that a
// source under backoff penalty is never force-polled.
func (l Lifecycle) Pollable(now int64) bool {
	if !l.Enabled {
		return false
	}
	switch l.Status {
	case StatusDisabled, StatusAuth:
		return false
	}
	return l.NextEligibleAt <= now
}
