// Package lifecycle implements the per-source polling state machine:
// Configured -> Active <-> Backoff(n) -> Disabled, with auth failures
// parked in a distinct state. Transitions are pure functions over the
// lifecycle row so they can be tested without a database.
package lifecycle

import (
	"time"

	"github.com/gustaf30/nexus/internal/model"
	"github.com/gustaf30/nexus/internal/plugin"
)

const (
	// maxConsecutiveErrors is how many ladder failures a source may
	// accumulate before it is auto-disabled.
	maxConsecutiveErrors = 5

	// baseBackoff is the delay after the first failure; it doubles on
	// each subsequent failure.
	baseBackoff = time.Minute

	// maxBackoff caps the exponential ladder.
	maxBackoff = 30 * time.Minute
)

// BackoffDelay returns the ladder delay for the nth consecutive failure
// (n >= 1): min(30min, 1min * 2^(n-1)).
func BackoffDelay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	// Shift overflows past 2^30; the cap kicks in long before that.
	if n > 30 {
		return maxBackoff
	}
	delay := baseBackoff << (n - 1)
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// ApplySuccess records a successful poll: error state clears and the
// source returns to Active with its regular interval.
func ApplySuccess(lc model.Lifecycle, now time.Time) model.Lifecycle {
	lc.Status = model.StatusActive
	lc.LastPollAt = now.Unix()
	lc.LastError = ""
	lc.ConsecutiveErrors = 0
	lc.NextEligibleAt = now.Unix() + lc.PollIntervalSec
	return lc
}

// ApplyFailure records a failed poll attempt and computes the next
// eligible poll time according to the error's retry policy.
func ApplyFailure(lc model.Lifecycle, err error, now time.Time) model.Lifecycle {
	lc.LastError = err.Error()

	switch plugin.Classify(err) {
	case plugin.KindAuth:
		// Credentials are wrong; retrying on a timer cannot help.
		// The source waits for the user to reconfigure it.
		lc.Status = model.StatusAuth
		return lc

	case plugin.KindContract:
		// A code defect in the adapter, not transient unavailability.
		// Flag the source without consuming the backoff ladder; the
		// next scheduled poll happens at the regular interval.
		lc.Status = model.StatusActive
		lc.NextEligibleAt = now.Unix() + lc.PollIntervalSec
		return lc

	case plugin.KindRateLimited:
		// The upstream told us when to come back; honor it instead of
		// compounding the exponential formula. The counter still
		// advances for visibility and for the disable threshold.
		lc.ConsecutiveErrors++
		lc.Status = model.StatusBackoff
		delay := BackoffDelay(lc.ConsecutiveErrors)
		if hint, ok := plugin.RetryAfterHint(err); ok {
			delay = hint
		}
		lc.NextEligibleAt = now.Add(delay).Unix()
		if lc.ConsecutiveErrors >= maxConsecutiveErrors {
			return disable(lc)
		}
		return lc

	default: // KindTransient, KindTimeout
		lc.ConsecutiveErrors++
		if lc.ConsecutiveErrors >= maxConsecutiveErrors {
			return disable(lc)
		}
		lc.Status = model.StatusBackoff
		lc.NextEligibleAt = now.Add(BackoffDelay(lc.ConsecutiveErrors)).Unix()
		return lc
	}
}

// disable turns the source off after exhausting the ladder. Only an
// explicit re-enable from the configuration surface brings it back.
func disable(lc model.Lifecycle) model.Lifecycle {
	lc.Status = model.StatusDisabled
	lc.Enabled = false
	lc.NextEligibleAt = 0
	return lc
}

// Reenable transitions a source back to Configured after an explicit
// user action (re-enable after auto-disable, or new credentials after an
// auth failure). Error history clears so the ladder restarts from zero.
func Reenable(lc model.Lifecycle) model.Lifecycle {
	lc.Enabled = true
	lc.Status = model.StatusConfigured
	lc.LastError = ""
	lc.ConsecutiveErrors = 0
	lc.NextEligibleAt = 0
	return lc
}
