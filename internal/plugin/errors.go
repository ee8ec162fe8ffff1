package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failed plugin execution so the lifecycle state
// machine can apply the right retry policy.
type ErrorKind int

const (
	// KindTransient covers network and upstream API failures. These
	// retry via the exponential backoff ladder.
	KindTransient ErrorKind = iota

	// KindAuth means credentials were rejected. The source is paused
	// until credentials are replaced; no short-interval retries.
	KindAuth

	// KindRateLimited means the upstream asked us to slow down. The
	// next poll time comes from the Retry-After hint, not the
	// exponential formula.
	KindRateLimited

	// KindContract means the plugin returned data that does not match
	// the adapter contract, or crashed. This indicates a code defect
	// rather than transient unavailability: the source is flagged for
	// attention but not driven down the backoff ladder.
	KindContract

	// KindTimeout means the execution exceeded its wall-clock bound.
	// Treated like a transient failure.
	KindTimeout
)

// String names the kind for logs.
func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindContract:
		return "contract"
	case KindTimeout:
		return "timeout"
	default:
		return "transient"
	}
}

// AuthError indicates that authentication failed or expired for a source.
type AuthError struct {
	Source  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Source, e.Message)
}

// RateLimitedError indicates the upstream returned a rate-limit response.
// RetryAfter carries the upstream hint; zero means no hint was given.
type RateLimitedError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (%s): retry after %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (%s)", e.Source)
}

// ContractError indicates the plugin returned a malformed result or
// panicked during execution.
type ContractError struct {
	Source  string
	Op      Operation
	Message string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation (%s/%s): %s", e.Source, e.Op, e.Message)
}

// TimeoutError indicates the execution was aborted at its deadline.
type TimeoutError struct {
	Source  string
	Op      Operation
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out (%s/%s) after %s", e.Source, e.Op, e.Timeout)
}

// Classify maps an execution error to its ErrorKind. Anything not
// explicitly typed is treated as transient, matching the retry policy
// for plain network failures.
func Classify(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return KindAuth
	}
	var rateErr *RateLimitedError
	if errors.As(err, &rateErr) {
		return KindRateLimited
	}
	var contractErr *ContractError
	if errors.As(err, &contractErr) {
		return KindContract
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransient
}

// RetryAfterHint extracts the upstream Retry-After duration from err, if
// the error chain carries one.
func RetryAfterHint(err error) (time.Duration, bool) {
	var rateErr *RateLimitedError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		return rateErr.RetryAfter, true
	}
	return 0, false
}
