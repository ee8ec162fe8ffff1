// Package sandbox invokes plugin operations behind an isolation boundary.
// Each invocation runs to its own deadline in its own goroutine with panic
// recovery, takes its config by value, and must hand back JSON that
// validates against the adapter contract before the orchestrator will look
// at it. A crashing, hanging, or misbehaving plugin therefore cannot
// corrupt orchestrator state or block another source's poll.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gustaf30/nexus/internal/plugin"
)

// DefaultTimeout bounds a single plugin invocation when no override is
// configured.
const DefaultTimeout = 15 * time.Second

// Executor runs plugin operations with a bounded wall clock and contract
// validation of their output.
type Executor struct {
	registry *plugin.Registry
	schemas  *contractSchemas
	timeout  time.Duration
	log      *slog.Logger
}

// NewExecutor creates an executor over the given plugin registry. A
// timeout of zero selects DefaultTimeout.
func NewExecutor(registry *plugin.Registry, timeout time.Duration, log *slog.Logger) (*Executor, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, fmt.Errorf("compiling contract schemas: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		registry: registry,
		schemas:  schemas,
		timeout:  timeout,
		log:      log.With("component", "sandbox"),
	}, nil
}

// outcome carries a plugin invocation result across the goroutine
// boundary.
type outcome struct {
	raw []byte
	err error
}

// Execute invokes one operation of the plugin registered for sourceID,
// passing config by value, and returns the validated raw JSON result.
//
// Timeouts surface as *plugin.TimeoutError (transient). A panic inside
// the plugin or a result that fails contract validation surfaces as
// *plugin.ContractError. Other errors pass through unchanged so the
// caller can classify them.
func (e *Executor) Execute(
	ctx context.Context,
	sourceID string,
	op plugin.Operation,
	config []byte,
) ([]byte, error) {
	p, err := e.registry.Lookup(sourceID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Copy the config so the plugin can never mutate the caller's blob.
	configCopy := make([]byte, len(config))
	copy(configCopy, config)

	resCh := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- outcome{err: &plugin.ContractError{
					Source:  sourceID,
					Op:      op,
					Message: fmt.Sprintf("plugin panicked: %v", r),
				}}
			}
		}()

		var raw []byte
		var err error
		switch op {
		case plugin.OpPoll:
			raw, err = p.Poll(ctx, configCopy)
		case plugin.OpCheckConnection:
			raw, err = p.CheckConnection(ctx, configCopy)
		default:
			err = fmt.Errorf("unknown operation %q", op)
		}
		resCh <- outcome{raw: raw, err: err}
	}()

	select {
	case <-ctx.Done():
		// The plugin goroutine is abandoned; it observes ctx
		// cancellation on its next suspension point.
		if ctx.Err() == context.Canceled {
			return nil, ctx.Err()
		}
		e.log.Warn("execution timed out",
			"source", sourceID, "op", string(op), "timeout", e.timeout)
		return nil, &plugin.TimeoutError{
			Source:  sourceID,
			Op:      op,
			Timeout: e.timeout,
		}
	case res := <-resCh:
		if res.err != nil {
			return nil, res.err
		}
		if err := e.schemas.validate(op, res.raw); err != nil {
			return nil, &plugin.ContractError{
				Source:  sourceID,
				Op:      op,
				Message: err.Error(),
			}
		}
		return res.raw, nil
	}
}
