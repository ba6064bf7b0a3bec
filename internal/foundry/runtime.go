package foundry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"geniebot/internal/domain"
)

// ToolInvoker executes one required tool call and returns its correlated
// output. Implementations always return an output — failures are encoded as
// data — so the runtime's batch-completion contract is never violated by a
// missing entry.
type ToolInvoker func(ctx context.Context, call ToolCall) ToolOutput

// Runtime drives one agent run to a terminal state, supplying tool outputs
// whenever the run requires them. The poll adapter exposes every state
// transition; the blocking adapter collapses them into one call.
type Runtime interface {
	ExecuteRun(ctx context.Context, threadID, agentID string, invoke ToolInvoker) (*Run, error)
}

// PollRuntime is the explicit-poll adapter: it creates the run and polls its
// status with exponential backoff until a terminal state, executing required
// tool-call batches as they appear.
type PollRuntime struct {
	client      *Client
	interval    time.Duration
	maxInterval time.Duration
	timeout     time.Duration
	log         zerolog.Logger
}

// NewPollRuntime creates a poll adapter with the given base poll interval
// and overall run deadline.
func NewPollRuntime(client *Client, interval, timeout time.Duration, logger zerolog.Logger) *PollRuntime {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &PollRuntime{
		client:      client,
		interval:    interval,
		maxInterval: 8 * interval,
		timeout:     timeout,
		log:         logger,
	}
}

// ExecuteRun implements Runtime.
func (p *PollRuntime) ExecuteRun(ctx context.Context, threadID, agentID string, invoke ToolInvoker) (*Run, error) {
	run, err := p.client.CreateRun(ctx, threadID, agentID)
	if err != nil {
		return nil, err
	}
	p.log.Debug().Str("run_id", run.ID).Str("thread_id", threadID).Msg("run created")

	deadline := time.Now().Add(p.timeout)
	interval := p.interval

	for !run.Status.Terminal() {
		if run.Status == RunStatusRequiresAction {
			calls := run.FunctionCalls()
			if len(calls) == 0 {
				// Nothing actionable: cancel and treat as a no-result
				// outcome rather than an error.
				p.log.Warn().Str("run_id", run.ID).Msg("requires_action with no tool calls, cancelling run")
				if err := p.client.CancelRun(ctx, threadID, run.ID); err != nil {
					p.log.Error().Err(err).Str("run_id", run.ID).Msg("cancel failed")
				}
				run.Status = RunStatusCancelled
				return run, nil
			}

			outputs := make([]ToolOutput, 0, len(calls))
			for _, call := range calls {
				outputs = append(outputs, invoke(ctx, call))
			}
			run, err = p.client.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
			if err != nil {
				return nil, err
			}
			interval = p.interval
			continue
		}

		if p.timeout > 0 && time.Now().After(deadline) {
			if err := p.client.CancelRun(ctx, threadID, run.ID); err != nil {
				p.log.Error().Err(err).Str("run_id", run.ID).Msg("cancel after timeout failed")
			}
			return nil, domain.ErrRunTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		if interval < p.maxInterval {
			interval *= 2
			if interval > p.maxInterval {
				interval = p.maxInterval
			}
		}

		run, err = p.client.GetRun(ctx, threadID, run.ID)
		if err != nil {
			return nil, err
		}
	}

	return run, nil
}

// BlockingRuntime is the run-to-completion adapter: a single client call
// hides the polling loop while still surfacing tool calls through the
// invoker.
type BlockingRuntime struct {
	client  *Client
	timeout time.Duration
}

// NewBlockingRuntime creates a blocking adapter with the given run deadline.
func NewBlockingRuntime(client *Client, timeout time.Duration) *BlockingRuntime {
	return &BlockingRuntime{client: client, timeout: timeout}
}

// ExecuteRun implements Runtime.
func (b *BlockingRuntime) ExecuteRun(ctx context.Context, threadID, agentID string, invoke ToolInvoker) (*Run, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, b.timeout, domain.ErrRunTimeout)
		defer cancel()
	}
	run, err := b.client.ProcessRun(ctx, threadID, agentID, invoke)
	if err != nil && ctx.Err() != nil && context.Cause(ctx) == domain.ErrRunTimeout {
		return nil, domain.ErrRunTimeout
	}
	return run, err
}

// ProcessRun creates a run and drives it to a terminal state in one call,
// with a fixed internal cadence. The explicit-poll adapter is the baseline
// surface; this one exists for callers that want the collapsed form.
func (c *Client) ProcessRun(ctx context.Context, threadID, agentID string, invoke ToolInvoker) (*Run, error) {
	run, err := c.CreateRun(ctx, threadID, agentID)
	if err != nil {
		return nil, err
	}

	for !run.Status.Terminal() {
		if run.Status == RunStatusRequiresAction {
			calls := run.FunctionCalls()
			if len(calls) == 0 {
				if err := c.CancelRun(ctx, threadID, run.ID); err != nil {
					c.log.Error().Err(err).Str("run_id", run.ID).Msg("cancel failed")
				}
				run.Status = RunStatusCancelled
				return run, nil
			}
			outputs := make([]ToolOutput, 0, len(calls))
			for _, call := range calls {
				outputs = append(outputs, invoke(ctx, call))
			}
			if run, err = c.SubmitToolOutputs(ctx, threadID, run.ID, outputs); err != nil {
				return nil, err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
		if run, err = c.GetRun(ctx, threadID, run.ID); err != nil {
			return nil, err
		}
	}
	return run, nil
}
