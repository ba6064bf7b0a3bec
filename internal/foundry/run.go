package foundry

import "encoding/json"

// RunStatus is the agent runtime's reported run state.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
)

// Terminal reports whether the run can make no further progress.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	}
	return false
}

// Run is one execution of an agent against a thread.
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	Status         RunStatus       `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunError       `json:"last_error,omitempty"`
}

// RunError is the runtime's failure detail for a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequiredAction is the pending work blocking a run.
type RequiredAction struct {
	Type              string             `json:"type"`
	SubmitToolOutputs *SubmitToolOutputs `json:"submit_tool_outputs,omitempty"`
}

// SubmitToolOutputs lists the tool calls the runtime is waiting on.
type SubmitToolOutputs struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolCall is one function invocation requested by the runtime.
type ToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Function *FunctionCall `json:"function,omitempty"`
}

// FunctionCall carries the requested function name and its JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Args returns the call's arguments as raw JSON.
func (tc ToolCall) Args() json.RawMessage {
	if tc.Function == nil {
		return nil
	}
	return json.RawMessage(tc.Function.Arguments)
}

// FunctionCalls returns the pending calls that are executable function
// tools. Hosted tools resolve runtime-side and never appear here.
func (r *Run) FunctionCalls() []ToolCall {
	if r.RequiredAction == nil || r.RequiredAction.SubmitToolOutputs == nil {
		return nil
	}
	calls := make([]ToolCall, 0, len(r.RequiredAction.SubmitToolOutputs.ToolCalls))
	for _, tc := range r.RequiredAction.SubmitToolOutputs.ToolCalls {
		if tc.Type == "function" && tc.Function != nil {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ToolOutput is the correlated result of one executed tool call.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}
