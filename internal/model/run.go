// Package model defines data structures for the chat service.
package model

// RunStatus is the hosted lifecycle state of a run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusExpired        RunStatus = "expired"
)

// Active reports whether the run loop keeps polling in this status.
func (s RunStatus) Active() bool {
	switch s {
	case RunStatusQueued, RunStatusInProgress, RunStatusRequiresAction:
		return true
	}
	return false
}

// ToolCallTypeFunction is the only tool call flavor resolved locally.
const ToolCallTypeFunction = "function"

// Run is one assistant execution attached to a thread.
type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	ToolCalls []ToolCall
	LastError string
}

// ToolCall is a pending request from the assistant to invoke a local tool.
type ToolCall struct {
	ID        string
	Type      string
	Name      string
	Arguments string
}

// ToolOutput resolves one tool call.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}
