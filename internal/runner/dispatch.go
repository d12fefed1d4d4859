package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/h4d-assistant/book-chat/internal/model"
	"github.com/h4d-assistant/book-chat/internal/tools"
	"github.com/h4d-assistant/book-chat/pkg/metrics"
)

// toolError is the payload returned to the assistant when a call cannot be served.
type toolError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorOutput(callID, message string) model.ToolOutput {
	data, _ := json.Marshal(toolError{Status: "error", Message: message})
	return model.ToolOutput{ToolCallID: callID, Output: string(data)}
}

// resolve produces the output for one call. It never fails the run:
// every problem becomes an error payload for the assistant to read.
func (x *exchange) resolve(ctx context.Context, call model.ToolCall) model.ToolOutput {
	log := x.log.With(zap.String("tool_call_id", call.ID), zap.String("tool", call.Name))

	if call.Type != model.ToolCallTypeFunction {
		log.Warn("unsupported tool call type", zap.String("type", call.Type))
		metrics.RecordToolCall(call.Type, "unsupported")
		x.emit(ctx, model.Thinking(fmt.Sprintf("Skipping unsupported tool call type '%s'.", call.Type)))
		return errorOutput(call.ID, fmt.Sprintf("Unsupported tool call type: %s", call.Type))
	}

	tool, err := x.driver.registry.Get(call.Name)
	if err != nil {
		log.Warn("assistant requested unknown tool")
		metrics.RecordToolCall("unknown", "error")
		x.emit(ctx, model.Thinking(fmt.Sprintf("Assistant requested unknown tool '%s'.", call.Name)))
		return errorOutput(call.ID, fmt.Sprintf("Unknown tool: %s", call.Name))
	}

	if _, err := tools.DecodeObject(json.RawMessage(call.Arguments)); err != nil {
		log.Warn("malformed tool arguments", zap.String("arguments", call.Arguments))
		metrics.RecordToolCall(call.Name, "error")
		x.emit(ctx, model.Thinking(fmt.Sprintf("Assistant called '%s' with malformed arguments.", call.Name)))
		return errorOutput(call.ID, fmt.Sprintf("Tool execution failed: %v", err))
	}

	x.emit(ctx, model.Thinking(describeCall(tool, call)))

	output, err := x.execute(ctx, call)
	if err != nil {
		log.Warn("tool execution failed", zap.Error(err))
		metrics.RecordToolCall(call.Name, "error")
		return errorOutput(call.ID, fmt.Sprintf("Tool execution failed: %v", err))
	}

	metrics.RecordToolCall(call.Name, "success")
	return model.ToolOutput{ToolCallID: call.ID, Output: output}
}

// execute runs the registered tool, converting panics into errors.
func (x *exchange) execute(ctx context.Context, call model.ToolCall) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return x.driver.registry.Execute(ctx, call.Name, json.RawMessage(call.Arguments))
}

// describeCall renders the progress line shown while a tool runs.
func describeCall(tool tools.Tool, call model.ToolCall) string {
	if d, ok := tool.(tools.Describer); ok {
		return d.Describe(json.RawMessage(call.Arguments))
	}
	return fmt.Sprintf("Assistant calling: %s(%s)", call.Name, call.Arguments)
}
