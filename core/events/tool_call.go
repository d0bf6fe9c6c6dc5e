package events

const (
	// KindToolCallStarted identifies a tool call handed to its handler.
	KindToolCallStarted Kind = "tool_call.started"
	// KindToolCallCompleted identifies successful tool call completion.
	KindToolCallCompleted Kind = "tool_call.completed"
	// KindToolCallFailed identifies tool call failure.
	KindToolCallFailed Kind = "tool_call.failed"
)

// ToolCallStarted carries the tool name and its raw JSON arguments.
type ToolCallStarted struct {
	Base
	Name string
	Args string
}

// NewToolCallStarted creates a tool call started event.
func NewToolCallStarted(name, args string) ToolCallStarted {
	return ToolCallStarted{Base: NewBase(KindToolCallStarted), Name: name, Args: args}
}

// ToolCallCompleted carries the value sent back as the tool output.
type ToolCallCompleted struct {
	Base
	Name   string
	Output any
}

// NewToolCallCompleted creates a tool call completed event.
func NewToolCallCompleted(name string, output any) ToolCallCompleted {
	return ToolCallCompleted{Base: NewBase(KindToolCallCompleted), Name: name, Output: output}
}

type ToolCallFailed struct {
	Base
	Name  string
	Error string
}

// NewToolCallFailed creates a tool call failed event.
func NewToolCallFailed(name, err string) ToolCallFailed {
	return ToolCallFailed{Base: NewBase(KindToolCallFailed), Name: name, Error: err}
}
