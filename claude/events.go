package claude

import "encoding/json"

// Event is the tagged union delivered on the Connection's event channel.
// Every variant is a value type; consumers switch on the concrete type.
type Event interface {
	isEvent()
}

// SessionAssigned reports the session id the CLI chose (or confirmed).
// Emitted once per distinct id; repeats of the same id are suppressed.
type SessionAssigned struct {
	ID string
}

// TextDelta is an incremental text chunk from a streaming assistant turn.
type TextDelta struct {
	Text string
}

// ToolUseStarted fires as soon as a tool invocation appears in the stream,
// before its result arrives.
type ToolUseStarted struct {
	Name string
}

// ToolUse is one complete tool invocation within an assistant turn.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// AssistantTurn carries the discrete blocks of a complete assistant message.
// TextBlocks is empty when deltas already streamed the same text.
type AssistantTurn struct {
	TextBlocks []string
	ToolUses   []ToolUse
}

// ToolResult resolves an earlier tool use.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// UsageUpdate reports cumulative token usage for the current turn.
type UsageUpdate struct {
	Input         int
	Output        int
	CacheRead     int
	CacheCreation int
}

// TurnResult marks the end of a turn with the CLI's final result text.
type TurnResult struct {
	Text    string
	IsError bool
}

// PermissionRequest asks the consumer to approve or deny a tool call.
// Answer with Connection.RespondToPermission using the same RequestID.
type PermissionRequest struct {
	RequestID   string
	ToolName    string
	Input       json.RawMessage
	ToolUseID   string
	Suggestions json.RawMessage
}

// SessionExpired means the CLI rejected a resume because the conversation
// no longer exists. The stored session id has been cleared.
type SessionExpired struct{}

// ProcessExited reports an unexpected child exit. Err is nil on a clean
// exit status.
type ProcessExited struct {
	Err    error
	Stderr string
}

// SpawnError reports a failed spawn with a user-presentable classification.
type SpawnError struct {
	Kind   SpawnErrorKind
	Title  string
	Detail string
	Err    error
}

// Unknown wraps a well-formed JSON line whose type the parser does not
// recognize. Preserved so consumers can log or inspect it.
type Unknown struct {
	Raw string
}

func (SessionAssigned) isEvent()   {}
func (TextDelta) isEvent()         {}
func (ToolUseStarted) isEvent()    {}
func (AssistantTurn) isEvent()     {}
func (ToolResult) isEvent()        {}
func (UsageUpdate) isEvent()       {}
func (TurnResult) isEvent()        {}
func (PermissionRequest) isEvent() {}
func (SessionExpired) isEvent()    {}
func (ProcessExited) isEvent()     {}
func (SpawnError) isEvent()        {}
func (Unknown) isEvent()           {}
