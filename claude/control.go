package claude

import "encoding/json"

// Permission behaviors accepted by RespondToPermission.
const (
	BehaviorAllow = "allow"
	BehaviorDeny  = "deny"
)

// controlRequestBody is the request payload of an inbound control_request.
type controlRequestBody struct {
	Subtype               string          `json:"subtype"` // "can_use_tool"
	ToolName              string          `json:"tool_name"`
	Input                 json.RawMessage `json:"input,omitempty"`
	ToolUseID             string          `json:"tool_use_id,omitempty"`
	PermissionSuggestions json.RawMessage `json:"permission_suggestions,omitempty"`
}

// controlResponse is the outbound answer to a control_request, written as
// one JSON line on the CLI's stdin.
type controlResponse struct {
	Type     string              `json:"type"` // always "control_response"
	Response controlResponseBody `json:"response"`
}

type controlResponseBody struct {
	RequestID string `json:"request_id"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Behavior  string `json:"behavior"` // "allow" or "deny"
	// UpdatedInput optionally rewrites the tool input on allow.
	UpdatedInput json.RawMessage `json:"updatedInput,omitempty"`
	// Message carries the denial reason on deny.
	Message string `json:"message,omitempty"`
}

// pendingPermission tracks one in-flight control_request.
type pendingPermission struct {
	toolName  string
	toolUseID string
}

// encodeControlResponse builds the control_response line for a pending
// request. updatedInput is only meaningful on allow; message only on deny.
func encodeControlResponse(requestID string, p pendingPermission, behavior string, updatedInput json.RawMessage, message string) ([]byte, error) {
	body := controlResponseBody{
		RequestID: requestID,
		ToolUseID: p.toolUseID,
		Behavior:  behavior,
	}
	switch behavior {
	case BehaviorAllow:
		body.UpdatedInput = updatedInput
	case BehaviorDeny:
		body.Message = message
	}
	return json.Marshal(controlResponse{Type: "control_response", Response: body})
}
