package claude

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// lineBuffer assembles complete newline-terminated lines from arbitrary
// byte chunks. Feed returns every complete line in the chunk, in order,
// without the trailing newline; a partial tail is held until more bytes
// arrive.
type lineBuffer struct {
	buf []byte
}

// Feed appends chunk and returns all complete lines now available.
func (lb *lineBuffer) Feed(chunk []byte) []string {
	lb.buf = append(lb.buf, chunk...)

	var lines []string
	for {
		idx := -1
		for i, b := range lb.buf {
			if b == '\n' {
				idx = i
				break
			}
		}
		if idx < 0 {
			return lines
		}
		lines = append(lines, string(lb.buf[:idx]))
		lb.buf = lb.buf[idx+1:]
	}
}

// Flush returns any buffered partial line. Called at EOF so a final
// unterminated line is not lost.
func (lb *lineBuffer) Flush() string {
	if len(lb.buf) == 0 {
		return ""
	}
	line := string(lb.buf)
	lb.buf = nil
	return line
}

// contentBlock is one element of a message content array.
type contentBlock struct {
	Type      string          `json:"type"` // "text", "tool_use", "tool_result"
	ID        string          `json:"id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolUseId string          `json:"toolUseId,omitempty"` // camelCase variant from Claude CLI
	Content   json.RawMessage `json:"content,omitempty"`   // tool result content (string or array)
	IsError   bool            `json:"is_error,omitempty"`
}

// streamUsage is the token usage breakdown attached to several message types.
type streamUsage struct {
	InputTokens              int `json:"input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	OutputTokens             int `json:"output_tokens"`
}

// streamMessage represents a JSON line from the CLI's stream-json output.
type streamMessage struct {
	Type    string `json:"type"`    // "system", "assistant", "user", "result", "stream_event", "control_request"
	Subtype string `json:"subtype"` // "init", "success", "error_during_execution", ...
	Message struct {
		Content json.RawMessage `json:"content"` // array of blocks, or a plain string
		Usage   *streamUsage    `json:"usage,omitempty"`
	} `json:"message"`
	// Stream event payload (type="stream_event" with --include-partial-messages)
	Event *streamEvent `json:"event,omitempty"`
	// Control request payload (type="control_request")
	RequestID string              `json:"request_id,omitempty"`
	Request   *controlRequestBody `json:"request,omitempty"`
	Result    string              `json:"result,omitempty"`
	IsError   bool                `json:"is_error,omitempty"`
	SessionID string              `json:"session_id,omitempty"`
	Usage     *streamUsage        `json:"usage,omitempty"`
}

// streamEvent is the payload of stream_event messages.
type streamEvent struct {
	Type    string `json:"type"` // "message_start", "content_block_delta", "message_delta", ...
	Index   int    `json:"index,omitempty"`
	Message *struct {
		Usage *streamUsage `json:"usage,omitempty"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type       string `json:"type,omitempty"` // "text_delta", "input_json_delta"
		Text       string `json:"text,omitempty"`
		StopReason string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
	Usage *streamUsage `json:"usage,omitempty"` // message_delta carries cumulative usage
}

// parsed is the outcome of parsing one stdout line.
type parsed struct {
	events      []Event
	sessionID   string // non-empty when the line carried a session_id
	streamEvent bool   // the line was a stream_event (deltas are active)
}

// parseStreamMessage parses one line of stream-json output into events.
// When hasStreamEvents is true, text blocks in "assistant" messages are
// skipped: the same text was already delivered via content_block_delta.
// Malformed lines never fail the connection; they are logged and dropped.
func parseStreamMessage(line string, hasStreamEvents bool, log *slog.Logger) parsed {
	line = strings.TrimSpace(line)
	if line == "" {
		return parsed{}
	}

	// The CLI with --verbose may print non-JSON informational lines.
	if !strings.HasPrefix(line, "{") {
		log.Debug("skipping non-JSON line", "line", truncateForLog(line))
		return parsed{}
	}

	var msg streamMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		log.Warn("failed to parse stream message", "error", err, "line", truncateForLog(line))
		return parsed{}
	}

	if msg.Type == "" {
		log.Warn("JSON message without type", "line", truncateForLog(line))
		return parsed{}
	}

	out := parsed{sessionID: msg.SessionID}

	switch msg.Type {
	case "system":
		// Init carries the session id (captured above); nothing else to emit.
		if msg.Subtype == "init" {
			log.Debug("session initialized", "sessionID", msg.SessionID)
		}

	case "stream_event":
		out.streamEvent = true
		if msg.Event != nil {
			out.events = parseStreamEvent(msg.Event, log)
		}

	case "assistant":
		var turn AssistantTurn
		for _, block := range decodeContentBlocks(msg.Message.Content) {
			switch block.Type {
			case "text":
				// Deltas already streamed this text; emitting it again would
				// double the content.
				if hasStreamEvents {
					log.Debug("skipping assistant text (already streamed)", "len", len(block.Text))
					continue
				}
				if block.Text != "" {
					turn.TextBlocks = append(turn.TextBlocks, block.Text)
				}
			case "tool_use":
				out.events = append(out.events, ToolUseStarted{Name: block.Name})
				turn.ToolUses = append(turn.ToolUses, ToolUse{
					ID:    block.ID,
					Name:  block.Name,
					Input: block.Input,
				})
				log.Debug("tool use", "tool", block.Name, "id", block.ID)
			}
		}
		if len(turn.TextBlocks) > 0 || len(turn.ToolUses) > 0 {
			out.events = append(out.events, turn)
		}

	case "user":
		// User messages in stream-json carry tool results.
		for _, block := range decodeContentBlocks(msg.Message.Content) {
			toolUseID := block.ToolUseID
			if toolUseID == "" {
				toolUseID = block.ToolUseId
			}
			if block.Type == "tool_result" || toolUseID != "" {
				log.Debug("tool result received", "toolUseID", toolUseID, "isError", block.IsError)
				out.events = append(out.events, ToolResult{
					ToolUseID: toolUseID,
					Content:   decodeResultContent(block.Content),
					IsError:   block.IsError,
				})
			}
		}

	case "result":
		log.Debug("result received", "subtype", msg.Subtype, "isError", msg.IsError)
		if msg.Usage != nil {
			out.events = append(out.events, usageEvent(msg.Usage))
		}
		out.events = append(out.events, TurnResult{
			Text:    msg.Result,
			IsError: msg.IsError || msg.Subtype == "error_during_execution",
		})

	case "control_request":
		if msg.Request == nil || msg.Request.Subtype != "can_use_tool" {
			log.Debug("ignoring control_request", "requestID", msg.RequestID)
			return out
		}
		out.events = append(out.events, PermissionRequest{
			RequestID:   msg.RequestID,
			ToolName:    msg.Request.ToolName,
			Input:       msg.Request.Input,
			ToolUseID:   msg.Request.ToolUseID,
			Suggestions: msg.Request.PermissionSuggestions,
		})

	default:
		log.Debug("unknown message type", "type", msg.Type)
		out.events = append(out.events, Unknown{Raw: line})
	}

	return out
}

// parseStreamEvent extracts events from a stream_event payload.
func parseStreamEvent(event *streamEvent, log *slog.Logger) []Event {
	var events []Event

	switch event.Type {
	case "message_start":
		if event.Message != nil && event.Message.Usage != nil {
			events = append(events, usageEvent(event.Message.Usage))
		}

	case "content_block_delta":
		if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
			events = append(events, TextDelta{Text: event.Delta.Text})
		}
		// input_json_delta is ignored: the complete tool input arrives with
		// the assistant message.

	case "message_delta":
		if event.Usage != nil {
			events = append(events, usageEvent(event.Usage))
		}

	case "content_block_start", "content_block_stop", "message_stop":
		log.Debug("stream event", "type", event.Type, "index", event.Index)
	}

	return events
}

// decodeContentBlocks handles content that is either an array of blocks or
// a bare string (the shape this process itself writes for user prompts).
func decodeContentBlocks(raw json.RawMessage) []contentBlock {
	if len(raw) == 0 {
		return nil
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return blocks
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return []contentBlock{{Type: "text", Text: s}}
	}
	return nil
}

// decodeResultContent flattens tool result content, which may be a plain
// string or an array of typed blocks, into display text.
func decodeResultContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}

func usageEvent(u *streamUsage) UsageUpdate {
	return UsageUpdate{
		Input:         u.InputTokens,
		Output:        u.OutputTokens,
		CacheRead:     u.CacheReadInputTokens,
		CacheCreation: u.CacheCreationInputTokens,
	}
}

// truncateForLog truncates long strings for log messages
func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
