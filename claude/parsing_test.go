package claude

import (
	"log/slog"
	"os"
	"testing"
)

func parseTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLineBuffer_SingleLine(t *testing.T) {
	var lb lineBuffer

	lines := lb.Feed([]byte("hello\n"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0] != "hello" {
		t.Errorf("expected 'hello', got %q", lines[0])
	}
}

func TestLineBuffer_ByteAtATime(t *testing.T) {
	var lb lineBuffer

	input := "first\nsecond\n"
	var lines []string
	for i := 0; i < len(input); i++ {
		lines = append(lines, lb.Feed([]byte{input[i]})...)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "first" || lines[1] != "second" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestLineBuffer_ByteAtATimeResultLine(t *testing.T) {
	var lb lineBuffer

	input := `{"type":"result","result":"hi"}` + "\n"
	var events []Event
	for i := 0; i < len(input); i++ {
		for _, line := range lb.Feed([]byte{input[i]}) {
			events = append(events, parseStreamMessage(line, true, parseTestLogger()).events...)
		}
	}

	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d: %v", len(events), events)
	}
	turn, ok := events[0].(TurnResult)
	if !ok {
		t.Fatalf("expected TurnResult, got %T", events[0])
	}
	if turn.Text != "hi" || turn.IsError {
		t.Errorf("unexpected turn result: %+v", turn)
	}
}

func TestLineBuffer_SplitAcrossChunks(t *testing.T) {
	var lb lineBuffer

	lines := lb.Feed([]byte(`{"type":"sys`))
	if len(lines) != 0 {
		t.Fatalf("expected no complete lines yet, got %v", lines)
	}

	lines = lb.Feed([]byte("tem\"}\n{\"a\":1}\npartial"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != `{"type":"system"}` {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != `{"a":1}` {
		t.Errorf("unexpected second line: %q", lines[1])
	}

	if got := lb.Flush(); got != "partial" {
		t.Errorf("expected flushed tail 'partial', got %q", got)
	}
	if got := lb.Flush(); got != "" {
		t.Errorf("second flush should be empty, got %q", got)
	}
}

func TestParseStreamMessage_SystemInit(t *testing.T) {
	line := `{"type":"system","subtype":"init","session_id":"sess-123"}`

	result := parseStreamMessage(line, false, parseTestLogger())

	if result.sessionID != "sess-123" {
		t.Errorf("expected session id 'sess-123', got %q", result.sessionID)
	}
	if len(result.events) != 0 {
		t.Errorf("system init should emit no events, got %d", len(result.events))
	}
}

func TestParseStreamMessage_TextDelta(t *testing.T) {
	line := `{"type":"stream_event","event":{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}}`

	result := parseStreamMessage(line, false, parseTestLogger())

	if !result.streamEvent {
		t.Error("expected streamEvent to be marked")
	}
	if len(result.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.events))
	}
	delta, ok := result.events[0].(TextDelta)
	if !ok {
		t.Fatalf("expected TextDelta, got %T", result.events[0])
	}
	if delta.Text != "Hello" {
		t.Errorf("expected 'Hello', got %q", delta.Text)
	}
}

func TestParseStreamMessage_MessageStartUsage(t *testing.T) {
	line := `{"type":"stream_event","event":{"type":"message_start","message":{"usage":{"input_tokens":10,"cache_read_input_tokens":5}}}}`

	result := parseStreamMessage(line, false, parseTestLogger())

	if len(result.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.events))
	}
	usage, ok := result.events[0].(UsageUpdate)
	if !ok {
		t.Fatalf("expected UsageUpdate, got %T", result.events[0])
	}
	if usage.Input != 10 || usage.CacheRead != 5 {
		t.Errorf("unexpected usage: %+v", usage)
	}
}

func TestParseStreamMessage_MessageDeltaUsage(t *testing.T) {
	line := `{"type":"stream_event","event":{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":25}}}`

	result := parseStreamMessage(line, false, parseTestLogger())

	if len(result.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.events))
	}
	usage, ok := result.events[0].(UsageUpdate)
	if !ok {
		t.Fatalf("expected UsageUpdate, got %T", result.events[0])
	}
	if usage.Output != 25 {
		t.Errorf("expected 25 output tokens, got %d", usage.Output)
	}
}

func TestParseStreamMessage_AssistantText(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"Hi there"}]},"session_id":"sess-1"}`

	result := parseStreamMessage(line, false, parseTestLogger())

	if len(result.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.events))
	}
	turn, ok := result.events[0].(AssistantTurn)
	if !ok {
		t.Fatalf("expected AssistantTurn, got %T", result.events[0])
	}
	if len(turn.TextBlocks) != 1 || turn.TextBlocks[0] != "Hi there" {
		t.Errorf("unexpected text blocks: %v", turn.TextBlocks)
	}
}

func TestParseStreamMessage_AssistantTextSkippedAfterDeltas(t *testing.T) {
	// Once deltas have streamed, assistant text blocks are duplicates.
	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"Hi there"}]}}`

	result := parseStreamMessage(line, true, parseTestLogger())

	if len(result.events) != 0 {
		t.Errorf("expected no events after deltas, got %d: %v", len(result.events), result.events)
	}
}

func TestParseStreamMessage_AssistantToolUse(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"tu-1","name":"open_file","input":{"path":"main.go"}}]}}`

	result := parseStreamMessage(line, true, parseTestLogger())

	if len(result.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result.events))
	}
	started, ok := result.events[0].(ToolUseStarted)
	if !ok {
		t.Fatalf("expected ToolUseStarted first, got %T", result.events[0])
	}
	if started.Name != "open_file" {
		t.Errorf("expected tool 'open_file', got %q", started.Name)
	}
	turn, ok := result.events[1].(AssistantTurn)
	if !ok {
		t.Fatalf("expected AssistantTurn second, got %T", result.events[1])
	}
	if len(turn.ToolUses) != 1 {
		t.Fatalf("expected 1 tool use, got %d", len(turn.ToolUses))
	}
	if turn.ToolUses[0].ID != "tu-1" {
		t.Errorf("expected tool use id 'tu-1', got %q", turn.ToolUses[0].ID)
	}
	if string(turn.ToolUses[0].Input) != `{"path":"main.go"}` {
		t.Errorf("unexpected input: %s", turn.ToolUses[0].Input)
	}
}

func TestParseStreamMessage_ToolResult(t *testing.T) {
	line := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu-1","content":"done"}]}}`

	result := parseStreamMessage(line, true, parseTestLogger())

	if len(result.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.events))
	}
	tr, ok := result.events[0].(ToolResult)
	if !ok {
		t.Fatalf("expected ToolResult, got %T", result.events[0])
	}
	if tr.ToolUseID != "tu-1" {
		t.Errorf("expected tool use id 'tu-1', got %q", tr.ToolUseID)
	}
	if tr.Content != "done" {
		t.Errorf("expected content 'done', got %q", tr.Content)
	}
	if tr.IsError {
		t.Error("expected IsError false")
	}
}

func TestParseStreamMessage_ToolResultCamelCaseID(t *testing.T) {
	line := `{"type":"user","message":{"content":[{"type":"tool_result","toolUseId":"tu-2","content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}],"is_error":true}]}}`

	result := parseStreamMessage(line, true, parseTestLogger())

	if len(result.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.events))
	}
	tr := result.events[0].(ToolResult)
	if tr.ToolUseID != "tu-2" {
		t.Errorf("expected tool use id 'tu-2', got %q", tr.ToolUseID)
	}
	if tr.Content != "line one\nline two" {
		t.Errorf("unexpected content: %q", tr.Content)
	}
	if !tr.IsError {
		t.Error("expected IsError true")
	}
}

func TestParseStreamMessage_UserPromptStringContent(t *testing.T) {
	// The string-content shape this process writes for prompts; must not
	// fail parsing or produce tool results.
	line := `{"type":"user","message":{"role":"user","content":"hello"}}`

	result := parseStreamMessage(line, false, parseTestLogger())

	if len(result.events) != 0 {
		t.Errorf("expected no events for plain user prompt, got %d", len(result.events))
	}
}

func TestParseStreamMessage_Result(t *testing.T) {
	line := `{"type":"result","subtype":"success","result":"All done","is_error":false,"session_id":"sess-9","usage":{"input_tokens":100,"output_tokens":50}}`

	result := parseStreamMessage(line, true, parseTestLogger())

	if result.sessionID != "sess-9" {
		t.Errorf("expected session id 'sess-9', got %q", result.sessionID)
	}
	if len(result.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result.events))
	}
	usage, ok := result.events[0].(UsageUpdate)
	if !ok {
		t.Fatalf("expected UsageUpdate first, got %T", result.events[0])
	}
	if usage.Input != 100 || usage.Output != 50 {
		t.Errorf("unexpected usage: %+v", usage)
	}
	turn, ok := result.events[1].(TurnResult)
	if !ok {
		t.Fatalf("expected TurnResult second, got %T", result.events[1])
	}
	if turn.Text != "All done" || turn.IsError {
		t.Errorf("unexpected turn result: %+v", turn)
	}
}

func TestParseStreamMessage_ResultErrorDuringExecution(t *testing.T) {
	line := `{"type":"result","subtype":"error_during_execution","result":""}`

	result := parseStreamMessage(line, true, parseTestLogger())

	if len(result.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.events))
	}
	turn := result.events[0].(TurnResult)
	if !turn.IsError {
		t.Error("error_during_execution should mark the turn as an error")
	}
}

func TestParseStreamMessage_ControlRequest(t *testing.T) {
	line := `{"type":"control_request","request_id":"req-7","request":{"subtype":"can_use_tool","tool_name":"Bash","input":{"command":"ls"},"tool_use_id":"tu-9"}}`

	result := parseStreamMessage(line, false, parseTestLogger())

	if len(result.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.events))
	}
	req, ok := result.events[0].(PermissionRequest)
	if !ok {
		t.Fatalf("expected PermissionRequest, got %T", result.events[0])
	}
	if req.RequestID != "req-7" {
		t.Errorf("expected request id 'req-7', got %q", req.RequestID)
	}
	if req.ToolName != "Bash" {
		t.Errorf("expected tool 'Bash', got %q", req.ToolName)
	}
	if req.ToolUseID != "tu-9" {
		t.Errorf("expected tool use id 'tu-9', got %q", req.ToolUseID)
	}
	if string(req.Input) != `{"command":"ls"}` {
		t.Errorf("unexpected input: %s", req.Input)
	}
}

func TestParseStreamMessage_ControlRequestOtherSubtype(t *testing.T) {
	line := `{"type":"control_request","request_id":"req-8","request":{"subtype":"hook_callback"}}`

	result := parseStreamMessage(line, false, parseTestLogger())

	if len(result.events) != 0 {
		t.Errorf("non-permission control requests should be ignored, got %d events", len(result.events))
	}
}

func TestParseStreamMessage_UnknownType(t *testing.T) {
	line := `{"type":"telemetry","data":{"x":1}}`

	result := parseStreamMessage(line, false, parseTestLogger())

	if len(result.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.events))
	}
	unknown, ok := result.events[0].(Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %T", result.events[0])
	}
	if unknown.Raw != line {
		t.Errorf("Unknown should preserve the raw line")
	}
}

func TestParseStreamMessage_Malformed(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"not json at all",
		`{"type":`,
		`{"no_type_field":true}`,
		`{broken`,
	}

	for _, line := range cases {
		result := parseStreamMessage(line, false, parseTestLogger())
		if len(result.events) != 0 {
			t.Errorf("line %q should produce no events, got %d", line, len(result.events))
		}
	}
}

func TestParseStreamMessage_InvalidLineThenValid(t *testing.T) {
	var lb lineBuffer

	chunk := "{broken json\n" + `{"type":"result","result":"ok"}` + "\n"
	var events []Event
	for _, line := range lb.Feed([]byte(chunk)) {
		events = append(events, parseStreamMessage(line, true, parseTestLogger()).events...)
	}

	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d: %v", len(events), events)
	}
	if turn, ok := events[0].(TurnResult); !ok || turn.Text != "ok" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestDecodeResultContent_RawFallback(t *testing.T) {
	got := decodeResultContent([]byte(`{"weird":"shape"}`))
	if got != `{"weird":"shape"}` {
		t.Errorf("unexpected fallback content: %q", got)
	}
}
