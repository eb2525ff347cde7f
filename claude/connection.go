package claude

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultKillTimeout is how long a graceful kill waits for the process to
// honor SIGTERM before escalating to SIGKILL.
const DefaultKillTimeout = 3 * time.Second

// eventChannelBuffer sizes the event channel. Consumers that stall briefly
// do not block the process reader.
const eventChannelBuffer = 256

// sessionExpiredMarker is the stderr phrase the CLI prints when a --resume
// refers to a conversation that no longer exists.
const sessionExpiredMarker = "No conversation found with session ID"

// StartOptions configures one spawn of the CLI process.
type StartOptions struct {
	// CLIPath is the binary to launch. Empty means "claude" on PATH.
	CLIPath string
	// WorkingDir is the process working directory, typically the first
	// project root.
	WorkingDir string
	// ProjectPaths are additional roots passed via --add-dir.
	ProjectPaths []string
	// SessionID resumes an existing conversation when non-empty.
	SessionID string
	// PermissionMode is passed through via --permission-mode when set.
	PermissionMode string
	// Model overrides the CLI's default model when set.
	Model string
	// BridgeURL, when set, registers the bridge's MCP endpoint with the CLI
	// via an inline --mcp-config.
	BridgeURL string
	// KillTimeout overrides DefaultKillTimeout when positive.
	KillTimeout time.Duration
}

// BuildCommandArgs builds the CLI argument list for the given options.
// Exported for tests to verify argument construction.
func BuildCommandArgs(opts StartOptions) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--input-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
	}

	if opts.SessionID != "" {
		args = append(args, "--resume", opts.SessionID)
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	for _, dir := range opts.ProjectPaths {
		if dir != opts.WorkingDir {
			args = append(args, "--add-dir", dir)
		}
	}
	if opts.BridgeURL != "" {
		args = append(args, "--mcp-config", bridgeMCPConfig(opts.BridgeURL))
	}

	return args
}

// bridgeMCPConfig renders the inline MCP server config pointing the CLI at
// the bridge's HTTP endpoint.
func bridgeMCPConfig(bridgeURL string) string {
	cfg := map[string]any{
		"mcpServers": map[string]any{
			"editor": map[string]any{
				"type": "http",
				"url":  bridgeURL,
			},
		},
	}
	data, _ := json.Marshal(cfg)
	return string(data)
}

// userMessage is the outbound prompt line written to the CLI's stdin.
type userMessage struct {
	Type    string `json:"type"` // always "user"
	Message struct {
		Role    string `json:"role"` // always "user"
		Content string `json:"content"`
	} `json:"message"`
}

// Connection manages at most one CLI subprocess and exposes its output as
// a typed event stream.
type Connection struct {
	log *slog.Logger

	mu              sync.Mutex
	state           State
	proc            *ProcessManager
	opts            StartOptions
	sessionID       string
	hasStreamEvents bool
	pending         map[string]pendingPermission
	destroyed       bool

	events    chan Event
	closeOnce sync.Once
}

// NewConnection creates an idle Connection.
func NewConnection(log *slog.Logger) *Connection {
	return &Connection{
		log:     log,
		state:   StateIdle,
		pending: make(map[string]pendingPermission),
		events:  make(chan Event, eventChannelBuffer),
	}
}

// Events returns the event channel. It is closed by Destroy.
func (c *Connection) Events() <-chan Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the CLI-assigned session id, or "" before assignment.
func (c *Connection) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Start spawns the CLI process. A Connection that is already Running (or
// mid-start/mid-stop) treats Start as a no-op. On spawn failure the state
// becomes Error and a classified SpawnError event is emitted; there is no
// automatic retry.
func (c *Connection) Start(opts StartOptions) error {
	c.mu.Lock()

	if c.destroyed {
		c.mu.Unlock()
		return fmt.Errorf("connection destroyed")
	}
	if c.state == StateRunning || c.state == StateStarting || c.state == StateStopping {
		c.mu.Unlock()
		return nil
	}

	c.state = StateStarting
	c.opts = opts
	if opts.SessionID != "" {
		c.sessionID = opts.SessionID
	}
	// Resume with the stored id when the caller did not pin one
	if opts.SessionID == "" && c.sessionID != "" {
		opts.SessionID = c.sessionID
	}
	c.hasStreamEvents = false

	cliPath := opts.CLIPath
	if cliPath == "" {
		cliPath = "claude"
	}

	proc := NewProcessManager(
		ProcessConfig{
			Path: cliPath,
			Args: BuildCommandArgs(opts),
			Dir:  opts.WorkingDir,
		},
		ProcessCallbacks{
			OnLine:       c.handleLine,
			OnStderrLine: c.handleStderrLine,
			OnExit:       c.handleExit,
		},
		c.log,
	)
	c.proc = proc
	c.mu.Unlock()

	if err := proc.Start(); err != nil {
		spawnErr := classifySpawnError(cliPath, err)
		c.log.Error("spawn failed", "kind", spawnErr.Kind.String(), "error", err)

		c.mu.Lock()
		c.proc = nil
		c.state = StateError
		c.mu.Unlock()

		c.emit(spawnErr)
		return fmt.Errorf("failed to start %s: %w", cliPath, err)
	}

	c.mu.Lock()
	c.state = StateRunning
	c.mu.Unlock()

	return nil
}

// Send writes one user prompt line to the CLI's stdin, starting the process
// first when it is not running.
func (c *Connection) Send(prompt string) error {
	c.mu.Lock()
	state := c.state
	opts := c.opts
	proc := c.proc
	c.mu.Unlock()

	if state != StateRunning {
		if err := c.Start(opts); err != nil {
			return err
		}
		c.mu.Lock()
		proc = c.proc
		c.mu.Unlock()
	}

	if proc == nil {
		return fmt.Errorf("process not running")
	}

	var msg userMessage
	msg.Type = "user"
	msg.Message.Role = "user"
	msg.Message.Content = prompt

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode prompt: %w", err)
	}

	return proc.WriteLine(data)
}

// RespondToPermission answers a pending PermissionRequest. behavior must be
// BehaviorAllow or BehaviorDeny; updatedInput optionally rewrites the tool
// input on allow, denyMessage carries the reason on deny. Responses for
// unknown request ids are dropped with a log entry.
func (c *Connection) RespondToPermission(requestID, behavior string, updatedInput json.RawMessage, denyMessage string) error {
	if behavior != BehaviorAllow && behavior != BehaviorDeny {
		return fmt.Errorf("invalid behavior %q", behavior)
	}
	if behavior == BehaviorDeny && denyMessage == "" {
		denyMessage = "Denied by user"
	}

	c.mu.Lock()
	p, known := c.pending[requestID]
	if known {
		delete(c.pending, requestID)
	}
	proc := c.proc
	c.mu.Unlock()

	if !known {
		c.log.Warn("permission response for unknown request", "requestID", requestID)
		return nil
	}
	if proc == nil {
		return fmt.Errorf("process not running")
	}

	data, err := encodeControlResponse(requestID, p, behavior, updatedInput, denyMessage)
	if err != nil {
		return fmt.Errorf("failed to encode control response: %w", err)
	}

	c.log.Debug("permission response", "requestID", requestID, "tool", p.toolName, "behavior", behavior)
	return proc.WriteLine(data)
}

// PendingPermissions returns the request ids awaiting a response.
func (c *Connection) PendingPermissions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	return ids
}

// Kill terminates the child process. Graceful kills race SIGTERM against
// the kill timeout before escalating to SIGKILL. Always resolves to Idle
// with the process handle cleared; a no-op when nothing is running. The
// exit is reported with a ProcessExited event so consumers can clear an
// in-flight turn.
func (c *Connection) Kill(graceful bool) {
	c.mu.Lock()
	proc := c.proc
	if proc == nil {
		// Nothing live; an Error state still resets to Idle
		if c.state != StateIdle {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	timeout := c.opts.KillTimeout
	c.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultKillTimeout
	}
	proc.Stop(graceful, timeout)

	c.mu.Lock()
	c.proc = nil
	c.state = StateIdle
	c.pending = make(map[string]pendingPermission)
	c.mu.Unlock()

	// Deliberate stops bypass handleExit, so report the exit here. A nil
	// Err distinguishes a requested kill from a crash.
	c.emit(ProcessExited{})
}

// Interrupt sends SIGINT to the child to cancel the in-flight turn without
// tearing the connection down.
func (c *Connection) Interrupt() error {
	c.mu.Lock()
	proc := c.proc
	c.mu.Unlock()

	if proc == nil {
		return nil
	}
	return proc.Interrupt()
}

// Destroy force-kills the process and closes the event channel. The
// Connection is unusable afterwards.
func (c *Connection) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	c.mu.Unlock()

	c.Kill(false)

	// emit() sends under the mutex and checks destroyed first, so once the
	// flag is set closing here cannot race a send.
	c.mu.Lock()
	c.closeOnce.Do(func() {
		close(c.events)
	})
	c.mu.Unlock()
}

// emit delivers an event, dropping it with a log entry when the channel is
// full or the connection was destroyed. The send happens under the mutex so
// it is ordered against Destroy closing the channel.
func (c *Connection) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	select {
	case c.events <- ev:
	default:
		c.log.Warn("event channel full, dropping event", "type", fmt.Sprintf("%T", ev))
	}
}

// handleLine processes one stdout line: parse, track session id and stream
// mode, register permission requests, and forward events in order.
func (c *Connection) handleLine(line string) {
	c.mu.Lock()
	hasStreamEvents := c.hasStreamEvents
	c.mu.Unlock()

	result := parseStreamMessage(line, hasStreamEvents, c.log)

	c.mu.Lock()
	if result.streamEvent {
		c.hasStreamEvents = true
	}
	var announce string
	if result.sessionID != "" && result.sessionID != c.sessionID {
		c.sessionID = result.sessionID
		announce = result.sessionID
	}
	for _, ev := range result.events {
		if req, ok := ev.(PermissionRequest); ok {
			c.pending[req.RequestID] = pendingPermission{
				toolName:  req.ToolName,
				toolUseID: req.ToolUseID,
			}
		}
	}
	c.mu.Unlock()

	if announce != "" {
		c.emit(SessionAssigned{ID: announce})
	}
	for _, ev := range result.events {
		c.emit(ev)
	}
}

func containsSessionExpired(line string) bool {
	return strings.Contains(line, sessionExpiredMarker)
}

// handleStderrLine watches stderr for the session-expiry marker. When the
// CLI cannot resume the stored conversation, the id is cleared, the process
// is killed, and SessionExpired tells the consumer the next Send starts a
// fresh conversation.
func (c *Connection) handleStderrLine(line string) {
	if !containsSessionExpired(line) {
		return
	}

	c.log.Info("session expired, clearing stored id")

	c.mu.Lock()
	c.sessionID = ""
	c.opts.SessionID = ""
	c.mu.Unlock()

	c.emit(SessionExpired{})

	// Kill from a fresh goroutine: this callback runs inside a process
	// goroutine that Stop() waits for.
	go c.Kill(false)
}

// handleExit reacts to the process dying on its own: reset to Idle and
// surface ProcessExited so the consumer can clear any in-flight turn.
func (c *Connection) handleExit(err error, stderr string) {
	c.log.Info("process exited unexpectedly", "error", err)

	c.mu.Lock()
	c.proc = nil
	c.state = StateIdle
	c.pending = make(map[string]pendingPermission)
	c.mu.Unlock()

	c.emit(ProcessExited{Err: err, Stderr: stderr})
}
