// Package claude manages a Claude CLI subprocess speaking the stream-json
// protocol over stdin/stdout.
//
// # Overview
//
// The central type is Connection: a small state machine (Idle, Starting,
// Running, Stopping, Error) wrapping at most one CLI process. Output lines
// are parsed into a typed Event stream delivered on a channel; prompts and
// permission decisions are written as single JSON lines to stdin.
//
//	conn := claude.NewConnection(log)
//	if err := conn.Start(opts); err != nil {
//	    // spawn failure; a classified SpawnError event was also emitted
//	}
//	conn.Send("Hello!")
//	for ev := range conn.Events() {
//	    switch ev := ev.(type) {
//	    case claude.TextDelta:
//	        fmt.Print(ev.Text)
//	    case claude.TurnResult:
//	        // turn complete
//	    }
//	}
//
// # Session Management
//
// The CLI assigns a session id on init; the Connection reports it via a
// SessionAssigned event and passes it back with --resume on the next start
// so conversation context survives process restarts. When the CLI rejects a
// resume ("No conversation found with session ID" on stderr) the stored id
// is cleared, the process is killed, and a SessionExpired event tells the
// caller the next Send starts a fresh conversation.
//
// # Permission Sub-Protocol
//
// Tool approval rides the same pipes: the CLI emits control_request lines
// when a tool needs permission, surfaced as PermissionRequest events, and
// the Connection answers with control_response lines via
// RespondToPermission. Pending requests are tracked in a map keyed by
// request id, so multiple prompts can be in flight at once; responses for
// unknown ids are dropped with a log entry.
//
// # Lifecycle
//
// Kill(graceful) terminates the child: graceful sends SIGTERM and races
// process exit against a timeout before escalating to SIGKILL; either way
// the Connection ends Idle with the handle cleared. Destroy force-kills and
// closes the event channel; the Connection is not reusable afterwards.
//
// # Thread Safety
//
// Connection is safe for concurrent use. State transitions are guarded by a
// mutex and all events are emitted from the process goroutines, which
// Kill/Destroy wait out before returning.
package claude
