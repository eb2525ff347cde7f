package claude

// State describes the Connection lifecycle.
type State int

const (
	// StateIdle means no child process exists.
	StateIdle State = iota
	// StateStarting means a spawn is in progress.
	StateStarting
	// StateRunning means the child process is live.
	StateRunning
	// StateStopping means a kill is in progress.
	StateStopping
	// StateError means the last spawn failed. A new Start resets it.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
