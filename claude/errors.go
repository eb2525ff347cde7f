package claude

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"syscall"
)

// SpawnErrorKind classifies why the CLI process failed to start.
type SpawnErrorKind int

const (
	// SpawnErrorGeneric is an unclassified spawn failure.
	SpawnErrorGeneric SpawnErrorKind = iota
	// SpawnErrorNotFound means the CLI binary does not exist on PATH or at
	// the configured path.
	SpawnErrorNotFound
	// SpawnErrorPermission means the binary exists but is not executable.
	SpawnErrorPermission
	// SpawnErrorNotPermitted means the OS refused the exec (EPERM), e.g.
	// sandboxing or security policy.
	SpawnErrorNotPermitted
)

func (k SpawnErrorKind) String() string {
	switch k {
	case SpawnErrorNotFound:
		return "not_found"
	case SpawnErrorPermission:
		return "permission_denied"
	case SpawnErrorNotPermitted:
		return "not_permitted"
	default:
		return "generic"
	}
}

// classifySpawnError maps a spawn failure to a SpawnError event with a
// user-presentable title and detail.
func classifySpawnError(cliPath string, err error) SpawnError {
	switch {
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist):
		return SpawnError{
			Kind:   SpawnErrorNotFound,
			Title:  "Claude CLI not found",
			Detail: fmt.Sprintf("Could not find %q. Install the Claude CLI or set cli_path in the configuration.", cliPath),
			Err:    err,
		}
	case errors.Is(err, fs.ErrPermission):
		return SpawnError{
			Kind:   SpawnErrorPermission,
			Title:  "Claude CLI not executable",
			Detail: fmt.Sprintf("%q exists but is not executable. Check its file permissions.", cliPath),
			Err:    err,
		}
	case errors.Is(err, syscall.EPERM):
		return SpawnError{
			Kind:   SpawnErrorNotPermitted,
			Title:  "Operation not permitted",
			Detail: fmt.Sprintf("The system refused to launch %q. A sandbox or security policy may be blocking it.", cliPath),
			Err:    err,
		}
	default:
		return SpawnError{
			Kind:   SpawnErrorGeneric,
			Title:  "Failed to start Claude CLI",
			Detail: err.Error(),
			Err:    err,
		}
	}
}
