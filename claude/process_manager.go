package claude

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// chunkResult holds the result of a raw read for cancellation handling.
type chunkResult struct {
	data []byte
	err  error
}

// ProcessConfig holds what is needed to launch the CLI process.
type ProcessConfig struct {
	Path string   // CLI binary path
	Args []string // Full argument list
	Dir  string   // Working directory ("" = inherit)
}

// ProcessCallbacks are invoked from the ProcessManager's internal
// goroutines. Implementations must be thread-safe and avoid blocking
// operations that could delay process management.
type ProcessCallbacks struct {
	// OnLine is called for each complete stdout line (newline stripped).
	OnLine func(line string)

	// OnStderrLine is called for each stderr line as it arrives.
	OnStderrLine func(line string)

	// OnExit is called when the process exits on its own (not via Stop).
	// err is nil on a clean exit status; stderr is the captured content.
	OnExit func(err error, stderr string)
}

// ProcessManager owns the lifecycle of one CLI child process: spawn, pipe
// reading, and teardown. It never restarts the child; exit handling is the
// caller's decision via OnExit.
type ProcessManager struct {
	config    ProcessConfig
	callbacks ProcessCallbacks
	log       *slog.Logger

	// Process state (protected by mu)
	mu            sync.Mutex
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	stdout        io.ReadCloser
	stderr        io.ReadCloser
	stderrContent string
	stderrDone    chan struct{}
	running       bool

	// waitDone is closed by monitorExit when cmd.Wait() completes.
	// Stop() selects on this channel instead of calling cmd.Wait() again,
	// preventing undefined behavior from double Wait().
	waitDone chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessManager creates a ProcessManager with the given configuration
// and callbacks.
func NewProcessManager(config ProcessConfig, callbacks ProcessCallbacks, log *slog.Logger) *ProcessManager {
	return &ProcessManager{
		config:    config,
		callbacks: callbacks,
		log:       log,
	}
}

// Start launches the process. Returns an error when already running or when
// the spawn fails; the raw spawn error is returned for classification.
func (pm *ProcessManager) Start() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.running {
		return fmt.Errorf("process already running")
	}

	pm.log.Debug("starting process", "command", pm.config.Path+" "+strings.Join(pm.config.Args, " "))
	startTime := time.Now()

	cmd := exec.Command(pm.config.Path, pm.config.Args...)
	cmd.Dir = pm.config.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		pm.log.Error("failed to get stdin pipe", "error", err)
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		pm.log.Error("failed to get stdout pipe", "error", err)
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		pm.log.Error("failed to get stderr pipe", "error", err)
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		pm.log.Error("failed to start process", "error", err)
		return err
	}

	pm.cmd = cmd
	pm.stdin = stdin
	pm.stdout = stdout
	pm.stderr = stderr
	pm.stderrContent = ""
	pm.stderrDone = make(chan struct{})
	pm.waitDone = make(chan struct{})
	pm.running = true

	// Cancel any previous context to prevent goroutine leaks from prior runs
	if pm.cancel != nil {
		pm.cancel()
	}
	pm.ctx, pm.cancel = context.WithCancel(context.Background())

	pm.log.Info("process started", "elapsed", time.Since(startTime), "pid", cmd.Process.Pid)

	pm.wg.Add(3)
	go func() {
		defer pm.wg.Done()
		pm.readOutput()
	}()
	go func() {
		defer pm.wg.Done()
		pm.drainStderr()
	}()
	go func() {
		defer pm.wg.Done()
		pm.monitorExit()
	}()

	return nil
}

// Stop terminates the process. When graceful, SIGTERM is sent first and the
// exit is raced against timeout before escalating to SIGKILL; otherwise the
// process is killed outright. Waits for all goroutines before returning.
// Safe to call multiple times; subsequent calls are no-ops.
func (pm *ProcessManager) Stop(graceful bool, timeout time.Duration) {
	pm.mu.Lock()
	wasRunning := pm.running

	// Cancel context first to signal goroutines to exit
	if pm.cancel != nil {
		pm.cancel()
		pm.cancel = nil
	}

	if !wasRunning {
		pm.mu.Unlock()
		return
	}

	pm.log.Debug("stopping process", "graceful", graceful)

	// Mark as not running immediately so a concurrent Stop() and the exit
	// handler both become no-ops
	pm.running = false

	// Close stdin to signal EOF to the process
	if pm.stdin != nil {
		pm.stdin.Close()
		pm.stdin = nil
	}

	cmd := pm.cmd
	waitDone := pm.waitDone
	pm.mu.Unlock()

	// monitorExit is the sole caller of cmd.Wait() and closes waitDone when
	// it completes. Selecting on that channel here avoids a double Wait().
	if cmd != nil && cmd.Process != nil && waitDone != nil {
		if graceful {
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				pm.log.Debug("SIGTERM failed", "error", err)
			}
			select {
			case <-waitDone:
				pm.log.Debug("process exited gracefully")
			case <-time.After(timeout):
				pm.log.Debug("graceful stop timed out, force killing")
				cmd.Process.Kill()
				<-waitDone
			}
		} else {
			cmd.Process.Kill()
			<-waitDone
		}
	}

	pm.log.Debug("waiting for goroutines to complete")
	pm.wg.Wait()
	pm.log.Debug("all goroutines completed")

	pm.mu.Lock()
	pm.cleanupLocked()
	pm.mu.Unlock()
}

// IsRunning returns whether the process is currently running.
func (pm *ProcessManager) IsRunning() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.running
}

// Pid returns the child's pid, or 0 when not running.
func (pm *ProcessManager) Pid() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if !pm.running || pm.cmd == nil || pm.cmd.Process == nil {
		return 0
	}
	return pm.cmd.Process.Pid
}

// WriteLine writes data plus a newline to the process stdin.
func (pm *ProcessManager) WriteLine(data []byte) error {
	pm.mu.Lock()
	stdin := pm.stdin
	running := pm.running
	pm.mu.Unlock()

	if !running || stdin == nil {
		return fmt.Errorf("process not running")
	}

	if _, err := stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to process: %w", err)
	}

	return nil
}

// Interrupt sends SIGINT to the process to cancel the current operation
// without tearing the process down.
func (pm *ProcessManager) Interrupt() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if !pm.running || pm.cmd == nil || pm.cmd.Process == nil {
		pm.log.Debug("interrupt called but process not running")
		return nil
	}

	pm.log.Info("sending SIGINT", "pid", pm.cmd.Process.Pid)

	if err := pm.cmd.Process.Signal(syscall.SIGINT); err != nil {
		pm.log.Error("failed to send SIGINT", "error", err)
		return fmt.Errorf("failed to send interrupt signal: %w", err)
	}

	return nil
}

// readOutput reads raw stdout chunks, reassembles them into lines, and
// invokes OnLine for each complete line in order.
func (pm *ProcessManager) readOutput() {
	pm.log.Debug("output reader started")

	var lb lineBuffer

	emit := func(line string) {
		if line != "" && pm.callbacks.OnLine != nil {
			pm.callbacks.OnLine(line)
		}
	}

	for {
		select {
		case <-pm.ctx.Done():
			pm.log.Debug("output reader exiting - context cancelled")
			return
		default:
		}

		pm.mu.Lock()
		running := pm.running
		reader := pm.stdout
		pm.mu.Unlock()

		if !running || reader == nil {
			pm.log.Debug("output reader exiting - process not running")
			return
		}

		chunk, err := pm.readChunk(reader)
		for _, line := range lb.Feed(chunk) {
			emit(line)
		}

		if err != nil {
			// Check if we were cancelled during the read
			select {
			case <-pm.ctx.Done():
				pm.log.Debug("output reader exiting - context cancelled during read")
				return
			default:
			}

			if err == io.EOF {
				pm.log.Debug("EOF on stdout - process exited")
			} else {
				// Wait() may close the pipe before EOF is observed
				pm.log.Debug("error reading stdout", "error", err)
			}
			// A final unterminated line is still a line
			emit(lb.Flush())
			// Process exit is handled by monitorExit goroutine
			return
		}
	}
}

// readChunk reads one chunk from the reader, blocking until data arrives.
//
// The spawned goroutine doing Read() cannot be cancelled (Go's blocking
// I/O limitation). On context cancel, Stop() kills the process, which
// unblocks the read with EOF; the goroutine exits then. The channel is
// buffered so the send never blocks even after readChunk has returned.
func (pm *ProcessManager) readChunk(reader io.Reader) ([]byte, error) {
	resultCh := make(chan chunkResult, 1)

	go func() {
		buf := make([]byte, 4096)
		n, err := reader.Read(buf)
		resultCh <- chunkResult{data: buf[:n], err: err}
	}()

	select {
	case <-pm.ctx.Done():
		return nil, pm.ctx.Err()
	case result := <-resultCh:
		return result.data, result.err
	}
}

// drainStderr reads stderr line-by-line, invoking OnStderrLine immediately
// per line and accumulating the content for OnExit. This must run
// concurrently with the process so stderr is captured before cmd.Wait()
// closes the pipe.
func (pm *ProcessManager) drainStderr() {
	pm.mu.Lock()
	stderr := pm.stderr
	stderrDone := pm.stderrDone
	pm.mu.Unlock()

	defer close(stderrDone)

	if stderr == nil {
		return
	}

	var lines []string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		pm.log.Debug("stderr", "line", line)
		lines = append(lines, line)
		if pm.callbacks.OnStderrLine != nil {
			pm.callbacks.OnStderrLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		pm.log.Debug("error reading stderr", "error", err)
	}
	if len(lines) > 0 {
		pm.mu.Lock()
		pm.stderrContent = strings.Join(lines, "\n")
		pm.mu.Unlock()
	}
}

// monitorExit waits for the process to exit and handles cleanup. It is the
// sole caller of cmd.Wait(); Stop() coordinates via the waitDone channel
// instead of calling cmd.Wait() itself.
func (pm *ProcessManager) monitorExit() {
	pm.mu.Lock()
	cmd := pm.cmd
	waitDone := pm.waitDone
	pm.mu.Unlock()

	if cmd == nil {
		if waitDone != nil {
			close(waitDone)
		}
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		pm.log.Debug("process exited", "error", err)
		// Signal that cmd.Wait() has completed before handling exit,
		// so Stop() can proceed while handleExit runs
		if waitDone != nil {
			close(waitDone)
		}
		pm.handleExit(err)
	case <-pm.ctx.Done():
		pm.log.Debug("process monitor - context cancelled, waiting for cmd.Wait()")
		// Stop() was called. Still consume cmd.Wait() to avoid a goroutine
		// leak; Stop() closes stdin and may kill the process, which
		// unblocks Wait().
		<-done
		if waitDone != nil {
			close(waitDone)
		}
	}
}

// handleExit handles cleanup when the process exits on its own.
func (pm *ProcessManager) handleExit(err error) {
	pm.mu.Lock()

	if !pm.running {
		// Stop() owns cleanup
		pm.mu.Unlock()
		return
	}

	pm.log.Debug("handling unexpected process exit")
	pm.running = false
	stderrDone := pm.stderrDone
	pm.mu.Unlock()

	// Wait for stderr to be fully drained before reporting it
	if stderrDone != nil {
		<-stderrDone
	}

	pm.mu.Lock()
	stderrContent := pm.stderrContent
	pm.cleanupLocked()
	pm.mu.Unlock()

	if pm.callbacks.OnExit != nil {
		pm.callbacks.OnExit(err, stderrContent)
	}
}

// cleanupLocked releases process resources. Must be called with mu held.
func (pm *ProcessManager) cleanupLocked() {
	if pm.stdin != nil {
		pm.stdin.Close()
		pm.stdin = nil
	}
	if pm.stderr != nil {
		pm.stderr.Close()
		pm.stderr = nil
	}
	pm.cmd = nil
	pm.stdout = nil
	pm.stderrDone = nil
	pm.waitDone = nil
	pm.running = false
}
