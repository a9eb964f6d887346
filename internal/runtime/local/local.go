// Package local runs command services as child processes on the host.
// Each process gets its own process group so Stop can take down the
// whole tree, not just the direct child.
package local

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"stackctl/internal/config"
	"stackctl/internal/runtime"
	"stackctl/internal/volume"
	"stackctl/pkg/logging"
)

const logSubsystem = "LocalRuntime"

// stopGracePeriod is how long Stop waits after SIGTERM before
// escalating to SIGKILL.
const stopGracePeriod = 5 * time.Second

// Mockable for testing
var execCommand = exec.Command

// process tracks one running child. done is closed once Wait returns
// and exitCode is valid.
type process struct {
	cmd      *exec.Cmd
	pid      int
	done     chan struct{}
	exitCode int
}

// Runtime runs command services as host processes.
type Runtime struct {
	mu      sync.Mutex
	procs   map[runtime.Handle]*process
	dataDir string
}

// New returns a runtime for command services. dataDir is the root for
// per-service state directories; empty means services without a workDir
// inherit the supervisor's working directory.
func New(dataDir string) *Runtime {
	return &Runtime{procs: make(map[runtime.Handle]*process), dataDir: dataDir}
}

// Start launches the service's command. Output is forwarded line by
// line into the log stream. Volumes never apply to command services,
// so mounts is ignored.
func (r *Runtime) Start(ctx context.Context, spec config.ServiceSpec, _ []volume.Mount) (runtime.Handle, error) {
	if len(spec.Command) == 0 {
		return "", &runtime.StartError{Service: spec.Name, Err: fmt.Errorf("no command configured")}
	}

	dir, err := r.workDir(spec)
	if err != nil {
		return "", &runtime.StartError{Service: spec.Name, Err: err}
	}

	cmd := execCommand(spec.Command[0], spec.Command[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Dir = dir
	cmd.Env = environ(spec.Environment)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", &runtime.StartError{Service: spec.Name, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdoutPipe.Close()
		return "", &runtime.StartError{Service: spec.Name, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		stdoutPipe.Close()
		stderrPipe.Close()
		return "", &runtime.StartError{Service: spec.Name, Err: err}
	}

	proc := &process{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	handle := runtime.Handle(uuid.NewString())

	r.mu.Lock()
	r.procs[handle] = proc
	r.mu.Unlock()

	go forwardOutput(spec.Name, "stdout", stdoutPipe)
	go forwardOutput(spec.Name, "stderr", stderrPipe)

	go func() {
		err := cmd.Wait()
		proc.exitCode = exitCodeFrom(cmd, err)
		close(proc.done)
		logging.Debug(logSubsystem, "Process for %s (PID %d) exited with code %d", spec.Name, proc.pid, proc.exitCode)
	}()

	logging.Debug(logSubsystem, "Started process for %s (PID %d)", spec.Name, proc.pid)
	return handle, nil
}

// Stop terminates the service's process group, first with SIGTERM and
// after a grace period with SIGKILL. Stopping an already-gone process
// is not an error. The handle is released once its exit is observed;
// Status on a released handle reports the not-running default.
func (r *Runtime) Stop(ctx context.Context, h runtime.Handle) error {
	r.mu.Lock()
	proc, ok := r.procs[h]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case <-proc.done:
		r.release(h)
		return nil
	default:
	}

	// Negative PID signals the whole process group.
	if err := syscall.Kill(-proc.pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("signal process group %d: %w", proc.pid, err)
	}

	select {
	case <-proc.done:
		r.release(h)
		return nil
	case <-time.After(stopGracePeriod):
	case <-ctx.Done():
	}

	if err := syscall.Kill(-proc.pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("kill process group %d: %w", proc.pid, err)
	}

	select {
	case <-proc.done:
		r.release(h)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release drops an exited process from the handle table. Handles are
// single-use: the supervisor stops an instance once and never queries
// it afterwards.
func (r *Runtime) release(h runtime.Handle) {
	r.mu.Lock()
	delete(r.procs, h)
	r.mu.Unlock()
}

// Status reports whether the process is still running. A handle this
// runtime never issued, or whose process is gone, reports as not
// running with exit code -1.
func (r *Runtime) Status(_ context.Context, h runtime.Handle) (runtime.Status, error) {
	r.mu.Lock()
	proc, ok := r.procs[h]
	r.mu.Unlock()
	if !ok {
		return runtime.Status{Running: false, ExitCode: -1}, nil
	}

	select {
	case <-proc.done:
		return runtime.Status{Running: false, ExitCode: proc.exitCode}, nil
	default:
		return runtime.Status{Running: true}, nil
	}
}

// workDir picks the working directory: an explicit workDir wins;
// otherwise the service gets its own state directory under the runtime
// data dir, created on first start and reused across restarts.
func (r *Runtime) workDir(spec config.ServiceSpec) (string, error) {
	if spec.WorkDir != "" || r.dataDir == "" {
		return spec.WorkDir, nil
	}
	dir := filepath.Join(r.dataDir, spec.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	return dir, nil
}

func forwardOutput(service, stream string, pipe io.ReadCloser) {
	defer pipe.Close()
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		logging.Debug(logSubsystem, "[%s %s] %s", service, stream, scanner.Text())
	}
}

// environ builds the child environment: the parent's, with the
// service's variables appended in sorted order so repeated starts are
// byte-for-byte identical.
func environ(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, extra[k]))
	}
	return env
}

func exitCodeFrom(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}
