package process

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/wagiedev/claudewire/internal/errors"
)

// Compile-time verification that Local implements Handle.
var _ Handle = (*Local)(nil)

// Local is a child process started on this machine with os/exec.
type Local struct {
	log    *slog.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *eofCloser
	stderr *eofCloser

	// writeMu serialises writes. CloseInput does not take it, so closing
	// stdin unblocks a write stuck on a full pipe.
	writeMu     sync.Mutex
	closeOnce   sync.Once
	closeErr    error
	inputClosed atomic.Bool

	exited   chan struct{}
	waitErr  error
	exitCode int
}

// DefaultFactory returns a Factory that spawns local processes.
func DefaultFactory(log *slog.Logger) Factory {
	return func(ctx context.Context, spec Spec) (Handle, error) {
		return Spawn(ctx, log, spec)
	}
}

// Spawn starts the child described by spec.
//
// The child is not tied to ctx once started; its lifetime ends with
// Terminate, Kill or its own exit.
func Spawn(ctx context.Context, log *slog.Logger, spec Spec) (*Local, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	//nolint:gosec // G204: Subprocess launching with dynamic args is expected for CLI invocation
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &errors.CLIConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	// Stdout and stderr use os.Pipe directly so Wait can run in the background
	// without closing the read ends before they are drained.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &errors.CLIConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()

		return nil, &errors.CLIConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{stdoutR, stdoutW, stderrR, stderrW} {
			_ = f.Close()
		}

		return nil, &errors.CLIConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	// The child holds its own copies of the write ends.
	_ = stdoutW.Close()
	_ = stderrW.Close()

	p := &Local{
		log:    log.With("component", "process", "pid", cmd.Process.Pid),
		cmd:    cmd,
		stdin:  stdin,
		stdout: &eofCloser{f: stdoutR},
		stderr: &eofCloser{f: stderrR},
		exited: make(chan struct{}),
	}

	go p.wait()

	p.log.Debug("Process started", "command", spec.Command)

	return p, nil
}

func (p *Local) wait() {
	err := p.cmd.Wait()

	p.waitErr = err
	p.exitCode = p.cmd.ProcessState.ExitCode()

	p.log.Debug("Process exited", "exit_code", p.exitCode)

	close(p.exited)
}

// Write writes to the child's stdin. A write blocked on a full pipe returns
// an error once CloseInput is called.
func (p *Local) Write(b []byte) (int, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.inputClosed.Load() {
		return 0, &errors.CLIConnectionError{Err: errors.ErrStdinClosed}
	}

	if !p.Running() {
		return 0, &errors.CLIConnectionError{Err: fmt.Errorf("write to exited process: %w", os.ErrClosed)}
	}

	n, err := p.stdin.Write(b)
	if err != nil {
		if p.inputClosed.Load() {
			err = errors.ErrStdinClosed
		}

		return n, &errors.CLIConnectionError{Err: fmt.Errorf("write to stdin: %w", err)}
	}

	return n, nil
}

// Stdout returns the child's stdout. The pipe is released at EOF.
func (p *Local) Stdout() io.Reader { return p.stdout }

// Stderr returns the child's stderr. The pipe is released at EOF.
func (p *Local) Stderr() io.Reader { return p.stderr }

// CloseInput closes the child's stdin. It is safe to call more than once and
// from any goroutine, including while a Write is blocked.
func (p *Local) CloseInput() error {
	p.closeOnce.Do(func() {
		p.inputClosed.Store(true)

		err := p.stdin.Close()
		if err != nil && !stderrors.Is(err, os.ErrClosed) {
			p.closeErr = fmt.Errorf("close stdin: %w", err)
		}
	})

	return p.closeErr
}

// Terminate sends SIGTERM, waits up to timeout and kills the child if it is
// still running.
func (p *Local) Terminate(timeout time.Duration) error {
	if !p.Running() {
		return nil
	}

	p.log.Debug("Terminating process", "grace_period", timeout)

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if stderrors.Is(err, os.ErrProcessDone) {
			return nil
		}

		p.log.Debug("SIGTERM not delivered, killing", "error", err)

		return p.Kill()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.exited:
		return nil
	case <-timer.C:
		p.log.Warn("Process did not exit within grace period, killing", "grace_period", timeout)

		return p.Kill()
	}
}

// Kill sends SIGKILL and waits for the child to exit.
func (p *Local) Kill() error {
	if !p.Running() {
		return nil
	}

	if err := p.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process (pid %d): %w", p.cmd.Process.Pid, err)
	}

	<-p.exited

	return nil
}

// Running reports whether the child has not exited.
func (p *Local) Running() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// ExitStatus returns the exit code once the child exited.
func (p *Local) ExitStatus() (int, bool) {
	select {
	case <-p.exited:
		return p.exitCode, true
	default:
		return 0, false
	}
}

// Wait blocks until the child exits.
func (p *Local) Wait() error {
	<-p.exited

	return p.waitErr
}

// Pid returns the child's process id.
func (p *Local) Pid() int {
	return p.cmd.Process.Pid
}

// eofCloser closes the read end of an output pipe once it reports EOF, so a
// drained child holds no descriptors in this process.
type eofCloser struct {
	f    *os.File
	done atomic.Bool
}

func (r *eofCloser) Read(b []byte) (int, error) {
	if r.done.Load() {
		return 0, io.EOF
	}

	n, err := r.f.Read(b)
	if stderrors.Is(err, io.EOF) && r.done.CompareAndSwap(false, true) {
		_ = r.f.Close()
	}

	return n, err
}
