package process

import (
	"context"
	"io"
	"time"
)

// Handle is a spawned child process speaking over its standard streams.
//
// Implementations other than Local can run the child anywhere (a container,
// a remote host) as long as they honor the same contract.
type Handle interface {
	// Write writes to the child's stdin. Writing after the child exited or
	// after CloseInput returns an error and never panics.
	Write(p []byte) (int, error)

	// Stdout returns the child's stdout. Reads return io.EOF once the child
	// closed the stream.
	Stdout() io.Reader

	// Stderr returns the child's stderr.
	Stderr() io.Reader

	// CloseInput closes stdin. Further writes fail.
	CloseInput() error

	// Terminate asks the child to stop, waits up to timeout and escalates to
	// Kill if it is still running.
	Terminate(timeout time.Duration) error

	// Kill stops the child forcefully. Killing an exited child is a no-op.
	Kill() error

	// Running reports whether the child has not exited yet.
	Running() bool

	// ExitStatus returns the exit code once the child exited. The code is -1
	// when the child was stopped by a signal.
	ExitStatus() (int, bool)

	// Wait blocks until the child exits and returns its exit error, if any.
	Wait() error

	// Pid returns the child's process id, or 0 when it has none.
	Pid() int
}

// Spec describes the child to spawn.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// Factory spawns a child described by spec.
type Factory func(ctx context.Context, spec Spec) (Handle, error)
