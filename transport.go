package claudewire

import (
	"github.com/wagiedev/claudewire/internal/config"
	"github.com/wagiedev/claudewire/internal/process"
)

// Transport defines the interface for Claude CLI communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote connections).
//
// The default implementation spawns the CLI through a ProcessFactory.
type Transport = config.Transport

// ProcessHandle is a spawned CLI process: its pipes, termination and exit status.
type ProcessHandle = process.Handle

// ProcessSpec describes the CLI invocation handed to a ProcessFactory.
type ProcessSpec = process.Spec

// ProcessFactory spawns the CLI. Supply one to run it somewhere other than
// a local child process, such as a container or a remote host.
type ProcessFactory = process.Factory
