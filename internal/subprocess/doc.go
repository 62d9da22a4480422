// Package subprocess provides the process-backed transport for the Claude CLI.
//
// CLITransport spawns the CLI through a process.Factory, frames its stdout
// with the framing package, drains stderr and tears the child down with a
// graceful terminate that escalates to kill.
package subprocess
