// Package cli locates the Claude CLI binary, enforces its minimum version and
// assembles the framing flags of an invocation.
//
// Discovery searches in the following order:
//  1. Explicit path in Config.CliPath (if provided)
//  2. System PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// A CLI older than MinimumVersion fails discovery with IncompatibleVersionError.
// If "claude -v" fails or times out the check is skipped.
package cli
