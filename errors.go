package claudewire

import "github.com/wagiedev/claudewire/internal/errors"

// Re-export error types from internal package

// ClaudeSDKError is the base interface for all SDK errors.
type ClaudeSDKError = errors.ClaudeSDKError

// CLINotFoundError indicates the Claude CLI binary was not found.
type CLINotFoundError = errors.CLINotFoundError

// IncompatibleVersionError indicates the CLI is older than the supported minimum.
type IncompatibleVersionError = errors.IncompatibleVersionError

// CLIConnectionError indicates failure to connect to or talk with the CLI.
type CLIConnectionError = errors.CLIConnectionError

// ProcessError indicates the CLI process failed.
type ProcessError = errors.ProcessError

// BufferOverflowError indicates undecodable CLI output exceeded the buffer limit.
type BufferOverflowError = errors.BufferOverflowError

// TimeoutError indicates a control request got no response in time.
// It matches ErrRequestTimeout.
type TimeoutError = errors.TimeoutError

// AbortError indicates an operation was unblocked by Abort. It matches ErrAborted.
type AbortError = errors.AbortError

// ProtocolError indicates the CLI answered a control request with an error.
type ProtocolError = errors.ProtocolError

// MessageParseError indicates message parsing failed.
type MessageParseError = errors.MessageParseError

// CLIJSONDecodeError indicates JSON parsing failed for CLI output.
type CLIJSONDecodeError = errors.CLIJSONDecodeError

// Re-export sentinel errors from internal package.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.ErrClientNotConnected

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.ErrClientAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrControllerStopped indicates the session shut down while a request was pending.
	ErrControllerStopped = errors.ErrControllerStopped

	// ErrStdinClosed indicates input to the CLI was already ended.
	ErrStdinClosed = errors.ErrStdinClosed

	// ErrOperationCancelled indicates the CLI cancelled an inbound request.
	ErrOperationCancelled = errors.ErrOperationCancelled

	// ErrAborted matches every AbortError.
	ErrAborted = errors.ErrAborted
)
