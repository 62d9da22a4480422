package errors

import (
	"errors"
	"fmt"
	"time"
)

// ClaudeSDKError is the base interface for all SDK errors.
type ClaudeSDKError interface {
	error
	IsClaudeSDKError() bool
}

// Compile-time verification that all error types implement ClaudeSDKError.
var (
	_ ClaudeSDKError = (*CLINotFoundError)(nil)
	_ ClaudeSDKError = (*IncompatibleVersionError)(nil)
	_ ClaudeSDKError = (*CLIConnectionError)(nil)
	_ ClaudeSDKError = (*ProcessError)(nil)
	_ ClaudeSDKError = (*BufferOverflowError)(nil)
	_ ClaudeSDKError = (*TimeoutError)(nil)
	_ ClaudeSDKError = (*AbortError)(nil)
	_ ClaudeSDKError = (*ProtocolError)(nil)
	_ ClaudeSDKError = (*MessageParseError)(nil)
	_ ClaudeSDKError = (*CLIJSONDecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.New("client already connected")

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one with NewClient()")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrRequestTimeout indicates a control request timed out.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrControllerStopped indicates the protocol controller has stopped.
	ErrControllerStopped = errors.New("protocol controller stopped")

	// ErrStdinClosed indicates stdin was closed and no more input can be written.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrOperationCancelled indicates an operation was cancelled via cancel request.
	ErrOperationCancelled = errors.New("operation cancelled")

	// ErrUnknownMessageType indicates the message type is not recognized by the SDK.
	// Callers should skip these messages rather than treating them as fatal.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrAborted is matched by every AbortError.
	ErrAborted = errors.New("operation aborted")

	// ErrUnknownSubtype indicates a control request subtype with no handler.
	ErrUnknownSubtype = errors.New("unknown subtype")
)

// CLINotFoundError indicates the Claude CLI binary was not found.
type CLINotFoundError struct {
	SearchedPaths []string
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("claude CLI not found in: %v", e.SearchedPaths)
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *CLINotFoundError) IsClaudeSDKError() bool { return true }

// IncompatibleVersionError indicates the CLI is older than the supported floor.
type IncompatibleVersionError struct {
	Path    string
	Version string
	Minimum string
}

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("claude CLI %s at %s is below minimum supported version %s",
		e.Version, e.Path, e.Minimum)
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *IncompatibleVersionError) IsClaudeSDKError() bool { return true }

// CLIConnectionError indicates failure to connect to or talk with the CLI.
type CLIConnectionError struct {
	Err error
}

func (e *CLIConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to CLI: %v", e.Err)
}

func (e *CLIConnectionError) Unwrap() error {
	return e.Err
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *CLIConnectionError) IsClaudeSDKError() bool { return true }

// ProcessError indicates the CLI process failed.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("CLI process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("CLI process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// As lets an abnormal exit match CLIConnectionError, since the connection to
// the CLI ended with it.
func (e *ProcessError) As(target any) bool {
	conn, ok := target.(**CLIConnectionError)
	if !ok {
		return false
	}

	*conn = &CLIConnectionError{Err: e}

	return true
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *ProcessError) IsClaudeSDKError() bool { return true }

// BufferOverflowError indicates undecodable stdout data grew past the buffer limit.
type BufferOverflowError struct {
	Limit   int
	Snippet string
}

func (e *BufferOverflowError) Error() string {
	return fmt.Sprintf("JSON message exceeded maximum buffer size of %d bytes: %q", e.Limit, e.Snippet)
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *BufferOverflowError) IsClaudeSDKError() bool { return true }

// TimeoutError indicates a control request did not receive a response in time.
type TimeoutError struct {
	RequestID string
	Subtype   string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("control request %s (%s) timed out after %s", e.RequestID, e.Subtype, e.Timeout)
}

// Is matches ErrRequestTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrRequestTimeout
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *TimeoutError) IsClaudeSDKError() bool { return true }

// AbortError indicates an operation was unblocked by the session's abort signal.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	if e.Reason == "" {
		return ErrAborted.Error()
	}

	return fmt.Sprintf("%s: %s", ErrAborted.Error(), e.Reason)
}

// Is matches ErrAborted.
func (e *AbortError) Is(target error) bool {
	return target == ErrAborted
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *AbortError) IsClaudeSDKError() bool { return true }

// ProtocolError indicates the control protocol reported or detected a failure:
// an error-subtype control response, or an inbound request nobody handles.
type ProtocolError struct {
	RequestID string
	Subtype   string
	Message   string
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.Subtype != "" {
		return fmt.Sprintf("control protocol error (%s): %s", e.Subtype, e.Message)
	}

	return fmt.Sprintf("control protocol error: %s", e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *ProtocolError) IsClaudeSDKError() bool { return true }

// MessageParseError indicates message parsing failed.
type MessageParseError struct {
	Message string
	Err     error
	Data    map[string]any
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("failed to parse message: %v", e.Err)
}

func (e *MessageParseError) Unwrap() error {
	return e.Err
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *MessageParseError) IsClaudeSDKError() bool { return true }

// CLIJSONDecodeError indicates a complete stdout frame was valid JSON but not
// a JSON object. The raw data is preserved for diagnostics.
type CLIJSONDecodeError struct {
	RawData string
	Err     error
}

func (e *CLIJSONDecodeError) Error() string {
	return fmt.Sprintf("failed to decode JSON from CLI: %v", e.Err)
}

func (e *CLIJSONDecodeError) Unwrap() error {
	return e.Err
}

// IsClaudeSDKError implements ClaudeSDKError.
func (e *CLIJSONDecodeError) IsClaudeSDKError() bool { return true }
