// Package config holds the options collaborator: CLI arguments, environment,
// callbacks and transport tunables.
package config

import "context"

// Transport carries newline-delimited JSON between the SDK and the CLI.
//
// The default implementation is subprocess.CLITransport. Custom transports
// can be injected via Options.Transport.
type Transport interface {
	// Connect starts the transport. It is called once before any traffic.
	Connect(ctx context.Context) error

	// ReadMessages returns channels for decoded JSON objects and read errors.
	// Both channels are closed when the stream ends.
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)

	// SendMessage writes one JSON message. A trailing newline is added if
	// missing. Safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// EndInput signals that no more input will be sent.
	EndInput() error

	// Close terminates the transport. Safe to call more than once.
	Close() error

	// IsReady reports whether the transport accepts writes.
	IsReady() bool
}
