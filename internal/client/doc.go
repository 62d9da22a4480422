// Package client implements the interactive Client for multi-turn conversations with Claude.
//
// The client owns one CLI process, one protocol controller and one session.
// It provides:
//   - Prompts and streamed input (Query, StreamInput, StreamConversation)
//   - Ordered message iteration (ReceiveMessages, ReceiveResponse)
//   - Control operations delegated to the session (interrupt, model, permissions, MCP)
//   - Abort, which unblocks every waiter with AbortError and terminates the CLI
//
// Conversation messages are read from the controller's queue and parsed by
// the message package; objects that fail to parse are logged and skipped.
package client
