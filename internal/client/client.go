package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/claudewire/internal/abort"
	"github.com/wagiedev/claudewire/internal/config"
	"github.com/wagiedev/claudewire/internal/errors"
	"github.com/wagiedev/claudewire/internal/mcp"
	"github.com/wagiedev/claudewire/internal/message"
	"github.com/wagiedev/claudewire/internal/protocol"
	"github.com/wagiedev/claudewire/internal/subprocess"
)

// Client implements the interactive client interface.
type Client struct {
	log        *slog.Logger
	transport  config.Transport
	controller *protocol.Controller
	session    *protocol.Session
	options    *config.Options

	// signal is set by Start; sigMu lets Abort read it while Start blocks.
	sigMu  sync.Mutex
	signal *abort.Signal

	// Background work started by the client: transport shutdown on abort.
	eg errgroup.Group

	// Lifecycle management
	mu        sync.Mutex
	connected bool
	closed    bool      // Tracks if Close() has been called
	closeOnce sync.Once // Ensures Close() only runs once
}

// New creates a new interactive client.
//
// The client is not connected after creation. Call Start() with options to connect.
func New() *Client {
	return &Client{log: slog.New(slog.DiscardHandler)}
}

// isConnected returns true if the client is connected.
// This method is safe to call from any goroutine.
func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// Start establishes a connection to the Claude CLI.
//
// This method spawns the CLI subprocess and starts the read loop. The
// initialize handshake only runs when hooks, in-process tool servers, a
// permission callback or agents are configured. No prompt is sent; use Query
// or StreamInput.
//
// Returns CLINotFoundError if the CLI binary cannot be located,
// or CLIConnectionError if the process fails to start.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrClientClosed
	}

	if c.connected {
		return errors.ErrClientAlreadyConnected
	}

	if options == nil {
		options = &config.Options{}
	}

	if err := options.Validate(); err != nil {
		return fmt.Errorf("validate options: %w", err)
	}

	c.options = options
	c.log = options.Log().With("component", "client")

	sig := options.Abort
	if sig == nil {
		sig = abort.New()
	}

	c.sigMu.Lock()
	c.signal = sig
	c.sigMu.Unlock()

	if err := sig.Check(); err != nil {
		return err
	}

	transport := options.Transport
	if transport != nil {
		c.log.Debug("Using injected custom transport")
	} else {
		transport = subprocess.NewStreamingTransport(c.log, options)
	}

	if err := transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}

	c.transport = transport

	controllerOpts := []protocol.ControllerOption{protocol.WithAbortSignal(c.signal)}
	if options.Tracer != nil {
		controllerOpts = append(controllerOpts, protocol.WithTracer(options.Tracer))
	}

	c.controller = protocol.NewController(c.log, transport, controllerOpts...)
	c.controller.SetState(protocol.StateConnecting)

	c.session = protocol.NewSession(c.log, c.controller, options)
	c.session.RegisterMCPServers()
	c.session.RegisterHandlers()

	// The read loop outlives the caller's ctx, which may only bound startup.
	// Close and the abort signal end it.
	if err := c.controller.Start(context.WithoutCancel(ctx)); err != nil {
		_ = transport.Close()

		return fmt.Errorf("start protocol controller: %w", err)
	}

	if c.session.NeedsInitialization() {
		if err := c.session.Initialize(ctx); err != nil {
			c.controller.Stop()
			_ = transport.Close()

			return fmt.Errorf("initialize session: %w", err)
		}
	} else {
		c.controller.SetState(protocol.StateActive)
	}

	c.signal.OnAbort(func(reason string) {
		c.eg.Go(func() error {
			c.log.Info("Abort signalled, terminating CLI", "reason", reason)

			if err := c.transport.Close(); err != nil {
				c.log.Warn("Failed to close transport after abort", "error", err)
			}

			return nil
		})
	})

	c.connected = true
	c.log.Info("Client started successfully")

	return nil
}

// StartWithPrompt establishes a connection and immediately sends an initial prompt.
//
// This is a convenience method equivalent to calling Start() followed by Query().
// The prompt is sent to the "default" session.
func (c *Client) StartWithPrompt(
	ctx context.Context,
	prompt string,
	options *config.Options,
) error {
	if err := c.Start(ctx, options); err != nil {
		return err
	}

	return c.Query(ctx, prompt)
}

// Query sends a user prompt to Claude.
//
// It returns once the message is written; use ReceiveResponse for the reply.
// Optional sessionID defaults to "default".
func (c *Client) Query(ctx context.Context, prompt string, sessionID ...string) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	if err := c.signal.Check(); err != nil {
		return err
	}

	var sid string
	if len(sessionID) > 0 {
		sid = sessionID[0]
	}

	c.log.Debug("Sending query", "prompt_len", len(prompt), "session_id", sid)

	return c.send(ctx, (&message.UserInput{Text: prompt}).Wire(sid))
}

func (c *Client) send(ctx context.Context, msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	// A write parked on a full stdin pipe must still end on abort.
	sendCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	go func() {
		select {
		case <-c.signal.Done():
			cancel(c.signal.Check())
		case <-sendCtx.Done():
		}
	}()

	if err := c.transport.SendMessage(sendCtx, data); err != nil {
		if abortErr := c.signal.Check(); abortErr != nil {
			return abortErr
		}

		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

// StreamInput writes every item of items to the CLI in order.
//
// Items are normalized with message.Outbound; sessionID applies to items that
// name none. The abort signal and ctx are checked before each item, so an
// abort stops the stream with AbortError after the last complete write.
// Stdin stays open afterwards.
func (c *Client) StreamInput(ctx context.Context, items iter.Seq[any], sessionID string) error {
	if !c.isConnected() {
		return errors.ErrClientNotConnected
	}

	sent := 0

	for item := range items {
		if err := c.signal.Check(); err != nil {
			c.log.Debug("Abort observed during input stream", "sent", sent)

			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := message.Outbound(item, sessionID)
		if err != nil {
			return fmt.Errorf("stream item %d: %w", sent, err)
		}

		if err := c.send(ctx, msg); err != nil {
			return fmt.Errorf("stream item %d: %w", sent, err)
		}

		sent++
	}

	c.log.Debug("Finished streaming input", "sent", sent)

	return nil
}

// StreamConversation streams items to the CLI in the background while
// yielding incoming messages, stopping after the first ResultMessage.
//
// A failure of the sender is yielded after the message being delivered
// when it occurred, and ends the iteration. Iteration does not wait for items
// to be exhausted: a sender still blocked in items when the result arrives
// returns at its next item without writing it.
func (c *Client) StreamConversation(
	ctx context.Context,
	items iter.Seq[any],
	sessionID string,
) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		if !c.isConnected() {
			yield(nil, errors.ErrClientNotConnected)

			return
		}

		recvCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		var (
			sendMu  sync.Mutex
			sendErr error
		)

		senderFailure := func() error {
			sendMu.Lock()
			defer sendMu.Unlock()

			return sendErr
		}

		// The sender is not awaited: it may be parked inside the caller's
		// iterator. Once recvCtx is cancelled it stops before its next write.
		go func() {
			if err := c.StreamInput(recvCtx, items, sessionID); err != nil {
				sendMu.Lock()
				sendErr = err
				sendMu.Unlock()

				cancel(err)
			}
		}()

		for {
			msg, err := c.receive(recvCtx)
			if err != nil {
				if failed := senderFailure(); failed != nil {
					yield(nil, failed)

					return
				}

				if stderrors.Is(err, io.EOF) {
					return
				}

				yield(nil, err)

				return
			}

			if !yield(msg, nil) {
				return
			}

			if failed := senderFailure(); failed != nil {
				yield(nil, failed)

				return
			}

			if _, ok := msg.(*message.ResultMessage); ok {
				return
			}
		}
	}
}

// receive returns the next conversation message.
//
// Objects the parser cannot decode are logged and skipped. Returns io.EOF
// when the CLI ends the stream normally.
func (c *Client) receive(ctx context.Context) (message.Message, error) {
	for {
		raw, err := c.controller.Next(ctx)
		if err != nil {
			return nil, err
		}

		msg, err := message.Parse(c.log, raw)
		if stderrors.Is(err, errors.ErrUnknownMessageType) {
			continue
		}

		if err != nil {
			c.log.Warn("Skipping unparseable message", "error", err)

			continue
		}

		return msg, nil
	}
}

// ReceiveMessages returns an iterator that yields messages until the stream
// ends, an error occurs, or ctx is cancelled. A normal end of stream ends the
// iteration without an error. Unlike ReceiveResponse, this iterator does not
// stop at ResultMessage.
func (c *Client) ReceiveMessages(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		if !c.isConnected() {
			yield(nil, errors.ErrClientNotConnected)

			return
		}

		for {
			msg, err := c.receive(ctx)
			if stderrors.Is(err, io.EOF) {
				return
			}

			if err != nil {
				yield(nil, err)

				return
			}

			if !yield(msg, nil) {
				return
			}
		}
	}
}

// ReceiveResponse returns an iterator that yields messages until a ResultMessage is received.
// Messages are yielded as they arrive for streaming consumption.
// The iterator stops after yielding the ResultMessage.
func (c *Client) ReceiveResponse(ctx context.Context) iter.Seq2[message.Message, error] {
	return func(yield func(message.Message, error) bool) {
		for msg, err := range c.ReceiveMessages(ctx) {
			if err != nil {
				yield(nil, fmt.Errorf("receive response: %w", err))

				return
			}

			if !yield(msg, nil) {
				return
			}

			if _, ok := msg.(*message.ResultMessage); ok {
				return
			}
		}
	}
}

// connectedSession returns the session once Start has succeeded.
func (c *Client) connectedSession() (*protocol.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, errors.ErrClientNotConnected
	}

	return c.session, nil
}

// Interrupt stops Claude's current turn.
func (c *Client) Interrupt(ctx context.Context) error {
	s, err := c.connectedSession()
	if err != nil {
		return err
	}

	return s.Interrupt(ctx)
}

// SetPermissionMode changes the permission mode during conversation.
// Valid modes: "default", "acceptEdits", "plan", "bypassPermissions".
func (c *Client) SetPermissionMode(ctx context.Context, mode string) error {
	s, err := c.connectedSession()
	if err != nil {
		return err
	}

	return s.SetPermissionMode(ctx, mode)
}

// SetModel changes the AI model during conversation.
//
// Pass nil to use the default model.
func (c *Client) SetModel(ctx context.Context, model *string) error {
	s, err := c.connectedSession()
	if err != nil {
		return err
	}

	return s.SetModel(ctx, model)
}

// SetMaxThinkingTokens caps extended thinking. Pass nil to clear the limit.
func (c *Client) SetMaxThinkingTokens(ctx context.Context, tokens *int) error {
	s, err := c.connectedSession()
	if err != nil {
		return err
	}

	return s.SetMaxThinkingTokens(ctx, tokens)
}

// RewindFiles rewinds tracked files to their state at a specific user message.
//
// The CLI must run with file checkpointing enabled. With dryRun set, the
// result describes the change without applying it.
func (c *Client) RewindFiles(ctx context.Context, userMessageID string, dryRun bool) (*protocol.RewindResult, error) {
	s, err := c.connectedSession()
	if err != nil {
		return nil, err
	}

	return s.RewindFiles(ctx, userMessageID, dryRun)
}

// SetMCPServers replaces the CLI's dynamic MCP servers.
func (c *Client) SetMCPServers(ctx context.Context, servers map[string]mcp.ServerConfig) (*mcp.SetServersResult, error) {
	s, err := c.connectedSession()
	if err != nil {
		return nil, err
	}

	return s.SetMCPServers(ctx, servers)
}

// ReconnectMCPServer asks the CLI to reconnect the named MCP server.
func (c *Client) ReconnectMCPServer(ctx context.Context, name string) error {
	s, err := c.connectedSession()
	if err != nil {
		return err
	}

	return s.ReconnectMCPServer(ctx, name)
}

// ToggleMCPServer enables or disables the named MCP server.
func (c *Client) ToggleMCPServer(ctx context.Context, name string, enabled bool) error {
	s, err := c.connectedSession()
	if err != nil {
		return err
	}

	return s.ToggleMCPServer(ctx, name, enabled)
}

// MCPStatus queries the CLI for live MCP server connection status.
// In-process servers are reported as connected.
func (c *Client) MCPStatus(ctx context.Context) (*mcp.Status, error) {
	s, err := c.connectedSession()
	if err != nil {
		return nil, err
	}

	return s.MCPStatus(ctx)
}

// SupportedCommands returns the slash commands the CLI offers.
func (c *Client) SupportedCommands(ctx context.Context) ([]map[string]any, error) {
	s, err := c.connectedSession()
	if err != nil {
		return nil, err
	}

	return s.SupportedCommands(ctx)
}

// SupportedModels returns the models the CLI offers.
func (c *Client) SupportedModels(ctx context.Context) ([]map[string]any, error) {
	s, err := c.connectedSession()
	if err != nil {
		return nil, err
	}

	return s.SupportedModels(ctx)
}

// AccountInfo returns the signed-in account.
func (c *Client) AccountInfo(ctx context.Context) (map[string]any, error) {
	s, err := c.connectedSession()
	if err != nil {
		return nil, err
	}

	return s.AccountInfo(ctx)
}

// ServerInfo returns the initialize response, or nil when no handshake ran.
func (c *Client) ServerInfo() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}

	return c.session.ServerInfo()
}

// Abort cancels every blocked operation with an AbortError carrying reason
// and terminates the CLI. Only the first reason is kept.
func (c *Client) Abort(reason string) {
	c.sigMu.Lock()
	sig := c.signal
	c.sigMu.Unlock()

	if sig == nil {
		return
	}

	sig.Abort(reason)
}

// Close terminates the session and cleans up resources.
//
// After Close(), the client cannot be reused - create a new client with New().
// This method is safe to call multiple times.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		wasConnected := c.connected
		c.connected = false
		c.mu.Unlock()

		if !wasConnected {
			return
		}

		c.log.Info("Closing client")

		c.controller.Stop()

		closeErr = c.transport.Close()

		_ = c.eg.Wait()

		c.log.Info("Client closed")
	})

	return closeErr
}
