package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/wagiedev/claudewire/internal/abort"
	"github.com/wagiedev/claudewire/internal/errors"
)

const (
	// DefaultPollInterval bounds how long a blocked request goes without
	// re-checking its deadline and the abort signal.
	DefaultPollInterval = 100 * time.Millisecond

	spanPrefix = "claudewire."
)

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by the CLITransport but allows for testing
// with mock transports.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
}

// State is the lifecycle stage of a session.
type State int32

const (
	// StateIdle is the state before the transport connects.
	StateIdle State = iota
	// StateConnecting is the state while the transport connects.
	StateConnecting
	// StateInitializing is the state while the initialize handshake runs.
	StateInitializing
	// StateActive is the state while conversation traffic flows.
	StateActive
	// StateDraining is the state while pending work is being resolved on shutdown.
	StateDraining
	// StateClosed is the final state.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Controller manages bidirectional control message communication with the Claude CLI.
//
// The Controller handles:
//   - Sending control_request messages with unique request IDs
//   - Receiving and routing control_response messages to waiting requests
//   - Request timeout and abort enforcement
//   - Handler registration for incoming control_request messages from the CLI
//   - Queueing non-control messages, in order, for Next
//
// The Controller must be started with Start() before use and manages its own
// goroutine for reading and routing messages.
type Controller struct {
	log          *slog.Logger
	transport    Transport
	signal       *abort.Signal
	tracer       trace.Tracer
	pollInterval time.Duration

	state atomic.Int32

	// Request tracking
	pendingMu sync.Mutex
	pending   map[string]*pendingRequest
	counter   atomic.Uint64

	// In-flight operation tracking for cancellation support
	inFlightMu sync.Mutex
	inFlight   map[string]*inFlightOperation

	// Handler registry for incoming requests
	handlersMu sync.RWMutex
	handlers   map[string]RequestHandler

	queue *messageQueue

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// pendingRequest tracks an outgoing request awaiting response.
type pendingRequest struct {
	subtype  string
	created  time.Time
	deadline time.Time
	result   chan pendingResult
}

type pendingResult struct {
	resp *ControlResponse
	err  error
}

// inFlightOperation tracks an incoming control request being handled.
type inFlightOperation struct {
	subtype   string
	cancel    context.CancelFunc
	completed bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithAbortSignal shares sig with the controller. Aborting it unblocks every
// pending request and stops the reader loop.
func WithAbortSignal(sig *abort.Signal) ControllerOption {
	return func(c *Controller) {
		if sig != nil {
			c.signal = sig
		}
	}
}

// WithTracer records a span per control request and inbound handler.
func WithTracer(tracer trace.Tracer) ControllerOption {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewController creates a new protocol controller.
//
// The logger will receive debug, info, warn, and error messages during
// protocol operations. The transport must be connected before calling Start().
func NewController(log *slog.Logger, transport Transport, opts ...ControllerOption) *Controller {
	c := &Controller{
		log:          log.With("component", "protocol"),
		transport:    transport,
		signal:       abort.New(),
		tracer:       noop.NewTracerProvider().Tracer("claudewire"),
		pollInterval: DefaultPollInterval,
		pending:      make(map[string]*pendingRequest, 10),
		inFlight:     make(map[string]*inFlightOperation, 10),
		handlers:     make(map[string]RequestHandler, 10),
		queue:        newMessageQueue(),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// SetState moves the controller forward to s. Moving backwards is ignored.
func (c *Controller) SetState(s State) {
	for {
		cur := c.state.Load()
		if State(cur) >= s {
			return
		}

		if c.state.CompareAndSwap(cur, int32(s)) {
			c.log.Debug("Session state changed", "from", State(cur), "to", s)

			return
		}
	}
}

// Signal returns the cancellation signal observed by the controller.
func (c *Controller) Signal() *abort.Signal {
	return c.signal
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start begins reading messages from the transport and routing them.
//
// The reader goroutine stops when the transport stream ends, ctx is
// cancelled, Stop is called or the abort signal fires. Calling Start more
// than once has no effect.
func (c *Controller) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		c.log.Debug("Starting protocol controller")

		ctx, c.cancel = context.WithCancel(ctx)

		messages, errs := c.transport.ReadMessages(ctx)

		c.signal.OnAbort(func(reason string) {
			c.log.Info("Abort signalled, draining", "reason", reason)
			c.Drain(&errors.AbortError{Reason: reason})
		})

		c.wg.Go(func() { c.readLoop(ctx, messages, errs) })

		c.log.Info("Protocol controller started")
	})

	return nil
}

// Stop drains pending requests, cancels in-flight handlers and waits for the
// controller's goroutines. It's safe to call Stop multiple times.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.Drain(errors.ErrControllerStopped)
	c.closeDone()
	c.CancelAllInFlight()

	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()
	c.queue.Close(c.FatalError())
	c.SetState(StateClosed)
	c.log.Info("Protocol controller stopped")
}

// Drain enters the Draining state and resolves every pending request with
// cause. Later requests fail immediately.
func (c *Controller) Drain(cause error) {
	c.SetState(StateDraining)

	c.pendingMu.Lock()
	claimed := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.pendingMu.Unlock()

	for id, pr := range claimed {
		c.log.Debug("Resolving pending request on drain", "request_id", id, "subtype", pr.subtype)
		pr.result <- pendingResult{err: cause}
	}
}

// PendingCount returns the number of requests awaiting a response.
func (c *Controller) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return len(c.pending)
}

// Next returns the next conversation message in arrival order.
//
// It returns io.EOF after the stream ended cleanly and every queued message
// was consumed, the transport's error if it failed, and AbortError once the
// abort signal fired.
func (c *Controller) Next(ctx context.Context) (map[string]any, error) {
	if err := c.signal.Check(); err != nil {
		return nil, err
	}

	return c.queue.Pop(ctx, c.signal.Done(), c.signal.Check)
}

// Pending reports how many conversation messages are queued.
func (c *Controller) Pending() int {
	return c.queue.Len()
}

// SendRequest sends a control request and waits for its response.
//
// The wait ends when the response arrives, timeout elapses (TimeoutError),
// the abort signal fires (AbortError, which wins over a simultaneous
// timeout), the controller stops or ctx is done. The pending entry is removed
// in every case. An error-subtype response is returned as ProtocolError.
func (c *Controller) SendRequest(
	ctx context.Context,
	subtype string,
	payload map[string]any,
	timeout time.Duration,
) (resp *ControlResponse, err error) {
	if err := c.signal.Check(); err != nil {
		return nil, err
	}

	if c.State() >= StateDraining {
		return nil, errors.ErrControllerStopped
	}

	requestID := c.generateRequestID()

	ctx, span := c.tracer.Start(ctx, spanPrefix+"control_request/"+subtype,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("request_id", requestID),
			attribute.String("subtype", subtype),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	c.log.Debug("Sending control request", "request_id", requestID, "subtype", subtype)

	now := time.Now()
	pending := &pendingRequest{
		subtype:  subtype,
		created:  now,
		deadline: now.Add(timeout),
		result:   make(chan pendingResult, 1),
	}

	c.pendingMu.Lock()
	c.pending[requestID] = pending
	c.pendingMu.Unlock()

	requestPayload := map[string]any{"subtype": subtype}
	maps.Copy(requestPayload, payload)

	data, err := json.Marshal(&ControlRequest{
		Type:      "control_request",
		RequestID: requestID,
		Request:   requestPayload,
	})
	if err != nil {
		c.removePending(requestID)

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		c.removePending(requestID)
		c.log.Error("Failed to send control request", "request_id", requestID, "error", err)

		return nil, fmt.Errorf("send request: %w", err)
	}

	result, err := c.await(ctx, requestID, pending, timeout)
	if err != nil {
		return nil, err
	}

	if result.IsError() {
		msg := result.ErrorMessage()
		c.log.Warn("Control request returned error", "request_id", requestID, "error", msg)

		return nil, &errors.ProtocolError{RequestID: requestID, Subtype: subtype, Message: msg}
	}

	c.log.Debug("Received control response", "request_id", requestID,
		"elapsed", time.Since(pending.created))

	return result, nil
}

// await blocks until pending resolves. It wakes at least every pollInterval
// to re-check the abort signal and the deadline.
func (c *Controller) await(
	ctx context.Context,
	requestID string,
	pending *pendingRequest,
	timeout time.Duration,
) (*ControlResponse, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(time.Until(pending.deadline))
	defer deadline.Stop()

	for {
		if c.signal.Aborted() {
			if res, ok := c.abandon(requestID, pending); ok {
				return res.resp, res.err
			}

			return nil, &errors.AbortError{Reason: c.signal.Reason()}
		}

		select {
		case res := <-pending.result:
			return res.resp, res.err

		case <-deadline.C:
			if c.signal.Aborted() {
				continue
			}

			if res, ok := c.abandon(requestID, pending); ok {
				return res.resp, res.err
			}

			c.log.Warn("Control request timed out", "request_id", requestID, "timeout", timeout)

			return nil, &errors.TimeoutError{RequestID: requestID, Subtype: pending.subtype, Timeout: timeout}

		case <-c.signal.Done():
			continue

		case <-c.done:
			if res, ok := c.abandon(requestID, pending); ok {
				return res.resp, res.err
			}

			if err := c.FatalError(); err != nil {
				return nil, fmt.Errorf("transport error: %w", err)
			}

			return nil, errors.ErrControllerStopped

		case <-ctx.Done():
			if res, ok := c.abandon(requestID, pending); ok {
				return res.resp, res.err
			}

			return nil, ctx.Err()

		case <-ticker.C:
			if time.Now().After(pending.deadline) {
				// Let the deadline case report it.
				continue
			}
		}
	}
}

// abandon removes requestID from the pending table. If the reader loop or
// Drain already claimed it, the claimed result is returned instead.
func (c *Controller) abandon(requestID string, pending *pendingRequest) (pendingResult, bool) {
	c.pendingMu.Lock()
	_, stillPending := c.pending[requestID]
	delete(c.pending, requestID)
	c.pendingMu.Unlock()

	if stillPending {
		return pendingResult{}, false
	}

	// Claimed entries always receive exactly one result.
	return <-pending.result, true
}

func (c *Controller) removePending(requestID string) {
	c.pendingMu.Lock()
	delete(c.pending, requestID)
	c.pendingMu.Unlock()
}

// RegisterHandler registers a handler for incoming control requests.
//
// When the CLI sends a control_request with the specified subtype, the handler
// will be invoked. Registering a handler for the same subtype twice will
// override the previous handler.
func (c *Controller) RegisterHandler(subtype string, handler RequestHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Registering control request handler", "subtype", subtype)
	c.handlers[subtype] = handler
}

// readLoop reads messages from the transport and routes them.
func (c *Controller) readLoop(
	ctx context.Context,
	messages <-chan map[string]any,
	errs <-chan error,
) {
	defer c.log.Debug("Protocol read loop stopped")
	defer c.finishStream()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				c.log.Debug("Message channel closed")
				c.collectErrors(errs)

				return
			}

			if c.signal.Aborted() {
				return
			}

			c.route(ctx, msg)

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if err != nil {
				c.log.Debug("Transport error in protocol", "error", err)
				c.SetFatalError(err)

				return
			}

		case <-c.done:
			c.log.Debug("Protocol controller stop signal received")

			return

		case <-c.signal.Done():
			c.log.Debug("Abort observed by read loop")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")

			return
		}
	}
}

// collectErrors records an error the transport reported just before closing.
func (c *Controller) collectErrors(errs <-chan error) {
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return
			}

			if err != nil {
				c.SetFatalError(err)

				return
			}
		default:
			return
		}
	}
}

// finishStream ends the conversation queue and fails requests that can no
// longer be answered.
func (c *Controller) finishStream() {
	queueErr := c.FatalError()
	if err := c.signal.Check(); err != nil {
		queueErr = err
	}

	cause := queueErr
	if cause == nil {
		cause = &errors.CLIConnectionError{Err: fmt.Errorf("stream ended: %w", errors.ErrTransportNotConnected)}
	}

	c.queue.Close(queueErr)
	c.Drain(cause)
	c.closeDone()
}

// route dispatches a decoded object by its envelope kind.
func (c *Controller) route(ctx context.Context, msg map[string]any) {
	env := Classify(msg)

	switch env.Kind {
	case KindControlResponse:
		c.handleControlResponse(env)

	case KindControlRequest:
		c.handleControlRequest(ctx, env)

	case KindCancelRequest:
		c.handleCancelRequest(ctx, env.RequestID)

	case KindMalformed:
		c.log.Warn("Skipping malformed control message", "problem", env.Problem)

	case KindMessage:
		c.queue.Push(msg)
	}
}

// handleControlResponse routes a response to the waiting request.
func (c *Controller) handleControlResponse(env Envelope) {
	c.log.Debug("Received control response", "request_id", env.RequestID)

	// Claim the pending request atomically.
	c.pendingMu.Lock()

	pending, exists := c.pending[env.RequestID]
	if exists {
		delete(c.pending, env.RequestID)
	}

	c.pendingMu.Unlock()

	if !exists {
		c.log.Warn("No pending request for control response", "request_id", env.RequestID)

		return
	}

	pending.result <- pendingResult{resp: &ControlResponse{Type: "control_response", Response: env.Body}}
}

// handleControlRequest runs the registered handler for an inbound request on
// its own goroutine so cancel requests can reach it.
func (c *Controller) handleControlRequest(ctx context.Context, env Envelope) {
	requestID := env.RequestID
	subtype := env.Subtype
	req := &ControlRequest{Type: "control_request", RequestID: requestID, Request: env.Body}

	c.log.Debug("Received control request from CLI", "request_id", requestID, "subtype", subtype)

	c.handlersMu.RLock()
	handler, exists := c.handlers[subtype]
	c.handlersMu.RUnlock()

	if !exists {
		c.log.Warn("No handler registered for control request subtype", "subtype", subtype)
		c.sendErrorResponse(ctx, requestID, fmt.Sprintf("%s: %q", errors.ErrUnknownSubtype, subtype))

		return
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := &inFlightOperation{subtype: subtype, cancel: cancel}

	c.inFlightMu.Lock()
	c.inFlight[requestID] = op
	c.inFlightMu.Unlock()

	c.wg.Go(func() {
		defer func() {
			c.inFlightMu.Lock()
			op.completed = true
			delete(c.inFlight, requestID)
			c.inFlightMu.Unlock()

			cancel()
		}()

		payload, err := c.runHandler(opCtx, handler, req)

		if stderrors.Is(opCtx.Err(), context.Canceled) && ctx.Err() == nil {
			c.log.Debug("Handler was cancelled", "request_id", requestID)
			c.sendErrorResponse(ctx, requestID, errors.ErrOperationCancelled.Error())

			return
		}

		if err != nil {
			c.log.Warn("Handler returned error", "request_id", requestID, "subtype", subtype, "error", err)
			c.sendErrorResponse(ctx, requestID, err.Error())

			return
		}

		c.sendSuccessResponse(ctx, requestID, payload)
	})
}

// runHandler invokes handler inside a span. A panic becomes an error.
func (c *Controller) runHandler(
	ctx context.Context,
	handler RequestHandler,
	req *ControlRequest,
) (payload map[string]any, err error) {
	ctx, span := c.tracer.Start(ctx, spanPrefix+"control_handler/"+req.Subtype(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("request_id", req.RequestID),
			attribute.String("subtype", req.Subtype()),
		),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	return handler(ctx, req)
}

// sendSuccessResponse sends a successful control response.
func (c *Controller) sendSuccessResponse(ctx context.Context, requestID string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}

	c.sendResponse(ctx, requestID, map[string]any{
		"subtype":    "success",
		"request_id": requestID,
		"response":   payload,
	})
}

// sendErrorResponse sends an error control response.
func (c *Controller) sendErrorResponse(ctx context.Context, requestID string, errMsg string) {
	c.sendResponse(ctx, requestID, map[string]any{
		"subtype":    "error",
		"request_id": requestID,
		"error":      errMsg,
	})
}

func (c *Controller) sendResponse(ctx context.Context, requestID string, body map[string]any) {
	data, err := json.Marshal(&ControlResponse{Type: "control_response", Response: body})
	if err != nil {
		c.log.Error("Failed to marshal control response", "request_id", requestID, "error", err)

		return
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		// Expected while shutting down.
		if ctx.Err() != nil || c.State() >= StateDraining {
			c.log.Debug("Could not send control response during shutdown", "request_id", requestID, "error", err)

			return
		}

		c.log.Error("Failed to send control response", "request_id", requestID, "error", err)
	}
}

// generateRequestID returns req_<counter>_<random>. The counter keeps ids
// ordered within a session and the ULID entropy keeps them unique across
// concurrent callers and sessions.
func (c *Controller) generateRequestID() string {
	id := ulid.Make().String()

	return "req_" + strconv.FormatUint(c.counter.Add(1), 10) + "_" + strings.ToLower(id[10:])
}

// handleCancelRequest cancels the in-flight handler for requestID, if any,
// and acknowledges the cancel request.
func (c *Controller) handleCancelRequest(ctx context.Context, requestID string) {
	c.log.Debug("Received cancel request", "request_id", requestID)

	c.inFlightMu.Lock()
	op, found := c.inFlight[requestID]

	alreadyCompleted := found && op.completed
	if found && !alreadyCompleted {
		op.cancel()
	}

	c.inFlightMu.Unlock()

	c.log.Debug("Cancel request processed",
		"request_id", requestID,
		"found", found,
		"already_completed", alreadyCompleted,
	)

	c.sendResponse(ctx, requestID, map[string]any{
		"subtype":           "cancel_acknowledgment",
		"request_id":        requestID,
		"found":             found,
		"already_completed": alreadyCompleted,
	})
}

// CancelAllInFlight cancels all in-flight operations.
// This is called during Stop() to ensure clean shutdown.
func (c *Controller) CancelAllInFlight() {
	c.inFlightMu.Lock()
	defer c.inFlightMu.Unlock()

	for _, op := range c.inFlight {
		if !op.completed {
			op.cancel()
		}
	}
}
