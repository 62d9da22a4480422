// Package protocol implements bidirectional control message handling for the Claude CLI.
//
// A Controller owns the read side of a connected transport. Its reader loop
// classifies every decoded object and:
//   - resolves control_response messages against the pending-request table
//   - runs registered handlers for control_request messages and writes the reply
//   - cancels in-flight handlers on control_cancel_request
//   - queues everything else, in arrival order, for Next
//
// A Session layers the SDK's handlers (can_use_tool, hook_callback,
// mcp_message), the initialize handshake and the control-plane operations on
// top of a Controller.
//
// Example usage:
//
//	controller := protocol.NewController(log, transport, protocol.WithAbortSignal(sig))
//	session := protocol.NewSession(log, controller, options)
//	session.RegisterHandlers()
//	session.RegisterMCPServers()
//
//	controller.Start(ctx)
//
//	if session.NeedsInitialization() {
//		if err := session.Initialize(ctx); err != nil {
//			return err
//		}
//	}
//
//	msg, err := controller.Next(ctx)
package protocol
