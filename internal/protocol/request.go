package protocol

import (
	"context"

	"github.com/wagiedev/claudewire/internal/wire"
)

// Kind classifies a decoded stdout object.
type Kind int

const (
	// KindMessage is ordinary conversation traffic.
	KindMessage Kind = iota
	// KindControlRequest is a request sent by the CLI.
	KindControlRequest
	// KindControlResponse answers a request the SDK sent.
	KindControlResponse
	// KindCancelRequest asks the SDK to cancel an inbound request in flight.
	KindCancelRequest
	// KindMalformed is a control envelope missing required fields.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindControlRequest:
		return "control_request"
	case KindControlResponse:
		return "control_response"
	case KindCancelRequest:
		return "control_cancel_request"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Envelope is a decoded stdout object with its routing fields extracted once.
type Envelope struct {
	Kind      Kind
	RequestID string
	// Subtype of a control request or response.
	Subtype string
	// Body is the nested "request" or "response" object of a control envelope.
	Body map[string]any
	// Raw is the object as decoded.
	Raw map[string]any
	// Problem describes why a control envelope is malformed.
	Problem string
}

// Classify decodes the routing fields of msg. Field names are read in either
// snake_case or camelCase.
func Classify(msg map[string]any) Envelope {
	env := Envelope{Kind: KindMessage, Raw: msg}

	switch wire.String(msg, "type") {
	case "control_request":
		env.Kind = KindControlRequest
		env.RequestID = wire.String(msg, "request_id")
		env.Body = wire.Map(msg, "request")

		switch {
		case env.RequestID == "":
			env.Kind, env.Problem = KindMalformed, "control request missing request_id"
		case env.Body == nil:
			env.Kind, env.Problem = KindMalformed, "control request missing request"
		default:
			env.Subtype = wire.String(env.Body, "subtype")
		}

	case "control_response":
		env.Kind = KindControlResponse
		env.Body = wire.Map(msg, "response")

		if env.Body == nil {
			env.Kind, env.Problem = KindMalformed, "control response missing response"

			break
		}

		env.RequestID = wire.String(env.Body, "request_id")
		env.Subtype = wire.String(env.Body, "subtype")

		if env.RequestID == "" {
			env.Kind, env.Problem = KindMalformed, "control response missing request_id"
		}

	case "control_cancel_request":
		env.Kind = KindCancelRequest
		env.RequestID = wire.String(msg, "request_id")

		if env.RequestID == "" {
			env.Kind, env.Problem = KindMalformed, "cancel request missing request_id"
		}
	}

	return env
}

// ControlRequest represents a control message sent to or received from the CLI.
//
// Wire format:
//
//	{
//	  "type": "control_request",
//	  "request_id": "req_1_01j9...",
//	  "request": {
//	    "subtype": "initialize",
//	    "hooks": {...}
//	  }
//	}
type ControlRequest struct {
	// Type is always "control_request"
	Type string `json:"type"`

	// RequestID uniquely identifies this request for response correlation
	RequestID string `json:"request_id"` //nolint:tagliatelle // Claude CLI uses snake_case

	// Request contains the nested request data including subtype and payload fields
	Request map[string]any `json:"request"`
}

// Subtype extracts the subtype from the nested request data.
func (r *ControlRequest) Subtype() string {
	return wire.String(r.Request, "subtype")
}

// ControlResponse represents a response to a control request.
//
// Wire format for success:
//
//	{
//	  "type": "control_response",
//	  "response": {
//	    "subtype": "success",
//	    "request_id": "req_1_01j9...",
//	    "response": {...}
//	  }
//	}
//
// Wire format for error:
//
//	{
//	  "type": "control_response",
//	  "response": {
//	    "subtype": "error",
//	    "request_id": "req_1_01j9...",
//	    "error": "error message"
//	  }
//	}
type ControlResponse struct {
	// Type is always "control_response"
	Type string `json:"type"`

	// Response contains the nested response data including subtype, request_id,
	// and either response (for success) or error (for error)
	Response map[string]any `json:"response"`
}

// IsError checks if the response is an error response.
func (r *ControlResponse) IsError() bool {
	return wire.String(r.Response, "subtype") == "error"
}

// ErrorMessage extracts the error message from an error response.
func (r *ControlResponse) ErrorMessage() string {
	return wire.String(r.Response, "error")
}

// Payload extracts the response payload from a success response.
func (r *ControlResponse) Payload() map[string]any {
	return wire.Map(r.Response, "response")
}

// RequestID extracts the request_id from the nested response.
func (r *ControlResponse) RequestID() string {
	return wire.String(r.Response, "request_id")
}

// RequestHandler handles one inbound control request.
//
// The returned payload becomes the "response" of a success control_response;
// an error becomes an error control_response. ctx is cancelled when the CLI
// sends a matching control_cancel_request or the controller stops.
type RequestHandler func(ctx context.Context, req *ControlRequest) (map[string]any, error)
