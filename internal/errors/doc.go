// Package errors defines error types for the Claude SDK.
//
// This package provides structured error types covering every failure the
// transport and control protocol can report: a missing or outdated CLI,
// connection and process failures, stdout buffer overflow, control request
// timeouts, aborts, and protocol-level errors. All error types support error
// unwrapping and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
