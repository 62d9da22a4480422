// Package process owns the child process the SDK talks to.
//
// Handle is the contract the transport depends on. Local implements it with
// os/exec; a Factory lets callers substitute another spawn strategy, such as
// exec inside a container or over SSH.
package process
