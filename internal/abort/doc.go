// Package abort provides the cancellation signal shared by a session.
//
// Every blocking operation in the transport and control protocol observes the
// same Signal, so one Abort call unblocks pending control requests, message
// iteration and input streaming together.
package abort
