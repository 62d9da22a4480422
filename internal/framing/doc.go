// Package framing decodes the CLI's newline-delimited JSON output.
//
// A Reader tolerates objects split across reads and across lines by
// buffering until the accumulated text parses, and fails with a
// BufferOverflowError instead of growing without bound.
package framing
