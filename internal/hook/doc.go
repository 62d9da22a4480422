// Package hook defines hook callbacks and the conversion between hook
// payloads and the CLI's wire format.
package hook
