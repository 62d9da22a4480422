// Package processtest provides a scripted in-memory child process for tests.
package processtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/wagiedev/claudewire/internal/errors"
	"github.com/wagiedev/claudewire/internal/process"
)

// Compile-time verification that Fake implements process.Handle.
var _ process.Handle = (*Fake)(nil)

// Responder reacts to one JSON object the code under test wrote to stdin.
// It runs on the fake's dispatch goroutine, one object at a time.
type Responder func(f *Fake, msg map[string]any)

// Fake is a process.Handle backed by in-memory pipes.
//
// Objects written to stdin are decoded, recorded and handed to the responder
// in order. Tests emit stdout traffic with Emit and end the child with Exit.
type Fake struct {
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	mu          sync.Mutex
	cond        *sync.Cond
	partial     []byte
	written     []map[string]any
	queue       []map[string]any
	inputClosed bool
	exited      bool
	exitCode    int
	terminated  bool
	spec        process.Spec
	responder   Responder

	exitCh chan struct{}
	emitMu sync.Mutex
}

// New creates a running fake child.
func New(responder Responder) *Fake {
	f := &Fake{
		responder: responder,
		exitCh:    make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	f.stdoutR, f.stdoutW = io.Pipe()
	f.stderrR, f.stderrW = io.Pipe()

	go f.dispatch()

	return f
}

// Factory returns a process.Factory that hands out this fake and records the spec.
func (f *Fake) Factory() process.Factory {
	return func(_ context.Context, spec process.Spec) (process.Handle, error) {
		f.mu.Lock()
		f.spec = spec
		f.mu.Unlock()

		return f, nil
	}
}

// Spec returns the spec the fake was spawned with.
func (f *Fake) Spec() process.Spec {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.spec
}

// Emit writes v as one JSON line on stdout. It blocks until the reader consumes it.
func (f *Fake) Emit(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	return f.EmitRaw(string(data) + "\n")
}

// EmitRaw writes s to stdout verbatim.
func (f *Fake) EmitRaw(s string) error {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	_, err := io.WriteString(f.stdoutW, s)

	return err
}

// EmitStderr writes one line to stderr.
func (f *Fake) EmitStderr(line string) error {
	_, err := io.WriteString(f.stderrW, line+"\n")

	return err
}

// Respond emits a success control_response for requestID.
func (f *Fake) Respond(requestID string, payload map[string]any) error {
	return f.Emit(map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"subtype":    "success",
			"request_id": requestID,
			"response":   payload,
		},
	})
}

// RespondError emits an error control_response for requestID.
func (f *Fake) RespondError(requestID, message string) error {
	return f.Emit(map[string]any{
		"type": "control_response",
		"response": map[string]any{
			"subtype":    "error",
			"request_id": requestID,
			"error":      message,
		},
	})
}

// Written returns every object written to stdin so far.
func (f *Fake) Written() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]any, len(f.written))
	copy(out, f.written)

	return out
}

// WaitWritten blocks until at least n objects were written or timeout elapses.
func (f *Fake) WaitWritten(n int, timeout time.Duration) []map[string]any {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if w := f.Written(); len(w) >= n {
			return w
		}

		time.Sleep(5 * time.Millisecond)
	}

	return f.Written()
}

// InputClosed reports whether CloseInput was called.
func (f *Fake) InputClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.inputClosed
}

// Terminated reports whether Terminate or Kill was called.
func (f *Fake) Terminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.terminated
}

// Exit ends the child with code, closing stdout and stderr.
func (f *Fake) Exit(code int) {
	f.mu.Lock()

	if f.exited {
		f.mu.Unlock()

		return
	}

	f.exited = true
	f.exitCode = code
	f.cond.Broadcast()
	f.mu.Unlock()

	_ = f.stdoutW.Close()
	_ = f.stderrW.Close()

	close(f.exitCh)
}

// Write records newline-delimited objects written to stdin.
func (f *Fake) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.exited {
		return 0, &errors.CLIConnectionError{Err: io.ErrClosedPipe}
	}

	if f.inputClosed {
		return 0, &errors.CLIConnectionError{Err: errors.ErrStdinClosed}
	}

	f.partial = append(f.partial, p...)

	for {
		idx := bytes.IndexByte(f.partial, '\n')
		if idx < 0 {
			break
		}

		line := bytes.TrimSpace(f.partial[:idx])
		f.partial = f.partial[idx+1:]

		if len(line) == 0 {
			continue
		}

		var msg map[string]any
		if err := json.Unmarshal(line, &msg); err != nil {
			return 0, fmt.Errorf("fake child received invalid JSON %q: %w", line, err)
		}

		f.written = append(f.written, msg)
		f.queue = append(f.queue, msg)
	}

	f.cond.Broadcast()

	return len(p), nil
}

func (f *Fake) dispatch() {
	for {
		f.mu.Lock()

		for len(f.queue) == 0 && !f.exited {
			f.cond.Wait()
		}

		if f.exited {
			f.mu.Unlock()

			return
		}

		msg := f.queue[0]
		f.queue = f.queue[1:]
		responder := f.responder
		f.mu.Unlock()

		if responder != nil {
			responder(f, msg)
		}
	}
}

// Stdout returns the fake's stdout.
func (f *Fake) Stdout() io.Reader { return f.stdoutR }

// Stderr returns the fake's stderr.
func (f *Fake) Stderr() io.Reader { return f.stderrR }

// CloseInput marks stdin closed.
func (f *Fake) CloseInput() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inputClosed = true

	return nil
}

// Terminate exits the child with code -1.
func (f *Fake) Terminate(time.Duration) error {
	return f.Kill()
}

// Kill exits the child with code -1.
func (f *Fake) Kill() error {
	f.mu.Lock()
	f.terminated = true
	f.mu.Unlock()

	f.Exit(-1)

	return nil
}

// Running reports whether Exit has not been called.
func (f *Fake) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return !f.exited
}

// ExitStatus returns the code passed to Exit.
func (f *Fake) ExitStatus() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.exitCode, f.exited
}

// Wait blocks until Exit is called.
func (f *Fake) Wait() error {
	<-f.exitCh

	code, _ := f.ExitStatus()
	if code != 0 {
		return fmt.Errorf("exit status %d", code)
	}

	return nil
}

// Pid returns a fixed fake pid.
func (f *Fake) Pid() int { return 4242 }

// AutoInitialize wraps next so initialize control requests are acknowledged
// with serverInfo before next sees any other traffic.
func AutoInitialize(serverInfo map[string]any, next Responder) Responder {
	return func(f *Fake, msg map[string]any) {
		if msg["type"] == "control_request" {
			req, _ := msg["request"].(map[string]any)
			if req["subtype"] == "initialize" {
				id, _ := msg["request_id"].(string)
				_ = f.Respond(id, serverInfo)

				return
			}
		}

		if next != nil {
			next(f, msg)
		}
	}
}
