package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/claudewire/internal/cli"
	"github.com/wagiedev/claudewire/internal/config"
	"github.com/wagiedev/claudewire/internal/errors"
	"github.com/wagiedev/claudewire/internal/framing"
	"github.com/wagiedev/claudewire/internal/process"
)

const (
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded memory usage.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB

	// defaultCLIName is the command handed to a custom process factory when
	// no explicit CLI path is configured.
	defaultCLIName = "claude"
)

// CLITransport implements Transport over a spawned Claude CLI process.
type CLITransport struct {
	log       *slog.Logger
	options   *config.Options
	prompt    string
	streaming bool

	mu          sync.Mutex // Protects process state
	proc        process.Handle
	inputClosed bool
	closing     bool // Close() has been called (intentional shutdown)
	reading     bool

	// writeMu serialises SendMessage. It is never held together with mu
	// across a write, so Close proceeds while a write is blocked.
	writeMu sync.Mutex

	stderrMu   sync.Mutex
	stderrBuf  strings.Builder
	stderrDone chan struct{}
}

// Compile-time verification that CLITransport implements the Transport interface.
var _ config.Transport = (*CLITransport)(nil)

// NewCLITransport creates a transport for a one-shot prompt. The prompt is
// passed on the command line and stdin is closed right after spawn.
func NewCLITransport(log *slog.Logger, prompt string, options *config.Options) *CLITransport {
	return newTransport(log, prompt, options, false)
}

// NewStreamingTransport creates a transport whose stdin stays open for
// stream-json input until EndInput or Close.
func NewStreamingTransport(log *slog.Logger, options *config.Options) *CLITransport {
	return newTransport(log, "", options, true)
}

func newTransport(log *slog.Logger, prompt string, options *config.Options, streaming bool) *CLITransport {
	return &CLITransport{
		log:       log.With("component", "cli_transport"),
		options:   options,
		prompt:    prompt,
		streaming: streaming,
	}
}

// Connect locates the CLI, checks its version and spawns it.
//
// Returns CLINotFoundError if the binary cannot be located,
// IncompatibleVersionError if it is too old, or CLIConnectionError if the
// process fails to start.
func (t *CLITransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.proc != nil {
		return &errors.CLIConnectionError{Err: errors.ErrClientAlreadyConnected}
	}

	t.log.Info("Starting Claude CLI subprocess", "streaming", t.streaming)

	cliPath, err := t.resolveCLI(ctx)
	if err != nil {
		return err
	}

	cmd := cli.BuildCommand(
		cliPath,
		t.options.CommandLine(),
		t.options.Environment(),
		t.streaming,
		t.prompt,
	)
	t.log.Debug("Built command", "cli_path", cmd.Path, "args", cmd.Args)

	cwd := t.options.Cwd
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	factory := t.options.ProcessFactory
	if factory == nil {
		factory = process.DefaultFactory(t.log)
	}

	proc, err := factory(ctx, process.Spec{
		Command: cmd.Path,
		Args:    cmd.Args,
		Dir:     cwd,
		Env:     cmd.Env,
	})
	if err != nil {
		t.log.Error("Failed to start CLI process", "error", err)

		if _, ok := stderrors.AsType[*errors.CLIConnectionError](err); ok {
			return err
		}

		return &errors.CLIConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	t.proc = proc
	t.stderrDone = make(chan struct{})

	go t.drainStderr(proc.Stderr())

	if !t.streaming {
		if err := proc.CloseInput(); err != nil {
			t.log.Debug("Failed to close stdin after one-shot spawn", "error", err)
		}

		t.inputClosed = true
	}

	t.log.Info("Claude CLI subprocess started successfully", "pid", proc.Pid())

	return nil
}

// resolveCLI returns the binary to run. A custom process factory without an
// explicit path receives the bare command name and no local discovery runs.
func (t *CLITransport) resolveCLI(ctx context.Context) (string, error) {
	if t.options.ProcessFactory != nil && t.options.CliPath == "" {
		return defaultCLIName, nil
	}

	discoverer := cli.NewDiscoverer(&cli.Config{
		CliPath:          t.options.CliPath,
		SkipVersionCheck: t.options.VersionCheckSkipped(),
		Logger:           t.log,
	})

	cliPath, err := discoverer.Discover(ctx)
	if err != nil {
		return "", fmt.Errorf("discover CLI: %w", err)
	}

	return cliPath, nil
}

// drainStderr keeps the child from blocking on a full stderr pipe, buffers
// output for ProcessError and forwards lines to the Stderr callback.
func (t *CLITransport) drainStderr(r io.Reader) {
	defer close(t.stderrDone)

	reader := bufio.NewReader(r)

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			t.bufferStderr(line)
			t.forwardStderr(line)
		}

		if err != nil {
			if !stderrors.Is(err, io.EOF) {
				t.log.Debug("Stderr read error", "error", err)
			}

			return
		}
	}
}

func (t *CLITransport) bufferStderr(line string) {
	t.stderrMu.Lock()
	defer t.stderrMu.Unlock()

	if t.stderrBuf.Len() >= maxStderrBufferSize {
		return
	}

	if t.stderrBuf.Len() > 0 {
		t.stderrBuf.WriteString("\n")
	}

	t.stderrBuf.WriteString(line)
}

// forwardStderr invokes the Stderr callback. Panics are logged and dropped.
func (t *CLITransport) forwardStderr(line string) {
	if t.options.Stderr == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			t.log.Warn("Stderr callback panicked", "panic", r)
		}
	}()

	t.options.Stderr(line)
}

// StderrOutput returns buffered stderr with runtime source context removed.
func (t *CLITransport) StderrOutput() string {
	t.stderrMu.Lock()
	defer t.stderrMu.Unlock()

	return cleanStderr(t.stderrBuf.String())
}

// ReadMessages decodes stdout frames until the process closes stdout.
//
// Undecodable single lines are skipped by the frame reader. A frame that
// exceeds the buffer limit ends the stream with BufferOverflowError. A
// non-zero exit that was not caused by Close is reported as ProcessError.
// Both channels are closed when the goroutine exits.
func (t *CLITransport) ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 2)

	t.mu.Lock()
	proc := t.proc
	alreadyReading := t.reading
	t.reading = true
	t.mu.Unlock()

	if proc == nil || alreadyReading {
		err := error(&errors.CLIConnectionError{Err: errors.ErrTransportNotConnected})
		if alreadyReading {
			err = &errors.CLIConnectionError{Err: stderrors.New("messages are already being read")}
		}

		errs <- err

		close(messages)
		close(errs)

		return messages, errs
	}

	go func() {
		defer close(messages)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		reader := framing.NewReader(t.log, proc.Stdout(), t.options.EffectiveMaxBufferSize())
		messageCount := 0

		for msg, err := range reader.All() {
			if err != nil {
				t.log.Error("Frame reader failed", "error", err)

				errs <- err

				return
			}

			messageCount++

			select {
			case messages <- msg:
			case <-ctx.Done():
				t.log.Debug("Context cancelled during message send", "error", ctx.Err())

				errs <- ctx.Err()

				return
			}
		}

		t.log.Debug("CLI stdout closed", "message_count", messageCount)

		if err := t.waitExit(proc); err != nil {
			errs <- err
		}
	}()

	return messages, errs
}

// waitExit waits for the child and converts an unexpected failure into ProcessError.
func (t *CLITransport) waitExit(proc process.Handle) error {
	<-t.stderrDone

	waitErr := proc.Wait()

	t.mu.Lock()
	closing := t.closing
	t.mu.Unlock()

	if closing {
		t.log.Debug("CLI process terminated during shutdown")

		return nil
	}

	code, exited := proc.ExitStatus()
	if waitErr == nil && (!exited || code == 0) {
		t.log.Info("CLI process exited successfully")

		return nil
	}

	stderrOutput := t.StderrOutput()
	t.log.Error("CLI process exited with error", "exit_code", code, "stderr", stderrOutput)

	return &errors.ProcessError{ExitCode: code, Stderr: stderrOutput, Err: waitErr}
}

// SendMessage writes one JSON message to the CLI stdin.
//
// It is safe for concurrent use. If ctx is cancelled during a blocked write,
// stdin is closed to unblock it and later calls return ErrStdinClosed.
func (t *CLITransport) SendMessage(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	proc, closing, inputClosed := t.proc, t.closing, t.inputClosed
	t.mu.Unlock()

	if proc == nil || closing {
		return &errors.CLIConnectionError{Err: errors.ErrTransportNotConnected}
	}

	if inputClosed {
		return &errors.CLIConnectionError{Err: errors.ErrStdinClosed}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy so the caller's backing array is never mutated.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		framed := make([]byte, len(data)+1)
		copy(framed, data)
		framed[len(data)] = '\n'
		data = framed
	}

	done := make(chan error, 1)

	go func() {
		_, err := proc.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}

		t.log.Error("Failed to write message to CLI", "error", err)

		if _, ok := stderrors.AsType[*errors.CLIConnectionError](err); ok {
			return err
		}

		return &errors.CLIConnectionError{Err: fmt.Errorf("write to stdin: %w", err)}

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		t.closeInput(proc)

		select {
		case <-done:
		case <-time.After(time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// closeInput closes stdin once. It may run while a write is in flight.
func (t *CLITransport) closeInput(proc process.Handle) {
	t.mu.Lock()
	already := t.inputClosed
	t.inputClosed = true
	t.mu.Unlock()

	if already {
		return
	}

	if err := proc.CloseInput(); err != nil {
		t.log.Debug("Failed to close stdin", "error", err)
	}
}

// IsReady reports whether the process is running and stdin is open.
func (t *CLITransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.proc != nil && !t.closing && !t.inputClosed && t.proc.Running()
}

// IsConnected reports whether Connect succeeded and Close was not called.
func (t *CLITransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.proc != nil && !t.closing
}

// ExitStatus returns the child's exit code once it has exited.
func (t *CLITransport) ExitStatus() (int, bool) {
	t.mu.Lock()
	proc := t.proc
	t.mu.Unlock()

	if proc == nil {
		return 0, false
	}

	return proc.ExitStatus()
}

// EndInput closes stdin. The CLI finishes pending work and exits.
func (t *CLITransport) EndInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.proc == nil || t.inputClosed {
		return nil
	}

	t.log.Debug("Closing stdin pipe")

	t.inputClosed = true

	return t.proc.CloseInput()
}

// Close closes stdin and terminates the process, escalating to SIGKILL after
// the grace period. It is safe to call more than once.
func (t *CLITransport) Close() error {
	t.mu.Lock()

	if t.closing || t.proc == nil {
		t.closing = true
		t.mu.Unlock()

		return nil
	}

	t.closing = true
	proc := t.proc
	t.mu.Unlock()

	t.closeInput(proc)

	t.log.Debug("Terminating CLI process", "pid", proc.Pid())

	if err := proc.Terminate(t.options.EffectiveGracePeriod()); err != nil {
		return fmt.Errorf("terminate CLI process (pid %d): %w", proc.Pid(), err)
	}

	if code, ok := proc.ExitStatus(); ok {
		t.log.Debug("CLI process stopped", "exit_code", code)
	}

	return nil
}

// cleanStderr parses and cleans stderr output from the CLI.
// Bun includes minified source context in error output which is not useful.
func cleanStderr(stderr string) string {
	if stderr == "" {
		return ""
	}

	var cleaned strings.Builder

	for line := range strings.SplitSeq(stderr, "\n") {
		if isSourceContextLine(strings.TrimSpace(line)) {
			continue
		}

		if cleaned.Len() > 0 {
			cleaned.WriteString("\n")
		}

		cleaned.WriteString(line)
	}

	return strings.TrimSpace(cleaned.String())
}

// isSourceContextLine reports whether line has Bun's "1234 | <code>" shape.
func isSourceContextLine(line string) bool {
	pipeIdx := strings.Index(line, "|")
	if pipeIdx < 1 {
		return false
	}

	prefix := strings.TrimSpace(line[:pipeIdx])
	if prefix == "" {
		return false
	}

	for _, ch := range prefix {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	return true
}
