package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/claudewire/internal/config"
	"github.com/wagiedev/claudewire/internal/errors"
	"github.com/wagiedev/claudewire/internal/process"
	"github.com/wagiedev/claudewire/internal/process/processtest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func connectFake(t *testing.T, streaming bool, opts *config.Options) (*CLITransport, *processtest.Fake) {
	t.Helper()

	fake := processtest.New(nil)
	t.Cleanup(func() { fake.Exit(0) })

	opts.ProcessFactory = fake.Factory()

	var tr *CLITransport
	if streaming {
		tr = NewStreamingTransport(discardLogger(), opts)
	} else {
		tr = NewCLITransport(discardLogger(), "what is 2+2?", opts)
	}

	require.NoError(t, tr.Connect(context.Background()))

	return tr, fake
}

func TestConnect_StreamingSpec(t *testing.T) {
	tr, fake := connectFake(t, true, &config.Options{Cwd: "/work", Model: "claude-sonnet-4-5"})

	spec := fake.Spec()
	require.Equal(t, "claude", spec.Command)
	require.Equal(t, "/work", spec.Dir)
	require.Contains(t, spec.Args, "--input-format")
	require.Contains(t, spec.Args, "claude-sonnet-4-5")
	require.NotContains(t, spec.Args, "--print")
	require.Contains(t, spec.Env, "CLAUDE_CODE_ENTRYPOINT=sdk-go")

	require.False(t, fake.InputClosed())
	require.True(t, tr.IsReady())
	require.True(t, tr.IsConnected())
}

func TestConnect_OneShotClosesInput(t *testing.T) {
	tr, fake := connectFake(t, false, &config.Options{})

	spec := fake.Spec()
	n := len(spec.Args)
	require.Equal(t, []string{"--print", "--", "what is 2+2?"}, spec.Args[n-3:])
	require.True(t, fake.InputClosed())
	require.False(t, tr.IsReady())

	err := tr.SendMessage(context.Background(), []byte(`{"type":"user"}`))
	require.ErrorIs(t, err, errors.ErrStdinClosed)
}

func TestConnect_Twice(t *testing.T) {
	tr, _ := connectFake(t, true, &config.Options{})

	err := tr.Connect(context.Background())
	require.ErrorIs(t, err, errors.ErrClientAlreadyConnected)
}

func TestConnect_FactoryError(t *testing.T) {
	opts := &config.Options{
		ProcessFactory: func(context.Context, process.Spec) (process.Handle, error) {
			return nil, fmt.Errorf("no container runtime")
		},
	}

	err := NewStreamingTransport(discardLogger(), opts).Connect(context.Background())

	_, ok := stderrors.AsType[*errors.CLIConnectionError](err)
	require.True(t, ok)
	require.ErrorContains(t, err, "no container runtime")
}

func TestConnect_CLINotFound(t *testing.T) {
	opts := &config.Options{CliPath: "/nonexistent/claude", SkipVersionCheck: true}

	err := NewStreamingTransport(discardLogger(), opts).Connect(context.Background())

	_, ok := stderrors.AsType[*errors.CLINotFoundError](err)
	require.True(t, ok)
}

func TestSendMessage_NotConnected(t *testing.T) {
	tr := NewStreamingTransport(discardLogger(), &config.Options{})

	err := tr.SendMessage(context.Background(), []byte(`{}`))

	_, ok := stderrors.AsType[*errors.CLIConnectionError](err)
	require.True(t, ok)
	require.ErrorIs(t, err, errors.ErrTransportNotConnected)
}

func TestSendMessage_FramesAndPreservesCallerSlice(t *testing.T) {
	tr, fake := connectFake(t, true, &config.Options{})

	backing := make([]byte, 0, 64)
	backing = append(backing, `{"type":"user","n":1}`...)
	spare := backing[:cap(backing)]
	spare[len(backing)] = 'X'

	require.NoError(t, tr.SendMessage(context.Background(), backing))
	require.Equal(t, byte('X'), spare[len(backing)])

	written := fake.WaitWritten(1, time.Second)
	require.Len(t, written, 1)
	require.Equal(t, "user", written[0]["type"])
}

func TestSendMessage_ConcurrentWritesAreSerialized(t *testing.T) {
	tr, fake := connectFake(t, true, &config.Options{})

	const writers = 20

	var wg sync.WaitGroup

	for i := range writers {
		wg.Go(func() {
			msg := fmt.Sprintf(`{"type":"user","n":%d,"pad":"%0200d"}`, i, i)
			require.NoError(t, tr.SendMessage(context.Background(), []byte(msg)))
		})
	}

	wg.Wait()

	require.Len(t, fake.WaitWritten(writers, time.Second), writers)
}

func TestSendMessage_CancelledContext(t *testing.T) {
	tr, _ := connectFake(t, true, &config.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, tr.SendMessage(ctx, []byte(`{}`)), context.Canceled)
}

func TestSendMessage_CancelUnblocksStuckWriteAndClose(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sleep")
	}

	opts := &config.Options{
		TerminateGracePeriod: 100 * time.Millisecond,
		// A child that never reads stdin.
		ProcessFactory: func(ctx context.Context, _ process.Spec) (process.Handle, error) {
			return process.DefaultFactory(discardLogger())(ctx, process.Spec{Command: "sleep", Args: []string{"30"}})
		},
	}

	tr := NewStreamingTransport(discardLogger(), opts)
	require.NoError(t, tr.Connect(context.Background()))

	t.Cleanup(func() { _ = tr.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tr.SendMessage(ctx, make([]byte, 4<<20))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 3*time.Second)
	require.False(t, tr.IsReady())

	closed := make(chan error, 1)

	go func() { closed <- tr.Close() }()

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked after a cancelled write")
	}
}

func TestClose_DuringBlockedWrite(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sleep")
	}

	opts := &config.Options{
		TerminateGracePeriod: 100 * time.Millisecond,
		ProcessFactory: func(ctx context.Context, _ process.Spec) (process.Handle, error) {
			return process.DefaultFactory(discardLogger())(ctx, process.Spec{Command: "sleep", Args: []string{"30"}})
		},
	}

	tr := NewStreamingTransport(discardLogger(), opts)
	require.NoError(t, tr.Connect(context.Background()))

	sent := make(chan error, 1)

	go func() { sent <- tr.SendMessage(context.Background(), make([]byte, 4<<20)) }()

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, tr.Close())

	select {
	case err := <-sent:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("SendMessage did not return after Close")
	}
}

func TestReadMessages_DecodesSplitFrames(t *testing.T) {
	tr, fake := connectFake(t, true, &config.Options{})

	messages, errs := tr.ReadMessages(context.Background())

	go func() {
		_ = fake.EmitRaw(`{"type":"r`)
		_ = fake.EmitRaw("esult\",\"x\":1}\n")
		_ = fake.Emit(map[string]any{"type": "assistant"})
		fake.Exit(0)
	}()

	var got []map[string]any
	for msg := range messages {
		got = append(got, msg)
	}

	require.Equal(t, []map[string]any{
		{"type": "result", "x": float64(1)},
		{"type": "assistant"},
	}, got)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestReadMessages_ProcessError(t *testing.T) {
	tr, fake := connectFake(t, true, &config.Options{})

	messages, errs := tr.ReadMessages(context.Background())

	go func() {
		_ = fake.EmitStderr("fatal: bad credentials")
		_ = fake.EmitStderr("  12 | minified()")
		fake.Exit(2)
	}()

	for range messages {
	}

	var procErr *errors.ProcessError

	for err := range errs {
		if pe, ok := stderrors.AsType[*errors.ProcessError](err); ok {
			procErr = pe
		}
	}

	require.NotNil(t, procErr)
	require.Equal(t, 2, procErr.ExitCode)
	require.Equal(t, "fatal: bad credentials", procErr.Stderr)

	code, exited := tr.ExitStatus()
	require.True(t, exited)
	require.Equal(t, 2, code)
}

func TestReadMessages_BufferOverflow(t *testing.T) {
	tr, fake := connectFake(t, true, &config.Options{MaxBufferSize: 64})

	messages, errs := tr.ReadMessages(context.Background())

	go func() {
		for range 10 {
			if fake.EmitRaw(`{"unterminated": "`+fmt.Sprintf("%040d", 0)+"\n") != nil {
				return
			}
		}
	}()

	for range messages {
	}

	var overflow bool

	for err := range errs {
		if _, ok := stderrors.AsType[*errors.BufferOverflowError](err); ok {
			overflow = true
		}
	}

	require.True(t, overflow)
}

func TestReadMessages_OnlyOnce(t *testing.T) {
	tr, _ := connectFake(t, true, &config.Options{})

	_, _ = tr.ReadMessages(context.Background())
	messages, errs := tr.ReadMessages(context.Background())

	_, open := <-messages
	require.False(t, open)

	err := <-errs
	require.Error(t, err)
}

func TestStderrCallback_PanicIsRecovered(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)

	opts := &config.Options{
		Stderr: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()

			if line == "panic" {
				panic("callback exploded")
			}
		},
	}

	tr, fake := connectFake(t, true, opts)

	require.NoError(t, fake.EmitStderr("panic"))
	require.NoError(t, fake.EmitStderr("after"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return slices.Equal(lines, []string{"panic", "after"})
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return tr.StderrOutput() == "panic\nafter"
	}, time.Second, 5*time.Millisecond)
}

func TestClose_TerminatesAndIsIdempotent(t *testing.T) {
	tr, fake := connectFake(t, true, &config.Options{})

	messages, errs := tr.ReadMessages(context.Background())

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	for range messages {
	}

	for err := range errs {
		require.NoError(t, err, "shutdown exit must not surface as ProcessError")
	}

	require.True(t, fake.Terminated())
	require.True(t, fake.InputClosed())
	require.False(t, tr.IsConnected())
	require.False(t, tr.IsReady())

	err := tr.SendMessage(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, errors.ErrTransportNotConnected)
}

func TestClose_BeforeConnect(t *testing.T) {
	require.NoError(t, NewStreamingTransport(discardLogger(), &config.Options{}).Close())
}

func TestEndInput(t *testing.T) {
	tr, fake := connectFake(t, true, &config.Options{})

	require.NoError(t, tr.EndInput())
	require.NoError(t, tr.EndInput())
	require.True(t, fake.InputClosed())
	require.ErrorIs(t, tr.SendMessage(context.Background(), []byte(`{}`)), errors.ErrStdinClosed)
}

func TestLocalProcessRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	script := filepath.Join(t.TempDir(), "claude")
	require.NoError(t, os.WriteFile(script, []byte(
		"#!/bin/sh\necho 'starting' >&2\nwhile IFS= read -r line; do echo \"$line\"; done\n",
	), 0o755))

	tr := NewStreamingTransport(discardLogger(), &config.Options{
		CliPath:              script,
		SkipVersionCheck:     true,
		TerminateGracePeriod: time.Second,
	})
	require.NoError(t, tr.Connect(context.Background()))

	messages, errs := tr.ReadMessages(context.Background())

	require.NoError(t, tr.SendMessage(context.Background(), []byte(`{"type":"user","text":"ping"}`)))

	select {
	case msg := <-messages:
		require.Equal(t, "ping", msg["text"])
	case <-time.After(5 * time.Second):
		t.Fatal("no echo from child")
	}

	require.NoError(t, tr.EndInput())

	for range messages {
	}

	for err := range errs {
		require.NoError(t, err)
	}

	code, exited := tr.ExitStatus()
	require.True(t, exited)
	require.Equal(t, 0, code)
	require.Equal(t, "starting", tr.StderrOutput())
	require.NoError(t, tr.Close())
}

func TestCleanStderr(t *testing.T) {
	input := "error: boom\n  1234 | var x=minified;\n    at main (cli.js:1:2)\n"

	require.Equal(t, "error: boom\n    at main (cli.js:1:2)", cleanStderr(input))
	require.Empty(t, cleanStderr(""))
	require.False(t, isSourceContextLine("a | b"))
	require.True(t, isSourceContextLine("12 | code"))
}
