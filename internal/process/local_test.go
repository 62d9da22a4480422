package process

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/claudewire/internal/errors"
)

func spawnShell(t *testing.T, script string) *Local {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	p, err := Spawn(context.Background(), slog.New(slog.DiscardHandler), Spec{
		Command: sh,
		Args:    []string{"-c", script},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Kill() })

	return p
}

func TestLocal_EchoRoundTrip(t *testing.T) {
	p := spawnShell(t, "read line; echo \"got:$line\"")

	_, err := p.Write([]byte("hello\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(p.Stdout()).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "got:hello\n", line)

	require.NoError(t, p.Wait())

	code, exited := p.ExitStatus()
	require.True(t, exited)
	require.Equal(t, 0, code)
	require.False(t, p.Running())
}

func TestLocal_StdoutDrainsAfterExit(t *testing.T) {
	p := spawnShell(t, "echo one; echo two")

	require.NoError(t, p.Wait())

	data, err := io.ReadAll(p.Stdout())
	require.NoError(t, err)
	require.Equal(t, "one\ntwo\n", string(data))
}

func TestLocal_StderrIsSeparate(t *testing.T) {
	p := spawnShell(t, "echo oops >&2; exit 3")

	data, err := io.ReadAll(p.Stderr())
	require.NoError(t, err)
	require.Equal(t, "oops\n", string(data))

	err = p.Wait()

	var exitErr *exec.ExitError

	require.True(t, stderrors.As(err, &exitErr))

	code, exited := p.ExitStatus()
	require.True(t, exited)
	require.Equal(t, 3, code)
}

func TestLocal_WriteAfterExitIsConnectionError(t *testing.T) {
	p := spawnShell(t, "exit 0")

	require.NoError(t, p.Wait())

	_, err := p.Write([]byte("late\n"))
	require.Error(t, err)

	_, ok := stderrors.AsType[*errors.CLIConnectionError](err)
	require.True(t, ok)
}

func TestLocal_WriteAfterCloseInput(t *testing.T) {
	p := spawnShell(t, "cat >/dev/null")

	require.NoError(t, p.CloseInput())
	require.NoError(t, p.CloseInput())

	_, err := p.Write([]byte("x\n"))
	require.ErrorIs(t, err, errors.ErrStdinClosed)

	require.NoError(t, p.Wait())
}

func TestLocal_CloseInputUnblocksStuckWrite(t *testing.T) {
	p := spawnShell(t, "sleep 30")

	// Far larger than a pipe buffer; the child never reads.
	payload := make([]byte, 4<<20)
	done := make(chan error, 1)

	go func() {
		_, err := p.Write(payload)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)

	closed := make(chan error, 1)

	go func() { closed <- p.CloseInput() }()

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("CloseInput blocked behind a pending write")
	}

	select {
	case err := <-done:
		require.ErrorIs(t, err, errors.ErrStdinClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("Write did not return after CloseInput")
	}
}

func openFDs(t *testing.T) int {
	t.Helper()

	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("/proc/self/fd not available")
	}

	return len(entries)
}

func TestLocal_ReleasesOutputPipesAtEOF(t *testing.T) {
	run := func() {
		p := spawnShell(t, "echo out; echo err >&2")

		_, err := io.ReadAll(p.Stdout())
		require.NoError(t, err)

		_, err = io.ReadAll(p.Stderr())
		require.NoError(t, err)

		require.NoError(t, p.Wait())
		require.NoError(t, p.CloseInput())

		data, err := io.ReadAll(p.Stdout())
		require.NoError(t, err)
		require.Empty(t, data)
	}

	run()

	before := openFDs(t)

	for range 25 {
		run()
	}

	require.LessOrEqual(t, openFDs(t), before+2, "output pipes leaked")
}

func TestLocal_TerminateGraceful(t *testing.T) {
	p := spawnShell(t, "sleep 30")

	require.True(t, p.Running())
	require.NoError(t, p.Terminate(5*time.Second))
	require.False(t, p.Running())

	code, exited := p.ExitStatus()
	require.True(t, exited)
	require.Equal(t, -1, code)
}

func TestLocal_TerminateEscalatesToKill(t *testing.T) {
	p := spawnShell(t, "trap '' TERM; echo ready; while true; do sleep 1; done")

	_, err := bufio.NewReader(p.Stdout()).ReadString('\n')
	require.NoError(t, err)

	start := time.Now()

	require.NoError(t, p.Terminate(100*time.Millisecond))
	require.False(t, p.Running())
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestLocal_KillIsIdempotent(t *testing.T) {
	p := spawnShell(t, "sleep 30")

	require.NoError(t, p.Kill())
	require.NoError(t, p.Kill())
	require.Positive(t, p.Pid())
}

func TestDefaultFactory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	factory := DefaultFactory(slog.New(slog.DiscardHandler))

	h, err := factory(context.Background(), Spec{Command: "sh", Args: []string{"-c", "exit 0"}})
	require.NoError(t, err)
	require.NoError(t, h.Wait())
}

func TestSpawn_MissingBinary(t *testing.T) {
	_, err := Spawn(context.Background(), slog.New(slog.DiscardHandler), Spec{
		Command: "/nonexistent/claude-binary",
	})

	_, ok := stderrors.AsType[*errors.CLIConnectionError](err)
	require.True(t, ok)
}

func TestSpawn_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Spawn(ctx, slog.New(slog.DiscardHandler), Spec{Command: "sh"})
	require.ErrorIs(t, err, context.Canceled)
}
