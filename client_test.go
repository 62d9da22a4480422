package claudewire

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/claudewire/internal/process/processtest"
)

func echoTurn(f *processtest.Fake, msg map[string]any) {
	if msg["type"] != "user" {
		return
	}

	_ = f.Emit(map[string]any{
		"type": "assistant",
		"message": map[string]any{
			"content": []any{map[string]any{"type": "text", "text": "4"}},
			"model":   "claude-sonnet-4-5",
		},
	})
	_ = f.Emit(map[string]any{
		"type":        "result",
		"subtype":     "success",
		"duration_ms": 5.0,
		"num_turns":   1.0,
		"session_id":  "default",
	})
}

func newFake(t *testing.T, responder processtest.Responder) *processtest.Fake {
	t.Helper()

	fake := processtest.New(processtest.AutoInitialize(map[string]any{}, responder))
	t.Cleanup(func() { fake.Exit(0) })

	return fake
}

func testOptions(fake *processtest.Fake, opts ...Option) []Option {
	return append([]Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithProcessFactory(fake.Factory()),
	}, opts...)
}

// controlResponse waits for the control_response answering requestID.
func controlResponse(t *testing.T, fake *processtest.Fake, requestID string) map[string]any {
	t.Helper()

	var found map[string]any

	require.Eventually(t, func() bool {
		for _, msg := range fake.Written() {
			if msg["type"] != "control_response" {
				continue
			}

			body, _ := msg["response"].(map[string]any)
			if body["request_id"] == requestID {
				found = body

				return true
			}
		}

		return false
	}, 5*time.Second, 5*time.Millisecond)

	return found
}

func TestQuery_YieldsUntilResult(t *testing.T) {
	fake := newFake(t, echoTurn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []Message

	for msg, err := range Query(ctx, "what is 2+2?", testOptions(fake)...) {
		require.NoError(t, err)

		got = append(got, msg)
	}

	require.Len(t, got, 2)

	assistant, ok := got[0].(*AssistantMessage)
	require.True(t, ok)
	require.Len(t, assistant.Content, 1)
	assert.Equal(t, "4", assistant.Content[0].(*TextBlock).Text)
	assert.IsType(t, &ResultMessage{}, got[1])
	assert.True(t, fake.Terminated() || fake.InputClosed())
}

func TestQuery_StartErrorYieldedInline(t *testing.T) {
	sig := NewAbortSignal()
	sig.Abort("not today")

	fake := newFake(t, nil)

	var errs []error

	for msg, err := range Query(context.Background(), "hi", testOptions(fake, WithAbortSignal(sig))...) {
		assert.Nil(t, msg)

		errs = append(errs, err)
	}

	require.Len(t, errs, 1)

	abortErr, ok := stderrors.AsType[*AbortError](errs[0])
	require.True(t, ok)
	assert.Equal(t, "not today", abortErr.Reason)
}

func TestWithClient_PermissionCallback(t *testing.T) {
	fake := newFake(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var seen string

	canUseTool := func(_ context.Context, toolName string, _ map[string]any, _ *ToolPermissionContext) (PermissionResult, error) {
		seen = toolName

		return &PermissionResultDeny{Message: "no shell"}, nil
	}

	err := WithClient(ctx, func(_ Client) error {
		if err := fake.Emit(map[string]any{
			"type":       "control_request",
			"request_id": "req-perm",
			"request": map[string]any{
				"subtype":   "can_use_tool",
				"tool_name": "Bash",
				"input":     map[string]any{"command": "rm -rf /"},
			},
		}); err != nil {
			return err
		}

		body := controlResponse(t, fake, "req-perm")
		assert.Equal(t, "success", body["subtype"])

		payload, _ := body["response"].(map[string]any)
		assert.Equal(t, "deny", payload["behavior"])
		assert.Equal(t, "no shell", payload["message"])

		return nil
	}, testOptions(fake, WithCanUseTool(canUseTool))...)
	require.NoError(t, err)

	assert.Equal(t, "Bash", seen)
	assert.Contains(t, fake.Spec().Args, "--permission-prompt-tool")
}

func TestClient_SDKToolServedOverControlProtocol(t *testing.T) {
	fake := newFake(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	double := ToolSpec{
		Name:        "double",
		Description: "Doubles n",
		Schema:      SimpleSchema(map[string]string{"n": "float64"}),
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"n": args["n"].(float64) * 2}, nil
		},
	}

	client := NewClient()
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Start(ctx, testOptions(fake, WithToolServer("sdk", double))...))

	// In-process servers require the initialize handshake.
	require.NotNil(t, client.ServerInfo())

	require.NoError(t, fake.Emit(map[string]any{
		"type":       "control_request",
		"request_id": "req-mcp",
		"request": map[string]any{
			"subtype":     "mcp_message",
			"server_name": "sdk",
			"message": map[string]any{
				"jsonrpc": "2.0",
				"id":      7,
				"method":  "tools/call",
				"params":  map[string]any{"name": "double", "arguments": map[string]any{"n": 21}},
			},
		},
	}))

	body := controlResponse(t, fake, "req-mcp")
	payload, _ := body["response"].(map[string]any)
	rpc, _ := payload["mcp_response"].(map[string]any)
	require.NotNil(t, rpc)
	assert.EqualValues(t, 7, rpc["id"])

	result, _ := rpc["result"].(map[string]any)
	content, _ := result["content"].([]any)
	require.Len(t, content, 1)
	assert.JSONEq(t, `{"n":42}`, content[0].(map[string]any)["text"].(string))
}

func TestWithClient_ErrorPrecedence(t *testing.T) {
	t.Run("start failure closes and wraps", func(t *testing.T) {
		sig := NewAbortSignal()
		sig.Abort("stopped early")

		called := false

		err := WithClient(context.Background(), func(Client) error {
			called = true

			return nil
		}, testOptions(newFake(t, nil), WithAbortSignal(sig))...)

		require.ErrorContains(t, err, "start client")
		require.ErrorIs(t, err, ErrAborted)
		assert.False(t, called)
	})

	t.Run("callback error wins", func(t *testing.T) {
		fake := newFake(t, nil)
		boom := stderrors.New("boom")

		err := WithClient(context.Background(), func(Client) error { return boom }, testOptions(fake)...)

		require.ErrorIs(t, err, boom)
		require.Eventually(t, func() bool { return fake.InputClosed() || fake.Terminated() },
			5*time.Second, 5*time.Millisecond)
	})
}

func TestClient_AbortUnblocksStreamInput(t *testing.T) {
	fake := newFake(t, nil)
	sig := NewAbortSignal()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewClient()
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Start(ctx, testOptions(fake, WithAbortSignal(sig))...))

	prompts := make(chan string)
	done := make(chan error, 1)

	go func() {
		done <- client.StreamInput(ctx, MessagesFromChannel(prompts), "")
	}()

	prompts <- "first"

	fake.WaitWritten(1, 5*time.Second)
	sig.Abort("user cancelled")

	prompts <- "second"

	close(prompts)

	select {
	case err := <-done:
		abortErr, ok := stderrors.AsType[*AbortError](err)
		require.True(t, ok)
		assert.Equal(t, "user cancelled", abortErr.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("StreamInput did not return after abort")
	}

	require.Eventually(t, fake.Terminated, 5*time.Second, 5*time.Millisecond)

	_, err := client.SupportedModels(ctx)
	require.Error(t, err)
}

func TestErrors_ReExportedSentinels(t *testing.T) {
	client := NewClient()

	err := client.Query(context.Background(), "hi")
	require.ErrorIs(t, err, ErrClientNotConnected)

	_, err = client.MCPStatus(context.Background())
	require.ErrorIs(t, err, ErrClientNotConnected)

	require.NoError(t, client.Close())
}

func TestOptions_AppliedInOrder(t *testing.T) {
	options := applyOptions([]Option{
		WithModel("a"),
		WithModel("b"),
		WithMCPServer("one", &MCPStdioServerConfig{Command: "one"}),
		WithMCPServer("two", &MCPStdioServerConfig{Command: "two"}),
		WithInitializeTimeout(3 * time.Second),
	})

	assert.Equal(t, "b", options.Model)
	assert.Len(t, options.MCPServers, 2)
	require.NotNil(t, options.InitializeTimeout)
	assert.Equal(t, 3*time.Second, *options.InitializeTimeout)
}
