package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huskycat/internal/result"
)

type fakeRunner struct {
	lastPath   string
	lastStaged bool
	lastTool   string
	block      chan struct{}
}

func (f *fakeRunner) run(runID string) *result.Run {
	agg := result.NewAggregator(runID, "agent-rpc", nil, nil)
	_ = agg.Add(result.Result{Tool: "ruff", Target: "a.py", Status: result.StatusSuccess})
	return agg.Finalize()
}

func (f *fakeRunner) Validate(ctx context.Context, path string, staged, fix bool) (*result.Run, error) {
	f.lastPath = path
	f.lastStaged = staged
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.run("run-rpc"), nil
}

func (f *fakeRunner) ValidateTool(ctx context.Context, tool, path string, fix bool) (*result.Run, error) {
	f.lastTool = tool
	f.lastPath = path
	return f.run("run-tool"), nil
}

func (f *fakeRunner) ToolNames() []string {
	return []string{"black", "ruff"}
}

func serve(t *testing.T, runner Runner, requests ...string) []Response {
	t.Helper()
	server := NewServer(runner, "1.2.3", nil)

	var out bytes.Buffer
	input := strings.Join(requests, "\n") + "\n"
	require.NoError(t, server.Serve(context.Background(), strings.NewReader(input), &out))

	var responses []Response
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func TestServeInitialize(t *testing.T) {
	responses := serve(t, &fakeRunner{},
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)

	payload := responses[0].Result.(map[string]any)
	assert.Equal(t, ProtocolVersion, payload["protocolVersion"])
	info := payload["serverInfo"].(map[string]any)
	assert.Equal(t, "huskycat", info["name"])
	assert.Equal(t, "1.2.3", info["version"])
}

func TestServeToolsListDerivesFromRegistry(t *testing.T) {
	responses := serve(t, &fakeRunner{},
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)

	payload := responses[0].Result.(map[string]any)
	tools := payload["tools"].([]any)

	var names []string
	for _, raw := range tools {
		entry := raw.(map[string]any)
		names = append(names, entry["name"].(string))
		schema := entry["inputSchema"].(map[string]any)
		props := schema["properties"].(map[string]any)
		assert.Contains(t, props, "path")
		assert.Contains(t, props, "fix")
	}
	assert.Equal(t, []string{"validate", "validate_staged", "validate_black", "validate_ruff"}, names)
}

func TestServeToolsCallValidate(t *testing.T) {
	runner := &fakeRunner{}
	responses := serve(t, runner,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"validate","arguments":{"path":"src/"}}}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)
	assert.Equal(t, "src/", runner.lastPath)
	assert.False(t, runner.lastStaged)

	payload := responses[0].Result.(map[string]any)
	content := payload["content"].([]any)
	require.Len(t, content, 1)
	block := content[0].(map[string]any)
	assert.Equal(t, "text", block["type"])

	run, err := result.ParseRun([]byte(block["text"].(string)))
	require.NoError(t, err)
	assert.Equal(t, "run-rpc", run.ID)
	assert.Equal(t, false, payload["isError"])
}

func TestServeToolsCallSingleTool(t *testing.T) {
	runner := &fakeRunner{}
	responses := serve(t, runner,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"validate_ruff","arguments":{"path":"a.py"}}}`)
	require.Len(t, responses, 1)
	require.Nil(t, responses[0].Error)
	assert.Equal(t, "ruff", runner.lastTool)
	assert.Equal(t, "a.py", runner.lastPath)
}

func TestAsyncLifecycle(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	server := NewServer(runner, "1.2.3", nil)
	ctx := context.Background()

	resp := server.handle(ctx, &Request{
		JSONRPC: JSONRPCVersion, ID: 5, Method: "validate_async",
		Params: map[string]any{"path": "src/"},
	})
	require.Nil(t, resp.Error)
	taskID := resp.Result.(map[string]any)["taskId"].(string)
	require.NotEmpty(t, taskID)

	close(runner.block)

	deadline := time.After(2 * time.Second)
	for {
		status := server.handle(ctx, &Request{
			JSONRPC: JSONRPCVersion, ID: 6, Method: "get_task_status",
			Params: map[string]any{"taskId": taskID},
		})
		require.Nil(t, status.Error)
		payload := status.Result.(map[string]any)
		if payload["state"] == string(TaskFinished) {
			wrapped := payload["result"].(map[string]any)
			content := wrapped["content"].([]map[string]any)
			require.Len(t, content, 1)
			run, err := result.ParseRun([]byte(content[0]["text"].(string)))
			require.NoError(t, err)
			assert.Equal(t, "run-rpc", run.ID)
			return
		}
		select {
		case <-deadline:
			t.Fatalf("task never finished, last state %v", payload["state"])
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServeCancelAsync(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	server := NewServer(runner, "1.2.3", nil)

	taskID := server.tasks.Launch(context.Background(), func(ctx context.Context) (*result.Run, error) {
		return runner.Validate(ctx, "src/", false, false)
	})

	resp := server.handle(context.Background(), &Request{
		JSONRPC: JSONRPCVersion, ID: 7, Method: "cancel_async_task",
		Params: map[string]any{"taskId": taskID},
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, true, resp.Result.(map[string]any)["cancelled"])

	status := server.handle(context.Background(), &Request{
		JSONRPC: JSONRPCVersion, ID: 8, Method: "get_task_status",
		Params: map[string]any{"taskId": taskID},
	})
	assert.Equal(t, string(TaskCancelled), status.Result.(map[string]any)["state"])
}

func TestServeProtocolErrors(t *testing.T) {
	responses := serve(t, &fakeRunner{},
		`this is not json`,
		`{"jsonrpc":"1.0","id":9,"method":"initialize"}`,
		`{"jsonrpc":"2.0","id":10,"method":"no_such_method"}`,
		`{"jsonrpc":"2.0","id":11,"method":"get_task_status","params":{"taskId":"ghost"}}`,
		`{"jsonrpc":"2.0","id":12,"method":"initialize"}`)
	require.Len(t, responses, 5)

	require.NotNil(t, responses[0].Error)
	assert.Equal(t, ParseError, responses[0].Error.Code)
	require.NotNil(t, responses[1].Error)
	assert.Equal(t, InvalidRequest, responses[1].Error.Code)
	require.NotNil(t, responses[2].Error)
	assert.Equal(t, MethodNotFound, responses[2].Error.Code)
	require.NotNil(t, responses[3].Error)
	assert.Equal(t, InvalidParams, responses[3].Error.Code)
	// The dispatcher keeps serving after every error.
	assert.Nil(t, responses[4].Error)
}

func TestServeSkipsNotifications(t *testing.T) {
	responses := serve(t, &fakeRunner{},
		`{"jsonrpc":"2.0","method":"initialized"}`,
		`{"jsonrpc":"2.0","id":13,"method":"initialize"}`)
	require.Len(t, responses, 1)
	assert.Nil(t, responses[0].Error)
}
