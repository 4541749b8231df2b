package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"huskycat/internal/logging"
	"huskycat/internal/result"
)

// Runner is the validation entry point the dispatcher maps tool calls onto.
// It stays an interface so the server package never depends on engine wiring.
type Runner interface {
	// Validate runs the full selected tool set over path.
	Validate(ctx context.Context, path string, staged, fix bool) (*result.Run, error)
	// ValidateTool runs a single registered tool over path.
	ValidateTool(ctx context.Context, tool, path string, fix bool) (*result.Run, error)
	// ToolNames lists registered tools for tools/list derivation.
	ToolNames() []string
}

// Server is the stateless agent dispatcher: line-delimited JSON-RPC 2.0 over
// standard streams. It initiates nothing and only responds to requests.
type Server struct {
	runner  Runner
	tasks   *TaskTable
	version string
	logger  logging.Logger
}

// NewServer builds a dispatcher over the given runner.
func NewServer(runner Runner, version string, logger logging.Logger) *Server {
	logger = logging.OrNop(logger)
	return &Server{
		runner:  runner,
		tasks:   NewTaskTable(logger),
		version: version,
		logger:  logger,
	}
}

// Serve reads one JSON-RPC message per line until EOF. Malformed messages
// get a protocol error response; the dispatcher never terminates on them.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 2*1024*1024)
	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		req, err := UnmarshalRequest(line)
		if err != nil {
			rpcErr, ok := err.(*RPCError)
			if !ok {
				rpcErr = &RPCError{Code: ParseError, Message: err.Error()}
			}
			if encodeErr := encoder.Encode(NewErrorResponse(nil, rpcErr.Code, rpcErr.Message, rpcErr.Data)); encodeErr != nil {
				return encodeErr
			}
			continue
		}
		if req.IsNotification() {
			continue
		}
		resp := s.handle(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req *Request) *Response {
	s.logger.Debug("rpc request: %s", req.Method)
	switch req.Method {
	case "initialize":
		return NewResponse(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"serverInfo": map[string]any{
				"name":    "huskycat",
				"version": s.version,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
			},
		})
	case "tools/list":
		return NewResponse(req.ID, map[string]any{"tools": s.toolList()})
	case "tools/call":
		return s.handleToolCall(ctx, req)
	case "validate_async":
		return s.handleValidateAsync(ctx, req)
	case "get_task_status":
		return s.handleTaskStatus(req)
	case "cancel_async_task":
		return s.handleCancel(req)
	default:
		return NewErrorResponse(req.ID, MethodNotFound, fmt.Sprintf("unknown method: %s", req.Method), nil)
	}
}

// toolList derives the surfaced tools deterministically from the registry:
// validate, validate_staged, then validate_<name> per registered tool.
func (s *Server) toolList() []map[string]any {
	tools := []map[string]any{
		toolEntry("validate", "Validate a path with every applicable tool."),
		toolEntry("validate_staged", "Validate files staged for the next commit."),
	}
	for _, name := range s.runner.ToolNames() {
		tools = append(tools, toolEntry(
			"validate_"+name,
			fmt.Sprintf("Validate a path with %s only.", name),
		))
	}
	return tools
}

func toolEntry(name, description string) map[string]any {
	return map[string]any{
		"name":        name,
		"description": description,
		"inputSchema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string"},
				"fix":  map[string]any{"type": "boolean"},
			},
			"required": []string{"path"},
		},
	}
}

func (s *Server) handleToolCall(ctx context.Context, req *Request) *Response {
	name, _ := req.Params["name"].(string)
	args, _ := req.Params["arguments"].(map[string]any)
	path := stringArg(args, "path")
	fix := boolArg(args, "fix")

	var (
		run *result.Run
		err error
	)
	switch {
	case name == "validate":
		run, err = s.runner.Validate(ctx, path, false, fix)
	case name == "validate_staged":
		run, err = s.runner.Validate(ctx, path, true, fix)
	case strings.HasPrefix(name, "validate_"):
		run, err = s.runner.ValidateTool(ctx, strings.TrimPrefix(name, "validate_"), path, fix)
	default:
		return NewErrorResponse(req.ID, InvalidParams, fmt.Sprintf("unsupported tool: %s", name), nil)
	}
	if err != nil {
		return NewErrorResponse(req.ID, InternalError, err.Error(), nil)
	}
	return NewResponse(req.ID, runContent(run))
}

func (s *Server) handleValidateAsync(ctx context.Context, req *Request) *Response {
	path := stringArg(req.Params, "path")
	fix := boolArg(req.Params, "fix")
	if path == "" {
		return NewErrorResponse(req.ID, InvalidParams, "path is required", nil)
	}
	taskID := s.tasks.Launch(ctx, func(taskCtx context.Context) (*result.Run, error) {
		return s.runner.Validate(taskCtx, path, false, fix)
	})
	return NewResponse(req.ID, map[string]any{"taskId": taskID})
}

func (s *Server) handleTaskStatus(req *Request) *Response {
	taskID := stringArg(req.Params, "taskId")
	task := s.tasks.Get(taskID)
	if task == nil {
		return NewErrorResponse(req.ID, InvalidParams, fmt.Sprintf("unknown task: %s", taskID), nil)
	}
	payload := map[string]any{"state": string(task.State)}
	if task.State == TaskFinished {
		if task.Err != nil {
			payload["error"] = task.Err.Error()
		} else {
			payload["result"] = runContent(task.Run)
		}
	}
	return NewResponse(req.ID, payload)
}

func (s *Server) handleCancel(req *Request) *Response {
	taskID := stringArg(req.Params, "taskId")
	return NewResponse(req.ID, map[string]any{"cancelled": s.tasks.Cancel(taskID)})
}

// runContent wraps a serialized run in the agent-protocol text-block
// convention.
func runContent(run *result.Run) map[string]any {
	text := "{}"
	if run != nil {
		if data, err := result.SerializeJSON(run); err == nil {
			text = string(data)
		}
	}
	isError := run != nil && !run.Success
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"isError": isError,
	}
}

func stringArg(args map[string]any, key string) string {
	if value, ok := args[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	value, _ := args[key].(bool)
	return value
}
