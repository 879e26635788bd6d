// Package mcpshim implements the inbound MCP compatibility shim (C13):
// JSON-RPC 2.0 over POST /api/mcp/request, advertising verify_state,
// list_available_graphs, and search_nodes (spec.md §6).
//
// This is the inverse direction of the teacher's pkg/mcp/router.go, which
// routes an agent's outbound tool calls to external MCP servers. Here the
// orchestration core itself is the MCP server, so only the request/error
// envelope and the tool-name dispatch map are adapted from that file —
// NormalizeToolName/SplitToolName's "server.tool" canonicalization doesn't
// apply to an inbound fixed tool set and is intentionally not reused.
package mcpshim

import (
	"encoding/json"
)

// JSON-RPC 2.0 standard error codes used by this shim (spec.md §6).
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
)

// Request is one JSON-RPC 2.0 call.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC 2.0 reply. Exactly one of Result/Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Tool describes one tool advertised by tools/list.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

// ToolHandler executes one tool call and returns its result or an error.
type ToolHandler func(args map[string]interface{}) (interface{}, error)

// Shim dispatches initialize/tools.list/tools.call over the fixed tool set
// named in spec.md §6.
type Shim struct {
	tools    []Tool
	handlers map[string]ToolHandler
}

// New creates a Shim with the given tool descriptors and handlers. Every
// tool named in tools must have a matching entry in handlers.
func New(tools []Tool, handlers map[string]ToolHandler) *Shim {
	return &Shim{tools: tools, handlers: handlers}
}

// Handle dispatches one JSON-RPC request and always returns a well-formed
// Response (never an error return), per spec.md §7 "Handlers never let
// exceptions escape".
func (s *Shim) Handle(req Request) Response {
	switch req.Method {
	case "initialize":
		return s.reply(req, map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo":      map[string]string{"name": "redstring-bridge", "version": "1.0.0"},
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
		})
	case "tools/list":
		return s.reply(req, map[string]interface{}{"tools": s.tools})
	case "tools/call":
		return s.handleToolsCall(req)
	default:
		return s.errorResponse(req, CodeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Shim) handleToolsCall(req Request) Response {
	var params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.errorResponse(req, CodeInvalidParams, "invalid params: "+err.Error())
		}
	}
	if params.Name == "" {
		return s.errorResponse(req, CodeInvalidParams, "missing required argument: name")
	}

	handler, ok := s.handlers[params.Name]
	if !ok {
		return s.errorResponse(req, CodeMethodNotFound, "unknown tool: "+params.Name)
	}

	result, err := handler(params.Arguments)
	if err != nil {
		return s.errorResponse(req, CodeServerError, err.Error())
	}
	return s.reply(req, map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": result},
		},
	})
}

func (s *Shim) reply(req Request, result interface{}) Response {
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Shim) errorResponse(req Request, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: code, Message: message}}
}
