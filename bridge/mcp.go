package bridge

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/asiloisad/pulsar-claude-chat/tools"
)

// JSON-RPC 2.0 error codes
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// sessionHeader carries the MCP session token on responses and DELETE.
const sessionHeader = "Mcp-Session-Id"

// jsonrpcRequest is an incoming JSON-RPC request.
type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// jsonrpcResponse is an outgoing JSON-RPC response.
type jsonrpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// initializeParams for the initialize method.
type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

// initializeResult for the initialize response.
type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// toolCallParams for tools/call.
type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// toolCallResult wraps a registry result as MCP content.
type toolCallResult struct {
	Content []contentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func rpcResult(id any, result any) jsonrpcResponse {
	return jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func rpcFailure(id any, code int, message string) jsonrpcResponse {
	return jsonrpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}

// handleMCP dispatches one JSON-RPC request. Tool-level failures are
// RPC-successes with isError content; only protocol violations produce
// RPC errors.
func (s *Server) handleMCP(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, rpcFailure(nil, codeParseError, "failed to read request body"))
		return
	}

	var req jsonrpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, rpcFailure(nil, codeParseError, "parse error"))
		return
	}

	if req.JSONRPC != "2.0" {
		c.JSON(http.StatusOK, rpcFailure(req.ID, codeInvalidRequest, "jsonrpc must be \"2.0\""))
		return
	}

	s.log.Debug("mcp request", "method", req.Method, "id", req.ID)

	switch req.Method {
	case "initialize":
		s.handleInitialize(c, &req)

	case "notifications/initialized":
		// Notification: acknowledge without a response body
		c.Status(http.StatusAccepted)

	case "tools/list":
		c.JSON(http.StatusOK, rpcResult(req.ID, gin.H{"tools": s.registry.Definitions()}))

	case "tools/call":
		s.handleMCPToolCall(c, &req)

	case "ping":
		c.JSON(http.StatusOK, rpcResult(req.ID, gin.H{}))

	default:
		c.JSON(http.StatusOK, rpcFailure(req.ID, codeMethodNotFound, "method not found: "+req.Method))
	}
}

func (s *Server) handleInitialize(c *gin.Context, req *jsonrpcRequest) {
	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			c.JSON(http.StatusOK, rpcFailure(req.ID, codeInvalidParams, "invalid initialize params"))
			return
		}
	}

	protocolVersion := params.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = DefaultProtocolVersion
	}

	sessionID := uuid.NewString()

	s.mu.Lock()
	s.sessions[sessionID] = mcpSession{
		ProtocolVersion: protocolVersion,
		ClientName:      params.ClientInfo.Name,
		ClientVersion:   params.ClientInfo.Version,
		CreatedAt:       time.Now(),
	}
	s.mu.Unlock()

	s.log.Info("mcp session initialized", "sessionID", sessionID, "client", params.ClientInfo.Name)

	c.Header(sessionHeader, sessionID)
	c.JSON(http.StatusOK, rpcResult(req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: map[string]any{
			"tools": map[string]any{},
		},
		ServerInfo: serverInfo{Name: ServerName, Version: ServerVersion},
	}))
}

func (s *Server) handleMCPToolCall(c *gin.Context, req *jsonrpcRequest) {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		c.JSON(http.StatusOK, rpcFailure(req.ID, codeInvalidParams, "invalid tools/call params"))
		return
	}

	result := s.registry.Call(c.Request.Context(), params.Name, params.Arguments)

	c.JSON(http.StatusOK, rpcResult(req.ID, wrapToolResult(result)))
}

// wrapToolResult renders a registry envelope as MCP content. Failures stay
// RPC-successes with isError set.
func wrapToolResult(result tools.Result) toolCallResult {
	if !result.Success {
		return toolCallResult{
			Content: []contentItem{{Type: "text", Text: result.Error}},
			IsError: true,
		}
	}

	text := renderData(result.Data)
	return toolCallResult{
		Content: []contentItem{{Type: "text", Text: text}},
	}
}

// renderData flattens tool output into text content.
func renderData(data any) string {
	switch v := data.(type) {
	case nil:
		return "ok"
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "ok"
		}
		return string(encoded)
	}
}

// handleMCPDelete ends an MCP session. Unknown ids are not an error; the
// response is 204 either way.
func (s *Server) handleMCPDelete(c *gin.Context) {
	sessionID := c.GetHeader(sessionHeader)
	if sessionID != "" {
		s.mu.Lock()
		if _, ok := s.sessions[sessionID]; ok {
			delete(s.sessions, sessionID)
			s.log.Debug("mcp session deleted", "sessionID", sessionID)
		}
		s.mu.Unlock()
	}
	c.Status(http.StatusNoContent)
}
