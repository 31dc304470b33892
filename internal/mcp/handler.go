package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tfmcp/internal/envelope"
	"tfmcp/internal/errors"
)

// handleMessage processes one message and returns the response to write,
// or nil for notifications.
func (s *MCPServer) handleMessage(ctx context.Context, msg *MCPMessage) *MCPMessage {
	if msg == nil {
		return NewErrorMessage(nil, InvalidRequest, "Invalid message: empty", nil)
	}
	if msg.Jsonrpc != "2.0" {
		return NewErrorMessage(msg.Id, InvalidRequest, "Invalid message: jsonrpc must be \"2.0\"", nil)
	}
	if msg.IsRequest() {
		return s.handleRequest(ctx, msg)
	}
	if msg.IsNotification() {
		s.handleNotification(msg)
		return nil
	}
	if msg.Id == nil || msg.Result != nil || msg.Error != nil {
		// The server sends no requests, so responses are dropped.
		return nil
	}
	return NewErrorMessage(msg.Id, InvalidRequest, "Invalid message: not a request or notification", nil)
}

func (s *MCPServer) handleRequest(ctx context.Context, msg *MCPMessage) *MCPMessage {
	s.logger.Debug("Handling request", "method", msg.Method, "id", msg.Id)

	params, _ := msg.Params.(map[string]interface{})
	if params == nil {
		params = make(map[string]interface{})
	}

	switch msg.Method {
	case "initialize":
		return NewResultMessage(msg.Id, s.handleInitialize(params))
	case "ping":
		return NewResultMessage(msg.Id, map[string]interface{}{})
	case "tools/list":
		return NewResultMessage(msg.Id, map[string]interface{}{"tools": s.GetToolDefinitions()})
	case "tools/call":
		if _, ok := msg.Params.(map[string]interface{}); !ok {
			return NewErrorMessage(msg.Id, InvalidParams, "Invalid params: expected object", nil)
		}
		result, rpcErr := s.handleCallTool(ctx, params)
		if rpcErr != nil {
			return NewErrorMessage(msg.Id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		}
		return NewResultMessage(msg.Id, result)
	case "resources/list":
		resources := s.GetResourceDefinitions()
		return NewResultMessage(msg.Id, map[string]interface{}{"resources": resources})
	case "resources/read":
		result, rpcErr := s.handleReadResource(params)
		if rpcErr != nil {
			return NewErrorMessage(msg.Id, rpcErr.Code, rpcErr.Message, nil)
		}
		return NewResultMessage(msg.Id, result)
	default:
		return NewErrorMessage(msg.Id, MethodNotFound, fmt.Sprintf("Method not found: %s", msg.Method), nil)
	}
}

func (s *MCPServer) handleNotification(msg *MCPMessage) {
	switch msg.Method {
	case "notifications/initialized":
		s.logger.Info("Client initialized")
	case "notifications/cancelled":
		s.logger.Debug("Client cancelled a request", "params", msg.Params)
	default:
		s.logger.Debug("Unknown notification", "method", msg.Method)
	}
}

// handleCallTool runs a tool. Tool failures are reported inside the result
// envelope; only protocol problems become JSON-RPC errors.
func (s *MCPServer) handleCallTool(ctx context.Context, params map[string]interface{}) (interface{}, *MCPError) {
	toolName, ok := params["name"].(string)
	if !ok || toolName == "" {
		return nil, &MCPError{Code: InvalidParams, Message: "Invalid params: missing tool name"}
	}
	handler, exists := s.tools[toolName]
	if !exists {
		return nil, &MCPError{Code: InvalidParams, Message: fmt.Sprintf("Unknown tool: %s", toolName)}
	}

	toolParams, ok := params["arguments"].(map[string]interface{})
	if !ok {
		toolParams = make(map[string]interface{})
	}

	requestID := newRequestID()
	start := time.Now()
	s.logger.Info("Calling tool", "tool", toolName, "requestId", requestID)

	resp, err := handler(ctx, toolParams)
	if err != nil {
		resp = envelope.New().Data(nil).Error(err).Build()
	}
	if resp.Meta == nil {
		resp.Meta = &envelope.Meta{}
	}
	resp.Meta.RequestID = requestID
	duration := time.Since(start).Milliseconds()
	if resp.Meta.DurationMs == 0 {
		resp.Meta.DurationMs = duration
	}

	outcome := "ok"
	var code errors.ErrorCode
	if resp.Error != nil {
		outcome = "error"
		code = resp.Error.Code
		s.logger.Warn("Tool failed", "tool", toolName, "requestId", requestID, "code", string(code), "error", resp.Error.Message)
	}
	if s.audit != nil {
		rec := auditRecord{
			RequestID:  requestID,
			Tool:       toolName,
			Params:     toolParams,
			DurationMs: duration,
			Outcome:    outcome,
			ErrorCode:  code,
		}
		if err := s.audit.record(rec); err != nil {
			s.logger.Warn("Failed to write audit record", "error", err.Error())
		}
	}

	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		return nil, &MCPError{Code: InternalError, Message: fmt.Sprintf("marshal response: %v", err)}
	}
	result := map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": string(jsonBytes)},
		},
	}
	if resp.Error != nil {
		result["isError"] = true
	}
	return result, nil
}
