package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/airac/airac/internal/pipeline"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery          = -32004 // Query parameter is empty
	ErrorCodePipelineUnavailable = -32005 // Pipeline was not built at startup
)

// handleAsk handles the ask tool invocation
func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	if s.pipeline == nil {
		return nil, newMCPError(ErrorCodePipelineUnavailable, "pipeline is not initialized", nil)
	}

	answer, err := s.pipeline.Invoke(ctx, query)
	if errors.Is(err, pipeline.ErrEmptyQuery) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", nil)
	}
	if err != nil {
		s.logger.Error("ask failed", "query", query, "error", err)
		return nil, newMCPError(ErrorCodeInternalError, "query failed", nil)
	}

	return mcp.NewToolResultText(answer), nil
}

// handleHealth handles the health tool invocation
func (s *Server) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := "operational"
	if s.pipeline == nil {
		status = "failed"
	}
	response := map[string]interface{}{
		"status":       "healthy",
		"server":       ServerName,
		"version":      ServerVersion,
		"rag_pipeline": status,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
