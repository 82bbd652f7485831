package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// askTool returns the tool definition for ask
func askTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the facility knowledge base",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language question, e.g. \"What time is breakfast?\"",
				},
			},
			Required: []string{"query"},
		},
	}
}

// healthTool returns the tool definition for health
func healthTool() mcp.Tool {
	return mcp.Tool{
		Name:        "health",
		Description: "Report whether the question-answering pipeline is operational",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
