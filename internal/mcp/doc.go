// Package mcp exposes the question-answering pipeline as a Model Context
// Protocol (MCP) server.
//
// Two tools are registered:
//   - ask: answer a question from the knowledge base
//   - health: report whether the pipeline is operational
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {"name": "ask", "arguments": {"query": "..."}}}
//	Server → Client: {"result": {"content": [{"type": "text", "text": "..."}]}}
//
// Stdout carries protocol messages only. Logs must go to stderr.
//
// # Tool: ask
//
//	Request:
//	{
//	  "query": "What time is breakfast?"
//	}
//
//	Response: the answer text.
//
// # Tool: health
//
//	Response:
//	{
//	  "rag_pipeline": "operational",
//	  "server": "airac",
//	  "status": "healthy",
//	  "version": "1.0.0"
//	}
//
// # Error Handling
//
// Tool failures are returned as MCPError values with JSON-RPC style codes:
//   - -32602: Invalid params
//   - -32603: Internal error (retrieval or generation failed)
//   - -32004: Empty query
//   - -32005: Pipeline unavailable (missing credentials at startup)
package mcp
