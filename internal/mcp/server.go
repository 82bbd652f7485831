package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
)

const (
	// ServerName is the MCP server name
	ServerName = "airac"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Invoker answers a single query
type Invoker interface {
	Invoke(ctx context.Context, query string) (string, error)
}

// Server wraps the MCP server with the query pipeline
type Server struct {
	mcp      *server.MCPServer
	pipeline Invoker
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance. A nil pipeline is allowed:
// the health tool then reports it as failed and ask returns an error.
func NewServer(pipeline Invoker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		pipeline: pipeline,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen runs the MCP protocol over the given streams
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(askTool(), s.handleAsk)
	s.mcp.AddTool(healthTool(), s.handleHealth)
}
