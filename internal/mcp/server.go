package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/textbook-qa/internal/qa"
	"github.com/ziadkadry99/textbook-qa/internal/vectordb"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Service is the question-answering surface exposed as MCP tools.
type Service interface {
	Ask(ctx context.Context, question string) (*qa.Answer, error)
	Search(ctx context.Context, query string, k int) ([]vectordb.Result, error)
}

// Server wraps an MCP server that exposes textbook search tools.
type Server struct {
	service Service
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server backed by service.
func NewServer(service Service) *Server {
	s := &Server{service: service}

	s.mcp = server.NewMCPServer(
		"bookqa",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(askTextbookTool, s.handleAskTextbook)
	s.mcp.AddTool(searchTextbookTool, s.handleSearchTextbook)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
