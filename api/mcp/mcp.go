// Package mcp exposes the agent's tool registry over the Model Context
// Protocol so other agents can call the same tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/reel/pkg/toolbox"
	"github.com/papercomputeco/reel/pkg/utils"
)

type Config struct {
	// Registry holds the tools to expose
	Registry *toolbox.Registry

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with one MCP tool per registry tool.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "reel",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Registry == nil {
			return nil, errors.New("tool registry is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		for _, def := range c.Registry.DescribeAll() {
			mcpServer.AddTool(&mcp.Tool{
				Name:        def.Name,
				Description: def.Description,
				InputSchema: def.Parameters,
			}, s.callTool(def.Name))
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// callTool forwards a call to the registry. Tool failures are reported as
// error results so the calling model can see them.
func (s *Server) callTool(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := string(req.Params.Arguments)

		s.config.Logger.Debug("MCP tool call",
			"tool", name,
			"arguments", args,
		)

		result, err := s.config.Registry.Invoke(ctx, name, args)
		if err != nil {
			s.config.Logger.Warn("MCP tool call failed",
				"tool", name,
				"error", err,
			)
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{
					&mcp.TextContent{Text: err.Error()},
				},
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: toolbox.FormatResult(result)},
			},
		}, nil
	}
}
